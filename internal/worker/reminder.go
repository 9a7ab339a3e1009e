package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultReminderMessage is the daily nudge sent to every registered device.
const DefaultReminderMessage = "오늘의 챌린지를 잊지 마세요! 💪"

// Broadcaster sends one message to every stored push token and reports how
// many tokens it reached.
type Broadcaster interface {
	Broadcast(ctx context.Context, body string) (int, error)
}

// ReminderScheduler periodically broadcasts the reminder message.
type ReminderScheduler struct {
	mu          sync.RWMutex
	broadcaster Broadcaster
	message     string
	interval    time.Duration
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewReminderScheduler(b Broadcaster, message string, interval time.Duration) *ReminderScheduler {
	if message == "" {
		message = DefaultReminderMessage
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderScheduler{
		broadcaster: b,
		message:     message,
		interval:    interval,
	}
}

// Start begins the scheduler loop.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	log.Printf("[Reminder] Started: interval=%v", s.interval)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop waits for an in-flight tick to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	log.Printf("[Reminder] Stopped")
}

// Tick sends one round of reminders. Failures are logged and the next tick retries.
func (s *ReminderScheduler) Tick(ctx context.Context) {
	startTime := time.Now()

	sent, err := s.broadcaster.Broadcast(ctx, s.message)
	if err != nil {
		log.Printf("[Reminder] Tick FAILED: sent=%d err=%v", sent, err)
		return
	}
	if sent == 0 {
		log.Printf("[Reminder] Tick: no tokens, skipping")
		return
	}

	log.Printf("[Reminder] Tick OK: sent=%d duration=%v", sent, time.Since(startTime))
}
