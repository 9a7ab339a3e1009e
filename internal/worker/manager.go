package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"habitchallenge/internal/queue"
)

const (
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long XREADGROUP blocks waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	DefaultClaimMinIdle = 5 * time.Minute
)

// EventHandler processes one event. *Handler is the production implementation.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.Event) error
}

// Manager runs a pool of goroutines consuming the proof stream.
type Manager struct {
	consumer    queue.Consumer
	handler     EventHandler
	stream      string
	group       string
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	claimIdle   time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type ManagerConfig struct {
	Stream       string
	Group        string
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
	// ClaimMinIdle is how long an entry must sit unacked on another consumer
	// before worker-1 takes it over at startup. Zero disables claiming.
	ClaimMinIdle time.Duration
}

// DefaultManagerConfig consumes the proof stream with the default pool size.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamProofs,
		Group:        queue.ConsumerGroupProofs,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
		ClaimMinIdle: DefaultClaimMinIdle,
	}
}

func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	if cfg.Stream == "" {
		cfg.Stream = queue.StreamProofs
	}
	if cfg.Group == "" {
		cfg.Group = queue.ConsumerGroupProofs
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		stream:      cfg.Stream,
		group:       cfg.Group,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		claimIdle:   cfg.ClaimMinIdle,
	}
}

// Start creates the consumer group and launches the workers.
// Call Stop() to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	log.Printf("[Manager] Starting %d workers for stream=%s group=%s",
		m.workerCount, m.stream, m.group)

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}

	return nil
}

// Stop blocks until every worker has returned.
func (m *Manager) Stop() {
	if m == nil || m.cancel == nil {
		return
	}
	log.Printf("[Manager] Stopping workers...")
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	log.Printf("[Worker-%d] Started (consumer=%s)", workerID, consumerName)

	// Entries delivered before a crash stay pending until acknowledged.
	m.processPending(workerID, consumerName)
	if workerID == 1 && m.claimIdle > 0 {
		m.claimStale(workerID, consumerName)
	}

	for {
		select {
		case <-m.ctx.Done():
			log.Printf("[Worker-%d] Shutting down", workerID)
			return
		default:
			m.processMessages(workerID, consumerName)
		}
	}
}

func (m *Manager) processPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			log.Printf("[Worker-%d] Error reading pending: %v", workerID, err)
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Printf("[Worker-%d] Processing %d pending messages", workerID, len(messages))
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) claimStale(workerID int, consumerName string) {
	messages, err := m.consumer.Claim(m.ctx, m.stream, m.group, consumerName, m.claimIdle, m.batchSize)
	if err != nil {
		log.Printf("[Worker-%d] Error claiming stale messages: %v", workerID, err)
	}
	if len(messages) > 0 {
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Printf("[Worker-%d] Error reading: %v", workerID, err)
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	if len(messages) == 0 {
		return
	}

	m.handleMessages(workerID, messages)
}

func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		if msg.Err != nil {
			log.Printf("[Worker-%d] Dropping malformed msgID=%s: %v", workerID, msg.ID, msg.Err)
		} else if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			// Acked anyway. A failed handler has already dropped the feed cache,
			// so the next read rewarms it from Postgres.
			log.Printf("[Worker-%d] Handler error msgID=%s: %v", workerID, msg.ID, err)
		}

		if err := m.consumer.Ack(m.ctx, m.stream, m.group, msg.ID); err != nil {
			log.Printf("[Worker-%d] ACK error msgID=%s: %v", workerID, msg.ID, err)
		}
	}
}

func consumerNameForWorker(workerID int) string {
	return fmt.Sprintf("worker-%d", workerID)
}
