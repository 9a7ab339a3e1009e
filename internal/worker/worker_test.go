package worker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"habitchallenge/internal/cache"
	"habitchallenge/internal/queue"
	"habitchallenge/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// MockFeedCache records calls made by the handler. AddProof skips a cold cache.
type MockFeedCache struct {
	mu     sync.Mutex
	exists bool
	addErr error
	added  []int64
	resets int
}

func (m *MockFeedCache) AddProof(ctx context.Context, proofID int64, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	if m.exists {
		m.added = append(m.added, proofID)
	}
	return nil
}

func (m *MockFeedCache) Page(ctx context.Context, offset, limit int) ([]int64, error) {
	return nil, nil
}

func (m *MockFeedCache) Warm(ctx context.Context, proofs []cache.ProofScore) error {
	return nil
}

func (m *MockFeedCache) Exists(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists, nil
}

func (m *MockFeedCache) Size(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.added)), nil
}

func (m *MockFeedCache) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.exists = false
	m.added = nil
	return nil
}

func (m *MockFeedCache) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// MockConsumer serves a fixed batch once, then reports an empty stream.
type MockConsumer struct {
	mu       sync.Mutex
	batch    []queue.Message
	served   bool
	stale    []queue.Message
	claims   int
	acked    []string
	groupErr error
}

func (m *MockConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	return m.groupErr
}

func (m *MockConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]queue.Message, error) {
	m.mu.Lock()
	if !m.served {
		m.served = true
		batch := m.batch
		m.mu.Unlock()
		return batch, nil
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
	return nil, nil
}

func (m *MockConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]queue.Message, error) {
	return nil, nil
}

func (m *MockConsumer) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims++
	stale := m.stale
	m.stale = nil
	return stale, nil
}

func (m *MockConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, messageIDs...)
	return nil
}

func (m *MockConsumer) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

// MockEventHandler fails for the event types listed in failTypes.
type MockEventHandler struct {
	mu        sync.Mutex
	handled   []queue.Event
	failTypes map[string]bool
}

func (m *MockEventHandler) HandleEvent(ctx context.Context, event queue.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handled = append(m.handled, event)
	if m.failTypes[event.Type] {
		return errors.New("handler failed")
	}
	return nil
}

func (m *MockEventHandler) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handled)
}

// MockBroadcaster counts broadcasts.
type MockBroadcaster struct {
	mu       sync.Mutex
	messages []string
	sent     int
	err      error
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, body string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, body)
	return m.sent, m.err
}

func (m *MockBroadcaster) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	// DB 1 keeps test data away from dev data
	opts.DB = 1
	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =============================================================================
// Handler
// =============================================================================

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	created := queue.NewProofCreatedEvent(7, 1, 3, time.Now())

	t.Run("proof_created adds to a warm cache", func(t *testing.T) {
		feed := &MockFeedCache{exists: true}
		h := worker.NewHandler(feed)

		if err := h.HandleEvent(ctx, created); err != nil {
			t.Fatalf("HandleEvent failed: %v", err)
		}
		if len(feed.added) != 1 || feed.added[0] != 7 {
			t.Errorf("added = %v, want [7]", feed.added)
		}
	})

	t.Run("proof_created leaves a cold cache alone", func(t *testing.T) {
		feed := &MockFeedCache{exists: false}
		h := worker.NewHandler(feed)

		if err := h.HandleEvent(ctx, created); err != nil {
			t.Fatalf("HandleEvent failed: %v", err)
		}
		if len(feed.added) != 0 {
			t.Errorf("added = %v, want none", feed.added)
		}
	})

	t.Run("proof_created failure drops the cache", func(t *testing.T) {
		feed := &MockFeedCache{exists: true, addErr: errors.New("connection refused")}
		h := worker.NewHandler(feed)

		if err := h.HandleEvent(ctx, created); err == nil {
			t.Fatal("expected error, got nil")
		}
		if feed.resets != 1 || feed.exists {
			t.Errorf("resets = %d exists = %v, want 1 false", feed.resets, feed.exists)
		}
	})

	t.Run("challenge_deleted resets the cache", func(t *testing.T) {
		feed := &MockFeedCache{exists: true, added: []int64{1, 2}}
		h := worker.NewHandler(feed)

		if err := h.HandleEvent(ctx, queue.NewChallengeDeletedEvent(4)); err != nil {
			t.Fatalf("HandleEvent failed: %v", err)
		}
		if feed.resets != 1 {
			t.Errorf("resets = %d, want 1", feed.resets)
		}
	})

	t.Run("unknown type is an error", func(t *testing.T) {
		h := worker.NewHandler(&MockFeedCache{})
		if err := h.HandleEvent(ctx, queue.Event{Type: "post_liked"}); err == nil {
			t.Fatal("expected error for unknown event type")
		}
	})
}

// =============================================================================
// Manager
// =============================================================================

func TestManagerAcksEveryMessage(t *testing.T) {
	// ARRANGE: the second message fails in the handler but must still be acked
	consumer := &MockConsumer{batch: []queue.Message{
		{ID: "1-0", Event: queue.NewProofCreatedEvent(1, 1, 1, time.Now())},
		{ID: "2-0", Event: queue.NewChallengeDeletedEvent(9)},
	}}
	handler := &MockEventHandler{failTypes: map[string]bool{queue.EventChallengeDeleted: true}}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	m := worker.NewManager(consumer, handler, cfg)

	// ACT
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return len(consumer.Acked()) == 2 })
	m.Stop()

	// ASSERT
	if handler.Count() != 2 {
		t.Errorf("handled = %d, want 2", handler.Count())
	}
	acked := consumer.Acked()
	if acked[0] != "1-0" || acked[1] != "2-0" {
		t.Errorf("acked = %v, want [1-0 2-0]", acked)
	}
}

func TestManagerAckedFailureLeavesCacheCold(t *testing.T) {
	// ARRANGE: the cache is warm but every add fails
	consumer := &MockConsumer{batch: []queue.Message{
		{ID: "3-0", Event: queue.NewProofCreatedEvent(3, 1, 1, time.Now())},
	}}
	feed := &MockFeedCache{exists: true, addErr: errors.New("redis timeout")}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	m := worker.NewManager(consumer, worker.NewHandler(feed), cfg)

	// ACT
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return len(consumer.Acked()) == 1 })
	m.Stop()

	// ASSERT: the entry is gone from the PEL and the next read must rewarm
	if feed.Resets() != 1 {
		t.Errorf("resets = %d, want 1", feed.Resets())
	}
	if exists, _ := feed.Exists(context.Background()); exists {
		t.Error("feed cache still warm after a failed add")
	}
}

func TestManagerClaimsStaleAndDropsMalformed(t *testing.T) {
	// ARRANGE: one stale entry from a vanished worker, one unparseable entry
	consumer := &MockConsumer{
		stale: []queue.Message{{ID: "5-0", Event: queue.NewProofCreatedEvent(5, 1, 1, time.Now())}},
		batch: []queue.Message{{ID: "6-0", Err: errors.New("missing data field")}},
	}
	handler := &MockEventHandler{}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 2
	m := worker.NewManager(consumer, handler, cfg)

	// ACT
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return len(consumer.Acked()) == 2 })
	m.Stop()

	// ASSERT: only worker-1 claims, and the malformed entry never reaches the handler
	consumer.mu.Lock()
	claims := consumer.claims
	consumer.mu.Unlock()
	if claims != 1 {
		t.Errorf("claims = %d, want 1", claims)
	}
	if handler.Count() != 1 {
		t.Errorf("handled = %d, want 1", handler.Count())
	}
}

func TestManagerStartFailsWithoutGroup(t *testing.T) {
	consumer := &MockConsumer{groupErr: errors.New("NOAUTH")}
	m := worker.NewManager(consumer, &MockEventHandler{}, worker.DefaultManagerConfig())

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected EnsureGroup error")
	}
	m.Stop()
}

// =============================================================================
// Reminder
// =============================================================================

func TestReminderTick(t *testing.T) {
	t.Run("sends the default message", func(t *testing.T) {
		b := &MockBroadcaster{sent: 3}
		s := worker.NewReminderScheduler(b, "", time.Minute)

		s.Tick(context.Background())

		if b.Calls() != 1 {
			t.Fatalf("calls = %d, want 1", b.Calls())
		}
		if b.messages[0] != worker.DefaultReminderMessage {
			t.Errorf("message = %q, want %q", b.messages[0], worker.DefaultReminderMessage)
		}
	})

	t.Run("broadcast failure does not panic", func(t *testing.T) {
		b := &MockBroadcaster{err: errors.New("expo down")}
		s := worker.NewReminderScheduler(b, "hi", time.Minute)

		s.Tick(context.Background())

		if b.Calls() != 1 {
			t.Errorf("calls = %d, want 1", b.Calls())
		}
	})
}

func TestReminderSchedulerRunsOnInterval(t *testing.T) {
	b := &MockBroadcaster{sent: 1}
	s := worker.NewReminderScheduler(b, "hi", 10*time.Millisecond)

	s.Start(context.Background())
	waitFor(t, func() bool { return b.Calls() >= 2 })
	s.Stop()

	after := b.Calls()
	time.Sleep(30 * time.Millisecond)
	if b.Calls() != after {
		t.Errorf("scheduler kept running after Stop: %d -> %d", after, b.Calls())
	}
}

// =============================================================================
// Redis Integration
// =============================================================================

// TestStreamToFeedCache runs Publisher -> Stream -> Consumer -> Handler -> Cache.
func TestStreamToFeedCache(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	feedCache := cache.NewProofFeedCache(client)
	publisher := queue.NewPublisher(client)
	consumer := queue.NewConsumer(client)
	handler := worker.NewHandler(feedCache)

	// A warm cache holding one older proof
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := feedCache.Warm(ctx, []cache.ProofScore{{ProofID: 1, CreatedAt: base}}); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	if err := consumer.EnsureGroup(ctx, queue.StreamProofs, queue.ConsumerGroupProofs); err != nil {
		t.Fatalf("EnsureGroup failed: %v", err)
	}

	event := queue.NewProofCreatedEvent(2, 10, 20, base.Add(time.Minute))
	if _, err := publisher.Publish(ctx, queue.StreamProofs, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	messages, err := consumer.Read(ctx, queue.StreamProofs, queue.ConsumerGroupProofs, "test-worker", 10, time.Second)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if messages[0].Event.ProofID != 2 || messages[0].Event.ParticipationID != 20 {
		t.Errorf("event round trip mismatch: %+v", messages[0].Event)
	}

	if err := handler.HandleEvent(ctx, messages[0].Event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if err := consumer.Ack(ctx, queue.StreamProofs, queue.ConsumerGroupProofs, messages[0].ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	ids, err := feedCache.Page(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 1 {
		t.Errorf("feed = %v, want [2 1]", ids)
	}

	pending, err := consumer.ReadPending(ctx, queue.StreamProofs, queue.ConsumerGroupProofs, "test-worker", 10)
	if err != nil {
		t.Fatalf("ReadPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected 0 pending messages, got %d", len(pending))
	}
}

func TestFeedCacheOrdersEqualTimestampsByID(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	feedCache := cache.NewProofFeedCache(client)

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := feedCache.Warm(ctx, []cache.ProofScore{{ProofID: 3, CreatedAt: at}}); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	for _, id := range []int64{11, 7} {
		if err := feedCache.AddProof(ctx, id, at); err != nil {
			t.Fatalf("AddProof failed: %v", err)
		}
	}

	ids, err := feedCache.Page(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	want := []int64{11, 7, 3}
	for i := range want {
		if i >= len(ids) || ids[i] != want[i] {
			t.Fatalf("feed = %v, want %v", ids, want)
		}
	}
}

func TestFeedCacheAddSkipsColdKey(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	feedCache := cache.NewProofFeedCache(client)

	if err := feedCache.AddProof(ctx, 5, time.Now()); err != nil {
		t.Fatalf("AddProof failed: %v", err)
	}

	exists, err := feedCache.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("AddProof created a partial feed on a cold key")
	}
}
