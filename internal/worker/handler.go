package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"habitchallenge/internal/cache"
	"habitchallenge/internal/queue"
)

// Handler keeps the proof feed cache in step with committed writes.
type Handler struct {
	feedCache cache.ProofFeedCache
}

func NewHandler(feedCache cache.ProofFeedCache) *Handler {
	return &Handler{feedCache: feedCache}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.Event) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventProofCreated:
		err = h.handleProofCreated(ctx, event)
	case queue.EventChallengeDeleted:
		err = h.handleChallengeDeleted(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleProofCreated pushes the new proof onto the cached feed. AddProof is a
// no-op on a cold cache and idempotent when the submitting instance already
// wrote the proof through. If the add fails the cache is dropped so the next
// read rewarms from Postgres; the event itself is not retried.
func (h *Handler) handleProofCreated(ctx context.Context, event queue.Event) error {
	if err := h.feedCache.AddProof(ctx, event.ProofID, event.Time()); err != nil {
		if rerr := h.feedCache.Reset(ctx); rerr != nil {
			log.Printf("[Worker] Feed cache reset FAILED: %v", rerr)
		}
		return fmt.Errorf("add proof to feed: %w", err)
	}

	log.Printf("[Worker] ProofCreated DONE: proof=%d participation=%d user=%d",
		event.ProofID, event.ParticipationID, event.UserID)
	return nil
}

// handleChallengeDeleted drops the cached feed. Deleting a challenge cascades
// to its proofs, and the cache has no per-challenge index to prune by.
func (h *Handler) handleChallengeDeleted(ctx context.Context, event queue.Event) error {
	if err := h.feedCache.Reset(ctx); err != nil {
		return fmt.Errorf("reset feed cache: %w", err)
	}

	log.Printf("[Worker] ChallengeDeleted DONE: challenge=%d", event.ChallengeID)
	return nil
}
