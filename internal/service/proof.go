package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"habitchallenge/internal/cache"
	"habitchallenge/internal/model"
	"habitchallenge/internal/queue"
	"habitchallenge/internal/repository"
)

type ProofService struct {
	repo      repository.ProofRepository
	feedCache cache.ProofFeedCache // nil serves every page from Postgres
	publisher queue.Publisher      // nil skips proof_created events
	clock     Clock
}

func NewProofService(
	repo repository.ProofRepository,
	feedCache cache.ProofFeedCache,
	publisher queue.Publisher,
	clock Clock,
) *ProofService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ProofService{
		repo:      repo,
		feedCache: feedCache,
		publisher: publisher,
		clock:     clock,
	}
}

// SubmitProof records a proof for the caller's participation. The count and
// the insert run under a row lock on the participation, so two concurrent
// submissions on a ONCE challenge produce one proof and one ErrDailyLimitReached.
func (s *ProofService) SubmitProof(ctx context.Context, userID int64, req model.CreateProofRequest) (*model.Proof, error) {
	startTime := time.Now()

	content := strings.TrimSpace(req.Content)
	imageURL := strings.TrimSpace(req.ImageURL)
	if err := validateProof(userID, req.ParticipationID, content, imageURL); err != nil {
		proofSubmissionsTotal.WithLabelValues(submissionInvalid).Inc()
		return nil, err
	}

	now := s.clock.Now()
	start, end := DayWindow(now)
	// Counting uses [start, nextDay): Postgres stores microseconds and would
	// round the nanosecond end of day up to the next midnight.
	nextDay := end.Add(time.Nanosecond)

	var proof *model.Proof
	err := s.repo.WithTx(ctx, func(tx repository.ProofTx) error {
		rule, err := tx.FindParticipationForUpdate(ctx, req.ParticipationID, userID)
		if err != nil {
			return err
		}

		count, err := tx.CountInWindow(ctx, rule.ParticipationID, start, nextDay)
		if err != nil {
			return err
		}

		policy := rule.AuthCountPerDay.Normalize()
		if d := EvaluateEligibility(policy, now, count); !d.Allowed {
			log.Printf("[ProofService] SubmitProof denied: participation=%d policy=%s count=%d reason=%q",
				rule.ParticipationID, policy, count, d.Reason)
			return model.ErrDailyLimitReached
		}

		p := &model.Proof{
			Content:         content,
			ImageURL:        imageURL,
			UserID:          userID,
			ParticipationID: rule.ParticipationID,
			ProofDate:       start,
			OncePerDay:      policy == model.AuthCountOnce,
			CreatedAt:       now,
		}
		if err := tx.Insert(ctx, p); err != nil {
			return err
		}
		proof = p
		return nil
	})
	if err != nil {
		proofSubmissionsTotal.WithLabelValues(submissionResult(err)).Inc()
		return nil, err
	}

	proofSubmissionsTotal.WithLabelValues(submissionCreated).Inc()
	s.addToFeed(ctx, proof)
	s.publishCreated(ctx, proof)

	log.Printf("[ProofService] SubmitProof OK: proof=%d participation=%d user=%d duration=%v",
		proof.ID, proof.ParticipationID, userID, time.Since(startTime))
	return proof, nil
}

func submissionResult(err error) string {
	switch {
	case errors.Is(err, model.ErrDailyLimitReached):
		return submissionLimited
	case errors.Is(err, model.ErrParticipationNotFound):
		return submissionNotFound
	default:
		return submissionFailed
	}
}

// addToFeed writes the committed proof through to a warm feed cache. If that
// fails the cache is dropped, so the next read falls back to Postgres and
// rewarms instead of serving a page without this proof.
func (s *ProofService) addToFeed(ctx context.Context, proof *model.Proof) {
	if s.feedCache == nil {
		return
	}
	err := s.feedCache.AddProof(ctx, proof.ID, proof.CreatedAt)
	if err == nil {
		return
	}
	log.Printf("[ProofService] Feed cache add FAILED, dropping cache: proof=%d err=%v", proof.ID, err)
	if err := s.feedCache.Reset(ctx); err != nil {
		log.Printf("[ProofService] Feed cache reset FAILED: %v", err)
	}
}

// publishCreated never fails the submission. The feed cache was already
// updated by addToFeed; the event lets other instances' workers do the same.
func (s *ProofService) publishCreated(ctx context.Context, proof *model.Proof) {
	if s.publisher == nil {
		return
	}
	event := queue.NewProofCreatedEvent(proof.ID, proof.UserID, proof.ParticipationID, proof.CreatedAt)
	if _, err := s.publisher.Publish(ctx, queue.StreamProofs, event); err != nil {
		log.Printf("[ProofService] Failed to publish proof_created: proof=%d err=%v", proof.ID, err)
	}
}

func validateProof(userID, participationID int64, content, imageURL string) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user_id must be positive", model.ErrValidation)
	}
	if participationID <= 0 {
		return fmt.Errorf("%w: participation_id must be positive", model.ErrValidation)
	}
	if content == "" {
		return fmt.Errorf("%w: content is required", model.ErrValidation)
	}
	if utf8.RuneCountInString(content) > model.MaxProofContent {
		return fmt.Errorf("%w: content must be at most %d characters", model.ErrValidation, model.MaxProofContent)
	}
	if !isHTTPURL(imageURL) {
		return fmt.Errorf("%w: image_url must be an absolute http(s) URL", model.ErrValidation)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// normalizePage applies the listing defaults: page 1, ProofDefaultLimit,
// limit capped at ProofMaxLimit.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = model.ProofDefaultLimit
	}
	if limit > model.ProofMaxLimit {
		limit = model.ProofMaxLimit
	}
	return page, limit
}

// FindAllProofs pages the public feed newest first. Pages inside the newest
// ProofFeedCap proofs come from the Redis feed; the rest, and any page the
// cache cannot serve, come from Postgres.
func (s *ProofService) FindAllProofs(ctx context.Context, page, limit int) ([]model.Proof, error) {
	page, limit = normalizePage(page, limit)
	offset := (page - 1) * limit

	if s.feedCache != nil && offset+limit <= cache.ProofFeedCap {
		proofs, ok := s.pageFromCache(ctx, offset, limit)
		if ok {
			return proofs, nil
		}
	}

	proofs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list proofs: %w", err)
	}
	return proofs, nil
}

// pageFromCache reports ok=false whenever the caller should fall back to Postgres.
func (s *ProofService) pageFromCache(ctx context.Context, offset, limit int) ([]model.Proof, bool) {
	exists, err := s.feedCache.Exists(ctx)
	if err != nil {
		log.Printf("[ProofService] Feed cache check failed: %v", err)
		return nil, false
	}
	if !exists {
		if err := s.warmFeed(ctx); err != nil {
			log.Printf("[ProofService] Feed cache warm failed: %v", err)
			return nil, false
		}
	}

	ids, err := s.feedCache.Page(ctx, offset, limit)
	if err != nil {
		log.Printf("[ProofService] Feed cache page failed: %v", err)
		return nil, false
	}
	if len(ids) == 0 {
		return []model.Proof{}, true
	}

	proofs, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		log.Printf("[ProofService] Hydrate proofs failed: %v", err)
		return nil, false
	}
	// A proof deleted since it was cached leaves a short page; Postgres has the exact one.
	if len(proofs) != len(ids) {
		return nil, false
	}
	return proofs, true
}

// warmCheckDepth is how many of the newest proofs are checked against the
// cache after a warm.
const warmCheckDepth = 20

// warmFeed loads the newest proofs into the cache. A proof committed while
// the scores were being read found the cache cold and skipped it, so the
// newest proofs in Postgres are checked against the cache afterwards and the
// cache is dropped if any is missing.
func (s *ProofService) warmFeed(ctx context.Context) error {
	startTime := time.Now()

	scores, err := s.repo.RecentScores(ctx, cache.ProofFeedCap)
	if err != nil {
		return fmt.Errorf("recent proof scores: %w", err)
	}
	if err := s.feedCache.Warm(ctx, scores); err != nil {
		return err
	}

	latest, err := s.repo.RecentScores(ctx, warmCheckDepth)
	if err != nil {
		return fmt.Errorf("recent proof scores: %w", err)
	}
	cached, err := s.feedCache.Page(ctx, 0, 2*warmCheckDepth)
	if err != nil {
		return err
	}
	inCache := make(map[int64]bool, len(cached))
	for _, id := range cached {
		inCache[id] = true
	}
	for _, p := range latest {
		if inCache[p.ProofID] {
			continue
		}
		if err := s.feedCache.Reset(ctx); err != nil {
			log.Printf("[ProofService] Feed cache reset FAILED: %v", err)
		}
		return fmt.Errorf("feed cache missed proof %d while warming", p.ProofID)
	}

	log.Printf("[ProofService] Feed cache warmed: proofs=%d duration=%v", len(scores), time.Since(startTime))
	return nil
}

func (s *ProofService) FindProofByID(ctx context.Context, id int64) (*model.Proof, error) {
	if id <= 0 {
		return nil, model.ErrProofNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// FindMyProofs lists every proof the user submitted, newest first.
func (s *ProofService) FindMyProofs(ctx context.Context, userID int64) ([]model.Proof, error) {
	proofs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user proofs: %w", err)
	}
	return proofs, nil
}
