package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"habitchallenge/internal/model"
	"habitchallenge/internal/queue"
	"habitchallenge/internal/repository"
)

// Challenge listing constants
const (
	ChallengeDefaultLimit = 10
	ChallengeMaxLimit     = 50
)

type ChallengeService struct {
	repo              repository.ChallengeRepository
	participationRepo repository.ParticipationRepository
	publisher         queue.Publisher // nil skips challenge_deleted events
	clock             Clock
}

func NewChallengeService(
	repo repository.ChallengeRepository,
	participationRepo repository.ParticipationRepository,
	publisher queue.Publisher,
	clock Clock,
) *ChallengeService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ChallengeService{
		repo:              repo,
		participationRepo: participationRepo,
		publisher:         publisher,
		clock:             clock,
	}
}

// FindAllChallenges pages challenges matching filter. Dates are compared at
// day granularity against today in the clock's location.
func (s *ChallengeService) FindAllChallenges(ctx context.Context, page, limit int, filter string) ([]model.Challenge, error) {
	f, err := model.ParseChallengeFilter(filter)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = ChallengeDefaultLimit
	}
	if limit > ChallengeMaxLimit {
		limit = ChallengeMaxLimit
	}

	challenges, err := s.repo.List(ctx, f, s.clock.Now(), limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return challenges, nil
}

func (s *ChallengeService) GetByID(ctx context.Context, id int64) (*model.Challenge, error) {
	if id <= 0 {
		return nil, model.ErrChallengeNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Join enrolls the user with status IN_PROGRESS. Joining twice creates a
// second participation.
func (s *ChallengeService) Join(ctx context.Context, userID, challengeID int64) (*model.Participation, error) {
	if challengeID <= 0 {
		return nil, model.ErrChallengeNotFound
	}

	p, err := s.participationRepo.Create(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	log.Printf("[ChallengeService] Join OK: participation=%d user=%d challenge=%d", p.ID, userID, challengeID)
	return p, nil
}

// MyChallenges lists the user's participations with their challenge.
func (s *ChallengeService) MyChallenges(ctx context.Context, userID int64) ([]model.Participation, error) {
	participations, err := s.participationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	return participations, nil
}

func (s *ChallengeService) Create(ctx context.Context, req model.CreateChallengeRequest) (*model.Challenge, error) {
	c := &model.Challenge{}
	if err := applyChallengeFields(c, challengeFields{
		Title:           &req.Title,
		Thumbnail:       &req.Thumbnail,
		Frequency:       &req.Frequency,
		StartDate:       &req.StartDate,
		EndDate:         &req.EndDate,
		AuthCountPerDay: &req.AuthCountPerDay,
		AuthDescription: &req.AuthDescription,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	log.Printf("[ChallengeService] Create OK: challenge=%d title=%q", c.ID, c.Title)
	return c, nil
}

// Update merges the non-nil fields into the stored challenge and validates
// the merged result, including start_date <= end_date.
func (s *ChallengeService) Update(ctx context.Context, id int64, req model.UpdateChallengeRequest) (*model.Challenge, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyChallengeFields(c, challengeFields(req)); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	log.Printf("[ChallengeService] Update OK: challenge=%d", c.ID)
	return c, nil
}

// Delete removes the challenge with its participations and proofs.
func (s *ChallengeService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return model.ErrChallengeNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, queue.StreamProofs, queue.NewChallengeDeletedEvent(id)); err != nil {
			log.Printf("[ChallengeService] Failed to publish challenge_deleted: challenge=%d err=%v", id, err)
		}
	}

	log.Printf("[ChallengeService] Delete OK: challenge=%d", id)
	return nil
}

// challengeFields mirrors model.UpdateChallengeRequest so Create and Update
// share one validation path.
type challengeFields struct {
	Title           *string
	Thumbnail       *string
	Frequency       *string
	StartDate       *string
	EndDate         *string
	AuthCountPerDay *string
	AuthDescription *string
}

func applyChallengeFields(c *model.Challenge, f challengeFields) error {
	if f.Title != nil {
		title := strings.TrimSpace(*f.Title)
		if title == "" {
			return fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		c.Title = title
	}
	if f.Thumbnail != nil {
		thumb := strings.TrimSpace(*f.Thumbnail)
		if !isHTTPURL(thumb) {
			return fmt.Errorf("%w: thumbnail must be an absolute http(s) URL", model.ErrValidation)
		}
		c.Thumbnail = thumb
	}
	if f.Frequency != nil {
		freq, err := model.ParseFrequency(*f.Frequency)
		if err != nil {
			return err
		}
		c.Frequency = freq
	}
	if f.StartDate != nil {
		d, err := parseDate("start_date", *f.StartDate)
		if err != nil {
			return err
		}
		c.StartDate = d
	}
	if f.EndDate != nil {
		d, err := parseDate("end_date", *f.EndDate)
		if err != nil {
			return err
		}
		c.EndDate = d
	}
	if f.AuthCountPerDay != nil {
		policy, err := model.ParseAuthCountPerDay(*f.AuthCountPerDay)
		if err != nil {
			return err
		}
		c.AuthCountPerDay = policy
	}
	if f.AuthDescription != nil {
		desc := strings.TrimSpace(*f.AuthDescription)
		if desc == "" {
			return fmt.Errorf("%w: auth_description is required", model.ErrValidation)
		}
		c.AuthDescription = desc
	}

	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("%w: start_date must not be after end_date", model.ErrValidation)
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps only the date.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD)", model.ErrValidation, field)
}
