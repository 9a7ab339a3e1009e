package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitchallenge/internal/model"
	"habitchallenge/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================

type mockChallengeRepository struct {
	createFn  func(ctx context.Context, c *model.Challenge) error
	getByIDFn func(ctx context.Context, id int64) (*model.Challenge, error)
	updateFn  func(ctx context.Context, c *model.Challenge) error
	deleteFn  func(ctx context.Context, id int64) error

	listCalls   []listCall
	updateCalls []*model.Challenge
}

type listCall struct {
	Filter model.ChallengeFilter
	Today  time.Time
	Limit  int
	Offset int
}

func (m *mockChallengeRepository) Create(ctx context.Context, c *model.Challenge) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	c.ID = 1
	return nil
}

func (m *mockChallengeRepository) GetByID(ctx context.Context, id int64) (*model.Challenge, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrChallengeNotFound
}

func (m *mockChallengeRepository) List(ctx context.Context, filter model.ChallengeFilter, today time.Time, limit, offset int) ([]model.Challenge, error) {
	m.listCalls = append(m.listCalls, listCall{Filter: filter, Today: today, Limit: limit, Offset: offset})
	return []model.Challenge{}, nil
}

func (m *mockChallengeRepository) Update(ctx context.Context, c *model.Challenge) error {
	m.updateCalls = append(m.updateCalls, c)
	if m.updateFn != nil {
		return m.updateFn(ctx, c)
	}
	return nil
}

func (m *mockChallengeRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockParticipationRepository struct {
	createFn     func(ctx context.Context, userID, challengeID int64) (*model.Participation, error)
	listByUserFn func(ctx context.Context, userID int64) ([]model.Participation, error)
}

func (m *mockParticipationRepository) Create(ctx context.Context, userID, challengeID int64) (*model.Participation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, challengeID)
	}
	return &model.Participation{ID: 1, Status: model.ParticipationInProgress, UserID: userID, ChallengeID: challengeID}, nil
}

func (m *mockParticipationRepository) ListByUser(ctx context.Context, userID int64) ([]model.Participation, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return []model.Participation{}, nil
}

func validCreateRequest() model.CreateChallengeRequest {
	return model.CreateChallengeRequest{
		Title:           "매일 만보 걷기",
		Thumbnail:       "https://cdn.example.com/walk.png",
		Frequency:       "DAILY",
		StartDate:       "2024-03-01",
		EndDate:         "2024-03-31",
		AuthCountPerDay: "ONCE",
		AuthDescription: "만보기 화면을 캡처해 주세요",
	}
}

func strPtr(s string) *string { return &s }

// =============================================================================
// LIST TESTS
// =============================================================================

func TestChallengeService_FindAllChallenges(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, kst)

	tests := []struct {
		name       string
		page       int
		limit      int
		filter     string
		wantFilter model.ChallengeFilter
		wantLimit  int
		wantOffset int
	}{
		{"empty filter means all", 0, 0, "", model.ChallengeFilterAll, ChallengeDefaultLimit, 0},
		{"recruiting", 2, 5, "recruiting", model.ChallengeFilterRecruiting, 5, 5},
		{"upcoming", 1, 10, "upcoming", model.ChallengeFilterUpcoming, 10, 0},
		{"ended with capped limit", 3, 999, "ended", model.ChallengeFilterEnded, ChallengeMaxLimit, 2 * ChallengeMaxLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockChallengeRepository{}
			svc := NewChallengeService(repo, &mockParticipationRepository{}, nil, &fixedClock{t: now})

			if _, err := svc.FindAllChallenges(context.Background(), tc.page, tc.limit, tc.filter); err != nil {
				t.Fatalf("FindAllChallenges failed: %v", err)
			}

			if len(repo.listCalls) != 1 {
				t.Fatalf("List calls = %d, want 1", len(repo.listCalls))
			}
			call := repo.listCalls[0]
			if call.Filter != tc.wantFilter || call.Limit != tc.wantLimit || call.Offset != tc.wantOffset {
				t.Errorf("List(%s, limit=%d, offset=%d), want (%s, %d, %d)",
					call.Filter, call.Limit, call.Offset, tc.wantFilter, tc.wantLimit, tc.wantOffset)
			}
			if !call.Today.Equal(now) {
				t.Errorf("today = %v, want %v", call.Today, now)
			}
		})
	}
}

func TestChallengeService_FindAllChallenges_UnknownFilter(t *testing.T) {
	repo := &mockChallengeRepository{}
	svc := NewChallengeService(repo, &mockParticipationRepository{}, nil, nil)

	_, err := svc.FindAllChallenges(context.Background(), 1, 10, "popular")

	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(repo.listCalls) != 0 {
		t.Error("repository called with an invalid filter")
	}
}

// =============================================================================
// CREATE / UPDATE / DELETE TESTS
// =============================================================================

func TestChallengeService_Create(t *testing.T) {
	svc := NewChallengeService(&mockChallengeRepository{}, &mockParticipationRepository{}, nil, nil)

	c, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.AuthCountPerDay != model.AuthCountOnce || c.Frequency != model.FrequencyDaily {
		t.Errorf("enums = %s/%s", c.AuthCountPerDay, c.Frequency)
	}
	if got := c.StartDate.Format(model.DateLayout); got != "2024-03-01" {
		t.Errorf("StartDate = %s", got)
	}
}

func TestChallengeService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.CreateChallengeRequest)
	}{
		{"blank title", func(r *model.CreateChallengeRequest) { r.Title = " " }},
		{"bad thumbnail", func(r *model.CreateChallengeRequest) { r.Thumbnail = "walk.png" }},
		{"unknown frequency", func(r *model.CreateChallengeRequest) { r.Frequency = "HOURLY" }},
		{"bad start date", func(r *model.CreateChallengeRequest) { r.StartDate = "03/01/2024" }},
		{"end before start", func(r *model.CreateChallengeRequest) { r.EndDate = "2024-02-28" }},
		{"unknown auth count", func(r *model.CreateChallengeRequest) { r.AuthCountPerDay = "TWICE" }},
		{"blank auth description", func(r *model.CreateChallengeRequest) { r.AuthDescription = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			created := false
			repo := &mockChallengeRepository{createFn: func(ctx context.Context, c *model.Challenge) error {
				created = true
				return nil
			}}
			svc := NewChallengeService(repo, &mockParticipationRepository{}, nil, nil)

			req := validCreateRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req)

			if !errors.Is(err, model.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if created {
				t.Error("invalid challenge was stored")
			}
		})
	}
}

func TestChallengeService_Create_LegacyAuthCount(t *testing.T) {
	svc := NewChallengeService(&mockChallengeRepository{}, &mockParticipationRepository{}, nil, nil)
	req := validCreateRequest()
	req.AuthCountPerDay = "하루 1회"

	c, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.AuthCountPerDay != model.AuthCountOnce {
		t.Errorf("AuthCountPerDay = %q, want ONCE", c.AuthCountPerDay)
	}
}

func storedChallenge() *model.Challenge {
	return &model.Challenge{
		ID:              5,
		Title:           "독서",
		Thumbnail:       "https://cdn.example.com/book.png",
		Frequency:       model.FrequencyDaily,
		StartDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		AuthCountPerDay: model.AuthCountMultiple,
		AuthDescription: "읽은 페이지를 찍어 주세요",
	}
}

func TestChallengeService_Update(t *testing.T) {
	t.Run("merges partial fields", func(t *testing.T) {
		repo := &mockChallengeRepository{getByIDFn: func(ctx context.Context, id int64) (*model.Challenge, error) {
			return storedChallenge(), nil
		}}
		svc := NewChallengeService(repo, &mockParticipationRepository{}, nil, nil)

		c, err := svc.Update(context.Background(), 5, model.UpdateChallengeRequest{
			Title:   strPtr("하루 30쪽 독서"),
			EndDate: strPtr("2024-04-15"),
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if c.Title != "하루 30쪽 독서" || c.Frequency != model.FrequencyDaily {
			t.Errorf("merged = %+v", c)
		}
		if got := c.EndDate.Format(model.DateLayout); got != "2024-04-15" {
			t.Errorf("EndDate = %s", got)
		}
		if len(repo.updateCalls) != 1 {
			t.Errorf("Update calls = %d, want 1", len(repo.updateCalls))
		}
	})

	t.Run("rejects start after merged end", func(t *testing.T) {
		repo := &mockChallengeRepository{getByIDFn: func(ctx context.Context, id int64) (*model.Challenge, error) {
			return storedChallenge(), nil
		}}
		svc := NewChallengeService(repo, &mockParticipationRepository{}, nil, nil)

		_, err := svc.Update(context.Background(), 5, model.UpdateChallengeRequest{StartDate: strPtr("2024-04-01")})

		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
		if len(repo.updateCalls) != 0 {
			t.Error("invalid merge was stored")
		}
	})

	t.Run("missing challenge", func(t *testing.T) {
		svc := NewChallengeService(&mockChallengeRepository{}, &mockParticipationRepository{}, nil, nil)

		_, err := svc.Update(context.Background(), 5, model.UpdateChallengeRequest{Title: strPtr("x")})

		if !errors.Is(err, model.ErrChallengeNotFound) {
			t.Fatalf("err = %v, want ErrChallengeNotFound", err)
		}
	})
}

func TestChallengeService_Delete(t *testing.T) {
	t.Run("publishes challenge_deleted", func(t *testing.T) {
		pub := &mockPublisher{}
		svc := NewChallengeService(&mockChallengeRepository{}, &mockParticipationRepository{}, pub, nil)

		if err := svc.Delete(context.Background(), 5); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if len(pub.events) != 1 || pub.events[0].Type != queue.EventChallengeDeleted || pub.events[0].ChallengeID != 5 {
			t.Errorf("events = %+v", pub.events)
		}
	})

	t.Run("missing challenge publishes nothing", func(t *testing.T) {
		pub := &mockPublisher{}
		repo := &mockChallengeRepository{deleteFn: func(ctx context.Context, id int64) error {
			return model.ErrChallengeNotFound
		}}
		svc := NewChallengeService(repo, &mockParticipationRepository{}, pub, nil)

		if err := svc.Delete(context.Background(), 5); !errors.Is(err, model.ErrChallengeNotFound) {
			t.Fatalf("err = %v, want ErrChallengeNotFound", err)
		}
		if len(pub.events) != 0 {
			t.Error("event published for a failed delete")
		}
	})
}

// =============================================================================
// JOIN TESTS
// =============================================================================

func TestChallengeService_Join(t *testing.T) {
	t.Run("creates an in-progress participation", func(t *testing.T) {
		svc := NewChallengeService(&mockChallengeRepository{}, &mockParticipationRepository{}, nil, nil)

		p, err := svc.Join(context.Background(), 3, 7)
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		if p.Status != model.ParticipationInProgress || p.UserID != 3 || p.ChallengeID != 7 {
			t.Errorf("participation = %+v", p)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		parts := &mockParticipationRepository{createFn: func(ctx context.Context, userID, challengeID int64) (*model.Participation, error) {
			return nil, model.ErrChallengeNotFound
		}}
		svc := NewChallengeService(&mockChallengeRepository{}, parts, nil, nil)

		if _, err := svc.Join(context.Background(), 3, 404); !errors.Is(err, model.ErrChallengeNotFound) {
			t.Fatalf("err = %v, want ErrChallengeNotFound", err)
		}
	})
}
