package repository

import (
	"context"
	"time"

	"habitchallenge/internal/cache"
	"habitchallenge/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type ChallengeRepository interface {
	Create(ctx context.Context, challenge *model.Challenge) error
	GetByID(ctx context.Context, id int64) (*model.Challenge, error)
	// List returns challenges matching filter relative to today, newest start first.
	List(ctx context.Context, filter model.ChallengeFilter, today time.Time, limit, offset int) ([]model.Challenge, error)
	Update(ctx context.Context, challenge *model.Challenge) error
	Delete(ctx context.Context, id int64) error
}

type ParticipationRepository interface {
	Create(ctx context.Context, userID, challengeID int64) (*model.Participation, error)
	// ListByUser returns the user's participations with their challenge, newest first.
	ListByUser(ctx context.Context, userID int64) ([]model.Participation, error)
}

type ProofRepository interface {
	// WithTx runs fn in one transaction. The transaction commits only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx ProofTx) error) error
	List(ctx context.Context, limit, offset int) ([]model.Proof, error)
	GetByID(ctx context.Context, id int64) (*model.Proof, error)
	// GetByIDs keeps the order of ids and skips ids that no longer exist.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Proof, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Proof, error)
	// RecentScores returns (id, created_at) pairs for warming the proof feed cache.
	RecentScores(ctx context.Context, limit int) ([]cache.ProofScore, error)
}

// ProofTx is the transactional surface of the submission path.
type ProofTx interface {
	// FindParticipationForUpdate locks the participation row owned by userID
	// until the transaction ends.
	FindParticipationForUpdate(ctx context.Context, participationID, userID int64) (*model.ParticipationRule, error)
	// CountInWindow counts proofs with from <= created_at < until.
	CountInWindow(ctx context.Context, participationID int64, from, until time.Time) (int, error)
	// Insert fills ID, CreatedAt and UpdatedAt. A second ONCE proof on the same
	// day returns model.ErrDailyLimitReached.
	Insert(ctx context.Context, proof *model.Proof) error
}

type PushTokenRepository interface {
	// Save stores the token unless it already exists and returns the stored row.
	Save(ctx context.Context, token string) (*model.PushToken, error)
	ListTokens(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, token string) error
}
