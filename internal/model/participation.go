package model

import (
	"errors"
	"fmt"
	"time"
)

// ParticipationStatus tracks a user's progress in a challenge.
type ParticipationStatus string

const (
	ParticipationInProgress ParticipationStatus = "IN_PROGRESS"
	ParticipationCompleted  ParticipationStatus = "COMPLETED"
	ParticipationFailed     ParticipationStatus = "FAILED"
)

func ParseParticipationStatus(s string) (ParticipationStatus, error) {
	switch ParticipationStatus(s) {
	case ParticipationInProgress:
		return ParticipationInProgress, nil
	case ParticipationCompleted:
		return ParticipationCompleted, nil
	case ParticipationFailed:
		return ParticipationFailed, nil
	default:
		return "", fmt.Errorf("%w: unknown participation status %q", ErrValidation, s)
	}
}

func (s ParticipationStatus) Valid() bool {
	_, err := ParseParticipationStatus(string(s))
	return err == nil
}

// Participation joins one user to one challenge.
type Participation struct {
	ID          int64               `db:"id" json:"id"`
	Status      ParticipationStatus `db:"status" json:"status"`
	UserID      int64               `db:"user_id" json:"user_id"`
	ChallengeID int64               `db:"challenge_id" json:"challenge_id"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`

	// Joined fields (not in challenge_participations table)
	Challenge *Challenge `json:"challenge,omitempty"`
}

// ParticipationRule is what the submission path needs from a locked participation.
type ParticipationRule struct {
	ParticipationID int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	ChallengeID     int64           `db:"challenge_id"`
	AuthCountPerDay AuthCountPerDay `db:"auth_count_per_day"`
}

// Participation errors
var (
	// ErrParticipationNotFound covers both a missing participation and one owned
	// by somebody else.
	ErrParticipationNotFound = errors.New("participation not found")
)
