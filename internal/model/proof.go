package model

import (
	"errors"
	"time"
)

// Proof is one submission evidencing a day of a challenge.
type Proof struct {
	ID              int64     `db:"id" json:"id"`
	Content         string    `db:"content" json:"content"`
	ImageURL        string    `db:"image_url" json:"image_url"`
	UserID          int64     `db:"user_id" json:"user_id"`
	ParticipationID int64     `db:"participation_id" json:"participation_id"`
	ProofDate       time.Time `db:"proof_date" json:"-"`
	OncePerDay      bool      `db:"once_per_day" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// Joined fields (not in proofs table)
	User          *UserSummary   `json:"user,omitempty"`
	Participation *Participation `json:"participation,omitempty"`
}

// CreateProofRequest is the request body for POST /proofs.
type CreateProofRequest struct {
	ParticipationID int64  `json:"participation_id"`
	Content         string `json:"content"`
	ImageURL        string `json:"image_url"`
}

// Proof listing constants
const (
	ProofDefaultLimit = 10
	ProofMaxLimit     = 50
	MaxProofContent   = 2000
)

// Proof errors
var (
	ErrProofNotFound     = errors.New("proof not found")
	ErrDailyLimitReached = errors.New("daily submission limit reached")
)
