package model

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is the cadence a challenge expects.
type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekday  Frequency = "WEEKDAY"
	FrequencyWeekend  Frequency = "WEEKEND"
	FrequencyNPerWeek Frequency = "N_PER_WEEK"
)

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekday:
		return FrequencyWeekday, nil
	case FrequencyWeekend:
		return FrequencyWeekend, nil
	case FrequencyNPerWeek:
		return FrequencyNPerWeek, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrValidation, s)
	}
}

func (f Frequency) Valid() bool {
	_, err := ParseFrequency(string(f))
	return err == nil
}

// AuthCountPerDay caps how many proofs a participation may submit per calendar day.
type AuthCountPerDay string

const (
	AuthCountOnce     AuthCountPerDay = "ONCE"
	AuthCountMultiple AuthCountPerDay = "MULTIPLE"

	// legacyAuthCountOnce is how older challenge rows spelled ONCE.
	legacyAuthCountOnce = "하루 1회"
)

// ParseAuthCountPerDay converts user input into a known policy.
func ParseAuthCountPerDay(s string) (AuthCountPerDay, error) {
	switch s {
	case string(AuthCountOnce), legacyAuthCountOnce:
		return AuthCountOnce, nil
	case string(AuthCountMultiple):
		return AuthCountMultiple, nil
	default:
		return "", fmt.Errorf("%w: unknown auth_count_per_day %q", ErrValidation, s)
	}
}

// Normalize maps legacy spellings stored in old rows onto the closed set.
// Unknown values are returned unchanged.
func (a AuthCountPerDay) Normalize() AuthCountPerDay {
	if string(a) == legacyAuthCountOnce {
		return AuthCountOnce
	}
	return a
}

// Valid reports whether a is ONCE or MULTIPLE. Legacy spellings are not valid
// until normalized.
func (a AuthCountPerDay) Valid() bool {
	return a == AuthCountOnce || a == AuthCountMultiple
}

// ChallengeFilter selects challenges by their date range relative to today.
type ChallengeFilter string

const (
	ChallengeFilterAll        ChallengeFilter = "all"
	ChallengeFilterRecruiting ChallengeFilter = "recruiting"
	ChallengeFilterUpcoming   ChallengeFilter = "upcoming"
	ChallengeFilterEnded      ChallengeFilter = "ended"
)

// ParseChallengeFilter treats an empty value as "all".
func ParseChallengeFilter(s string) (ChallengeFilter, error) {
	switch ChallengeFilter(s) {
	case "", ChallengeFilterAll:
		return ChallengeFilterAll, nil
	case ChallengeFilterRecruiting:
		return ChallengeFilterRecruiting, nil
	case ChallengeFilterUpcoming:
		return ChallengeFilterUpcoming, nil
	case ChallengeFilterEnded:
		return ChallengeFilterEnded, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", ErrValidation, s)
	}
}

// Challenge is a habit template users can join.
type Challenge struct {
	ID              int64           `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Thumbnail       string          `db:"thumbnail" json:"thumbnail"`
	Frequency       Frequency       `db:"frequency" json:"frequency"`
	StartDate       time.Time       `db:"start_date" json:"start_date"`
	EndDate         time.Time       `db:"end_date" json:"end_date"`
	AuthCountPerDay AuthCountPerDay `db:"auth_count_per_day" json:"auth_count_per_day"`
	AuthDescription string          `db:"auth_description" json:"auth_description"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// DateLayout is the wire format for challenge start/end dates.
const DateLayout = "2006-01-02"

// CreateChallengeRequest is the admin request body for a new challenge.
type CreateChallengeRequest struct {
	Title           string `json:"title"`
	Thumbnail       string `json:"thumbnail"`
	Frequency       string `json:"frequency"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	AuthCountPerDay string `json:"auth_count_per_day"`
	AuthDescription string `json:"auth_description"`
}

// UpdateChallengeRequest is a partial update; nil fields are left untouched.
type UpdateChallengeRequest struct {
	Title           *string `json:"title"`
	Thumbnail       *string `json:"thumbnail"`
	Frequency       *string `json:"frequency"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
	AuthCountPerDay *string `json:"auth_count_per_day"`
	AuthDescription *string `json:"auth_description"`
}

// Challenge errors
var (
	ErrChallengeNotFound = errors.New("challenge not found")
)
