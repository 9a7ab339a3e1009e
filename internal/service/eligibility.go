package service

import (
	"log"
	"time"

	"habitchallenge/internal/model"
)

// Clock supplies the current instant. Submission checks and challenge filters
// read time only through it.
type Clock interface {
	Now() time.Time
}

// SystemClock reports wall-clock time in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// DayWindow returns the calendar day containing now, in now's location.
// Both bounds are inclusive.
func DayWindow(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// EvaluateEligibility decides whether one more proof may be submitted today
// given how many were already submitted in the day window.
func EvaluateEligibility(policy model.AuthCountPerDay, now time.Time, countToday int) Decision {
	switch policy.Normalize() {
	case model.AuthCountOnce:
		if countToday == 0 {
			return allow()
		}
		return deny("daily limit reached")
	case model.AuthCountMultiple:
		return allow()
	default:
		// Rows written before the closed enum existed may carry anything.
		log.Printf("[Eligibility] Unknown auth_count_per_day %q at %s, allowing", policy, now.Format(time.RFC3339))
		return allow()
	}
}
