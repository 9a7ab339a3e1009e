package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the proof stream
const (
	EventProofCreated     = "proof_created"
	EventChallengeDeleted = "challenge_deleted"
)

const (
	StreamProofs        = "stream:proofs"
	ConsumerGroupProofs = "proof_workers"
)

// Event is published after a write commits. Consumers keep derived state
// (the proof feed cache) in step with Postgres.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // unix millis of the write

	// proof_created
	ProofID         int64 `json:"proof_id,omitempty"`
	UserID          int64 `json:"user_id,omitempty"`
	ParticipationID int64 `json:"participation_id,omitempty"`

	// challenge_deleted
	ChallengeID int64 `json:"challenge_id,omitempty"`
}

func NewProofCreatedEvent(proofID, userID, participationID int64, createdAt time.Time) Event {
	return Event{
		Type:            EventProofCreated,
		Timestamp:       createdAt.UnixMilli(),
		ProofID:         proofID,
		UserID:          userID,
		ParticipationID: participationID,
	}
}

func NewChallengeDeletedEvent(challengeID int64) Event {
	return Event{
		Type:        EventChallengeDeleted,
		Timestamp:   time.Now().UnixMilli(),
		ChallengeID: challengeID,
	}
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// ToMap serializes the event into the single "data" field stored by XADD.
func (e Event) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

func ParseEvent(values map[string]interface{}) (Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
