package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const TopicWinnersDrawn = "lottery.winners_drawn"

// Envelope is the event shape carried on the in-process bus.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	SourceService  string          `json:"source_service"`
	OccurredAtUTC  time.Time       `json:"occurred_at_utc"`
	CorrelationID  string          `json:"correlation_id"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	PayloadVersion int             `json:"payload_version"`
	Payload        json.RawMessage `json:"payload"`
}

// WinnersDrawn is published once a lottery unit committed.
type WinnersDrawn struct {
	EntityID     string   `json:"entity_id"`
	EntityKind   string   `json:"entity_kind"`
	Title        string   `json:"title"`
	RewardAmount int64    `json:"reward_amount"`
	Winners      []string `json:"winners"`
}

func NewEnvelope(eventID string, eventType string, source string, entityType string, entityID string, at time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  source,
		OccurredAtUTC:  at.UTC(),
		CorrelationID:  entityID,
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Payload:        raw,
	}, nil
}

func DecodePayload[T any](envelope Envelope) (T, error) {
	var out T
	if err := json.Unmarshal(envelope.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return out, nil
}
