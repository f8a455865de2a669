package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope version written by NewEvent.
const CurrentVersion = 1

// ErrMalformedEvent is returned when an envelope lacks a type or aggregate.
var ErrMalformedEvent = errors.New("kafka: malformed event")

// Event is the envelope every storefront message is wrapped in. Consumers
// decode Data according to EventType.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// EventOption adjusts an envelope built by NewEvent.
type EventOption func(*Event)

// WithCorrelation tags the event with the request that caused it.
func WithCorrelation(id string) EventOption {
	return func(e *Event) { e.CorrelationID = id }
}

// OccurredAt overrides the event timestamp. The value is stored in UTC.
func OccurredAt(t time.Time) EventOption {
	return func(e *Event) { e.Timestamp = t.UTC() }
}

// NewEvent encodes data into a new envelope with a random id.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any, opts ...EventOption) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	e := &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       CurrentVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          raw,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate reports whether the envelope can be routed.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	case e.AggregateID == "":
		return fmt.Errorf("%w: missing aggregate_id", ErrMalformedEvent)
	}
	return nil
}

// Key is the partition key. Events for one aggregate share a partition so
// they are consumed in the order they were produced.
func (e *Event) Key() []byte {
	return []byte(e.AggregateID)
}

// DecodeEvent parses and validates an envelope read off a topic.
func DecodeEvent(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Decode unmarshals the payload into target.
func (e *Event) Decode(target any) error {
	return json.Unmarshal(e.Data, target)
}
