package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const (
	SessionStarted   = "SESSION_STARTED"
	SessionCompleted = "SESSION_COMPLETED"
	SessionFailed    = "SESSION_FAILED"

	// SessionCancel asks whichever instance owns a session to stop it.
	SessionCancel = "SESSION_CANCEL"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// String returns a payload field, or "" when it is missing or not a string.
func (e BaseEvent) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

func NewCancelRequest(sessionID, reason string) BaseEvent {
	return BaseEvent{
		Type: SessionCancel,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}
