// Package events provides an asynchronous event bus decoupling catalog
// activity (recordings published, users registered, datasets created)
// from downstream consumers such as the MQTT publisher. Publishing never
// blocks the caller.
package events

import (
	"fmt"
	"time"
)

// Catalog event types.
const (
	TypeRecordingIngested  = "recording.ingested"
	TypeRecordingPublished = "recording.published"
	TypeRecordingFailed    = "recording.failed"
	TypeUserRegistered     = "user.registered"
	TypeDatasetCreated     = "dataset.created"
)

// Event is one catalog occurrence fanned out to all consumers.
type Event struct {
	// Type is one of the Type* constants.
	Type string

	// EntityID identifies the affected row, recording id for recording
	// events, user id for account events, dataset id for dataset events.
	EntityID uint

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Payload carries type-specific facts for consumers, kept small
	// because it ends up serialized onto the wire.
	Payload map[string]any
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType string, entityID uint, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		EntityID:  entityID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Key identifies an event for deduplication. Two events with the same
// key within the suppression window are considered duplicates.
func (e Event) Key() string {
	return fmt.Sprintf("%s:%d", e.Type, e.EntityID)
}

// Consumer processes events delivered by the bus. Implementations must
// tolerate redelivery after the suppression window.
type Consumer interface {
	// Name identifies the consumer for registration and logs.
	Name() string

	// ProcessEvent handles a single event. Errors are counted and
	// logged, the bus does not retry.
	ProcessEvent(event Event) error
}

// BusStats contains runtime counters for monitoring.
type BusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
}
