package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g. "STAGE_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation used across the pipeline.
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

// Pipeline event types.
const (
	TypeStageCompleted    = "STAGE_COMPLETED"
	TypePipelineFinalized = "PIPELINE_FINALIZED"
)

// NewStageCompleted builds the event emitted after every stage transition.
func NewStageCompleted(sessionId, queryId uuid.UUID, stage, status string, cached bool, latencyMs int64) BaseEvent {
	return BaseEvent{
		Type: TypeStageCompleted,
		Data: map[string]interface{}{
			"session_id": sessionId.String(),
			"query_id":   queryId.String(),
			"stage":      stage,
			"status":     status,
			"cached":     cached,
			"latency_ms": latencyMs,
		},
		OccurredAt: time.Now(),
	}
}

// NewPipelineFinalized builds the terminal event for one pipeline run.
func NewPipelineFinalized(sessionId, queryId uuid.UUID, status string) BaseEvent {
	return BaseEvent{
		Type: TypePipelineFinalized,
		Data: map[string]interface{}{
			"session_id": sessionId.String(),
			"query_id":   queryId.String(),
			"status":     status,
		},
		OccurredAt: time.Now(),
	}
}
