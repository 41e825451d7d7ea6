package pipeline

import (
	"context"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/events"

	"github.com/google/uuid"
)

// SessionStore persists pipeline progress. Implementations must be durable
// (survive an orchestrator crash once a call returns) and must serialize
// appends for the same session id.
type SessionStore interface {
	AppendResult(ctx context.Context, result *entity.StageResult) error
	Finalize(ctx context.Context, sessionId uuid.UUID, status string) error
}

// EventPublisher emits pipeline lifecycle events. Publishing is auxiliary;
// the executor logs publish failures and keeps going.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
