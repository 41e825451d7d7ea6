package entity

import (
	"time"

	"github.com/google/uuid"
)

// Query is one accepted user question. Immutable once created; the pipeline
// consumes it exactly once.
type Query struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Text      string
	Context   map[string]interface{}
	CreatedAt time.Time
}
