package entity

import (
	"time"

	"github.com/google/uuid"
)

// StageResult is the immutable output of one stage attempt for one query.
// A retry produces a new StageResult; the old one is never mutated.
type StageResult struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	QueryId   uuid.UUID
	Stage     string
	Status    string // "ok" | "degraded" | "failed"
	Payload   map[string]interface{}
	Error     string
	Attempt   int
	Cached    bool
	LatencyMs int64
	CreatedAt time.Time
}
