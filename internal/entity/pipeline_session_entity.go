package entity

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline session statuses.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionPartial    = "partial"
	SessionFailed     = "failed"
)

// PipelineSession is the durable record of one conversation's pipeline
// progress. It is owned exclusively by the orchestrating service; stage
// results are appended, never rewritten.
type PipelineSession struct {
	Id          uuid.UUID
	Status      string
	LastQuery   string
	LastQueryId uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Terminal reports whether the session reached a final status.
func (s *PipelineSession) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionPartial || s.Status == SessionFailed
}
