package contract

import (
	"context"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/repository/specification"

	"github.com/google/uuid"
)

type PipelineSessionRepository interface {
	Create(ctx context.Context, session *entity.PipelineSession) error
	Update(ctx context.Context, session *entity.PipelineSession) error
	// UpdateStatus transitions only the status column; used for finalize so
	// concurrent readers never observe a half-written session row.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PipelineSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
