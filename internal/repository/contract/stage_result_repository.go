package contract

import (
	"context"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/repository/specification"
)

type StageResultRepository interface {
	// Create appends a new stage result row. Results are append-only; there
	// is deliberately no Update.
	Create(ctx context.Context, result *entity.StageResult) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StageResult, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StageResult, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
