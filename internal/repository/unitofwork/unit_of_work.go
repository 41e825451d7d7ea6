package unitofwork

import (
	"context"

	"ai-finagent-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	PipelineSessionRepository() contract.PipelineSessionRepository
	StageResultRepository() contract.StageResultRepository
}
