package service

import (
	"context"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/repository/unitofwork"
	"ai-finagent-be/pkg/pipeline"

	"github.com/google/uuid"
)

// sessionRecorder persists pipeline progress through the unit of work so a
// crash mid-run leaves the session replayable from its last durable result.
type sessionRecorder struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewSessionRecorder(uowFactory unitofwork.RepositoryFactory) pipeline.SessionStore {
	return &sessionRecorder{uowFactory: uowFactory}
}

func (r *sessionRecorder) AppendResult(ctx context.Context, result *entity.StageResult) error {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.StageResultRepository().Create(ctx, result); err != nil {
		return err
	}
	return uow.Commit()
}

func (r *sessionRecorder) Finalize(ctx context.Context, sessionId uuid.UUID, status string) error {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.PipelineSessionRepository().UpdateStatus(ctx, sessionId, status); err != nil {
		return err
	}
	return uow.Commit()
}
