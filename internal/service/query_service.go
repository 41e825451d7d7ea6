package service

import (
	"context"
	"time"

	"ai-finagent-be/internal/dto"
	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/pkg/serverutils"
	"ai-finagent-be/internal/repository/specification"
	"ai-finagent-be/internal/repository/unitofwork"
	"ai-finagent-be/pkg/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IQueryService interface {
	ProcessQuery(ctx context.Context, req *dto.ProcessQueryRequest) (*dto.ProcessQueryResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*dto.GetSessionResponse, error)
}

type queryService struct {
	uowFactory unitofwork.RepositoryFactory
	executor   *pipeline.Executor
	locks      *sessionLocks
}

func NewQueryService(uowFactory unitofwork.RepositoryFactory, executor *pipeline.Executor) IQueryService {
	return &queryService{
		uowFactory: uowFactory,
		executor:   executor,
		locks:      newSessionLocks(),
	}
}

// ProcessQuery drives one query through the full agent pipeline. At most one
// run is active per session; a concurrent request for the same session waits
// for the lock and then usually replays the stored result.
func (c *queryService) ProcessQuery(ctx context.Context, req *dto.ProcessQueryRequest) (*dto.ProcessQueryResponse, error) {
	normalized := pipeline.NormalizeQuery(req.Query)
	if normalized == "" {
		return nil, serverutils.NewApiError(fiber.StatusBadRequest, "Query cannot be empty")
	}

	sessionId := uuid.New()
	if req.SessionId != nil && *req.SessionId != uuid.Nil {
		sessionId = *req.SessionId
	}

	unlock := c.locks.Acquire(sessionId)
	defer unlock()

	uow := c.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.PipelineSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}

	// Same question against a finished session: replay the stored result,
	// no agent is invoked again. Failed runs are not replayed; the failure
	// may have been a transient outage, so the question gets a fresh run.
	if session != nil && session.Terminal() && session.Status != entity.SessionFailed && session.LastQuery == normalized {
		return c.replay(ctx, session)
	}

	now := time.Now()
	var queryId uuid.UUID
	var prior []*entity.StageResult

	switch {
	case session == nil:
		queryId = uuid.New()
		session = &entity.PipelineSession{
			Id:          sessionId,
			Status:      entity.SessionInProgress,
			LastQuery:   normalized,
			LastQueryId: queryId,
			CreatedAt:   now,
		}
		if err := uow.PipelineSessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}

	case !session.Terminal() && session.LastQuery == normalized:
		// A previous run for this exact query was interrupted. Keep its
		// query id so durable stage results are reused instead of re-run.
		queryId = session.LastQueryId
		prior, err = uow.StageResultRepository().FindAll(ctx,
			specification.ByQueryID{QueryID: queryId},
			specification.OrderBy{Field: "created_at"},
		)
		if err != nil {
			return nil, err
		}

	default:
		queryId = uuid.New()
		session.Status = entity.SessionInProgress
		session.LastQuery = normalized
		session.LastQueryId = queryId
		if err := uow.PipelineSessionRepository().Update(ctx, session); err != nil {
			return nil, err
		}
	}

	query := &entity.Query{
		Id:        queryId,
		SessionId: sessionId,
		Text:      req.Query,
		Context:   req.Context,
		CreatedAt: now,
	}

	outcome, err := c.executor.Run(ctx, session, query, prior)
	if err != nil {
		return nil, err
	}

	answer := pipeline.Assemble(session, outcome.Results)
	return &dto.ProcessQueryResponse{
		SessionId:        sessionId,
		QueryId:          queryId,
		Text:             answer.Text,
		VisualizationUrl: answer.VisualizationUrl,
		ImageUrl:         answer.ImageUrl,
		Status:           answer.Status,
		CreatedAt:        now,
	}, nil
}

func (c *queryService) replay(ctx context.Context, session *entity.PipelineSession) (*dto.ProcessQueryResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	results, err := uow.StageResultRepository().FindAll(ctx,
		specification.ByQueryID{QueryID: session.LastQueryId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	answer := pipeline.Assemble(session, results)
	return &dto.ProcessQueryResponse{
		SessionId:        session.Id,
		QueryId:          session.LastQueryId,
		Text:             answer.Text,
		VisualizationUrl: answer.VisualizationUrl,
		ImageUrl:         answer.ImageUrl,
		Status:           answer.Status,
		CreatedAt:        session.CreatedAt,
	}, nil
}

func (c *queryService) GetSession(ctx context.Context, id uuid.UUID) (*dto.GetSessionResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.PipelineSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewApiError(fiber.StatusNotFound, "Session not found")
	}

	results, err := uow.StageResultRepository().FindAll(ctx,
		specification.BySessionID{SessionID: id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	resp := &dto.GetSessionResponse{
		Id:        session.Id,
		Status:    session.Status,
		LastQuery: session.LastQuery,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Results:   make([]dto.StageResultDTO, 0, len(results)),
	}
	for _, r := range results {
		resp.Results = append(resp.Results, dto.StageResultDTO{
			Stage:     r.Stage,
			Status:    r.Status,
			Payload:   r.Payload,
			Error:     r.Error,
			Attempt:   r.Attempt,
			Cached:    r.Cached,
			LatencyMs: r.LatencyMs,
			CreatedAt: r.CreatedAt,
		})
	}
	return resp, nil
}
