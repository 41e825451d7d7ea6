package mapper

import (
	"encoding/json"
	"time"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/model"

	"gorm.io/datatypes"
)

type PipelineMapper struct{}

func NewPipelineMapper() *PipelineMapper {
	return &PipelineMapper{}
}

// Session Mappers

func (m *PipelineMapper) SessionToEntity(s *model.PipelineSession) *entity.PipelineSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.PipelineSession{
		Id:          s.Id,
		Status:      s.Status,
		LastQuery:   s.LastQuery,
		LastQueryId: s.LastQueryId,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *PipelineMapper) SessionToModel(s *entity.PipelineSession) *model.PipelineSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.PipelineSession{
		Id:          s.Id,
		Status:      s.Status,
		LastQuery:   s.LastQuery,
		LastQueryId: s.LastQueryId,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

// Stage Result Mappers

func (m *PipelineMapper) StageResultToEntity(r *model.StageResult) *entity.StageResult {
	if r == nil {
		return nil
	}

	var payload map[string]interface{}
	if len(r.Payload) > 0 {
		// A payload that fails to decode is kept as nil rather than failing
		// the read; the row itself is still meaningful.
		_ = json.Unmarshal(r.Payload, &payload)
	}

	return &entity.StageResult{
		Id:        r.Id,
		SessionId: r.SessionId,
		QueryId:   r.QueryId,
		Stage:     r.Stage,
		Status:    r.Status,
		Payload:   payload,
		Error:     r.Error,
		Attempt:   r.Attempt,
		Cached:    r.Cached,
		LatencyMs: r.LatencyMs,
		CreatedAt: r.CreatedAt,
	}
}

func (m *PipelineMapper) StageResultToModel(r *entity.StageResult) *model.StageResult {
	if r == nil {
		return nil
	}

	var payload datatypes.JSON
	if r.Payload != nil {
		if raw, err := json.Marshal(r.Payload); err == nil {
			payload = datatypes.JSON(raw)
		}
	}

	return &model.StageResult{
		Id:        r.Id,
		SessionId: r.SessionId,
		QueryId:   r.QueryId,
		Stage:     r.Stage,
		Status:    r.Status,
		Payload:   payload,
		Error:     r.Error,
		Attempt:   r.Attempt,
		Cached:    r.Cached,
		LatencyMs: r.LatencyMs,
		CreatedAt: r.CreatedAt,
	}
}

func (m *PipelineMapper) StageResultsToEntities(rows []*model.StageResult) []*entity.StageResult {
	results := make([]*entity.StageResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, m.StageResultToEntity(row))
	}
	return results
}
