package implementation

import (
	"context"
	"errors"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/mapper"
	"ai-finagent-be/internal/model"
	"ai-finagent-be/internal/repository/contract"
	"ai-finagent-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PipelineSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PipelineMapper
}

func NewPipelineSessionRepository(db *gorm.DB) contract.PipelineSessionRepository {
	return &PipelineSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewPipelineMapper(),
	}
}

func (r *PipelineSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PipelineSessionRepositoryImpl) Create(ctx context.Context, session *entity.PipelineSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *PipelineSessionRepositoryImpl) Update(ctx context.Context, session *entity.PipelineSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *PipelineSessionRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.PipelineSession{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *PipelineSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PipelineSession, error) {
	var m model.PipelineSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *PipelineSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineSession, error) {
	var models []*model.PipelineSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	sessions := make([]*entity.PipelineSession, 0, len(models))
	for _, m := range models {
		sessions = append(sessions, r.mapper.SessionToEntity(m))
	}
	return sessions, nil
}

func (r *PipelineSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.PipelineSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
