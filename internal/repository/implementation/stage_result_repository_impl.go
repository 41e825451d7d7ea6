package implementation

import (
	"context"
	"errors"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/internal/mapper"
	"ai-finagent-be/internal/model"
	"ai-finagent-be/internal/repository/contract"
	"ai-finagent-be/internal/repository/specification"

	"gorm.io/gorm"
)

type StageResultRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PipelineMapper
}

func NewStageResultRepository(db *gorm.DB) contract.StageResultRepository {
	return &StageResultRepositoryImpl{
		db:     db,
		mapper: mapper.NewPipelineMapper(),
	}
}

func (r *StageResultRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *StageResultRepositoryImpl) Create(ctx context.Context, result *entity.StageResult) error {
	m := r.mapper.StageResultToModel(result)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*result = *r.mapper.StageResultToEntity(m)
	return nil
}

func (r *StageResultRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StageResult, error) {
	var models []*model.StageResult
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.StageResultsToEntities(models), nil
}

func (r *StageResultRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StageResult, error) {
	var m model.StageResult
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.StageResultToEntity(&m), nil
}

func (r *StageResultRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.StageResult{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
