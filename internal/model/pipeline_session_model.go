package model

import (
	"time"

	"github.com/google/uuid"
)

type PipelineSession struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status      string    `gorm:"type:text;not null;default:'in_progress'"`
	LastQuery   string    `gorm:"type:text"`
	LastQueryId uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (PipelineSession) TableName() string {
	return "pipeline_sessions"
}
