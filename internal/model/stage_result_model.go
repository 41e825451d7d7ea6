package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type StageResult struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID      `gorm:"type:uuid;not null;index"` // Owning pipeline session
	QueryId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Stage     string         `gorm:"type:text;not null"`
	Status    string         `gorm:"type:text;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	Error     string         `gorm:"type:text"`
	Attempt   int            `gorm:"not null;default:1"`
	Cached    bool           `gorm:"not null;default:false"`
	LatencyMs int64          `gorm:"not null;default:0"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (StageResult) TableName() string {
	return "stage_results"
}
