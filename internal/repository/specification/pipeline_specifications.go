package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySessionID filters stage results by their owning pipeline session
type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// ByQueryID filters stage results by the query attempt that produced them
type ByQueryID struct {
	QueryID uuid.UUID
}

func (s ByQueryID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("query_id = ?", s.QueryID)
}

// ByStage filters stage results by stage name
type ByStage struct {
	Stage string
}

func (s ByStage) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("stage = ?", s.Stage)
}

// ByStatus filters by result status ("ok", "degraded", "failed")
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
