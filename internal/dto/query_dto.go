package dto

import (
	"time"

	"github.com/google/uuid"
)

// ProcessQueryRequest is the single inbound request shape. SessionId is
// optional; a missing or unknown id starts a new conversation.
type ProcessQueryRequest struct {
	Query     string                 `json:"query" validate:"required"`
	Context   map[string]interface{} `json:"context,omitempty"`
	SessionId *uuid.UUID             `json:"session_id,omitempty"`
}

type ProcessQueryResponse struct {
	SessionId        uuid.UUID `json:"session_id"`
	QueryId          uuid.UUID `json:"query_id"`
	Text             string    `json:"text"`
	VisualizationUrl string    `json:"visualization_url,omitempty"`
	ImageUrl         string    `json:"image_url,omitempty"`
	Status           string    `json:"status"` // "completed" | "partial" | "failed"
	CreatedAt        time.Time `json:"created_at"`
}

// StageResultDTO exposes one recorded stage attempt in the session view.
type StageResultDTO struct {
	Stage     string                 `json:"stage"`
	Status    string                 `json:"status"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Attempt   int                    `json:"attempt"`
	Cached    bool                   `json:"cached"`
	LatencyMs int64                  `json:"latency_ms"`
	CreatedAt time.Time              `json:"created_at"`
}

type GetSessionResponse struct {
	Id        uuid.UUID        `json:"id"`
	Status    string           `json:"status"`
	LastQuery string           `json:"last_query"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	Results   []StageResultDTO `json:"results"`
}
