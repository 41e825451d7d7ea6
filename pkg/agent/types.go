package agent

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies one of the five agent stages in the pipeline.
type Stage string

const (
	StageIntention Stage = "intention"
	StageRetriever Stage = "retriever"
	StageReason    Stage = "reason"
	StageWriter    Stage = "writer"
	StageDesigner  Stage = "designer"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageIntention, StageRetriever, StageReason, StageWriter, StageDesigner}

// Stage result statuses shared across the wire contract and persistence.
const (
	StatusOk       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// FailureKind classifies why an invocation failed, so the orchestrator can
// decide between retry and immediate fallback.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransient FailureKind = "transient" // timeout, unreachable, 5xx
	FailureInput     FailureKind = "input"     // 4xx, malformed input
)

// --- Wire contract (one request/response per agent endpoint) ---

type AgentRequest struct {
	SessionId uuid.UUID              `json:"session_id"`
	QueryId   uuid.UUID              `json:"query_id"`
	Input     map[string]interface{} `json:"input"`
}

type AgentResponse struct {
	Status  string                 `json:"status"` // "ok" | "degraded" | "failed"
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Outcome is the client-side result of one invocation attempt.
// Failures are data here, never panics or sentinel errors, so the
// orchestrator can apply retry/fallback policy uniformly.
type Outcome struct {
	Stage   Stage
	Status  string
	Payload map[string]interface{}
	Error   string
	Failure FailureKind
	Latency time.Duration
}

// Ok reports whether the invocation produced a usable payload.
func (o *Outcome) Ok() bool {
	return o.Status == StatusOk
}
