package cache

import (
	"context"
	"time"

	"ai-finagent-be/internal/entity"
)

// ResultCache maps a stage fingerprint to a previously computed stage result.
// It is policy-agnostic: which stages are cacheable and for how long is
// decided by the orchestrator's policy table, not here.
//
// Guarantees:
//   - Get after Put within the TTL returns an equivalent result.
//   - Expired entries are never returned.
//   - Put is idempotent; a repeated Put for the same fingerprint resets the
//     TTL and payload.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*entity.StageResult, bool)
	Put(ctx context.Context, fingerprint string, result *entity.StageResult, ttl time.Duration) error
}

// cachedResult is the serialized subset of a StageResult worth replaying.
// Identity fields (session, query, attempt) belong to the run that produced
// the entry, not to the run replaying it, so they are not stored.
type cachedResult struct {
	Stage     string                 `json:"stage"`
	Status    string                 `json:"status"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	LatencyMs int64                  `json:"latency_ms"`
}

func toCached(r *entity.StageResult) *cachedResult {
	return &cachedResult{
		Stage:     r.Stage,
		Status:    r.Status,
		Payload:   r.Payload,
		LatencyMs: r.LatencyMs,
	}
}

func fromCached(c *cachedResult) *entity.StageResult {
	return &entity.StageResult{
		Stage:     c.Stage,
		Status:    c.Status,
		Payload:   c.Payload,
		LatencyMs: c.LatencyMs,
		Cached:    true,
	}
}
