package pipeline

import (
	"time"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/agent"
)

// State carries the accumulated context of one pipeline run. Each stage
// reads from it and contributes its payload for the stages after it.
type State struct {
	Query    *entity.Query
	Intent   map[string]interface{}
	Evidence map[string]interface{}
	Analysis map[string]interface{}
	Degraded bool
}

// StagePolicy is the per-stage slice of the orchestration policy table.
// One transition function consults it uniformly, which keeps the five
// stages from becoming five near-duplicate code paths.
type StagePolicy struct {
	Timeout   time.Duration
	Retries   int // retries for transient failures; input rejections never retry
	Cacheable bool
	TTL       time.Duration

	// Fatal stages halt the pipeline when exhausted. Non-fatal stages fall
	// back to the payload below (nil means "continue without a payload",
	// which is how illustration degrades).
	Fatal    bool
	Fallback func(st *State) map[string]interface{}
}

// PolicyTable maps each stage to its policy.
type PolicyTable map[agent.Stage]StagePolicy

// PolicyKnobs are the externally configurable parts of the table.
type PolicyKnobs struct {
	Timeout   time.Duration
	Retries   int
	Cacheable bool
	TTL       time.Duration
}

// BuildPolicies combines configured knobs with the fixed fallback semantics.
// Which stage is fatal and what its fallback produces is pipeline topology,
// not configuration.
func BuildPolicies(knobs map[agent.Stage]PolicyKnobs) PolicyTable {
	table := PolicyTable{}
	for stage, k := range knobs {
		pol := StagePolicy{
			Timeout:   k.Timeout,
			Retries:   k.Retries,
			Cacheable: k.Cacheable,
			TTL:       k.TTL,
		}
		switch stage {
		case agent.StageIntention:
			// Cannot proceed without an intent.
			pol.Fatal = true
		case agent.StageRetriever:
			pol.Fallback = func(st *State) map[string]interface{} {
				return map[string]interface{}{
					"sources":     []interface{}{},
					"data_points": map[string]interface{}{},
					"fallback":    true,
				}
			}
		case agent.StageReason:
			// Use retrieved evidence directly as the response basis.
			pol.Fallback = func(st *State) map[string]interface{} {
				return map[string]interface{}{
					"basis":    "evidence",
					"evidence": st.Evidence,
					"fallback": true,
				}
			}
		case agent.StageWriter:
			// No answer text can be produced without the writer.
			pol.Fatal = true
		case agent.StageDesigner:
			// Media is simply omitted; never fatal.
		}
		table[stage] = pol
	}
	return table
}

// DefaultKnobs returns the stage budgets used when nothing is configured.
// Reasoning and writing get a longer budget than intent detection.
func DefaultKnobs() map[agent.Stage]PolicyKnobs {
	return map[agent.Stage]PolicyKnobs{
		agent.StageIntention: {Timeout: 10 * time.Second, Retries: 1, Cacheable: true, TTL: 1 * time.Hour},
		agent.StageRetriever: {Timeout: 15 * time.Second, Retries: 1, Cacheable: true, TTL: 5 * time.Minute},
		agent.StageReason:    {Timeout: 45 * time.Second, Retries: 1, Cacheable: false},
		agent.StageWriter:    {Timeout: 45 * time.Second, Retries: 1, Cacheable: false},
		agent.StageDesigner:  {Timeout: 30 * time.Second, Retries: 1, Cacheable: true, TTL: 1 * time.Hour},
	}
}
