package pipeline

import (
	"fmt"
	"strings"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/agent"
)

// FinalAnswer is the externally visible composition of a pipeline run.
// Derived, never persisted; it is reconstructable from the session's
// recorded stage results.
type FinalAnswer struct {
	Text             string `json:"text"`
	VisualizationUrl string `json:"visualization_url,omitempty"`
	ImageUrl         string `json:"image_url,omitempty"`
	Status           string `json:"status"` // "completed" | "partial" | "failed"
}

// Assemble merges the recorded stage results into the final answer.
// Pure function of its inputs, no I/O. Media references are included only
// when their stage succeeded; nothing is ever fabricated as a placeholder.
func Assemble(session *entity.PipelineSession, results []*entity.StageResult) *FinalAnswer {
	latest := latestByStage(results)

	answer := &FinalAnswer{
		Status: terminalStatus(session),
		Text:   composeText(latest),
	}

	if designer, ok := latest[string(agent.StageDesigner)]; ok && designer.Status == agent.StatusOk {
		answer.VisualizationUrl = stringField(designer.Payload, "visualization_url")
		answer.ImageUrl = stringField(designer.Payload, "image_url")
	}
	if answer.VisualizationUrl == "" {
		// A data visualization produced mid-pipeline (by retrieval) still
		// belongs in the reply when illustration contributed nothing.
		if retriever, ok := latest[string(agent.StageRetriever)]; ok && retriever.Status == agent.StatusOk {
			answer.VisualizationUrl = stringField(retriever.Payload, "visualization_url")
		}
	}

	return answer
}

func terminalStatus(session *entity.PipelineSession) string {
	switch session.Status {
	case entity.SessionCompleted, entity.SessionPartial, entity.SessionFailed:
		return session.Status
	default:
		// A non-terminal session read mid-run assembles as failed rather
		// than inventing a status the pipeline never reached.
		return entity.SessionFailed
	}
}

// composeText sources the answer text from the writer, falling back to the
// reasoning payload when writing was bypassed, and finally to a best-effort
// explanation so a failed pipeline never answers with an opaque error.
func composeText(latest map[string]*entity.StageResult) string {
	if writer, ok := latest[string(agent.StageWriter)]; ok && writer.Status == agent.StatusOk {
		if text := stringField(writer.Payload, "response"); text != "" {
			return text
		}
	}

	if reason, ok := latest[string(agent.StageReason)]; ok && reason.Status == agent.StatusOk {
		if text := analysisText(reason.Payload); text != "" {
			return text
		}
	}

	if intent, ok := latest[string(agent.StageIntention)]; !ok || intent.Status != agent.StatusOk {
		return "Sorry, we could not understand your question. Please try rephrasing it."
	}
	return "Sorry, we could not produce a complete answer to your question right now. Please try again shortly."
}

func analysisText(payload map[string]interface{}) string {
	if summary := stringField(payload, "summary"); summary != "" {
		return summary
	}

	points, ok := payload["key_points"].([]interface{})
	if !ok || len(points) == 0 {
		return ""
	}
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, fmt.Sprintf("%v", p))
	}
	return strings.Join(parts, " ")
}

// latestByStage keeps the most recent result per stage, relying on the
// append order of the input slice.
func latestByStage(results []*entity.StageResult) map[string]*entity.StageResult {
	latest := make(map[string]*entity.StageResult)
	for _, r := range results {
		latest[r.Stage] = r
	}
	return latest
}

func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}
