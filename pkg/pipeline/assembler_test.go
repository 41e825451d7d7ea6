package pipeline

import (
	"testing"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/agent"
)

func result(stage agent.Stage, status string, payload map[string]interface{}) *entity.StageResult {
	return &entity.StageResult{
		Stage:   string(stage),
		Status:  status,
		Payload: payload,
	}
}

func TestAssembleCompletedRun(t *testing.T) {
	session := &entity.PipelineSession{Status: entity.SessionCompleted}
	results := []*entity.StageResult{
		result(agent.StageIntention, agent.StatusOk, map[string]interface{}{"category": "market_trend"}),
		result(agent.StageRetriever, agent.StatusOk, map[string]interface{}{"sources": []interface{}{"bcra"}}),
		result(agent.StageReason, agent.StatusOk, map[string]interface{}{"summary": "Upward trend."}),
		result(agent.StageWriter, agent.StatusOk, map[string]interface{}{"response": "The dollar keeps climbing."}),
		result(agent.StageDesigner, agent.StatusOk, map[string]interface{}{
			"visualization_url": "/images/chart.html",
			"image_url":         "/images/chart.png",
		}),
	}

	answer := Assemble(session, results)

	if answer.Status != entity.SessionCompleted {
		t.Errorf("Status = %q, want %q", answer.Status, entity.SessionCompleted)
	}
	if answer.Text != "The dollar keeps climbing." {
		t.Errorf("Text = %q, want writer response", answer.Text)
	}
	if answer.VisualizationUrl != "/images/chart.html" || answer.ImageUrl != "/images/chart.png" {
		t.Errorf("media = (%q, %q), want designer urls", answer.VisualizationUrl, answer.ImageUrl)
	}
}

func TestAssembleTextFallbackChain(t *testing.T) {
	tests := []struct {
		name    string
		results []*entity.StageResult
		want    string
	}{
		{
			name: "reason summary when writer failed",
			results: []*entity.StageResult{
				result(agent.StageIntention, agent.StatusOk, nil),
				result(agent.StageReason, agent.StatusOk, map[string]interface{}{"summary": "Rates are rising."}),
				result(agent.StageWriter, agent.StatusFailed, nil),
			},
			want: "Rates are rising.",
		},
		{
			name: "key points joined when no summary",
			results: []*entity.StageResult{
				result(agent.StageIntention, agent.StatusOk, nil),
				result(agent.StageReason, agent.StatusOk, map[string]interface{}{
					"key_points": []interface{}{"Inflation at 4%.", "Dollar stable."},
				}),
			},
			want: "Inflation at 4%. Dollar stable.",
		},
		{
			name: "understanding failure message",
			results: []*entity.StageResult{
				result(agent.StageIntention, agent.StatusFailed, nil),
			},
			want: "Sorry, we could not understand your question. Please try rephrasing it.",
		},
		{
			name: "generic failure message when intent was fine",
			results: []*entity.StageResult{
				result(agent.StageIntention, agent.StatusOk, nil),
				result(agent.StageReason, agent.StatusFailed, nil),
				result(agent.StageWriter, agent.StatusFailed, nil),
			},
			want: "Sorry, we could not produce a complete answer to your question right now. Please try again shortly.",
		},
	}

	session := &entity.PipelineSession{Status: entity.SessionFailed}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := Assemble(session, tt.results)
			if answer.Text != tt.want {
				t.Errorf("Text = %q, want %q", answer.Text, tt.want)
			}
		})
	}
}

func TestAssembleNoFabricatedMedia(t *testing.T) {
	session := &entity.PipelineSession{Status: entity.SessionPartial}
	results := []*entity.StageResult{
		result(agent.StageWriter, agent.StatusOk, map[string]interface{}{"response": "Answer."}),
		result(agent.StageDesigner, agent.StatusFailed, map[string]interface{}{
			// Stale urls from a failed attempt must never leak out.
			"visualization_url": "/images/broken.html",
		}),
	}

	answer := Assemble(session, results)

	if answer.VisualizationUrl != "" || answer.ImageUrl != "" {
		t.Errorf("media = (%q, %q), want none from a failed designer", answer.VisualizationUrl, answer.ImageUrl)
	}
}

func TestAssembleRetrieverVisualizationFallback(t *testing.T) {
	session := &entity.PipelineSession{Status: entity.SessionPartial}
	results := []*entity.StageResult{
		result(agent.StageRetriever, agent.StatusOk, map[string]interface{}{"visualization_url": "/images/data.html"}),
		result(agent.StageWriter, agent.StatusOk, map[string]interface{}{"response": "Answer."}),
		result(agent.StageDesigner, agent.StatusFailed, nil),
	}

	answer := Assemble(session, results)

	if answer.VisualizationUrl != "/images/data.html" {
		t.Errorf("VisualizationUrl = %q, want retriever fallback", answer.VisualizationUrl)
	}
}

func TestAssembleLatestResultWins(t *testing.T) {
	session := &entity.PipelineSession{Status: entity.SessionCompleted}
	results := []*entity.StageResult{
		result(agent.StageIntention, agent.StatusOk, nil),
		result(agent.StageWriter, agent.StatusFailed, nil),
		// A later retry succeeded; assembly must use it.
		result(agent.StageWriter, agent.StatusOk, map[string]interface{}{"response": "Second attempt."}),
	}

	answer := Assemble(session, results)

	if answer.Text != "Second attempt." {
		t.Errorf("Text = %q, want latest writer result", answer.Text)
	}
}

func TestAssembleNonTerminalSession(t *testing.T) {
	session := &entity.PipelineSession{Status: entity.SessionInProgress}
	answer := Assemble(session, nil)

	if answer.Status != entity.SessionFailed {
		t.Errorf("Status = %q, want %q for a non-terminal session", answer.Status, entity.SessionFailed)
	}
}
