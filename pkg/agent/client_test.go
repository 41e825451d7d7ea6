package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRequest() *AgentRequest {
	return &AgentRequest{
		SessionId: uuid.New(),
		QueryId:   uuid.New(),
		Input:     map[string]interface{}{"query": "dollar trend"},
	}
}

func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("path = %q, want /process", r.URL.Path)
		}
		var req AgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(AgentResponse{
			Status:  StatusOk,
			Payload: map[string]interface{}{"category": "market_trend"},
		})
	}))
	defer srv.Close()

	client := NewHTTPAgentClient(map[Stage]string{StageIntention: srv.URL})
	outcome := client.Invoke(context.Background(), StageIntention, newTestRequest())

	if outcome.Status != StatusOk {
		t.Fatalf("Status = %q, want %q (error: %s)", outcome.Status, StatusOk, outcome.Error)
	}
	if outcome.Payload["category"] != "market_trend" {
		t.Errorf("Payload = %v, want agent payload", outcome.Payload)
	}
	if outcome.Failure != FailureNone {
		t.Errorf("Failure = %q, want none", outcome.Failure)
	}
}

func TestInvokeMissingStatusTreatedAsOk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload": {"answer": "42"}}`))
	}))
	defer srv.Close()

	client := NewHTTPAgentClient(map[Stage]string{StageReason: srv.URL})
	outcome := client.Invoke(context.Background(), StageReason, newTestRequest())

	if outcome.Status != StatusOk {
		t.Errorf("Status = %q, want %q for a bare payload response", outcome.Status, StatusOk)
	}
}

func TestInvokeServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPAgentClient(map[Stage]string{StageRetriever: srv.URL})
	outcome := client.Invoke(context.Background(), StageRetriever, newTestRequest())

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusFailed)
	}
	if outcome.Failure != FailureTransient {
		t.Errorf("Failure = %q, want transient for a 5xx", outcome.Failure)
	}
}

func TestInvokeClientErrorIsInputFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "query too vague", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHTTPAgentClient(map[Stage]string{StageIntention: srv.URL})
	outcome := client.Invoke(context.Background(), StageIntention, newTestRequest())

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusFailed)
	}
	if outcome.Failure != FailureInput {
		t.Errorf("Failure = %q, want input for a 4xx", outcome.Failure)
	}
}

func TestInvokeDeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewHTTPAgentClient(map[Stage]string{StageWriter: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome := client.Invoke(ctx, StageWriter, newTestRequest())

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusFailed)
	}
	if outcome.Failure != FailureTransient {
		t.Errorf("Failure = %q, want transient for a timeout", outcome.Failure)
	}
}

func TestInvokeUnconfiguredStage(t *testing.T) {
	client := NewHTTPAgentClient(map[Stage]string{})
	outcome := client.Invoke(context.Background(), StageDesigner, newTestRequest())

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusFailed)
	}
	if outcome.Failure != FailureInput {
		t.Errorf("Failure = %q, want input for a missing endpoint", outcome.Failure)
	}
}

func TestInvokeUnreachableAgent(t *testing.T) {
	client := NewHTTPAgentClient(map[Stage]string{StageRetriever: "http://127.0.0.1:1"})
	outcome := client.Invoke(context.Background(), StageRetriever, newTestRequest())

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusFailed)
	}
	if outcome.Failure != FailureTransient {
		t.Errorf("Failure = %q, want transient for a connection failure", outcome.Failure)
	}
}
