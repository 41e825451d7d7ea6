package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AgentClient invokes one remote agent stage. Implementations must not
// cache or persist anything; that is the orchestrator's job.
type AgentClient interface {
	Invoke(ctx context.Context, stage Stage, req *AgentRequest) *Outcome
}

// HTTPAgentClient talks to the agent services over their configured base URLs.
type HTTPAgentClient struct {
	endpoints map[Stage]string
	client    *http.Client
}

var _ AgentClient = &HTTPAgentClient{}

func NewHTTPAgentClient(endpoints map[Stage]string) *HTTPAgentClient {
	return &HTTPAgentClient{
		endpoints: endpoints,
		// Per-call deadlines come from the caller's context; the client
		// timeout is only a hard upper bound.
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Invoke sends the request to the stage endpoint and waits until the context
// deadline. The returned Outcome always has a terminal status; transport
// errors surface as status "failed" with a transient classification.
func (c *HTTPAgentClient) Invoke(ctx context.Context, stage Stage, req *AgentRequest) *Outcome {
	start := time.Now()

	baseURL, ok := c.endpoints[stage]
	if !ok || baseURL == "" {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("no endpoint configured for stage %s", stage),
			Failure: FailureInput,
			Latency: time.Since(start),
		}
	}

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("marshal request: %v", err),
			Failure: FailureInput,
			Latency: time.Since(start),
		}
	}

	url := baseURL + "/process"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("build request: %v", err),
			Failure: FailureInput,
			Latency: time.Since(start),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		reason := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "deadline exceeded"
		}
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("%s: %v", reason, err),
			Failure: FailureTransient,
			Latency: time.Since(start),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("read response: %v", err),
			Failure: FailureTransient,
			Latency: time.Since(start),
		}
	}

	if resp.StatusCode >= 500 {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("agent returned %d: %s", resp.StatusCode, truncateBody(body)),
			Failure: FailureTransient,
			Latency: time.Since(start),
		}
	}
	if resp.StatusCode >= 400 {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("agent rejected input (%d): %s", resp.StatusCode, truncateBody(body)),
			Failure: FailureInput,
			Latency: time.Since(start),
		}
	}

	var agentResp AgentResponse
	if err := json.Unmarshal(body, &agentResp); err != nil {
		return &Outcome{
			Stage:   stage,
			Status:  StatusFailed,
			Error:   fmt.Sprintf("decode response: %v", err),
			Failure: FailureTransient,
			Latency: time.Since(start),
		}
	}

	outcome := &Outcome{
		Stage:   stage,
		Status:  agentResp.Status,
		Payload: agentResp.Payload,
		Error:   agentResp.Error,
		Latency: time.Since(start),
	}
	if agentResp.Status == StatusFailed {
		outcome.Failure = FailureTransient
	}
	if agentResp.Status == "" {
		// Agents that omit the status field are treated as plain payload responses
		outcome.Status = StatusOk
	}
	return outcome
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
