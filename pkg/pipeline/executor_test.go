package pipeline

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/agent"
	"ai-finagent-be/pkg/cache"

	"github.com/google/uuid"
)

// fakeAgentClient returns scripted outcomes per stage and counts calls.
// When a stage's script runs out, the last outcome repeats.
type fakeAgentClient struct {
	mu        sync.Mutex
	calls     map[agent.Stage]int
	inputs    map[agent.Stage][]map[string]interface{}
	responses map[agent.Stage][]*agent.Outcome
}

func newFakeAgentClient() *fakeAgentClient {
	return &fakeAgentClient{
		calls:     make(map[agent.Stage]int),
		inputs:    make(map[agent.Stage][]map[string]interface{}),
		responses: make(map[agent.Stage][]*agent.Outcome),
	}
}

func (f *fakeAgentClient) script(stage agent.Stage, outcomes ...*agent.Outcome) {
	f.responses[stage] = outcomes
}

func (f *fakeAgentClient) Invoke(ctx context.Context, stage agent.Stage, req *agent.AgentRequest) *agent.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls[stage]
	f.calls[stage]++
	f.inputs[stage] = append(f.inputs[stage], req.Input)

	script := f.responses[stage]
	if len(script) == 0 {
		return okOutcome(stage, map[string]interface{}{"stage": string(stage)})
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return script[idx]
}

func (f *fakeAgentClient) callCount(stage agent.Stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeAgentClient) lastInput(stage agent.Stage) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs[stage]) == 0 {
		return nil
	}
	return f.inputs[stage][len(f.inputs[stage])-1]
}

func okOutcome(stage agent.Stage, payload map[string]interface{}) *agent.Outcome {
	return &agent.Outcome{
		Stage:   stage,
		Status:  agent.StatusOk,
		Payload: payload,
		Latency: 5 * time.Millisecond,
	}
}

func failedOutcome(stage agent.Stage, kind agent.FailureKind, msg string) *agent.Outcome {
	return &agent.Outcome{
		Stage:   stage,
		Status:  agent.StatusFailed,
		Error:   msg,
		Failure: kind,
		Latency: 5 * time.Millisecond,
	}
}

// fakeStore records appends and the finalized status in memory.
type fakeStore struct {
	mu        sync.Mutex
	appended  []*entity.StageResult
	finalized string
}

func (s *fakeStore) AppendResult(ctx context.Context, result *entity.StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, result)
	return nil
}

func (s *fakeStore) Finalize(ctx context.Context, sessionId uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = status
	return nil
}

func (s *fakeStore) appendedStages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stages := make([]string, 0, len(s.appended))
	for _, r := range s.appended {
		stages = append(stages, r.Stage)
	}
	return stages
}

func newTestExecutor(client agent.AgentClient, store SessionStore, resultCache cache.ResultCache) *Executor {
	return NewExecutor(
		client,
		resultCache,
		store,
		nil,
		nil,
		BuildPolicies(DefaultKnobs()),
		time.Minute,
		5*time.Minute,
		log.New(io.Discard, "", 0),
	)
}

func newTestSession() (*entity.PipelineSession, *entity.Query) {
	sessionId := uuid.New()
	queryId := uuid.New()
	return &entity.PipelineSession{
			Id:          sessionId,
			Status:      entity.SessionInProgress,
			LastQuery:   "dollar trend in argentina",
			LastQueryId: queryId,
			CreatedAt:   time.Now(),
		}, &entity.Query{
			Id:        queryId,
			SessionId: sessionId,
			Text:      "Dollar trend in Argentina",
			CreatedAt: time.Now(),
		}
}

func TestRunAllStagesSucceed(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageWriter, okOutcome(agent.StageWriter, map[string]interface{}{"response": "The dollar is trending up."}))
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionCompleted {
		t.Errorf("Status = %q, want %q", outcome.Status, entity.SessionCompleted)
	}
	if store.finalized != entity.SessionCompleted {
		t.Errorf("finalized = %q, want %q", store.finalized, entity.SessionCompleted)
	}
	if len(outcome.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(outcome.Results))
	}
	for _, stage := range agent.Stages {
		if got := client.callCount(stage); got != 1 {
			t.Errorf("%s invoked %d times, want 1", stage, got)
		}
	}
	if session.Status != entity.SessionCompleted {
		t.Errorf("session.Status = %q, want %q", session.Status, entity.SessionCompleted)
	}
}

func TestRunRetrievalFailureDegrades(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageRetriever, failedOutcome(agent.StageRetriever, agent.FailureTransient, "market data unavailable"))
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionPartial {
		t.Errorf("Status = %q, want %q", outcome.Status, entity.SessionPartial)
	}
	// One initial attempt plus one retry.
	if got := client.callCount(agent.StageRetriever); got != 2 {
		t.Errorf("retriever invoked %d times, want 2", got)
	}
	// Downstream stages still run, reasoning over the fallback evidence.
	if got := client.callCount(agent.StageReason); got != 1 {
		t.Errorf("reason invoked %d times, want 1", got)
	}
	evidence, ok := client.lastInput(agent.StageReason)["evidence"].(map[string]interface{})
	if !ok {
		t.Fatal("reason input carries no evidence map")
	}
	if fallback, _ := evidence["fallback"].(bool); !fallback {
		t.Error("reason did not receive the fallback evidence set")
	}
}

func TestRunIntentFailureIsFatal(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageIntention, failedOutcome(agent.StageIntention, agent.FailureTransient, "intent service down"))
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionFailed {
		t.Errorf("Status = %q, want %q", outcome.Status, entity.SessionFailed)
	}
	for _, stage := range []agent.Stage{agent.StageRetriever, agent.StageReason, agent.StageWriter, agent.StageDesigner} {
		if got := client.callCount(stage); got != 0 {
			t.Errorf("%s invoked %d times after fatal intent failure, want 0", stage, got)
		}
	}
	if stages := store.appendedStages(); len(stages) != 1 || stages[0] != string(agent.StageIntention) {
		t.Errorf("appended stages = %v, want only intention", stages)
	}
}

func TestRunInputRejectionSkipsRetry(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageIntention, failedOutcome(agent.StageIntention, agent.FailureInput, "empty query"))
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	if _, err := exec.Run(context.Background(), session, query, nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := client.callCount(agent.StageIntention); got != 1 {
		t.Errorf("intention invoked %d times, want 1 (rejections are not retried)", got)
	}
}

func TestRunRetryThenSuccess(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageRetriever,
		failedOutcome(agent.StageRetriever, agent.FailureTransient, "timeout"),
		okOutcome(agent.StageRetriever, map[string]interface{}{"sources": []interface{}{"bcra"}}),
	)
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionCompleted {
		t.Errorf("Status = %q, want %q", outcome.Status, entity.SessionCompleted)
	}
	if got := client.callCount(agent.StageRetriever); got != 2 {
		t.Errorf("retriever invoked %d times, want 2", got)
	}
	for _, r := range outcome.Results {
		if r.Stage == string(agent.StageRetriever) && r.Attempt != 2 {
			t.Errorf("retriever result Attempt = %d, want 2", r.Attempt)
		}
	}
}

func TestRunCacheHitSkipsInvocation(t *testing.T) {
	client := newFakeAgentClient()
	resultCache := cache.NewMemoryCache()

	store1 := &fakeStore{}
	exec1 := newTestExecutor(client, store1, resultCache)
	session1, query1 := newTestSession()
	if _, err := exec1.Run(context.Background(), session1, query1, nil); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}

	// Same question from a different session: cacheable stages come back
	// from the cache, the rest run again.
	store2 := &fakeStore{}
	exec2 := newTestExecutor(client, store2, resultCache)
	session2, query2 := newTestSession()
	outcome, err := exec2.Run(context.Background(), session2, query2, nil)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	if got := client.callCount(agent.StageIntention); got != 1 {
		t.Errorf("intention invoked %d times across two runs, want 1", got)
	}
	if got := client.callCount(agent.StageDesigner); got != 1 {
		t.Errorf("designer invoked %d times across two runs, want 1", got)
	}
	if got := client.callCount(agent.StageWriter); got != 2 {
		t.Errorf("writer invoked %d times across two runs, want 2 (uncacheable)", got)
	}

	for _, r := range outcome.Results {
		switch r.Stage {
		case string(agent.StageIntention), string(agent.StageDesigner):
			if !r.Cached {
				t.Errorf("%s result not marked cached on second run", r.Stage)
			}
			if r.SessionId != session2.Id {
				t.Errorf("%s cached result carries session %s, want %s", r.Stage, r.SessionId, session2.Id)
			}
		case string(agent.StageWriter):
			if r.Cached {
				t.Error("writer result marked cached, but writing is never cached")
			}
		}
	}
}

func TestRunWriterFailureIsFatal(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageWriter, failedOutcome(agent.StageWriter, agent.FailureTransient, "writer overloaded"))
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionFailed {
		t.Errorf("Status = %q, want %q", outcome.Status, entity.SessionFailed)
	}
	// The designer result is still recorded even though the run failed.
	found := false
	for _, stage := range store.appendedStages() {
		if stage == string(agent.StageDesigner) {
			found = true
		}
	}
	if !found {
		t.Error("designer result not recorded alongside the writer failure")
	}
}

func TestRunDesignerFailureDegrades(t *testing.T) {
	client := newFakeAgentClient()
	client.script(agent.StageWriter, okOutcome(agent.StageWriter, map[string]interface{}{"response": "Answer text."}))
	client.script(agent.StageDesigner, failedOutcome(agent.StageDesigner, agent.FailureTransient, "chart service down"))
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionPartial {
		t.Errorf("Status = %q, want %q (text survives without media)", outcome.Status, entity.SessionPartial)
	}
}

func TestRunReusesPriorResults(t *testing.T) {
	client := newFakeAgentClient()
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	prior := []*entity.StageResult{
		{
			Id:        uuid.New(),
			SessionId: session.Id,
			QueryId:   query.Id,
			Stage:     string(agent.StageIntention),
			Status:    agent.StatusOk,
			Payload:   map[string]interface{}{"category": "market_trend"},
			CreatedAt: time.Now(),
		},
		{
			Id:        uuid.New(),
			SessionId: session.Id,
			QueryId:   query.Id,
			Stage:     string(agent.StageRetriever),
			Status:    agent.StatusOk,
			Payload:   map[string]interface{}{"sources": []interface{}{"bcra"}},
			CreatedAt: time.Now(),
		},
	}

	outcome, err := exec.Run(context.Background(), session, query, prior)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := client.callCount(agent.StageIntention); got != 0 {
		t.Errorf("intention invoked %d times despite recorded prior result, want 0", got)
	}
	if got := client.callCount(agent.StageRetriever); got != 0 {
		t.Errorf("retriever invoked %d times despite recorded prior result, want 0", got)
	}
	if got := client.callCount(agent.StageReason); got != 1 {
		t.Errorf("reason invoked %d times, want 1", got)
	}

	// Reused results are not appended again.
	for _, stage := range store.appendedStages() {
		if stage == string(agent.StageIntention) || stage == string(agent.StageRetriever) {
			t.Errorf("prior %s result re-appended to the session store", stage)
		}
	}
	if len(outcome.Results) != 5 {
		t.Errorf("got %d results, want 5 (reused included)", len(outcome.Results))
	}
}

func TestRunFailedPriorResultsNotReused(t *testing.T) {
	client := newFakeAgentClient()
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())
	session, query := newTestSession()

	prior := []*entity.StageResult{
		{
			Id:        uuid.New(),
			SessionId: session.Id,
			QueryId:   query.Id,
			Stage:     string(agent.StageIntention),
			Status:    agent.StatusFailed,
			Error:     "intent service down",
			CreatedAt: time.Now(),
		},
	}

	if _, err := exec.Run(context.Background(), session, query, prior); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := client.callCount(agent.StageIntention); got != 1 {
		t.Errorf("intention invoked %d times, want 1 (failed prior results are re-run)", got)
	}
}

// stalledAgentClient answers the intention stage immediately and holds
// every later stage until its context expires.
type stalledAgentClient struct {
	mu    sync.Mutex
	calls map[agent.Stage]int
}

func (c *stalledAgentClient) Invoke(ctx context.Context, stage agent.Stage, req *agent.AgentRequest) *agent.Outcome {
	c.mu.Lock()
	c.calls[stage]++
	c.mu.Unlock()

	if stage == agent.StageIntention {
		return okOutcome(stage, map[string]interface{}{"intent": "trend"})
	}
	<-ctx.Done()
	return failedOutcome(stage, agent.FailureTransient, "context deadline exceeded")
}

func (c *stalledAgentClient) callCount(stage agent.Stage) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[stage]
}

func TestRunOverallDeadlineFinalizesSession(t *testing.T) {
	client := &stalledAgentClient{calls: make(map[agent.Stage]int)}
	store := &fakeStore{}
	exec := NewExecutor(
		client,
		cache.NewMemoryCache(),
		store,
		nil,
		nil,
		BuildPolicies(DefaultKnobs()),
		50*time.Millisecond,
		5*time.Minute,
		log.New(io.Discard, "", 0),
	)
	session, query := newTestSession()

	outcome, err := exec.Run(context.Background(), session, query, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if outcome.Status != entity.SessionFailed {
		t.Errorf("Status = %q, want %q", outcome.Status, entity.SessionFailed)
	}
	if store.finalized != entity.SessionFailed {
		t.Errorf("store finalized = %q, want %q", store.finalized, entity.SessionFailed)
	}
	if got := client.callCount(agent.StageWriter); got != 0 {
		t.Errorf("writer invoked %d times after the deadline, want 0", got)
	}
	if got := client.callCount(agent.StageDesigner); got != 0 {
		t.Errorf("designer invoked %d times after the deadline, want 0", got)
	}
}

func TestRunConcurrentSessionsStayIsolated(t *testing.T) {
	client := newFakeAgentClient()
	store := &fakeStore{}
	exec := newTestExecutor(client, store, cache.NewMemoryCache())

	sessionA, queryA := newTestSession()
	sessionB, queryB := newTestSession()
	sessionB.LastQuery = "inflation outlook for brazil"
	queryB.Text = "Inflation outlook for Brazil"

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = exec.Run(context.Background(), sessionA, queryA, nil)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = exec.Run(context.Background(), sessionB, queryB, nil)
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Run %d returned error: %v", i, err)
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	perSession := make(map[uuid.UUID]int)
	for _, r := range store.appended {
		perSession[r.SessionId]++
		switch r.SessionId {
		case sessionA.Id:
			if r.QueryId != queryA.Id {
				t.Errorf("stage %s for session A carries query id %s, want %s", r.Stage, r.QueryId, queryA.Id)
			}
		case sessionB.Id:
			if r.QueryId != queryB.Id {
				t.Errorf("stage %s for session B carries query id %s, want %s", r.Stage, r.QueryId, queryB.Id)
			}
		default:
			t.Errorf("stage %s recorded under unknown session id %s", r.Stage, r.SessionId)
		}
	}
	if perSession[sessionA.Id] != 5 {
		t.Errorf("session A recorded %d results, want 5", perSession[sessionA.Id])
	}
	if perSession[sessionB.Id] != 5 {
		t.Errorf("session B recorded %d results, want 5", perSession[sessionB.Id])
	}
}
