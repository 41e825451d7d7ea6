package pipeline

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/agent"
	"ai-finagent-be/pkg/cache"
	"ai-finagent-be/pkg/events"
	"ai-finagent-be/pkg/storage"

	"github.com/google/uuid"
)

// Executor drives one query through the five agent stages in order,
// applying caching, retries, fallbacks and partial-result assembly.
//
// Transition rule at every stage boundary: consult the session's prior
// results first (session store is the source of truth for "has this stage
// run"), then the result cache, then invoke the agent with a bounded
// deadline, then persist and advance.
type Executor struct {
	client    agent.AgentClient
	cache     cache.ResultCache
	store     SessionStore
	storage   *storage.LocalStorage
	publisher EventPublisher
	policies  PolicyTable

	overallDeadline time.Duration
	retrievalBucket time.Duration
	logger          *log.Logger
}

func NewExecutor(
	client agent.AgentClient,
	resultCache cache.ResultCache,
	store SessionStore,
	imageStorage *storage.LocalStorage,
	publisher EventPublisher,
	policies PolicyTable,
	overallDeadline time.Duration,
	retrievalBucket time.Duration,
	logger *log.Logger,
) *Executor {
	return &Executor{
		client:          client,
		cache:           resultCache,
		store:           store,
		storage:         imageStorage,
		publisher:       publisher,
		policies:        policies,
		overallDeadline: overallDeadline,
		retrievalBucket: retrievalBucket,
		logger:          logger,
	}
}

// RunOutcome is what one pipeline run produced: the terminal session status
// and every stage result recorded along the way (prior results reused from
// the session store included).
type RunOutcome struct {
	Status  string
	Results []*entity.StageResult
}

// Run executes the pipeline for one query. It always reaches a terminal
// state within the overall deadline; stage failures are data, not errors.
// The returned error is reserved for infrastructure failures (session store
// writes), which abort the run.
func (e *Executor) Run(ctx context.Context, session *entity.PipelineSession, query *entity.Query, prior []*entity.StageResult) (*RunOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.overallDeadline)
	defer cancel()

	st := &State{Query: query}
	priorOk := priorByStage(query.Id, prior)
	var results []*entity.StageResult

	e.logger.Printf("[PIPELINE] session=%s query=%s starting run: %s", session.Id, query.Id, truncate(query.Text, 60))

	// Stage 1: intention. Fatal on exhaustion.
	intentRes, err := e.runStage(ctx, session, query, agent.StageIntention, e.intentInput(query), priorOk)
	if err != nil {
		return nil, err
	}
	results = append(results, intentRes)
	if intentRes.Status != agent.StatusOk {
		e.logger.Printf("[PIPELINE] session=%s intent detection exhausted: %s", session.Id, intentRes.Error)
		return e.finalize(ctx, session, query, entity.SessionFailed, results)
	}
	st.Intent = intentRes.Payload

	// Stage 2: retriever. Degrades to an empty evidence set.
	if expired(ctx) {
		return e.forceFinalize(ctx, session, query, st, results)
	}
	retrieverRes, err := e.runStage(ctx, session, query, agent.StageRetriever, e.retrieverInput(query, st), priorOk)
	if err != nil {
		return nil, err
	}
	results = append(results, retrieverRes)
	if retrieverRes.Status == agent.StatusOk {
		st.Evidence = retrieverRes.Payload
	} else {
		st.Degraded = true
		st.Evidence = e.policies[agent.StageRetriever].Fallback(st)
		e.logger.Printf("[PIPELINE] session=%s retrieval degraded, continuing with empty evidence", session.Id)
	}

	// Stage 3: reason. Degrades to the evidence itself as response basis.
	if expired(ctx) {
		return e.forceFinalize(ctx, session, query, st, results)
	}
	reasonRes, err := e.runStage(ctx, session, query, agent.StageReason, e.reasonInput(query, st), priorOk)
	if err != nil {
		return nil, err
	}
	results = append(results, reasonRes)
	if reasonRes.Status == agent.StatusOk {
		st.Analysis = reasonRes.Payload
	} else {
		st.Degraded = true
		st.Analysis = e.policies[agent.StageReason].Fallback(st)
		e.logger.Printf("[PIPELINE] session=%s reasoning degraded, answering from evidence", session.Id)
	}

	// Stages 4+5: writer and designer fan out once the analysis is available;
	// illustration does not depend on the written text. Both are resolved
	// concurrently but recorded sequentially to keep session appends ordered.
	if expired(ctx) {
		return e.forceFinalize(ctx, session, query, st, results)
	}

	writerCh := make(chan *resolved, 1)
	designerCh := make(chan *resolved, 1)
	go func() {
		writerCh <- e.resolveOrReuse(ctx, session, query, agent.StageWriter, e.writerInput(query, st), priorOk)
	}()
	go func() {
		designerCh <- e.resolveOrReuse(ctx, session, query, agent.StageDesigner, e.designerInput(query, st), priorOk)
	}()
	writer := <-writerCh
	designer := <-designerCh

	for _, r := range []*resolved{writer, designer} {
		if r.reused {
			results = append(results, r.result)
			continue
		}
		if err := e.record(ctx, r); err != nil {
			return nil, err
		}
		results = append(results, r.result)
	}

	if designer.result.Status != agent.StatusOk {
		st.Degraded = true
		e.logger.Printf("[PIPELINE] session=%s illustration degraded, omitting media", session.Id)
	}
	if writer.result.Status != agent.StatusOk {
		e.logger.Printf("[PIPELINE] session=%s writing exhausted: %s", session.Id, writer.result.Error)
		return e.finalize(ctx, session, query, entity.SessionFailed, results)
	}

	status := entity.SessionCompleted
	if st.Degraded {
		status = entity.SessionPartial
	}
	return e.finalize(ctx, session, query, status, results)
}

// --- stage execution ---

type resolved struct {
	result      *entity.StageResult
	fingerprint string
	reused      bool
}

// runStage resolves one stage (prior result, cache, or invocation) and
// records anything newly produced.
func (e *Executor) runStage(ctx context.Context, session *entity.PipelineSession, query *entity.Query, stage agent.Stage, input map[string]interface{}, priorOk map[string]*entity.StageResult) (*entity.StageResult, error) {
	r := e.resolveOrReuse(ctx, session, query, stage, input, priorOk)
	if r.reused {
		return r.result, nil
	}
	if err := e.record(ctx, r); err != nil {
		return nil, err
	}
	return r.result, nil
}

func (e *Executor) resolveOrReuse(ctx context.Context, session *entity.PipelineSession, query *entity.Query, stage agent.Stage, input map[string]interface{}, priorOk map[string]*entity.StageResult) *resolved {
	if prev, ok := priorOk[string(stage)]; ok {
		e.logger.Printf("[PIPELINE] session=%s reusing recorded %s result", session.Id, stage)
		return &resolved{result: prev, reused: true}
	}
	return e.resolve(ctx, session, query, stage, input)
}

// resolve produces a StageResult from the cache or by invoking the agent,
// without touching the session store.
func (e *Executor) resolve(ctx context.Context, session *entity.PipelineSession, query *entity.Query, stage agent.Stage, input map[string]interface{}) *resolved {
	pol := e.policies[stage]
	fp := Fingerprint(stage, input)

	if pol.Cacheable && fp != "" {
		if hit, ok := e.cache.Get(ctx, fp); ok {
			e.logger.Printf("[PIPELINE] session=%s cache hit for %s", session.Id, stage)
			result := *hit
			result.Id = uuid.New()
			result.SessionId = session.Id
			result.QueryId = query.Id
			result.Cached = true
			result.CreatedAt = time.Now()
			return &resolved{result: &result, fingerprint: fp}
		}
	}

	req := &agent.AgentRequest{
		SessionId: session.Id,
		QueryId:   query.Id,
		Input:     input,
	}

	var outcome *agent.Outcome
	attempt := 0
	for i := 0; i <= pol.Retries; i++ {
		attempt = i + 1
		callCtx, cancel := context.WithTimeout(ctx, pol.Timeout)
		outcome = e.client.Invoke(callCtx, stage, req)
		cancel()
		if outcome.Status != agent.StatusFailed {
			break
		}
		if outcome.Failure == agent.FailureInput {
			// Rejections are deterministic; retrying cannot help.
			break
		}
		if i < pol.Retries {
			e.logger.Printf("[PIPELINE] session=%s %s attempt %d failed (%s), retrying", session.Id, stage, attempt, outcome.Error)
		}
	}

	result := &entity.StageResult{
		Id:        uuid.New(),
		SessionId: session.Id,
		QueryId:   query.Id,
		Stage:     string(stage),
		Status:    outcome.Status,
		Payload:   outcome.Payload,
		Error:     outcome.Error,
		Attempt:   attempt,
		LatencyMs: outcome.Latency.Milliseconds(),
		CreatedAt: time.Now(),
	}

	if stage == agent.StageDesigner && result.Status == agent.StatusOk {
		e.persistIllustration(result)
	}

	return &resolved{result: result, fingerprint: fp}
}

// record persists a newly produced result, refreshes the cache for
// cacheable successes, and emits the stage event. Writes use a detached
// context so a pipeline deadline never loses already-computed progress.
func (e *Executor) record(ctx context.Context, r *resolved) error {
	dctx := context.WithoutCancel(ctx)
	result := r.result

	if err := e.store.AppendResult(dctx, result); err != nil {
		return err
	}

	pol := e.policies[agent.Stage(result.Stage)]
	if pol.Cacheable && r.fingerprint != "" && result.Status == agent.StatusOk && !result.Cached {
		if err := e.cache.Put(dctx, r.fingerprint, result, pol.TTL); err != nil {
			e.logger.Printf("[PIPELINE] cache put failed for %s: %v", result.Stage, err)
		}
	}

	if e.publisher != nil {
		evt := events.NewStageCompleted(result.SessionId, result.QueryId, result.Stage, result.Status, result.Cached, result.LatencyMs)
		if err := e.publisher.Publish(dctx, evt); err != nil {
			e.logger.Printf("[PIPELINE] event publish failed for %s: %v", result.Stage, err)
		}
	}

	return nil
}

func (e *Executor) finalize(ctx context.Context, session *entity.PipelineSession, query *entity.Query, status string, results []*entity.StageResult) (*RunOutcome, error) {
	dctx := context.WithoutCancel(ctx)
	if err := e.store.Finalize(dctx, session.Id, status); err != nil {
		return nil, err
	}
	session.Status = status

	if e.publisher != nil {
		evt := events.NewPipelineFinalized(session.Id, query.Id, status)
		if err := e.publisher.Publish(dctx, evt); err != nil {
			e.logger.Printf("[PIPELINE] finalize event publish failed: %v", err)
		}
	}

	e.logger.Printf("[PIPELINE] session=%s query=%s finalized as %s", session.Id, query.Id, status)
	return &RunOutcome{Status: status, Results: results}, nil
}

// forceFinalize ends the run immediately when the overall deadline is hit,
// with whatever stages completed so far.
func (e *Executor) forceFinalize(ctx context.Context, session *entity.PipelineSession, query *entity.Query, st *State, results []*entity.StageResult) (*RunOutcome, error) {
	e.logger.Printf("[PIPELINE] session=%s overall deadline exceeded, forcing finalization", session.Id)

	status := entity.SessionFailed
	for _, r := range results {
		if r.Stage == string(agent.StageWriter) && r.Status == agent.StatusOk {
			// Answer text exists, so the run is degraded rather than lost.
			status = entity.SessionPartial
			break
		}
	}
	return e.finalize(ctx, session, query, status, results)
}

// --- stage inputs ---
// Each input map doubles as the stage's fingerprint source, so anything that
// would legitimately change the output must appear in it.

func (e *Executor) intentInput(query *entity.Query) map[string]interface{} {
	input := map[string]interface{}{
		"query": NormalizeQuery(query.Text),
	}
	if locale, ok := query.Context["locale"]; ok {
		input["locale"] = locale
	}
	return input
}

func (e *Executor) retrieverInput(query *entity.Query, st *State) map[string]interface{} {
	return map[string]interface{}{
		"query": NormalizeQuery(query.Text),
		"intent": st.Intent,
		// Market data is time-sensitive: bucketing the fingerprint bounds
		// staleness to one window.
		"time_bucket": TimeBucket(time.Now(), e.retrievalBucket),
	}
}

func (e *Executor) reasonInput(query *entity.Query, st *State) map[string]interface{} {
	return map[string]interface{}{
		"query":    NormalizeQuery(query.Text),
		"intent":   st.Intent,
		"evidence": st.Evidence,
	}
}

func (e *Executor) writerInput(query *entity.Query, st *State) map[string]interface{} {
	input := map[string]interface{}{
		"query":    query.Text,
		"intent":   st.Intent,
		"analysis": st.Analysis,
	}
	if len(query.Context) > 0 {
		input["context"] = query.Context
	}
	return input
}

func (e *Executor) designerInput(query *entity.Query, st *State) map[string]interface{} {
	// Deliberately excludes the written text so illustration can run
	// concurrently with writing.
	return map[string]interface{}{
		"query":    NormalizeQuery(query.Text),
		"intent":   st.Intent,
		"analysis": st.Analysis,
	}
}

// persistIllustration moves inline image bytes out of the payload and onto
// local storage, leaving only the serving URL behind.
func (e *Executor) persistIllustration(result *entity.StageResult) {
	if e.storage == nil || result.Payload == nil {
		return
	}
	encoded, ok := result.Payload["image_data"].(string)
	if !ok || encoded == "" {
		return
	}
	delete(result.Payload, "image_data")

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		e.logger.Printf("[PIPELINE] invalid illustration image data: %v", err)
		return
	}

	format, _ := result.Payload["image_format"].(string)
	url, err := e.storage.SaveImage(raw, format)
	if err != nil {
		e.logger.Printf("[PIPELINE] failed to persist illustration: %v", err)
		return
	}
	result.Payload["image_url"] = url
}

// --- helpers ---

func priorByStage(queryId uuid.UUID, prior []*entity.StageResult) map[string]*entity.StageResult {
	byStage := make(map[string]*entity.StageResult)
	for _, r := range prior {
		if r.QueryId == queryId && r.Status == agent.StatusOk {
			byStage[r.Stage] = r
		}
	}
	return byStage
}

func expired(ctx context.Context) bool {
	return ctx.Err() != nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
