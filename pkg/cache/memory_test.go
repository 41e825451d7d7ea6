package cache

import (
	"context"
	"testing"
	"time"

	"ai-finagent-be/internal/entity"
	"ai-finagent-be/pkg/agent"

	"github.com/google/uuid"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	original := &entity.StageResult{
		Id:        uuid.New(),
		SessionId: uuid.New(),
		QueryId:   uuid.New(),
		Stage:     string(agent.StageIntention),
		Status:    agent.StatusOk,
		Payload:   map[string]interface{}{"category": "market_trend"},
		LatencyMs: 42,
		CreatedAt: time.Now(),
	}

	if err := c.Put(ctx, "fp-1", original, time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, found := c.Get(ctx, "fp-1")
	if !found {
		t.Fatal("Get missed a freshly stored entry")
	}
	if got.Stage != original.Stage || got.Status != original.Status {
		t.Errorf("got (%s, %s), want (%s, %s)", got.Stage, got.Status, original.Stage, original.Status)
	}
	if got.Payload["category"] != "market_trend" {
		t.Errorf("Payload = %v, want original payload", got.Payload)
	}
	// Cached reads are always marked as such; identity fields are the
	// caller's to fill in.
	if !got.Cached {
		t.Error("cache hit not marked Cached")
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	if _, found := c.Get(context.Background(), "unknown"); found {
		t.Error("Get returned a hit for an unknown fingerprint")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	result := &entity.StageResult{
		Stage:  string(agent.StageRetriever),
		Status: agent.StatusOk,
	}
	if err := c.Put(ctx, "fp-ttl", result, 20*time.Millisecond); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if _, found := c.Get(ctx, "fp-ttl"); !found {
		t.Fatal("entry expired before its TTL")
	}

	time.Sleep(40 * time.Millisecond)

	if _, found := c.Get(ctx, "fp-ttl"); found {
		t.Error("entry survived past its TTL")
	}
}
