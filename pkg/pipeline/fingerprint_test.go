package pipeline

import (
	"testing"
	"time"

	"ai-finagent-be/pkg/agent"
)

func TestFingerprintDeterminism(t *testing.T) {
	input := map[string]interface{}{
		"query":  "dollar trend argentina",
		"intent": map[string]interface{}{"category": "market_trend", "asset": "usd"},
	}

	a := Fingerprint(agent.StageRetriever, input)
	b := Fingerprint(agent.StageRetriever, map[string]interface{}{
		"intent": map[string]interface{}{"asset": "usd", "category": "market_trend"},
		"query":  "dollar trend argentina",
	})

	if a == "" {
		t.Fatal("Fingerprint returned empty key for valid input")
	}
	if a != b {
		t.Errorf("same logical input produced different keys:\n%s\n%s", a, b)
	}
}

func TestFingerprintDiscriminates(t *testing.T) {
	base := map[string]interface{}{"query": "dollar trend"}

	if Fingerprint(agent.StageIntention, base) == Fingerprint(agent.StageRetriever, base) {
		t.Error("different stages share a fingerprint for the same input")
	}
	if Fingerprint(agent.StageIntention, base) == Fingerprint(agent.StageIntention, map[string]interface{}{"query": "euro trend"}) {
		t.Error("different inputs share a fingerprint")
	}
}

func TestFingerprintUnmarshalableInput(t *testing.T) {
	input := map[string]interface{}{
		"bad": func() {},
	}
	if got := Fingerprint(agent.StageReason, input); got != "" {
		t.Errorf("Fingerprint = %q, want empty key for unmarshalable input", got)
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already normalized",
			in:   "dollar trend in argentina",
			want: "dollar trend in argentina",
		},
		{
			name: "mixed case",
			in:   "Dollar Trend In Argentina",
			want: "dollar trend in argentina",
		},
		{
			name: "extra whitespace",
			in:   "  dollar   trend \t in\nargentina ",
			want: "dollar trend in argentina",
		},
		{
			name: "empty",
			in:   "   ",
			want: "",
		},
		{
			name: "accents preserved",
			in:   "¿Cuál es la tendencia del dólar?",
			want: "¿cuál es la tendencia del dólar?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuery(tt.in); got != tt.want {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimeBucket(t *testing.T) {
	window := 5 * time.Minute
	base := time.Date(2025, 3, 10, 14, 3, 27, 0, time.UTC)

	sameBucket := TimeBucket(base.Add(90*time.Second), window)
	if got := TimeBucket(base, window); got != sameBucket {
		t.Errorf("times within one window produced different buckets: %s vs %s", got, sameBucket)
	}

	nextBucket := TimeBucket(base.Add(5*time.Minute), window)
	if TimeBucket(base, window) == nextBucket {
		t.Error("times a full window apart share a bucket")
	}

	// Zero window falls back to the default instead of bucketing per-nanosecond.
	if TimeBucket(base, 0) != TimeBucket(base.Add(time.Second), 0) {
		t.Error("default window not applied for zero duration")
	}
}
