package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"ai-finagent-be/pkg/agent"
)

// Fingerprint returns the deterministic cache key for (stage, input).
// encoding/json sorts map keys, so marshaling the input map is canonical
// as long as inputs are built from maps, which the executor guarantees.
func Fingerprint(stage agent.Stage, input map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(stage))
	h.Write([]byte{0})

	raw, err := json.Marshal(input)
	if err != nil {
		// Unmarshalable inputs cannot be cached; an empty key disables the
		// cache path for this call rather than poisoning it.
		return ""
	}
	h.Write(raw)

	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuery collapses whitespace and case so trivially different
// spellings of the same question share a fingerprint.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// TimeBucket truncates t to the given window. Time-sensitive retrieval keys
// its fingerprint on the bucket so market data is never served stale beyond
// one window.
func TimeBucket(t time.Time, window time.Duration) string {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return t.UTC().Truncate(window).Format(time.RFC3339)
}
