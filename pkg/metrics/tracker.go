package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageEvent records token accounting for one completed LLM call, spanning
// whichever capability.LLM provider served it (pkg/providers: Claude,
// OpenAI, or the fallback chain between them).
type UsageEvent struct {
	Timestamp    string  `json:"ts"`
	SessionKey   string  `json:"session"`
	Specialist   string  `json:"specialist,omitempty"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"in"`
	OutputTokens int     `json:"out"`
	CacheRead    int     `json:"cache_read,omitempty"`
	CacheCreate  int     `json:"cache_create,omitempty"`
	CostUSD      float64 `json:"cost"`
}

// Tracker appends per-call usage events to a JSONL ledger under the
// workspace directory it is created with. The agent node calls Record once per completed turn;
// a nil *Tracker is a valid no-op receiver so usage tracking stays optional.
type Tracker struct {
	filePath string
	rates    RateTable
	mu       sync.Mutex
}

// NewTracker creates a tracker writing to workspace/metrics/usage.jsonl,
// priced against DefaultRates.
func NewTracker(workspace string) *Tracker {
	return NewTrackerWithRates(workspace, DefaultRates)
}

// NewTrackerWithRates is NewTracker with a caller-supplied rate table, for
// deployments whose provider contract prices differently from DefaultRates.
func NewTrackerWithRates(workspace string, rates RateTable) *Tracker {
	dir := filepath.Join(workspace, "metrics")
	os.MkdirAll(dir, 0755)
	return &Tracker{
		filePath: filepath.Join(dir, "usage.jsonl"),
		rates:    rates,
	}
}

// Record prices and appends a usage event to the JSONL ledger. A nil
// receiver is a no-op, matching the agent node's "tracking disabled" path.
func (t *Tracker) Record(event UsageEvent) {
	if t == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}
	event.CostUSD = t.rates.Cost(event.Model, event.InputTokens, event.OutputTokens, event.CacheRead, event.CacheCreate)

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	f.Write(data)
	f.Write([]byte("\n"))
}

// ModelRate is the $/million-token price for one model across the four
// accounting buckets a UsageEvent carries.
type ModelRate struct {
	InputPerM       float64
	OutputPerM      float64
	CacheReadPerM   float64
	CacheCreatePerM float64
}

// RateTable prices models by exact name, falling back to a single default
// rate for anything unlisted — providers rev model snapshots far faster
// than any hardcoded table can track.
type RateTable struct {
	byModel  map[string]ModelRate
	fallback ModelRate
}

// NewRateTable builds a RateTable from explicit per-model rates plus a
// fallback rate for unlisted models.
func NewRateTable(byModel map[string]ModelRate, fallback ModelRate) RateTable {
	return RateTable{byModel: byModel, fallback: fallback}
}

// Cost prices one call's token usage against the table.
func (rt RateTable) Cost(model string, input, output, cacheRead, cacheCreate int) float64 {
	r, ok := rt.byModel[model]
	if !ok {
		r = rt.fallback
	}
	return float64(input)*r.InputPerM/1e6 +
		float64(output)*r.OutputPerM/1e6 +
		float64(cacheRead)*r.CacheReadPerM/1e6 +
		float64(cacheCreate)*r.CacheCreatePerM/1e6
}

// DefaultRates covers the model families pkg/providers actually dials
// (Claude and OpenAI), falling back to Claude Sonnet pricing since
// ClaudeProvider.GetDefaultModel is this server's primary path.
var DefaultRates = NewRateTable(
	map[string]ModelRate{
		"claude-sonnet-4-5-20250929": {InputPerM: 3.0, OutputPerM: 15.0, CacheReadPerM: 0.3, CacheCreatePerM: 3.75},
		"claude-sonnet-4-20250514":   {InputPerM: 3.0, OutputPerM: 15.0, CacheReadPerM: 0.3, CacheCreatePerM: 3.75},
		"claude-haiku-3-5-20241022":  {InputPerM: 0.8, OutputPerM: 4.0, CacheReadPerM: 0.08, CacheCreatePerM: 1.0},
		"claude-opus-4-20250514":     {InputPerM: 15.0, OutputPerM: 75.0, CacheReadPerM: 1.5, CacheCreatePerM: 18.75},
		"gpt-4o":                     {InputPerM: 2.5, OutputPerM: 10.0, CacheReadPerM: 1.25},
		"gpt-4o-mini":                {InputPerM: 0.15, OutputPerM: 0.6, CacheReadPerM: 0.075},
	},
	ModelRate{InputPerM: 3.0, OutputPerM: 15.0, CacheReadPerM: 0.3, CacheCreatePerM: 3.75},
)
