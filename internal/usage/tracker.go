package usage

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"triagebot/internal/models"
)

// modelCosts holds approximate prices per 1M tokens. Locally served models
// (the Ollama default) are free, which is why the zero value is the default.
var modelCosts = map[string]struct{ input, output float64 }{
	"gpt-4o":      {input: 2.50, output: 10.00},
	"gpt-4o-mini": {input: 0.15, output: 0.60},
}

// Totals is a snapshot of accumulated usage.
type Totals struct {
	PromptTokens     int64
	CompletionTokens int64
	Requests         int64
	EstimatedCost    float64
}

// TotalTokens returns prompt plus completion tokens.
func (t Totals) TotalTokens() int64 {
	return t.PromptTokens + t.CompletionTokens
}

// Tracker accumulates usage records for the process lifetime. Safe for
// concurrent use; records are append-only and never evicted.
type Tracker struct {
	mu      sync.Mutex
	records []models.UsageRecord
	totals  Totals
	firstAt time.Time
	lastAt  time.Time
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends one usage record and folds it into the running totals.
func (t *Tracker) Record(rec models.UsageRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.CostEstimate = estimateCost(rec.Model, rec.PromptTokens, rec.CompletionTokens)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, rec)
	t.totals.PromptTokens += int64(rec.PromptTokens)
	t.totals.CompletionTokens += int64(rec.CompletionTokens)
	t.totals.Requests++
	t.totals.EstimatedCost += rec.CostEstimate

	if t.firstAt.IsZero() {
		t.firstAt = rec.Timestamp
	}
	t.lastAt = rec.Timestamp
}

// Totals returns a snapshot of the accumulated counters.
func (t *Tracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

// Records returns a copy of all recorded entries, oldest first.
func (t *Tracker) Records() []models.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.UsageRecord, len(t.records))
	copy(out, t.records)
	return out
}

// LogSummary writes the accumulated usage to the log, typically at shutdown.
func (t *Tracker) LogSummary(logger *zap.Logger) {
	t.mu.Lock()
	totals := t.totals
	t.mu.Unlock()

	logger.Info("Usage summary",
		zap.Int64("requests", totals.Requests),
		zap.Int64("prompt_tokens", totals.PromptTokens),
		zap.Int64("completion_tokens", totals.CompletionTokens),
		zap.Float64("estimated_cost_usd", totals.EstimatedCost))
}

func estimateCost(model string, promptTokens, completionTokens int) float64 {
	costs, ok := modelCosts[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1_000_000*costs.input +
		float64(completionTokens)/1_000_000*costs.output
}
