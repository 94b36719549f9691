package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triagebot/internal/models"
)

func TestTracker_RecordAccumulates(t *testing.T) {
	tr := NewTracker()

	tr.Record(models.UsageRecord{Model: "qwen3:30b", PromptTokens: 100, CompletionTokens: 20})
	tr.Record(models.UsageRecord{Model: "qwen3:30b", PromptTokens: 50, CompletionTokens: 10})

	totals := tr.Totals()
	assert.Equal(t, int64(150), totals.PromptTokens)
	assert.Equal(t, int64(30), totals.CompletionTokens)
	assert.Equal(t, int64(2), totals.Requests)
	assert.Equal(t, int64(180), totals.TotalTokens())
	assert.Zero(t, totals.EstimatedCost, "local models cost nothing")

	records := tr.Records()
	require.Len(t, records, 2)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestTracker_CostEstimateForKnownModel(t *testing.T) {
	tr := NewTracker()
	tr.Record(models.UsageRecord{Model: "gpt-4o-mini", PromptTokens: 1_000_000, CompletionTokens: 1_000_000})

	assert.InDelta(t, 0.75, tr.Totals().EstimatedCost, 1e-9)
}

func TestTracker_ConcurrentRecordsNoLostUpdates(t *testing.T) {
	tr := NewTracker()

	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tr.Record(models.UsageRecord{Model: "qwen3:30b", PromptTokens: 3, CompletionTokens: 1})
			}
		}()
	}
	wg.Wait()

	totals := tr.Totals()
	assert.Equal(t, int64(workers*perWorker), totals.Requests)
	assert.Equal(t, int64(workers*perWorker*3), totals.PromptTokens)
	assert.Equal(t, int64(workers*perWorker), totals.CompletionTokens)
	assert.Len(t, tr.Records(), workers*perWorker)
}

func TestTracker_RecordsReturnsCopy(t *testing.T) {
	tr := NewTracker()
	tr.Record(models.UsageRecord{Model: "qwen3:30b", PromptTokens: 1})

	records := tr.Records()
	records[0].PromptTokens = 999

	assert.Equal(t, 1, tr.Records()[0].PromptTokens)
}
