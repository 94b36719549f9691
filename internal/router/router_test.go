package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"triagebot/internal/models"
)

func TestRoute_GeneralChatNeverActioned(t *testing.T) {
	r := New(0.5, true)

	for _, confidence := range []float64{0, 0.5, 0.99, 1} {
		decision := r.Route(models.ClassificationResult{
			Category:   models.CategoryGeneralChat,
			Confidence: confidence,
		})
		assert.Equal(t, models.ActionNone, decision.Action, "confidence %v", confidence)
		assert.Empty(t, decision.Labels)
	}
}

func TestRoute_ThresholdIsInclusive(t *testing.T) {
	r := New(0.5, false)

	decision := r.Route(models.ClassificationResult{
		Category:   models.CategorySupportRequest,
		Confidence: 0.5,
	})
	assert.Equal(t, models.ActionNotify, decision.Action)

	decision = r.Route(models.ClassificationResult{
		Category:   models.CategorySupportRequest,
		Confidence: 0.4999,
	})
	assert.Equal(t, models.ActionNone, decision.Action)
}

func TestRoute_IssueTrackerToggle(t *testing.T) {
	result := models.ClassificationResult{
		Category:   models.CategoryBugReport,
		Confidence: 0.9,
	}

	withIssues := New(0.5, true).Route(result)
	assert.Equal(t, models.ActionCreateIssue, withIssues.Action)
	assert.Equal(t, []string{"bug", "needs-triage"}, withIssues.Labels)

	withoutIssues := New(0.5, false).Route(result)
	assert.Equal(t, models.ActionNotify, withoutIssues.Action)
	assert.Empty(t, withoutIssues.Labels)
}

func TestRoute_Labels(t *testing.T) {
	r := New(0.5, true)

	cases := []struct {
		category models.Category
		labels   []string
	}{
		{models.CategorySupportRequest, []string{"support", "needs-triage", "needs-response"}},
		{models.CategoryComplaint, []string{"complaint", "needs-triage", "needs-response"}},
		{models.CategoryBugReport, []string{"bug", "needs-triage"}},
	}
	for _, tc := range cases {
		decision := r.Route(models.ClassificationResult{Category: tc.category, Confidence: 0.8})
		assert.Equal(t, models.ActionCreateIssue, decision.Action, string(tc.category))
		assert.Equal(t, tc.labels, decision.Labels, string(tc.category))
	}
}

func TestRoute_InvalidCategoryDropped(t *testing.T) {
	r := New(0.5, true)

	decision := r.Route(models.ClassificationResult{Category: "spam", Confidence: 1})
	assert.Equal(t, models.ActionNone, decision.Action)
}

func TestRoute_IsPure(t *testing.T) {
	r := New(0.5, true)
	result := models.ClassificationResult{
		Category:   models.CategoryComplaint,
		Confidence: 0.7,
		Rationale:  "user is frustrated",
	}

	first := r.Route(result)
	second := r.Route(result)
	assert.Equal(t, first, second)
}
