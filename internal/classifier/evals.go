package classifier

import (
	"context"
	"fmt"

	"triagebot/internal/models"
	"triagebot/internal/providers"
)

// EvalCase is one labeled message: the text plus the category and
// attention decision a correct classifier should produce for it.
type EvalCase struct {
	Name           string
	Text           string
	WantCategory   models.Category
	WantActionable bool
}

// EvalOutcome records how the classifier scored on one case. ActionMatch
// compares the attention decision (actionable category at or above the
// threshold) against the label, so a right category with an implausibly
// low confidence still counts as a miss.
type EvalOutcome struct {
	Case          EvalCase
	Got           models.ClassificationResult
	CategoryMatch bool
	ActionMatch   bool
}

// EvalReport aggregates per-case outcomes over a dataset.
type EvalReport struct {
	Outcomes []EvalOutcome
}

func (r EvalReport) CategoryAccuracy() float64 {
	return r.accuracy(func(o EvalOutcome) bool { return o.CategoryMatch })
}

func (r EvalReport) ActionAccuracy() float64 {
	return r.accuracy(func(o EvalOutcome) bool { return o.ActionMatch })
}

func (r EvalReport) accuracy(pass func(EvalOutcome) bool) float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	var hits int
	for _, o := range r.Outcomes {
		if pass(o) {
			hits++
		}
	}
	return float64(hits) / float64(len(r.Outcomes))
}

// Failures returns the cases the classifier got wrong on either axis.
func (r EvalReport) Failures() []EvalOutcome {
	var failed []EvalOutcome
	for _, o := range r.Outcomes {
		if !o.CategoryMatch || !o.ActionMatch {
			failed = append(failed, o)
		}
	}
	return failed
}

// Evaluate runs every case through the classifier and scores the results.
// threshold is the confidence cutoff the router would apply in production.
func Evaluate(ctx context.Context, clf Classifier, prov providers.Provider, threshold float64, cases []EvalCase) EvalReport {
	report := EvalReport{Outcomes: make([]EvalOutcome, 0, len(cases))}

	for i, c := range cases {
		got := clf.Classify(ctx, models.Message{
			ID:   fmt.Sprintf("eval-%d", i),
			Text: c.Text,
		}, prov)

		gotActionable := got.Category.Actionable() && got.Confidence >= threshold

		report.Outcomes = append(report.Outcomes, EvalOutcome{
			Case:          c,
			Got:           got,
			CategoryMatch: got.Category == c.WantCategory,
			ActionMatch:   gotActionable == c.WantActionable,
		})
	}

	return report
}

// DefaultEvalSet is a small labeled dataset covering each category plus
// the ambiguous edges where models tend to drift.
func DefaultEvalSet() []EvalCase {
	return []EvalCase{
		{
			Name:           "password reset",
			Text:           "How do I reset my password? The reset email never arrives.",
			WantCategory:   models.CategorySupportRequest,
			WantActionable: true,
		},
		{
			Name:           "feature how-to",
			Text:           "Is there a way to export my data to CSV? I can't find it anywhere in settings.",
			WantCategory:   models.CategorySupportRequest,
			WantActionable: true,
		},
		{
			Name:           "crash on startup",
			Text:           "The app crashes every time I open it since the last update. Anyone else?",
			WantCategory:   models.CategoryBugReport,
			WantActionable: true,
		},
		{
			Name:           "broken download",
			Text:           "Download link gives a 404. Tried three browsers, same result.",
			WantCategory:   models.CategoryBugReport,
			WantActionable: true,
		},
		{
			Name:           "repeated outages",
			Text:           "Third outage this week. This is getting really frustrating, I pay for this service.",
			WantCategory:   models.CategoryComplaint,
			WantActionable: true,
		},
		{
			Name:           "slow support",
			Text:           "Honestly the support response times here are terrible lately.",
			WantCategory:   models.CategoryComplaint,
			WantActionable: true,
		},
		{
			Name:           "greeting",
			Text:           "good morning everyone, happy friday!",
			WantCategory:   models.CategoryGeneralChat,
			WantActionable: false,
		},
		{
			Name:           "banter",
			Text:           "lol that meme is perfect",
			WantCategory:   models.CategoryGeneralChat,
			WantActionable: false,
		},
		{
			Name:           "rhetorical grumble",
			Text:           "ugh, mondays",
			WantCategory:   models.CategoryGeneralChat,
			WantActionable: false,
		},
		{
			Name:           "thanks",
			Text:           "thanks, that fixed it!",
			WantCategory:   models.CategoryGeneralChat,
			WantActionable: false,
		},
	}
}
