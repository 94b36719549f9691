package router

import (
	"triagebot/internal/models"
)

// Router maps classification results to side-effecting actions. It is
// stateless: identical results always produce identical decisions.
type Router struct {
	threshold     float64
	issuesEnabled bool
}

// New returns a router acting on results at or above threshold. When
// issuesEnabled is false, actionable results are only notified, never filed.
func New(threshold float64, issuesEnabled bool) Router {
	return Router{threshold: threshold, issuesEnabled: issuesEnabled}
}

// Route derives the action for a classification result.
//
// General chat is never actioned, regardless of confidence. Actionable
// categories at or above the threshold (inclusive) are notified, and filed
// as issues when an issue tracker is configured. Below-threshold actionable
// results are dropped; the caller decides whether to log them.
func (r Router) Route(result models.ClassificationResult) models.RoutingDecision {
	if !result.Category.Actionable() {
		return models.RoutingDecision{Action: models.ActionNone}
	}
	if result.Confidence < r.threshold {
		return models.RoutingDecision{Action: models.ActionNone}
	}
	if !r.issuesEnabled {
		return models.RoutingDecision{Action: models.ActionNotify}
	}
	return models.RoutingDecision{
		Action: models.ActionCreateIssue,
		Labels: labelsFor(result.Category),
	}
}

// labelsFor returns the tracker labels for an actionable category:
// the category label, needs-triage always, and needs-response for
// categories that expect a staff reply.
func labelsFor(category models.Category) []string {
	switch category {
	case models.CategorySupportRequest:
		return []string{"support", "needs-triage", "needs-response"}
	case models.CategoryComplaint:
		return []string{"complaint", "needs-triage", "needs-response"}
	case models.CategoryBugReport:
		return []string{"bug", "needs-triage"}
	}
	return nil
}
