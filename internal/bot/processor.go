package bot

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"triagebot/internal/classifier"
	"triagebot/internal/issues"
	"triagebot/internal/models"
	"triagebot/internal/notify"
	"triagebot/internal/observability"
	"triagebot/internal/providers"
	"triagebot/internal/router"
	"triagebot/internal/storage"
)

// maxNotificationLength bounds the message preview shown in popups.
const maxNotificationLength = 200

// Processor runs the triage pipeline for one message: classify, route,
// then apply side effects. Side effects are best-effort; a failed
// notification or issue never changes the decision already made.
type Processor struct {
	classifier classifier.Classifier
	router     router.Router
	notifier   notify.Notifier
	tracker    issues.Tracker
	store      storage.Store
	logger     *zap.Logger
}

func NewProcessor(
	clf classifier.Classifier,
	rtr router.Router,
	notifier notify.Notifier,
	tracker issues.Tracker,
	store storage.Store,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		classifier: clf,
		router:     rtr,
		notifier:   notifier,
		tracker:    tracker,
		store:      store,
		logger:     logger,
	}
}

func (p *Processor) Process(ctx context.Context, msg models.Message, meta models.MessageMeta, prov providers.Provider) models.RoutingDecision {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "processor.process",
		trace.WithAttributes(
			attribute.String("message.id", msg.ID),
			attribute.String("message.channel_id", msg.ChannelID),
		))
	defer span.End()

	result := p.classifier.Classify(ctx, msg, prov)
	decision := p.router.Route(result)

	span.SetAttributes(
		attribute.String("classification.category", string(result.Category)),
		attribute.Float64("classification.confidence", result.Confidence),
		attribute.String("routing.action", string(decision.Action)),
	)

	p.logger.Debug("Classified message",
		zap.String("message_id", msg.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.String("action", string(decision.Action)),
		zap.Int("tool_calls", len(result.ToolCalls)))

	if result.Category.Actionable() && decision.Action == models.ActionNone {
		p.logger.Info("Low-confidence classification not actioned",
			zap.String("message_id", msg.ID),
			zap.String("category", string(result.Category)),
			zap.Float64("confidence", result.Confidence))
	}

	if decision.Action != models.ActionNone {
		p.sendNotification(msg, meta, result)
	}
	if decision.Action == models.ActionCreateIssue {
		p.createIssue(ctx, msg, meta, result, decision.Labels)
	}

	rec := &models.ClassificationRecord{
		MessageID:  msg.ID,
		GuildID:    msg.GuildID,
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.AuthorID,
		Content:    msg.Text,
		Category:   result.Category,
		Confidence: result.Confidence,
		Rationale:  result.Rationale,
		Action:     decision.Action,
	}
	if err := p.store.SaveClassification(ctx, rec); err != nil {
		p.logger.Error("Failed to save classification record",
			zap.Error(err),
			zap.String("message_id", msg.ID))
	}

	return decision
}

func (p *Processor) sendNotification(msg models.Message, meta models.MessageMeta, result models.ClassificationResult) {
	title := "🔔 " + result.Category.Display()

	// Truncate on runes so multibyte text is never split mid-character.
	content := msg.Text
	if runes := []rune(content); len(runes) > maxNotificationLength {
		content = string(runes[:maxNotificationLength-3]) + "..."
	}
	body := fmt.Sprintf("#%s in %s\n%s: %s", meta.ChannelName, meta.GuildName, meta.AuthorName, content)

	if err := p.notifier.Notify(title, body); err != nil {
		p.logger.Error("Failed to send notification",
			zap.Error(err),
			zap.String("message_id", msg.ID))
	}
}

func (p *Processor) createIssue(ctx context.Context, msg models.Message, meta models.MessageMeta, result models.ClassificationResult, labels []string) {
	issue, err := p.tracker.Create(ctx, issues.Request{
		Message: msg,
		Meta:    meta,
		Result:  result,
		Labels:  labels,
	})
	if err != nil {
		p.logger.Error("Failed to create issue",
			zap.Error(err),
			zap.String("message_id", msg.ID))
		return
	}

	p.logger.Info("Issue created",
		zap.String("issue_id", issue.ID),
		zap.String("issue_url", issue.URL),
		zap.String("message_id", msg.ID))
}
