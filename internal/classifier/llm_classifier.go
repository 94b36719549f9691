package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"triagebot/internal/models"
	"triagebot/internal/observability"
	"triagebot/internal/providers"
	"triagebot/internal/usage"
)

// Config holds the classifier's tunables.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxAttempts   int
	MaxToolRounds int
	HistoryLimit  int
}

// completionClient is the slice of the OpenAI client the classifier needs.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMClassifier classifies messages with a chat-completion backend. The
// model may call context-provider tools before answering; malformed output
// is retried up to MaxAttempts and then degraded to a fallback result.
type LLMClassifier struct {
	client        completionClient
	model         string
	maxTokens     int
	temperature   float64
	maxAttempts   int
	maxToolRounds int
	historyLimit  int
	retryWait     time.Duration
	tracker       *usage.Tracker
	logger        *zap.Logger
}

func NewLLMClassifier(cfg Config, tracker *usage.Tracker, logger *zap.Logger) *LLMClassifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxToolRounds < 0 {
		cfg.MaxToolRounds = 0
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 10
	}

	return &LLMClassifier{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxAttempts:   cfg.MaxAttempts,
		maxToolRounds: cfg.MaxToolRounds,
		historyLimit:  cfg.HistoryLimit,
		retryWait:     200 * time.Millisecond,
		tracker:       tracker,
		logger:        logger,
	}
}

// fallbackResult is returned when no valid classification could be obtained
// within the retry budget. The failure is absorbed here: one malformed
// message must never take down the listening loop.
func fallbackResult() models.ClassificationResult {
	return models.ClassificationResult{
		Category:   models.CategoryGeneralChat,
		Confidence: 0,
		Rationale:  "classification failed",
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, msg models.Message, prov providers.Provider) models.ClassificationResult {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "classifier.classify",
		trace.WithAttributes(
			attribute.String("message.id", msg.ID),
			attribute.String("llm.model", c.model),
		))
	defer span.End()

	if strings.TrimSpace(msg.Text) == "" {
		return models.ClassificationResult{
			Category:   models.CategoryGeneralChat,
			Confidence: 0,
			Rationale:  "empty message",
		}
	}

	attempt := func() (models.ClassificationResult, error) {
		return c.attempt(ctx, msg, prov)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxInterval = 5 * time.Second

	result, err := backoff.RetryWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx))
	if err != nil {
		span.RecordError(err)
		c.logger.Error("Classification failed, using fallback result",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.Int("max_attempts", c.maxAttempts))
		return fallbackResult()
	}

	span.SetAttributes(
		attribute.String("classification.category", string(result.Category)),
		attribute.Float64("classification.confidence", result.Confidence),
	)
	return result
}

// attempt runs one full classification round trip, including any tool calls
// the model issues. Each backend call records usage, whether or not the
// attempt ultimately validates.
func (c *LLMClassifier) attempt(ctx context.Context, msg models.Message, prov providers.Provider) (models.ClassificationResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: c.userPrompt(msg)},
	}

	var toolCalls []models.ToolCallRecord

	for round := 0; ; round++ {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
			Tools:       classifierTools,
		})
		if err != nil {
			return models.ClassificationResult{}, fmt.Errorf("chat completion: %w", err)
		}

		c.recordUsage(resp.Usage)

		if len(resp.Choices) == 0 {
			return models.ClassificationResult{}, errors.New("backend returned no choices")
		}

		reply := resp.Choices[0].Message
		if len(reply.ToolCalls) == 0 {
			return c.parseResult(reply.Content, toolCalls)
		}
		if round >= c.maxToolRounds {
			return models.ClassificationResult{}, fmt.Errorf("tool call budget exhausted after %d rounds", round+1)
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			output, failed := c.runTool(ctx, call, prov)
			toolCalls = append(toolCalls, models.ToolCallRecord{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
				Failed:    failed,
			})
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}
}

func (c *LLMClassifier) userPrompt(msg models.Message) string {
	return fmt.Sprintf(`Classify this message:

Channel ID: %s
Author ID: %s
Sent at: %s
Message: %s

Determine the category and your confidence that it requires support staff attention.`,
		msg.ChannelID, msg.AuthorID, msg.Timestamp.UTC().Format(time.RFC3339), msg.Text)
}

// runTool executes one model-requested context lookup. Provider failures
// degrade to an "unavailable" tool result so classification can proceed
// without the signal.
func (c *LLMClassifier) runTool(ctx context.Context, call openai.ToolCall, prov providers.Provider) (string, bool) {
	switch call.Function.Name {
	case toolGetUserContext:
		var args struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return `{"error": "invalid arguments"}`, true
		}
		uc, err := prov.UserContext(ctx, args.UserID)
		if err != nil {
			c.logger.Warn("User context unavailable",
				zap.Error(err),
				zap.String("user_id", args.UserID))
			return `{"error": "user context unavailable"}`, true
		}
		return mustJSON(uc), false

	case toolGetChannelContext:
		var args struct {
			ChannelID string `json:"channel_id"`
			Limit     int    `json:"limit"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return `{"error": "invalid arguments"}`, true
		}
		if args.Limit <= 0 || args.Limit > c.historyLimit {
			args.Limit = c.historyLimit
		}
		history, err := prov.ChannelContext(ctx, args.ChannelID, args.Limit)
		if err != nil {
			c.logger.Warn("Channel context unavailable",
				zap.Error(err),
				zap.String("channel_id", args.ChannelID))
			return `{"error": "channel context unavailable"}`, true
		}
		return mustJSON(history), false
	}

	return `{"error": "unknown tool"}`, true
}

type llmResponse struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Reason     string   `json:"reason"`
}

// parseResult validates the model's final answer. Model output is untrusted
// input: any structural violation is an error, which makes the attempt
// retryable.
func (c *LLMClassifier) parseResult(content string, toolCalls []models.ToolCallRecord) (models.ClassificationResult, error) {
	raw := stripFences(content)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("parsing model output %q: %w", truncate(raw, 200), err)
	}

	category := models.Category(strings.ToLower(strings.TrimSpace(parsed.Category)))
	if !category.Valid() {
		return models.ClassificationResult{}, fmt.Errorf("unknown category %q", parsed.Category)
	}
	if parsed.Confidence == nil {
		return models.ClassificationResult{}, errors.New("missing confidence")
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		return models.ClassificationResult{}, fmt.Errorf("confidence %v out of range", *parsed.Confidence)
	}

	rationale := parsed.Rationale
	if rationale == "" {
		rationale = parsed.Reason
	}

	return models.ClassificationResult{
		Category:   category,
		Confidence: *parsed.Confidence,
		Rationale:  rationale,
		ToolCalls:  toolCalls,
	}, nil
}

func (c *LLMClassifier) recordUsage(u openai.Usage) {
	c.tracker.Record(models.UsageRecord{
		ID:               uuid.New().String(),
		Model:            c.model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
	})
}

// stripFences removes a surrounding markdown code fence, which smaller
// models tend to add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error": "encoding failed"}`
	}
	return string(data)
}
