package models

import (
	"strings"
	"time"
)

// Category is the triage category assigned to a message.
type Category string

const (
	CategorySupportRequest Category = "support_request"
	CategoryComplaint      Category = "complaint"
	CategoryBugReport      Category = "bug_report"
	CategoryGeneralChat    Category = "general_chat"
)

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySupportRequest, CategoryComplaint, CategoryBugReport, CategoryGeneralChat:
		return true
	}
	return false
}

// Actionable reports whether messages in this category may need staff attention.
func (c Category) Actionable() bool {
	return c.Valid() && c != CategoryGeneralChat
}

// Display returns a human-readable form, e.g. "Support Request".
func (c Category) Display() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Message is an incoming chat message. Immutable after receipt.
type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	ChannelID string    `json:"channel_id"`
	GuildID   string    `json:"guild_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageMeta carries display metadata about a message that is not part of
// the classification input proper: names for notifications and the jump
// link embedded in issue bodies.
type MessageMeta struct {
	AuthorName  string `json:"author_name"`
	ChannelName string `json:"channel_name"`
	GuildName   string `json:"guild_name"`
	MessageURL  string `json:"message_url"`
}

// ToolCallRecord records one context-provider invocation made by the model
// while classifying a message.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Failed    bool   `json:"failed,omitempty"`
}

// ClassificationResult is the outcome of classifying one message.
// Immutable once produced.
type ClassificationResult struct {
	Category   Category         `json:"category"`
	Confidence float64          `json:"confidence"`
	Rationale  string           `json:"rationale"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
}

// UserContext holds auxiliary facts about a message author.
type UserContext struct {
	IsNewMember        bool `json:"is_new_member"`
	AccountAgeDays     int  `json:"account_age_days"`
	RecentMessageCount int  `json:"recent_message_count"`
}

// ChannelMessage is one item of recent channel history, used as
// classification context.
type ChannelMessage struct {
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// UsageRecord captures token usage for a single inference backend call.
// Retried and tool-loop calls each produce their own record.
type UsageRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostEstimate     float64   `json:"cost_estimate"`
}

// Action is the side effect chosen for a classified message.
type Action string

const (
	ActionNone Action = "none"
	// ActionNotify raises a desktop notification only.
	ActionNotify Action = "notify"
	// ActionCreateIssue files a tracking issue in addition to notifying.
	ActionCreateIssue Action = "create_issue"
)

// RoutingDecision maps a classification result to a side effect.
// Derived deterministically; never persisted.
type RoutingDecision struct {
	Action Action   `json:"action"`
	Labels []string `json:"labels,omitempty"`
}

// ClassificationRecord is the audit row persisted after a message has been
// classified and routed.
type ClassificationRecord struct {
	MessageID  string    `json:"message_id"`
	GuildID    string    `json:"guild_id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   string    `json:"author_id"`
	Content    string    `json:"content"`
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	Action     Action    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}
