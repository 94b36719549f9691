package issues

import (
	"context"
	"fmt"
	"strings"

	"triagebot/internal/models"
)

// Type identifies an issue tracker backend.
type Type string

const (
	TypeNone   Type = "none"
	TypeGitHub Type = "github"
	TypeLinear Type = "linear"
)

// Request carries everything needed to file an issue for a message.
type Request struct {
	Message models.Message
	Meta    models.MessageMeta
	Result  models.ClassificationResult
	Labels  []string
}

// Issue describes a created (or already existing) tracker issue.
type Issue struct {
	Tracker Type
	ID      string
	URL     string
	Title   string
}

// Tracker files issues for messages that need attention. At-least-once
// creation is acceptable; implementations may deduplicate best-effort.
type Tracker interface {
	Type() Type
	Create(ctx context.Context, req Request) (*Issue, error)
}

const titleMaxLength = 50

func buildTitle(req Request) string {
	// Truncate on runes so multibyte text is never split mid-character.
	preview := req.Message.Text
	if runes := []rune(preview); len(runes) > titleMaxLength {
		preview = string(runes[:titleMaxLength]) + "..."
	}
	return fmt.Sprintf("[%s] %s", req.Result.Category.Display(), preview)
}

func buildBody(req Request) string {
	var b strings.Builder

	b.WriteString("## Message\n\n")
	fmt.Fprintf(&b, "**Author:** %s\n", req.Meta.AuthorName)
	fmt.Fprintf(&b, "**Channel:** #%s\n", req.Meta.ChannelName)
	fmt.Fprintf(&b, "**Server:** %s\n", req.Meta.GuildName)
	fmt.Fprintf(&b, "**Link:** %s\n", req.Meta.MessageURL)
	b.WriteString("\n## Content\n\n")
	fmt.Fprintf(&b, "> %s\n", req.Message.Text)
	b.WriteString("\n## Classification\n\n")
	fmt.Fprintf(&b, "- **Category:** %s\n", req.Result.Category)
	fmt.Fprintf(&b, "- **Confidence:** %.0f%%\n", req.Result.Confidence*100)
	fmt.Fprintf(&b, "- **Rationale:** %s\n", req.Result.Rationale)
	fmt.Fprintf(&b, "\n---\n<!-- message_id:%s -->\n", req.Message.ID)

	return b.String()
}

// Noop is used when issue tracking is disabled.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Type() Type {
	return TypeNone
}

func (n *Noop) Create(_ context.Context, req Request) (*Issue, error) {
	return &Issue{Tracker: TypeNone, Title: buildTitle(req)}, nil
}
