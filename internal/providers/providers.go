package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"triagebot/internal/models"
)

// Provider supplies read-only auxiliary facts for one in-flight
// classification. Implementations must be side-effect free; callers treat
// errors as "context unavailable" and proceed without the signal.
type Provider interface {
	UserContext(ctx context.Context, userID string) (models.UserContext, error)
	ChannelContext(ctx context.Context, channelID string, limit int) ([]models.ChannelMessage, error)
}

const newMemberWindow = 7 * 24 * time.Hour

// historyPage is how many messages are fetched when counting a user's
// recent activity in the source channel.
const historyPage = 50

// Discord reads context from the Discord API. Instances are request-scoped:
// bound to the guild and channel of the message being classified, and
// discarded when the classification completes.
type Discord struct {
	session   *discordgo.Session
	guildID   string
	channelID string
	logger    *zap.Logger
}

func NewDiscord(session *discordgo.Session, guildID, channelID string, logger *zap.Logger) *Discord {
	return &Discord{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
		logger:    logger,
	}
}

// UserContext returns facts about the author: account age (from the
// snowflake timestamp), whether they joined the guild recently, and how
// many of the channel's latest messages are theirs.
func (d *Discord) UserContext(ctx context.Context, userID string) (models.UserContext, error) {
	createdAt, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return models.UserContext{}, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	uc := models.UserContext{
		AccountAgeDays: int(time.Since(createdAt).Hours() / 24),
	}

	member, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return models.UserContext{}, fmt.Errorf("fetching guild member: %w", err)
	}
	if !member.JoinedAt.IsZero() {
		uc.IsNewMember = time.Since(member.JoinedAt) < newMemberWindow
	}

	history, err := d.session.ChannelMessages(d.channelID, historyPage, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		// Account facts are still useful without activity data.
		d.logger.Warn("Failed to fetch channel history for activity count",
			zap.Error(err),
			zap.String("channel_id", d.channelID))
		return uc, nil
	}
	for _, msg := range history {
		if msg.Author != nil && msg.Author.ID == userID {
			uc.RecentMessageCount++
		}
	}

	return uc, nil
}

// ChannelContext returns up to limit recent messages from the channel,
// ordered most-recent-last. Channels younger than limit messages return
// fewer items.
func (d *Discord) ChannelContext(ctx context.Context, channelID string, limit int) ([]models.ChannelMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	history, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching channel messages: %w", err)
	}

	// Discord returns newest first; reverse into chronological order.
	out := make([]models.ChannelMessage, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		name := "unknown"
		if msg.Author != nil {
			name = msg.Author.Username
		}
		out = append(out, models.ChannelMessage{
			AuthorName: name,
			Text:       msg.Content,
			Timestamp:  msg.Timestamp,
		})
	}
	return out, nil
}
