package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"triagebot/internal/models"
	"triagebot/internal/providers"
	"triagebot/internal/storage"
)

// processTimeout bounds one message's classification and side effects so
// that shutdown drain cannot hang on a stuck backend.
const processTimeout = 2 * time.Minute

// queueSize absorbs message bursts so the gateway callback degrades to
// latency, not data loss, when all workers are busy.
const queueSize = 256

type job struct {
	session *discordgo.Session
	msg     models.Message
	meta    models.MessageMeta
}

// Bot subscribes to the Discord gateway and feeds qualifying messages to
// the processor through a buffered queue consumed by a fixed worker pool.
// The gateway callback itself never blocks on classification.
type Bot struct {
	session   *discordgo.Session
	processor *Processor
	store     storage.Store
	guildIDs  map[string]struct{}
	workers   int
	logger    *zap.Logger

	group *errgroup.Group
	jobs  chan job

	mu       sync.Mutex
	closed   bool
	inflight map[string]struct{}
}

// New creates the bot. guildIDs limits processing to the given guilds; an
// empty list means every guild the bot is in. workers bounds concurrent
// classifications.
func New(token string, processor *Processor, store storage.Store, guildIDs []string, workers int, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	if workers < 1 {
		workers = 4
	}

	guilds := make(map[string]struct{}, len(guildIDs))
	for _, id := range guildIDs {
		guilds[id] = struct{}{}
	}

	b := &Bot{
		session:   session,
		processor: processor,
		store:     store,
		guildIDs:  guilds,
		workers:   workers,
		logger:    logger,
		group:     &errgroup.Group{},
		jobs:      make(chan job, queueSize),
		inflight:  make(map[string]struct{}),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)

	return b, nil
}

// Start opens the gateway connection and blocks until ctx is canceled,
// then closes the connection and drains queued and in-flight work.
func (b *Bot) Start(ctx context.Context) error {
	b.startWorkers()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	<-ctx.Done()

	b.logger.Info("Shutting down, draining in-flight classifications")
	if err := b.session.Close(); err != nil {
		b.logger.Error("Failed to close gateway connection", zap.Error(err))
	}

	// No handler fires after Close returns, so the queue can be sealed.
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	close(b.jobs)

	return b.group.Wait()
}

func (b *Bot) startWorkers() {
	for i := 0; i < b.workers; i++ {
		b.group.Go(func() error {
			for j := range b.jobs {
				b.runJob(j)
			}
			return nil
		})
	}
}

func (b *Bot) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	prov := providers.NewDiscord(j.session, j.msg.GuildID, j.msg.ChannelID, b.logger)
	b.processor.Process(ctx, j.msg, j.meta, prov)

	// The audit record now covers dedup for this ID.
	b.clearInflight(j.msg.ID)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Bot is ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages and DMs
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}
	if len(b.guildIDs) > 0 {
		if _, ok := b.guildIDs[m.GuildID]; !ok {
			return
		}
	}

	// Claim the ID before dispatch: a redelivery that arrives while the
	// first classification is still in flight must not be routed twice.
	if !b.markInflight(m.ID) {
		return
	}

	seen, err := b.store.Seen(context.Background(), m.ID)
	if err != nil {
		b.logger.Warn("Failed to check message dedup, processing anyway",
			zap.Error(err),
			zap.String("message_id", m.ID))
	} else if seen {
		b.clearInflight(m.ID)
		return
	}

	msg := models.Message{
		ID:        m.ID,
		AuthorID:  m.Author.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Text:      m.Content,
		Timestamp: m.Timestamp,
	}

	b.enqueue(job{session: s, msg: msg, meta: b.messageMeta(s, m)})
}

// markInflight claims a message ID. It returns false when the ID is
// already being processed.
func (b *Bot) markInflight(messageID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.inflight[messageID]; ok {
		return false
	}
	b.inflight[messageID] = struct{}{}
	return true
}

func (b *Bot) clearInflight(messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, messageID)
}

func (b *Bot) enqueue(j job) {
	// The send stays under the lock so it cannot race Start closing the
	// channel; the non-blocking select keeps the hold time bounded.
	b.mu.Lock()
	if b.closed {
		delete(b.inflight, j.msg.ID)
		b.mu.Unlock()
		return
	}
	select {
	case b.jobs <- j:
		b.mu.Unlock()
		return
	default:
	}
	delete(b.inflight, j.msg.ID)
	b.mu.Unlock()

	// Last resort under sustained overload; the queue already absorbed
	// queueSize messages.
	b.logger.Warn("Message queue full, dropping message",
		zap.String("message_id", j.msg.ID),
		zap.String("channel_id", j.msg.ChannelID))
}

func (b *Bot) messageMeta(s *discordgo.Session, m *discordgo.MessageCreate) models.MessageMeta {
	meta := models.MessageMeta{
		AuthorName:  m.Author.Username,
		ChannelName: "unknown",
		GuildName:   "unknown",
		MessageURL:  fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.ID),
	}

	if m.Member != nil && m.Member.Nick != "" {
		meta.AuthorName = m.Member.Nick
	} else if m.Author.GlobalName != "" {
		meta.AuthorName = m.Author.GlobalName
	}

	if channel, err := s.State.Channel(m.ChannelID); err == nil {
		meta.ChannelName = channel.Name
	}
	if guild, err := s.State.Guild(m.GuildID); err == nil {
		meta.GuildName = guild.Name
	}

	return meta
}
