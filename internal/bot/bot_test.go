package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"triagebot/internal/models"
	"triagebot/internal/providers"
	"triagebot/internal/router"
)

// slowClassifier simulates a backend that takes a while, so tests can
// deliver events while a classification is still running.
type slowClassifier struct {
	delay  time.Duration
	calls  atomic.Int32
	result models.ClassificationResult
}

func (s *slowClassifier) Classify(_ context.Context, _ models.Message, _ providers.Provider) models.ClassificationResult {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.result
}

func newTestBot(t *testing.T, clf *slowClassifier, workers int) (*Bot, *fakeNotifier, *fakeTracker, *fakeStore) {
	t.Helper()

	notifier := &fakeNotifier{}
	tracker := &fakeTracker{}
	store := &fakeStore{seen: map[string]bool{}}

	p := NewProcessor(clf, router.New(0.5, true), notifier, tracker, store, zap.NewNop())

	b := &Bot{
		session:   &discordgo.Session{State: discordgo.NewState()},
		processor: p,
		store:     store,
		guildIDs:  map[string]struct{}{},
		workers:   workers,
		logger:    zap.NewNop(),
		group:     &errgroup.Group{},
		jobs:      make(chan job, queueSize),
		inflight:  make(map[string]struct{}),
	}
	b.startWorkers()
	return b, notifier, tracker, store
}

func messageEvent(id, text string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   text,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Timestamp: time.Now(),
	}}
}

// drain seals the queue and waits for workers to finish.
func drain(t *testing.T, b *Bot) {
	t.Helper()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	close(b.jobs)
	require.NoError(t, b.group.Wait())
}

func TestBot_RedeliveryWhileInFlightProcessedOnce(t *testing.T) {
	clf := &slowClassifier{
		delay: 100 * time.Millisecond,
		result: models.ClassificationResult{
			Category:   models.CategoryBugReport,
			Confidence: 0.9,
		},
	}
	b, notifier, tracker, store := newTestBot(t, clf, 4)

	b.onMessageCreate(b.session, messageEvent("m1", "the app crashes on launch"))
	time.Sleep(10 * time.Millisecond)
	b.onMessageCreate(b.session, messageEvent("m1", "the app crashes on launch"))

	drain(t, b)

	assert.Equal(t, int32(1), clf.calls.Load())
	assert.Len(t, notifier.titles, 1)
	assert.Len(t, tracker.requests, 1)
	assert.Len(t, store.saved, 1)
}

func TestBot_SeenMessageNotReprocessed(t *testing.T) {
	clf := &slowClassifier{result: models.ClassificationResult{
		Category:   models.CategorySupportRequest,
		Confidence: 0.9,
	}}
	b, notifier, _, store := newTestBot(t, clf, 2)
	store.seen["m1"] = true

	b.onMessageCreate(b.session, messageEvent("m1", "how do I reset my password?"))

	drain(t, b)

	assert.Zero(t, clf.calls.Load())
	assert.Empty(t, notifier.titles)
}

func TestBot_DistinctMessagesAllProcessed(t *testing.T) {
	clf := &slowClassifier{
		delay: 5 * time.Millisecond,
		result: models.ClassificationResult{
			Category:   models.CategoryGeneralChat,
			Confidence: 0.9,
		},
	}
	b, _, _, store := newTestBot(t, clf, 2)

	// A burst well past the worker count queues instead of dropping.
	const burst = 20
	for i := 0; i < burst; i++ {
		b.onMessageCreate(b.session, messageEvent(fmt.Sprintf("m%d", i), "hello there"))
	}

	drain(t, b)

	assert.Equal(t, int32(burst), clf.calls.Load())
	assert.Len(t, store.saved, burst)
}

func TestBot_IgnoresBotsAndDMs(t *testing.T) {
	clf := &slowClassifier{result: models.ClassificationResult{
		Category:   models.CategoryGeneralChat,
		Confidence: 0.9,
	}}
	b, _, _, _ := newTestBot(t, clf, 1)

	fromBot := messageEvent("m1", "automated message")
	fromBot.Author.Bot = true
	b.onMessageCreate(b.session, fromBot)

	dm := messageEvent("m2", "psst")
	dm.GuildID = ""
	b.onMessageCreate(b.session, dm)

	drain(t, b)

	assert.Zero(t, clf.calls.Load())
}
