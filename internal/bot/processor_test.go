package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"triagebot/internal/issues"
	"triagebot/internal/models"
	"triagebot/internal/providers"
	"triagebot/internal/router"
)

// ----- Fakes -----

type fakeClassifier struct {
	result models.ClassificationResult
}

func (f fakeClassifier) Classify(_ context.Context, _ models.Message, _ providers.Provider) models.ClassificationResult {
	return f.result
}

type fakeNotifier struct {
	titles []string
	bodies []string
	err    error
}

func (f *fakeNotifier) Notify(title, body string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return f.err
}

type fakeTracker struct {
	requests []issues.Request
	err      error
}

func (f *fakeTracker) Type() issues.Type {
	return issues.TypeGitHub
}

func (f *fakeTracker) Create(_ context.Context, req issues.Request) (*issues.Issue, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &issues.Issue{Tracker: issues.TypeGitHub, ID: "17", URL: "https://github.com/acme/community/issues/17"}, nil
}

type fakeStore struct {
	saved []*models.ClassificationRecord
	seen  map[string]bool
	err   error
}

func (f *fakeStore) SaveClassification(_ context.Context, rec *models.ClassificationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeStore) Seen(_ context.Context, messageID string) (bool, error) {
	return f.seen[messageID], nil
}

func (f *fakeStore) RecentClassifications(_ context.Context, _ int) ([]*models.ClassificationRecord, error) {
	return f.saved, nil
}

func (f *fakeStore) Close() error {
	return nil
}

// ----- Helpers -----

func newFixture(result models.ClassificationResult, issuesEnabled bool) (*Processor, *fakeNotifier, *fakeTracker, *fakeStore) {
	notifier := &fakeNotifier{}
	tracker := &fakeTracker{}
	store := &fakeStore{seen: map[string]bool{}}

	p := NewProcessor(
		fakeClassifier{result: result},
		router.New(0.5, issuesEnabled),
		notifier,
		tracker,
		store,
		zap.NewNop(),
	)
	return p, notifier, tracker, store
}

func sampleMessage(text string) (models.Message, models.MessageMeta) {
	msg := models.Message{
		ID:        "m1",
		AuthorID:  "u1",
		ChannelID: "c1",
		GuildID:   "g1",
		Text:      text,
	}
	meta := models.MessageMeta{
		AuthorName:  "alice",
		ChannelName: "support",
		GuildName:   "Acme Community",
		MessageURL:  "https://discord.com/channels/g1/c1/m1",
	}
	return msg, meta
}

// ----- Tests -----

func TestProcess_BugReportNotifiesAndFilesIssue(t *testing.T) {
	p, notifier, tracker, store := newFixture(models.ClassificationResult{
		Category:   models.CategoryBugReport,
		Confidence: 0.9,
		Rationale:  "download failure",
	}, true)
	msg, meta := sampleMessage("my download keeps failing, please help")

	decision := p.Process(context.Background(), msg, meta, nil)

	assert.Equal(t, models.ActionCreateIssue, decision.Action)
	assert.Equal(t, []string{"bug", "needs-triage"}, decision.Labels)

	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "🔔 Bug Report", notifier.titles[0])
	assert.Contains(t, notifier.bodies[0], "alice: my download keeps failing")

	require.Len(t, tracker.requests, 1)
	assert.Equal(t, []string{"bug", "needs-triage"}, tracker.requests[0].Labels)

	require.Len(t, store.saved, 1)
	assert.Equal(t, models.ActionCreateIssue, store.saved[0].Action)
	assert.Equal(t, models.CategoryBugReport, store.saved[0].Category)
}

func TestProcess_GeneralChatHasNoSideEffects(t *testing.T) {
	p, notifier, tracker, store := newFixture(models.ClassificationResult{
		Category:   models.CategoryGeneralChat,
		Confidence: 0.95,
		Rationale:  "banter",
	}, true)
	msg, meta := sampleMessage("lol that's hilarious")

	decision := p.Process(context.Background(), msg, meta, nil)

	assert.Equal(t, models.ActionNone, decision.Action)
	assert.Empty(t, notifier.titles)
	assert.Empty(t, tracker.requests)

	require.Len(t, store.saved, 1, "every classification is audited")
	assert.Equal(t, models.ActionNone, store.saved[0].Action)
}

func TestProcess_LowConfidenceNotActioned(t *testing.T) {
	p, notifier, tracker, _ := newFixture(models.ClassificationResult{
		Category:   models.CategorySupportRequest,
		Confidence: 0.3,
	}, true)
	msg, meta := sampleMessage("hmm not sure this works")

	decision := p.Process(context.Background(), msg, meta, nil)

	assert.Equal(t, models.ActionNone, decision.Action)
	assert.Empty(t, notifier.titles)
	assert.Empty(t, tracker.requests)
}

func TestProcess_NotifierFailureDoesNotBlockIssue(t *testing.T) {
	p, notifier, tracker, store := newFixture(models.ClassificationResult{
		Category:   models.CategoryComplaint,
		Confidence: 0.8,
	}, true)
	notifier.err = errors.New("notification daemon unavailable")
	msg, meta := sampleMessage("this service is unacceptable")

	decision := p.Process(context.Background(), msg, meta, nil)

	assert.Equal(t, models.ActionCreateIssue, decision.Action)
	require.Len(t, tracker.requests, 1)
	require.Len(t, store.saved, 1)
}

func TestProcess_IssueFailureDoesNotChangeDecision(t *testing.T) {
	p, notifier, tracker, store := newFixture(models.ClassificationResult{
		Category:   models.CategorySupportRequest,
		Confidence: 0.7,
	}, true)
	tracker.err = errors.New("rate limited")
	msg, meta := sampleMessage("how do I migrate my account?")

	decision := p.Process(context.Background(), msg, meta, nil)

	assert.Equal(t, models.ActionCreateIssue, decision.Action)
	require.Len(t, notifier.titles, 1)
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.ActionCreateIssue, store.saved[0].Action)
}

func TestProcess_NotifyOnlyWhenIssuesDisabled(t *testing.T) {
	p, notifier, tracker, _ := newFixture(models.ClassificationResult{
		Category:   models.CategoryBugReport,
		Confidence: 0.9,
	}, false)
	msg, meta := sampleMessage("crash on startup")

	decision := p.Process(context.Background(), msg, meta, nil)

	assert.Equal(t, models.ActionNotify, decision.Action)
	require.Len(t, notifier.titles, 1)
	assert.Empty(t, tracker.requests)
}

func TestProcess_LongMessageTruncatedInNotification(t *testing.T) {
	p, notifier, _, _ := newFixture(models.ClassificationResult{
		Category:   models.CategoryComplaint,
		Confidence: 0.8,
	}, false)
	msg, meta := sampleMessage(strings.Repeat("a", 500))

	p.Process(context.Background(), msg, meta, nil)

	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "...")
	assert.Less(t, len(notifier.bodies[0]), 300)
}

func TestProcess_MultibyteMessageTruncatedOnRunes(t *testing.T) {
	p, notifier, _, _ := newFixture(models.ClassificationResult{
		Category:   models.CategoryComplaint,
		Confidence: 0.8,
	}, false)
	msg, meta := sampleMessage(strings.Repeat("ошибка при загрузке ", 30))

	p.Process(context.Background(), msg, meta, nil)

	require.Len(t, notifier.bodies, 1)
	assert.True(t, utf8.ValidString(notifier.bodies[0]))
	assert.True(t, strings.HasSuffix(notifier.bodies[0], "..."))
}
