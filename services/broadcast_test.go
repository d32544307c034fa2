package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/logger"
)

type fakeAudience struct {
	ids     []int64
	deleted []int64
}

func (a *fakeAudience) ActiveIDs(context.Context) ([]int64, error) { return a.ids, nil }

func (a *fakeAudience) Delete(_ context.Context, userID int64) error {
	a.deleted = append(a.deleted, userID)
	return nil
}

type fakeBroadcastBot struct {
	copyErrs  map[int64]error
	floodOnce map[int64]int
	copies    []int64
	edits     []string
}

func (b *fakeBroadcastBot) Copy(to tele.Recipient, _ tele.Editable, _ ...interface{}) (*tele.Message, error) {
	userID := int64(to.(tele.ChatID))
	b.copies = append(b.copies, userID)
	if retryAfter, ok := b.floodOnce[userID]; ok {
		delete(b.floodOnce, userID)
		return nil, tele.FloodError{RetryAfter: retryAfter}
	}
	return &tele.Message{}, b.copyErrs[userID]
}

func (b *fakeBroadcastBot) Edit(_ tele.Editable, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if text, ok := what.(string); ok {
		b.edits = append(b.edits, text)
	}
	return &tele.Message{}, nil
}

func TestBroadcastRunTalliesOutcomes(t *testing.T) {
	t.Parallel()
	audience := &fakeAudience{ids: []int64{1, 2, 3, 4, 5}}
	bot := &fakeBroadcastBot{copyErrs: map[int64]error{
		2: tele.ErrBlockedByUser,
		3: tele.ErrUserIsDeactivated,
		4: errors.New("peer id invalid"),
	}}
	svc := NewBroadcastService(bot, audience, logger.ForTests())

	report, err := svc.Run(context.Background(), &tele.Message{}, &tele.Message{})

	require.NoError(t, err)
	assert.Equal(t, BroadcastReport{Total: 5, Successful: 2, Blocked: 1, Deleted: 1, Failed: 1}, report)
	assert.ElementsMatch(t, []int64{2, 3}, audience.deleted, "blocked and deactivated users get pruned")
}

func TestBroadcastRunRetriesAfterFloodWait(t *testing.T) {
	t.Parallel()
	audience := &fakeAudience{ids: []int64{7}}
	bot := &fakeBroadcastBot{floodOnce: map[int64]int{7: 2}}
	svc := NewBroadcastService(bot, audience, logger.ForTests())

	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	report, err := svc.Run(context.Background(), &tele.Message{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, []int64{7, 7}, bot.copies, "delivery is retried once after the wait")
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestBroadcastRunStopsWhenCancelled(t *testing.T) {
	t.Parallel()
	audience := &fakeAudience{ids: []int64{1, 2, 3}}
	bot := &fakeBroadcastBot{}
	svc := NewBroadcastService(bot, audience, logger.ForTests())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.Run(ctx, &tele.Message{}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Total)
	assert.Empty(t, bot.copies)
}

func TestBroadcastReportText(t *testing.T) {
	t.Parallel()
	report := BroadcastReport{Total: 10, Successful: 7, Blocked: 1, Deleted: 1, Failed: 1}
	text := report.Text()
	assert.Contains(t, text, "<b><u>Broadcast Completed</u></b>")
	assert.Contains(t, text, "<b>Total Users:</b> <code>10</code>")
	assert.Contains(t, text, "<b>✅ Successful:</b> <code>7</code>")
	assert.Contains(t, text, "<b>❌ Unsuccessful:</b> <code>1</code>")
}
