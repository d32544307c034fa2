package services

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/logger"
	"github.com/dhanushrs1/HDC-File/repository"
)

type fakeDeliveryBot struct {
	calls     []map[string]string
	rawErrs   map[string]error
	floodOnce map[string]int
	sent      []string
	nextMsgID int
}

func (b *fakeDeliveryBot) Raw(_ string, payload interface{}) ([]byte, error) {
	params := payload.(map[string]string)
	b.calls = append(b.calls, params)
	key := params["message_id"]
	if retryAfter, ok := b.floodOnce[key]; ok {
		delete(b.floodOnce, key)
		return nil, tele.FloodError{RetryAfter: retryAfter}
	}
	if err := b.rawErrs[key]; err != nil {
		return nil, err
	}
	b.nextMsgID++
	return []byte(`{"ok":true,"result":{"message_id":` + strconv.Itoa(b.nextMsgID) + `}}`), nil
}

func (b *fakeDeliveryBot) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if text, ok := what.(string); ok {
		b.sent = append(b.sent, text)
	}
	return &tele.Message{ID: 900, Chat: &tele.Chat{ID: 1}}, nil
}

// quietExpiryBot absorbs countdown edits from spawned watchers. The
// watcher behaviour itself is covered by the expiry tests.
type quietExpiryBot struct {
	mu    sync.Mutex
	edits int
}

func (b *quietExpiryBot) Edit(tele.Editable, interface{}, ...interface{}) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits++
	return &tele.Message{}, nil
}

func (b *quietExpiryBot) Delete(tele.Editable) error { return nil }

type fakeIndex struct {
	files map[int64]*repository.File
}

func (f *fakeIndex) ByID(_ context.Context, id int64) (*repository.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return file, nil
}

type fakeDownloadLog struct {
	logged [][2]int64
}

func (l *fakeDownloadLog) LogDownload(_ context.Context, fileID, userID int64) error {
	l.logged = append(l.logged, [2]int64{fileID, userID})
	return nil
}

func newDeliveryForTest(bot *fakeDeliveryBot, index *fakeIndex, dl *fakeDownloadLog, caption string, channelButton bool) *DeliveryService {
	log := logger.ForTests()
	expiry := NewExpiryService(&quietExpiryBot{}, 10*time.Minute, 24*time.Hour, "expired {hours}", "gone", log)
	// Spawned watchers bail out on their first sleep.
	expiry.sleep = func(context.Context, time.Duration) error { return context.Canceled }
	svc := NewDeliveryService(bot, index, dl, expiry, -1001234, "TestBot", caption, true, channelButton, log)
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}

func TestDeliverCopiesEveryFileAndLogsDownloads(t *testing.T) {
	t.Parallel()
	bot := &fakeDeliveryBot{}
	dl := &fakeDownloadLog{}
	svc := newDeliveryForTest(bot, &fakeIndex{}, dl, "", false)

	out, err := svc.Deliver(context.Background(), 42, []int{5, 6}, false)

	require.NoError(t, err)
	assert.Equal(t, DeliveryOutcome{Delivered: 2}, out)
	require.Len(t, bot.calls, 2)
	assert.Equal(t, "42", bot.calls[0]["chat_id"])
	assert.Equal(t, "-1001234", bot.calls[0]["from_chat_id"])
	assert.Equal(t, "5", bot.calls[0]["message_id"])
	assert.Equal(t, "true", bot.calls[0]["protect_content"])
	assert.NotContains(t, bot.calls[0], "caption", "no template, original caption stays")
	assert.Equal(t, [][2]int64{{5, 42}, {6, 42}}, dl.logged)
	require.Len(t, bot.sent, 2, "each copy gets a countdown notice")
	assert.Contains(t, bot.sent[0], "expire in")
}

func TestDeliverStampsConfiguredCaption(t *testing.T) {
	t.Parallel()
	bot := &fakeDeliveryBot{}
	index := &fakeIndex{files: map[int64]*repository.File{
		5: {ID: 5, FileName: "Movie <2024>.mkv", Caption: "old"},
	}}
	svc := newDeliveryForTest(bot, index, &fakeDownloadLog{}, "<b>{filename}</b> {previous_caption}", false)

	_, err := svc.Deliver(context.Background(), 42, []int{5}, false)

	require.NoError(t, err)
	require.Len(t, bot.calls, 1)
	assert.Equal(t, "<b>Movie &lt;2024&gt;.mkv</b> old", bot.calls[0]["caption"])
	assert.Equal(t, "HTML", bot.calls[0]["parse_mode"])
}

func TestDeliverAttachesShareButtonWhenEnabled(t *testing.T) {
	t.Parallel()
	bot := &fakeDeliveryBot{}
	svc := newDeliveryForTest(bot, &fakeIndex{}, &fakeDownloadLog{}, "", true)

	_, err := svc.Deliver(context.Background(), 42, []int{5}, false)

	require.NoError(t, err)
	require.Len(t, bot.calls, 1)
	var mk struct {
		InlineKeyboard [][]struct {
			Text string `json:"text"`
			URL  string `json:"url"`
		} `json:"inline_keyboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(bot.calls[0]["reply_markup"]), &mk))
	require.Len(t, mk.InlineKeyboard, 1)
	assert.Contains(t, mk.InlineKeyboard[0][0].URL, "https://t.me/share/url?url=")
}

func TestDeliverRetriesAfterFloodWait(t *testing.T) {
	t.Parallel()
	bot := &fakeDeliveryBot{floodOnce: map[string]int{"5": 3}}
	svc := newDeliveryForTest(bot, &fakeIndex{}, &fakeDownloadLog{}, "", false)

	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	out, err := svc.Deliver(context.Background(), 42, []int{5}, false)

	require.NoError(t, err)
	assert.Equal(t, 1, out.Delivered)
	assert.Len(t, bot.calls, 2, "copy is retried once after the wait")
	assert.Contains(t, slept, 3*time.Second)
}

func TestDeliverCountsMissingFiles(t *testing.T) {
	t.Parallel()
	bot := &fakeDeliveryBot{rawErrs: map[string]error{
		"5": tele.NewError(400, "Bad Request: message to copy not found"),
	}}
	svc := newDeliveryForTest(bot, &fakeIndex{}, &fakeDownloadLog{}, "", false)

	out, err := svc.Deliver(context.Background(), 42, []int{5, 6}, false)

	require.NoError(t, err)
	assert.Equal(t, DeliveryOutcome{Delivered: 1, Missing: 1}, out)
}

func TestDeliverStopsWhenBlocked(t *testing.T) {
	t.Parallel()
	bot := &fakeDeliveryBot{rawErrs: map[string]error{"5": tele.ErrBlockedByUser}}
	svc := newDeliveryForTest(bot, &fakeIndex{}, &fakeDownloadLog{}, "", false)

	out, err := svc.Deliver(context.Background(), 42, []int{5, 6}, false)

	require.NoError(t, err)
	assert.True(t, out.Stopped)
	assert.Zero(t, out.Delivered)
	assert.Len(t, bot.calls, 1, "no point continuing once blocked")
}
