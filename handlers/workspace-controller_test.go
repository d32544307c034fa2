package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/logger"
	"github.com/dhanushrs1/HDC-File/services"
)

func newWorkspaceFixture(t *testing.T) (*WorkspaceController, *services.ConversationService, *services.WorkspaceService) {
	t.Helper()
	log := logger.ForTests()
	conversations := services.NewConversationService()
	workspace := services.NewWorkspaceService(t.TempDir(), time.Minute, log)
	media := services.NewMediaService("ffmpeg", "ffprobe", "", log)
	return NewWorkspaceController(workspace, media, conversations, log), conversations, workspace
}

func TestScreenshotOffsetsManual(t *testing.T) {
	job := &screenshotJob{timestamps: []string{"00:10", "1:00", "10:00"}}

	offsets, err := screenshotOffsets(job, 2*time.Minute)
	require.NoError(t, err)
	// The out-of-range 10:00 stamp is dropped.
	assert.Equal(t, []time.Duration{10 * time.Second, time.Minute}, offsets)

	_, err = screenshotOffsets(&screenshotJob{timestamps: []string{"59:59"}}, time.Minute)
	assert.Error(t, err, "all stamps out of range leaves nothing to capture")

	_, err = screenshotOffsets(&screenshotJob{timestamps: []string{"abc"}}, time.Minute)
	assert.Error(t, err)
}

func TestScreenshotOffsetsRandom(t *testing.T) {
	job := &screenshotJob{count: 5}
	total := 90 * time.Second

	offsets, err := screenshotOffsets(job, total)
	require.NoError(t, err)
	require.Len(t, offsets, 5)
	for i, at := range offsets {
		assert.GreaterOrEqual(t, at, time.Duration(0))
		assert.Less(t, at, total)
		if i > 0 {
			assert.GreaterOrEqual(t, at, offsets[i-1], "random offsets come out sorted")
		}
	}

	_, err = screenshotOffsets(&screenshotJob{}, total)
	assert.Error(t, err)
}

func TestClipStart(t *testing.T) {
	at, err := clipStart(&clipJob{start: "01:30"}, time.Hour, 15*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, at)

	_, err = clipStart(&clipJob{start: "nonsense"}, time.Hour, 15*time.Second)
	assert.Error(t, err)

	// A clip longer than the video starts at zero.
	at, err = clipStart(&clipJob{random: true}, 30*time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), at)

	at, err = clipStart(&clipJob{random: true}, 5*time.Minute, 30*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, at, time.Duration(0))
	assert.Less(t, at, 5*time.Minute-30*time.Second)
}

func TestSessionInfoText(t *testing.T) {
	text := sessionInfoText(services.WorkspaceSession{
		FileName: "Movie <HD>.mkv",
		FileSize: 1536,
		Duration: 3700,
	})

	assert.Contains(t, text, "Movie &lt;HD&gt;.mkv")
	assert.Contains(t, text, "1.5 KiB")
	assert.Contains(t, text, "1h 1m 40s")
}

func TestDownloadProgressText(t *testing.T) {
	p := &downloadProgress{
		total:   100 * 1024 * 1024,
		written: 25 * 1024 * 1024,
		started: time.Now().Add(-10 * time.Second),
	}

	text := p.text()
	assert.Contains(t, text, "25.0%")
	assert.Contains(t, text, "25.0 MiB / 100.0 MiB")
}

func TestWorkspaceHandleVideoOnlyWhenExpected(t *testing.T) {
	h, conversations, workspace := newWorkspaceFixture(t)
	bot, transport := newTestBot(t)

	video := privateMedia(1, func(m *tele.Message) {
		m.Video = &tele.Video{File: tele.File{FileID: "vid"}, FileName: "movie.mp4", FileSize: 2048, Duration: 90}
	})

	handled, err := h.HandleVideo(bot.NewContext(video))
	require.NoError(t, err)
	assert.False(t, handled, "no pending /process means the linker gets the file")

	conversations.Expect(1, services.ConversationState{Kind: services.ConversationAwaitingVideo}, 0)
	handled, err = h.HandleVideo(bot.NewContext(video))
	require.NoError(t, err)
	assert.True(t, handled)

	session, ok := workspace.Get(1)
	require.True(t, ok)
	assert.Equal(t, "movie.mp4", session.FileName)
	assert.Equal(t, "vid", session.FileID)

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "Workspace Initialized")

	_, ok = conversations.Peek(1)
	assert.False(t, ok, "the video expectation is consumed")
}

func TestWorkspaceHandleVideoRejectsNonVideo(t *testing.T) {
	h, conversations, workspace := newWorkspaceFixture(t)
	bot, transport := newTestBot(t)

	conversations.Expect(1, services.ConversationState{Kind: services.ConversationAwaitingVideo}, 0)
	photo := privateMedia(1, func(m *tele.Message) {
		m.Photo = &tele.Photo{File: tele.File{FileID: "pic"}}
	})

	handled, err := h.HandleVideo(bot.NewContext(photo))
	require.NoError(t, err)
	assert.True(t, handled)

	_, ok := workspace.Get(1)
	assert.False(t, ok, "no session opens for non-video media")
	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "not a valid video file")
}

func TestWorkspaceHandleVideoAcceptsVideoDocuments(t *testing.T) {
	h, conversations, workspace := newWorkspaceFixture(t)
	bot, _ := newTestBot(t)

	conversations.Expect(1, services.ConversationState{Kind: services.ConversationAwaitingVideo}, 0)
	doc := privateMedia(1, func(m *tele.Message) {
		m.Document = &tele.Document{File: tele.File{FileID: "doc"}, MIME: "video/x-matroska", FileName: "movie.mkv"}
	})

	handled, err := h.HandleVideo(bot.NewContext(doc))
	require.NoError(t, err)
	assert.True(t, handled)

	session, ok := workspace.Get(1)
	require.True(t, ok)
	assert.Equal(t, "movie.mkv", session.FileName)
}

func TestWorkspaceHandleTextClipValidation(t *testing.T) {
	h, conversations, _ := newWorkspaceFixture(t)
	bot, transport := newTestBot(t)

	handled, err := h.HandleText(bot.NewContext(privateText(1, "00:01:30 15")))
	require.NoError(t, err)
	assert.False(t, handled, "without a pending prompt the text belongs to someone else")

	badInputs := []string{"justonefield", "00:01:30 zero", "00:01:30 0"}
	for _, input := range badInputs {
		conversations.Expect(1, services.ConversationState{Kind: services.ConversationAwaitingClipDetails}, 0)
		handled, err = h.HandleText(bot.NewContext(privateText(1, input)))
		require.NoError(t, err)
		assert.True(t, handled, "input %q", input)
	}

	conversations.Expect(1, services.ConversationState{Kind: services.ConversationAwaitingClipDetails}, 0)
	handled, err = h.HandleText(bot.NewContext(privateText(1, "00:01:30 90")))
	require.NoError(t, err)
	assert.True(t, handled)

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, len(badInputs)+1)
	assert.Contains(t, sent[0].Params["text"], "Invalid format")
	assert.Contains(t, sent[len(badInputs)].Params["text"], "Maximum clip duration")
}
