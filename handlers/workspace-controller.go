package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/services"
)

const (
	wsMainUnique       = "ws-main"
	wsMenuSSUnique     = "ws-menu-ss"
	wsMenuClipUnique   = "ws-menu-clip"
	wsCleanupUnique    = "ws-cleanup"
	wsSSRandomUnique   = "ws-ss-random"
	wsSSManualUnique   = "ws-ss-manual"
	wsSSTakeUnique     = "ws-ss-take"
	wsClipRandomUnique = "ws-clip-random"
	wsClipManualUnique = "ws-clip-manual"
	wsClipTakeUnique   = "ws-clip-take"

	maxClipSeconds       = 60
	albumBatchSize       = 10
	albumBatchPause      = 5 * time.Second
	downloadEditInterval = 2 * time.Second
)

const staleSessionText = "This workspace session has expired. Please start a new one with /process."

type screenshotJob struct {
	count      int
	timestamps []string
}

type clipJob struct {
	start    string
	duration int
	random   bool
}

// WorkspaceController is the admin video workspace behind /process:
// send a video, then generate screenshot batches or clips from it.
// Jobs run in the background and report through a status message.
type WorkspaceController struct {
	workspace     *services.WorkspaceService
	media         *services.MediaService
	conversations *services.ConversationService
	log           *zap.Logger
}

func NewWorkspaceController(
	workspace *services.WorkspaceService,
	media *services.MediaService,
	conversations *services.ConversationService,
	log *zap.Logger,
) *WorkspaceController {
	return &WorkspaceController{
		workspace:     workspace,
		media:         media,
		conversations: conversations,
		log:           log.Named("workspace"),
	}
}

func (h *WorkspaceController) Register(mux botMux, adminAuth tele.MiddlewareFunc) {
	mux.Use(adminAuth)
	mux.Handle("/process", h.onProcess)
	mux.Handle(&tele.Btn{Unique: wsMainUnique}, h.onMainMenu)
	mux.Handle(&tele.Btn{Unique: wsMenuSSUnique}, h.onScreenshotMenu)
	mux.Handle(&tele.Btn{Unique: wsMenuClipUnique}, h.onClipMenu)
	mux.Handle(&tele.Btn{Unique: wsCleanupUnique}, h.onCleanup)
	mux.Handle(&tele.Btn{Unique: wsSSRandomUnique}, h.onScreenshotCounts)
	mux.Handle(&tele.Btn{Unique: wsSSManualUnique}, h.onScreenshotManual)
	mux.Handle(&tele.Btn{Unique: wsSSTakeUnique}, h.onScreenshotTake)
	mux.Handle(&tele.Btn{Unique: wsClipRandomUnique}, h.onClipDurations)
	mux.Handle(&tele.Btn{Unique: wsClipManualUnique}, h.onClipManual)
	mux.Handle(&tele.Btn{Unique: wsClipTakeUnique}, h.onClipTake)
}

func (h *WorkspaceController) onProcess(c tele.Context) error {
	defer tracer.Trace("/process")()
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	h.workspace.Close(c.Sender().ID)
	h.conversations.Expect(c.Sender().ID, services.ConversationState{Kind: services.ConversationAwaitingVideo}, 0)
	return c.Reply("➡️ Please send the video file you want to work on...")
}

// HandleVideo opens a session for the video an admin sends after
// /process. It reports false when no video is expected so the
// dispatcher can route the file to the link generator instead.
func (h *WorkspaceController) HandleVideo(c tele.Context) (bool, error) {
	state, ok := h.conversations.Peek(c.Sender().ID)
	if !ok || state.Kind != services.ConversationAwaitingVideo {
		return false, nil
	}
	defer tracer.Trace("workspaceVideo")()
	h.conversations.Clear(c.Sender().ID)

	msg := c.Message()
	session := services.WorkspaceSession{MessageID: msg.ID}
	switch {
	case msg.Video != nil:
		session.FileID = msg.Video.FileID
		session.FileName = msg.Video.FileName
		session.FileSize = msg.Video.FileSize
		session.Duration = msg.Video.Duration
	case msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "video/"):
		session.FileID = msg.Document.FileID
		session.FileName = msg.Document.FileName
		session.FileSize = msg.Document.FileSize
	default:
		return true, c.Reply("This is not a valid video file.")
	}
	if session.FileName == "" {
		session.FileName = fmt.Sprintf("File_%d", msg.ID)
	}

	h.workspace.Open(c.Sender().ID, session)
	return true, c.Reply(sessionInfoText(session), mainWorkspaceMarkup(msg.ID))
}

// HandleText consumes timestamp or clip-detail replies. It reports
// false when the admin has no workspace input pending.
func (h *WorkspaceController) HandleText(c tele.Context) (bool, error) {
	state, ok := h.conversations.Peek(c.Sender().ID)
	if !ok {
		return false, nil
	}

	switch state.Kind {
	case services.ConversationAwaitingClipDetails:
		defer tracer.Trace("workspaceClipDetails")()
		h.conversations.Clear(c.Sender().ID)

		fields := strings.SplitN(strings.TrimSpace(c.Text()), " ", 2)
		if len(fields) != 2 {
			return true, c.Reply("<b>Invalid format.</b> Reply with <code>start_time duration</code> (e.g., <code>00:01:30 15</code>)")
		}
		duration, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || duration < 1 {
			return true, c.Reply("<b>Invalid format.</b> Reply with <code>start_time duration</code> (e.g., <code>00:01:30 15</code>)")
		}
		if duration > maxClipSeconds {
			return true, c.Reply("Maximum clip duration is 60 seconds. Please try again.")
		}
		if err := c.Delete(); err != nil {
			h.log.Debug("input delete failed", zap.Error(err))
		}
		go h.runJob(c.Bot(), c.Sender().ID, nil, &clipJob{start: fields[0], duration: duration})
		return true, nil

	case services.ConversationAwaitingScreenshotTimes:
		defer tracer.Trace("workspaceTimestamps")()
		h.conversations.Clear(c.Sender().ID)

		stamps := strings.Split(c.Text(), ",")
		for i := range stamps {
			stamps[i] = strings.TrimSpace(stamps[i])
		}
		if err := c.Delete(); err != nil {
			h.log.Debug("input delete failed", zap.Error(err))
		}
		go h.runJob(c.Bot(), c.Sender().ID, &screenshotJob{timestamps: stamps}, nil)
		return true, nil
	}
	return false, nil
}

// activeSession validates the callback against the admin's session and
// refreshes its idle timer.
func (h *WorkspaceController) activeSession(c tele.Context) (services.WorkspaceSession, bool) {
	stale := func() (services.WorkspaceSession, bool) {
		if err := c.Respond(&tele.CallbackResponse{Text: staleSessionText, ShowAlert: true}); err != nil {
			h.log.Debug("callback respond failed", zap.Error(err))
		}
		return services.WorkspaceSession{}, false
	}

	args := c.Args()
	if len(args) < 1 {
		return stale()
	}
	msgID, err := strconv.Atoi(args[0])
	if err != nil {
		return stale()
	}
	session, ok := h.workspace.Get(c.Sender().ID)
	if !ok || session.MessageID != msgID {
		return stale()
	}
	h.workspace.Touch(c.Sender().ID)
	return session, true
}

func (h *WorkspaceController) onMainMenu(c tele.Context) error {
	defer tracer.Trace("workspaceMain")()
	session, ok := h.activeSession(c)
	if !ok {
		return nil
	}
	return c.Edit(sessionInfoText(session), mainWorkspaceMarkup(session.MessageID))
}

func (h *WorkspaceController) onScreenshotMenu(c tele.Context) error {
	defer tracer.Trace("workspaceScreenshotMenu")()
	session, ok := h.activeSession(c)
	if !ok {
		return nil
	}
	id := strconv.Itoa(session.MessageID)
	return c.Edit("<b>📸 Screenshot Options</b>", markup.InlineMarkup(
		markup.Row(markup.Data("🎲 Auto (Random)", wsSSRandomUnique, id)),
		markup.Row(markup.Data("🕓 Manual (Timestamps)", wsSSManualUnique, id)),
		markup.Row(markup.Data("⬅️ Back", wsMainUnique, id)),
	))
}

func (h *WorkspaceController) onClipMenu(c tele.Context) error {
	defer tracer.Trace("workspaceClipMenu")()
	session, ok := h.activeSession(c)
	if !ok {
		return nil
	}
	id := strconv.Itoa(session.MessageID)
	return c.Edit("<b>✂️ Clip Generation Options</b>", markup.InlineMarkup(
		markup.Row(markup.Data("🎲 Auto (Random)", wsClipRandomUnique, id)),
		markup.Row(markup.Data("🕓 Manual (Timestamp)", wsClipManualUnique, id)),
		markup.Row(markup.Data("⬅️ Back", wsMainUnique, id)),
	))
}

func (h *WorkspaceController) onCleanup(c tele.Context) error {
	defer tracer.Trace("workspaceCleanup")()
	if _, ok := h.activeSession(c); !ok {
		return nil
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Closing session..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}
	h.workspace.Close(c.Sender().ID)
	return c.Edit("🗑️ <b>Workspace Closed</b>\nAll temporary files have been removed.")
}

func (h *WorkspaceController) onScreenshotCounts(c tele.Context) error {
	defer tracer.Trace("workspaceScreenshotCounts")()
	session, ok := h.activeSession(c)
	if !ok {
		return nil
	}
	id := strconv.Itoa(session.MessageID)
	return c.Edit("How many <b>random</b> screenshots would you like?", markup.InlineMarkup(
		markup.Row(
			markup.Data("4 🖼️", wsSSTakeUnique, id, "4"),
			markup.Data("8 🖼️", wsSSTakeUnique, id, "8"),
		),
		markup.Row(
			markup.Data("12 🖼️", wsSSTakeUnique, id, "12"),
			markup.Data("16 🖼️", wsSSTakeUnique, id, "16"),
		),
		markup.Row(markup.Data("⬅️ Back", wsMenuSSUnique, id)),
	))
}

func (h *WorkspaceController) onScreenshotManual(c tele.Context) error {
	defer tracer.Trace("workspaceScreenshotManual")()
	if _, ok := h.activeSession(c); !ok {
		return nil
	}
	h.conversations.Expect(c.Sender().ID, services.ConversationState{Kind: services.ConversationAwaitingScreenshotTimes}, 0)
	return c.Edit("📝 <b>Send Timestamps</b>\n\nReply with timestamps separated by commas.\n<b>Example:</b> <code>00:01:30, 00:45:10</code>")
}

func (h *WorkspaceController) onScreenshotTake(c tele.Context) error {
	defer tracer.Trace("workspaceScreenshotTake")()
	if _, ok := h.activeSession(c); !ok {
		return nil
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 1 {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	if err := c.Respond(&tele.CallbackResponse{
		Text: fmt.Sprintf("✅ Task accepted! Generating %d screenshots...", count),
	}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}
	if err := c.Delete(); err != nil {
		h.log.Debug("menu delete failed", zap.Error(err))
	}
	go h.runJob(c.Bot(), c.Sender().ID, &screenshotJob{count: count}, nil)
	return nil
}

func (h *WorkspaceController) onClipDurations(c tele.Context) error {
	defer tracer.Trace("workspaceClipDurations")()
	session, ok := h.activeSession(c)
	if !ok {
		return nil
	}
	id := strconv.Itoa(session.MessageID)
	return c.Edit("Select a <b>random</b> clip duration:", markup.InlineMarkup(
		markup.Row(
			markup.Data("15s", wsClipTakeUnique, id, "15"),
			markup.Data("30s", wsClipTakeUnique, id, "30"),
		),
		markup.Row(
			markup.Data("45s", wsClipTakeUnique, id, "45"),
			markup.Data("60s", wsClipTakeUnique, id, "60"),
		),
		markup.Row(markup.Data("⬅️ Back", wsMenuClipUnique, id)),
	))
}

func (h *WorkspaceController) onClipManual(c tele.Context) error {
	defer tracer.Trace("workspaceClipManual")()
	if _, ok := h.activeSession(c); !ok {
		return nil
	}
	h.conversations.Expect(c.Sender().ID, services.ConversationState{Kind: services.ConversationAwaitingClipDetails}, 0)
	return c.Edit("📝 <b>Send Clip Details</b>\n\nReply like: <code>00:01:30 20</code> to clip 20s from 1m30s.\n(Max duration: 60s)")
}

func (h *WorkspaceController) onClipTake(c tele.Context) error {
	defer tracer.Trace("workspaceClipTake")()
	if _, ok := h.activeSession(c); !ok {
		return nil
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	duration, err := strconv.Atoi(args[1])
	if err != nil || duration < 1 || duration > maxClipSeconds {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	if err := c.Respond(&tele.CallbackResponse{
		Text: fmt.Sprintf("✅ Task accepted! Generating a random %ds clip...", duration),
	}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}
	if err := c.Delete(); err != nil {
		h.log.Debug("menu delete failed", zap.Error(err))
	}
	go h.runJob(c.Bot(), c.Sender().ID, nil, &clipJob{duration: duration, random: true})
	return nil
}

// runJob downloads the session video if needed, produces the requested
// media and uploads it in albums. It runs detached from the handler.
func (h *WorkspaceController) runJob(bot *tele.Bot, adminID int64, screenshots *screenshotJob, clip *clipJob) {
	defer tracer.Trace("workspaceJob")()
	recipient := &tele.User{ID: adminID}

	session, ok := h.workspace.Get(adminID)
	if !ok {
		h.send(bot, recipient, "❌ Error: Your workspace session was not found. It might have timed out.")
		return
	}

	var status *tele.Message
	videoPath := session.FilePath
	if videoPath == "" || !fileExists(videoPath) {
		if status = h.send(bot, recipient, "📥 <b>Starting download...</b>"); status == nil {
			return
		}
		path, err := h.download(bot, status, session)
		if err != nil {
			h.fail(bot, recipient, status, err)
			return
		}
		videoPath = path
		h.workspace.SetFilePath(adminID, path)
	} else {
		if status = h.send(bot, recipient, "<b>Using cached video from current session...</b>"); status == nil {
			return
		}
		h.workspace.Touch(adminID)
	}

	ctx := context.Background()
	h.edit(bot, status, "<code>Processing video... This may take a moment.</code>")
	total, err := h.media.ProbeDuration(ctx, videoPath)
	if err != nil {
		h.fail(bot, recipient, status, err)
		return
	}
	if total <= 0 {
		h.fail(bot, recipient, status, errors.New("could not read video properties (duration is zero)"))
		return
	}

	var album tele.Album
	var artifacts []string
	defer func() {
		for _, path := range artifacts {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				h.log.Warn("artifact cleanup failed", zap.String("path", path), zap.Error(err))
			}
		}
	}()

	if screenshots != nil {
		offsets, err := screenshotOffsets(screenshots, total)
		if err != nil {
			h.fail(bot, recipient, status, err)
			return
		}
		for i, at := range offsets {
			h.edit(bot, status, fmt.Sprintf("<code>Generating screenshot %d of %d...</code>", i+1, len(offsets)))
			outPath := h.workspace.ScreenshotPath(i+1, session.MessageID)
			if err := h.media.Screenshot(ctx, videoPath, at, outPath); err != nil {
				h.fail(bot, recipient, status, err)
				return
			}
			artifacts = append(artifacts, outPath)
			album = append(album, &tele.Photo{File: tele.FromDisk(outPath)})
		}
	}

	if clip != nil {
		length := time.Duration(clip.duration) * time.Second
		start, err := clipStart(clip, total, length)
		if err != nil {
			h.fail(bot, recipient, status, err)
			return
		}
		h.edit(bot, status, fmt.Sprintf("<code>Generating %ds clip from %s...</code>", clip.duration, format.ReadableTime(start)))
		outPath := h.workspace.ClipPath()
		if err := h.media.Clip(ctx, videoPath, start, length, outPath); err != nil {
			h.fail(bot, recipient, status, err)
			return
		}
		artifacts = append(artifacts, outPath)
		album = append(album, &tele.Video{
			File:    tele.FromDisk(outPath),
			Caption: fmt.Sprintf("Clip from %s (%ds)", format.ReadableTime(start), clip.duration),
		})
	}

	if len(album) == 0 {
		h.fail(bot, recipient, status, errors.New("failed to generate any media"))
		return
	}

	batches := (len(album) + albumBatchSize - 1) / albumBatchSize
	for i := 0; i < len(album); i += albumBatchSize {
		end := i + albumBatchSize
		if end > len(album) {
			end = len(album)
		}
		h.edit(bot, status, fmt.Sprintf("<code>Uploading batch %d of %d...</code>", i/albumBatchSize+1, batches))
		if _, err := bot.SendAlbum(recipient, album[i:end]); err != nil {
			h.fail(bot, recipient, status, fmt.Errorf("uploading media: %w", err))
			return
		}
		if end < len(album) {
			time.Sleep(albumBatchPause)
		}
	}

	if err := bot.Delete(status); err != nil {
		h.log.Debug("status delete failed", zap.Error(err))
	}

	id := strconv.Itoa(session.MessageID)
	h.send(bot, recipient,
		"✅ <b>Task Complete!</b>\n\n🎬 Ready for another operation or close the session.",
		markup.InlineMarkup(
			markup.Row(markup.Data("⬅️ Return to Menu", wsMainUnique, id)),
			markup.Row(markup.Data("🗑️ Close Session", wsCleanupUnique, id)),
		))
}

func (h *WorkspaceController) download(bot *tele.Bot, status *tele.Message, session services.WorkspaceSession) (string, error) {
	reader, err := bot.File(&tele.File{FileID: session.FileID})
	if err != nil {
		return "", fmt.Errorf("fetching video: %w", err)
	}
	defer reader.Close()

	path := h.workspace.DownloadPath(session.MessageID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	progress := &downloadProgress{
		bot:     bot,
		status:  status,
		total:   session.FileSize,
		started: time.Now(),
		log:     h.log,
	}
	if _, err := io.Copy(out, io.TeeReader(reader, progress)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("downloading video: %w", err)
	}
	return path, nil
}

func (h *WorkspaceController) send(bot *tele.Bot, to tele.Recipient, text string, opts ...interface{}) *tele.Message {
	msg, err := bot.Send(to, text, opts...)
	if err != nil {
		h.log.Warn("workspace send failed", zap.Error(err))
		return nil
	}
	return msg
}

func (h *WorkspaceController) edit(bot *tele.Bot, status *tele.Message, text string) {
	if status == nil {
		return
	}
	if _, err := bot.Edit(status, text); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		h.log.Debug("status edit failed", zap.Error(err))
	}
}

func (h *WorkspaceController) fail(bot *tele.Bot, to tele.Recipient, status *tele.Message, err error) {
	h.log.Warn("workspace job failed", zap.Error(err))
	text := fmt.Sprintf("❌ <b>An error occurred:</b>\n<code>%s</code>", html.EscapeString(err.Error()))
	if status != nil {
		if _, eerr := bot.Edit(status, text); eerr == nil {
			return
		}
	}
	if _, serr := bot.Send(to, text); serr != nil {
		h.log.Warn("error notice failed", zap.Error(serr))
	}
}

func sessionInfoText(session services.WorkspaceSession) string {
	return fmt.Sprintf(
		"🎬 <b>Workspace Initialized</b>\n\n📁 <b>File:</b> <code>%s</code>\n📦 <b>Size:</b> <code>%s</code> | 🕒 <b>Duration:</b> <code>%s</code>\n\n📌 Select a task below to get started ⬇️",
		html.EscapeString(session.FileName),
		format.Bytes(session.FileSize),
		format.ReadableTime(time.Duration(session.Duration)*time.Second),
	)
}

func mainWorkspaceMarkup(msgID int) *tele.ReplyMarkup {
	id := strconv.Itoa(msgID)
	return markup.InlineMarkup(
		markup.Row(
			markup.Data("📸 Screenshots", wsMenuSSUnique, id),
			markup.Data("✂️ Clip", wsMenuClipUnique, id),
		),
		markup.Row(markup.Data("🗑️ Close Session", wsCleanupUnique, id)),
	)
}

// screenshotOffsets picks the capture points: the admin's timestamps
// clamped to the video, or count random offsets in ascending order.
func screenshotOffsets(job *screenshotJob, total time.Duration) ([]time.Duration, error) {
	if len(job.timestamps) > 0 {
		var offsets []time.Duration
		for _, stamp := range job.timestamps {
			at, err := format.ParseTimestamp(stamp)
			if err != nil {
				return nil, err
			}
			if at >= 0 && at < total {
				offsets = append(offsets, at)
			}
		}
		if len(offsets) == 0 {
			return nil, errors.New("no timestamps fall within the video duration")
		}
		return offsets, nil
	}

	if job.count < 1 {
		return nil, errors.New("no screenshots requested")
	}
	offsets := make([]time.Duration, job.count)
	for i := range offsets {
		offsets[i] = time.Duration(rand.Int63n(int64(total)))
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}

func clipStart(job *clipJob, total, length time.Duration) (time.Duration, error) {
	if !job.random {
		return format.ParseTimestamp(job.start)
	}
	maxStart := total - length
	if maxStart <= 0 {
		return 0, nil
	}
	return time.Duration(rand.Int63n(int64(maxStart))), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// downloadProgress narrates a download through edits of the status
// message, throttled so Telegram's edit limits stay out of reach.
type downloadProgress struct {
	bot      *tele.Bot
	status   *tele.Message
	total    int64
	written  int64
	started  time.Time
	lastEdit time.Time
	log      *zap.Logger
}

func (p *downloadProgress) Write(chunk []byte) (int, error) {
	p.written += int64(len(chunk))
	if time.Since(p.lastEdit) < downloadEditInterval {
		return len(chunk), nil
	}
	p.lastEdit = time.Now()
	if _, err := p.bot.Edit(p.status, p.text()); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		p.log.Debug("progress edit failed", zap.Error(err))
	}
	return len(chunk), nil
}

func (p *downloadProgress) text() string {
	elapsed := time.Since(p.started).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(p.written) / elapsed
	}
	var percent float64
	var eta time.Duration
	if p.total > 0 {
		percent = float64(p.written) * 100 / float64(p.total)
		if speed > 0 {
			eta = time.Duration(float64(p.total-p.written) / speed * float64(time.Second))
		}
	}
	return fmt.Sprintf(
		"<b>Downloading Video...</b>\n\n<b>Progress:</b> %.1f%%\n<b>Speed:</b> %s/s\n<b>Downloaded:</b> %s / %s\n<b>ETA:</b> %s",
		percent, format.Bytes(int64(speed)), format.Bytes(p.written), format.Bytes(p.total),
		format.ReadableTime(eta),
	)
}
