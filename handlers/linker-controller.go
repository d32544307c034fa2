package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/repository"
)

const (
	linkerSingleUnique     = "linker-single"
	linkerBulkStartUnique  = "linker-bulk-start"
	linkerBulkDoneUnique   = "linker-bulk-done"
	linkerBulkCancelUnique = "linker-bulk-cancel"
)

type fileIndexer interface {
	Add(ctx context.Context, msg *tele.Message) (repository.IndexStatus, error)
}

// LinkerController stores admin uploads in the DB channel and mints
// deep links for them. Bulk mode collects a batch of uploads per admin
// before a single range link is generated.
type LinkerController struct {
	files         fileIndexer
	codec         *deeplink.Codec
	channelID     int64
	redirectURL   string
	channelButton bool
	log           *zap.Logger

	mu   sync.Mutex
	bulk map[int64][]int
}

func NewLinkerController(
	files fileIndexer,
	codec *deeplink.Codec,
	channelID int64,
	redirectURL string,
	channelButton bool,
	log *zap.Logger,
) *LinkerController {
	return &LinkerController{
		files:         files,
		codec:         codec,
		channelID:     channelID,
		redirectURL:   redirectURL,
		channelButton: channelButton,
		log:           log.Named("linker"),
		bulk:          make(map[int64][]int),
	}
}

func (h *LinkerController) Register(mux botMux, adminAuth tele.MiddlewareFunc) {
	mux.Use(adminAuth)
	mux.Handle("/genlink", h.onGenLink)
	mux.Handle(&tele.Btn{Unique: linkerSingleUnique}, h.onSingle)
	mux.Handle(&tele.Btn{Unique: linkerBulkStartUnique}, h.onBulkStart)
	mux.Handle(&tele.Btn{Unique: linkerBulkDoneUnique}, h.onBulkDone)
	mux.Handle(&tele.Btn{Unique: linkerBulkCancelUnique}, h.onBulkCancel)
}

func (h *LinkerController) onGenLink(c tele.Context) error {
	defer tracer.Trace("/genlink")()
	return c.Reply("🔗 <b>Link Generator</b>\n\nHow would you like to generate a link?",
		markup.InlineMarkup(
			markup.Row(markup.Data("📄 Single File", linkerSingleUnique)),
			markup.Row(markup.Data("🗂️ Bulk Mode", linkerBulkStartUnique)),
		))
}

func (h *LinkerController) onSingle(c tele.Context) error {
	defer tracer.Trace("linkerSingle")()
	return c.Edit("➡️ Please forward the media file you want to generate a link for.")
}

func (h *LinkerController) onBulkStart(c tele.Context) error {
	defer tracer.Trace("linkerBulkStart")()
	h.mu.Lock()
	h.bulk[c.Sender().ID] = []int{}
	h.mu.Unlock()
	return c.Edit(
		"🗂️ <b>You are now in Bulk Mode.</b>\n\n"+
			"Forward all the media you want to include in the batch. "+
			"I will reply to each file to confirm it's been added.\n\n"+
			"When you are finished, click the 'Done' button below.",
		markup.InlineMarkup(
			markup.Row(markup.Data("✅ Done & Generate Link", linkerBulkDoneUnique)),
			markup.Row(markup.Data("❌ Cancel", linkerBulkCancelUnique)),
		))
}

func (h *LinkerController) onBulkDone(c tele.Context) error {
	defer tracer.Trace("linkerBulkDone")()
	h.mu.Lock()
	batch, ok := h.bulk[c.Sender().ID]
	if ok {
		delete(h.bulk, c.Sender().ID)
	}
	h.mu.Unlock()

	if !ok || len(batch) == 0 {
		return c.Respond(&tele.CallbackResponse{
			Text:      "You haven't added any files to the bulk session yet!",
			ShowAlert: true,
		})
	}

	sort.Ints(batch)
	payload, err := h.codec.EncodeRange(batch[0], batch[len(batch)-1])
	if err != nil {
		return fmt.Errorf("encoding batch link: %w", err)
	}
	link := deeplink.RedirectLink(h.redirectURL, c.Bot().Me.Username, payload)

	return c.Edit(
		fmt.Sprintf("✅ <b>Batch Link Generated!</b>\n\nTotal files in batch: <code>%d</code>\n\nYour permanent link is ready:\n<code>%s</code>",
			len(batch), link),
		markup.ShareLinkMarkup(deeplink.ShareLink(link)),
		tele.NoPreview,
	)
}

func (h *LinkerController) onBulkCancel(c tele.Context) error {
	defer tracer.Trace("linkerBulkCancel")()
	h.mu.Lock()
	delete(h.bulk, c.Sender().ID)
	h.mu.Unlock()
	return c.Edit("❌ Bulk link generation has been cancelled.")
}

// HandleMedia takes any media an admin sends in private: in bulk mode
// the file joins the batch, otherwise it is turned into a single link
// right away.
func (h *LinkerController) HandleMedia(c tele.Context) error {
	defer tracer.Trace("linkerMediaHandler")()
	adminID := c.Sender().ID

	if h.inBulkMode(adminID) {
		copied, err := h.store(c.Message(), c.Bot())
		if err != nil {
			h.log.Error("bulk store failed", zap.Int64("admin_id", adminID), zap.Error(err))
			return c.Reply("❌ Something went wrong while saving this file.")
		}
		h.mu.Lock()
		h.bulk[adminID] = append(h.bulk[adminID], copied)
		h.mu.Unlock()
		return c.Reply("👍 Added to batch.")
	}

	reply, err := c.Bot().Send(c.Chat(), "<code>Processing...</code>", &tele.SendOptions{ReplyTo: c.Message()})
	if err != nil {
		return fmt.Errorf("sending processing notice: %w", err)
	}

	copied, err := h.store(c.Message(), c.Bot())
	if err != nil {
		h.log.Error("single store failed", zap.Int64("admin_id", adminID), zap.Error(err))
		_, err := c.Bot().Edit(reply, "❌ <b>Something went wrong!</b>\nCould not save the file.")
		return err
	}

	payload, err := h.codec.EncodeSingle(copied)
	if err != nil {
		return fmt.Errorf("encoding link for message %d: %w", copied, err)
	}
	link := deeplink.RedirectLink(h.redirectURL, c.Bot().Me.Username, payload)
	shareMarkup := markup.ShareLinkMarkup(deeplink.ShareLink(link))

	if _, err := c.Bot().Edit(reply,
		fmt.Sprintf("✅ <b>File Saved & Link Generated!</b>\n\nYour permanent link is ready:\n<code>%s</code>", link),
		shareMarkup, tele.NoPreview,
	); err != nil {
		return fmt.Errorf("publishing generated link: %w", err)
	}

	if h.channelButton {
		stored := tele.StoredMessage{MessageID: fmt.Sprint(copied), ChatID: h.channelID}
		if _, err := c.Bot().EditReplyMarkup(stored, shareMarkup); err != nil {
			h.log.Warn("channel share button edit failed", zap.Int("message_id", copied), zap.Error(err))
		}
	}
	return nil
}

// HandleChannelPost indexes media posted straight into the DB channel.
func (h *LinkerController) HandleChannelPost(c tele.Context) error {
	defer tracer.Trace("channelAutoIndex")()
	status, err := h.files.Add(context.Background(), c.Message())
	if err != nil {
		// Text posts and unsupported media are not index material.
		h.log.Debug("channel post not indexed", zap.Int("message_id", c.Message().ID), zap.Error(err))
		return nil
	}
	h.log.Info("auto-indexed channel post",
		zap.Int("message_id", c.Message().ID), zap.String("status", string(status)))
	return nil
}

func (h *LinkerController) inBulkMode(adminID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.bulk[adminID]
	return ok
}

// store copies the message into the DB channel and indexes it. The Bot
// API only returns the copy's id, so the index entry is built from the
// original media with the channel-side id swapped in.
func (h *LinkerController) store(msg *tele.Message, bot *tele.Bot) (int, error) {
	copied, err := bot.Copy(tele.ChatID(h.channelID), msg, tele.Silent)
	if err != nil {
		return 0, fmt.Errorf("copying into DB channel: %w", err)
	}

	indexed := *msg
	indexed.ID = copied.ID
	indexed.Unixtime = time.Now().Unix()
	if _, err := h.files.Add(context.Background(), &indexed); err != nil {
		return 0, fmt.Errorf("indexing message %d: %w", copied.ID, err)
	}
	return copied.ID, nil
}
