package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/services"
)

// quotes rotate under the greeting, one per /start.
var quotes = []string{
	"The secret of getting ahead is getting started.",
	"All our dreams can come true, if we have the courage to pursue them.",
	"The best way to predict the future is to create it.",
	"Your limitation is only your imagination.",
	"Push yourself, because no one else is going to do it for you.",
}

const disclaimerText = `📜 <b>Disclaimer - HD Cinema Bot</b>

<b>Admin-Only Access:</b>
🔐 Only the admin can upload or manage files. Users cannot upload or share files.

<b>Content Responsibility:</b>
📁 This bot does not host or create any files. All content is sourced from the internet.
📎 The bot simply provides access links for convenience.

<b>No Piracy or Copyright Support:</b>
🚫 We do not encourage piracy. If any file violates copyright, the original source is responsible.

<b>Bot Source:</b>
🛠 This bot’s code is private. Contact the admin for purchase inquiries.

<b>Legal Use:</b>
📌 You are responsible for how you use the provided links/files.

<b>Contact Admin:</b> @FilmySpotSupport_bot`

type startDeliverer interface {
	Deliver(ctx context.Context, userID int64, msgIDs []int, finalPass bool) (services.DeliveryOutcome, error)
}

type downloadCounter interface {
	UserDownloadCount(ctx context.Context, userID int64) (int64, error)
}

// StartController owns /start with all its payloads plus the main-menu
// callbacks hanging off the welcome message.
type StartController struct {
	delivery     startDeliverer
	search       *SearchController
	analytics    downloadCounter
	codec        *deeplink.Codec
	startMessage string
	startPic     string
	isAdmin      func(userID int64) bool
	log          *zap.Logger
}

func NewStartController(
	delivery startDeliverer,
	search *SearchController,
	analytics downloadCounter,
	codec *deeplink.Codec,
	startMessage, startPic string,
	isAdmin func(userID int64) bool,
	log *zap.Logger,
) *StartController {
	return &StartController{
		delivery:     delivery,
		search:       search,
		analytics:    analytics,
		codec:        codec,
		startMessage: startMessage,
		startPic:     startPic,
		isAdmin:      isAdmin,
		log:          log.Named("start"),
	}
}

// Register wires /start behind the given middleware (the subscription
// gate) and the menu callbacks without it: someone reading the help
// page is not touching any files yet.
func (h *StartController) Register(mux botMux, gate ...tele.MiddlewareFunc) {
	mux.Handle("/start", h.onStart, gate...)
	mux.Handle(&markup.HelpBtn, h.onHelp)
	mux.Handle(&markup.MyStatsBtn, h.onMyStats)
	mux.Handle(&markup.StartMenuBtn, h.onMenuRebuild)
	mux.Handle(&markup.RequestContentBtn, h.onRequestInfo)
}

func (h *StartController) onStart(c tele.Context) error {
	defer tracer.Trace("startHandler")()
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return h.sendWelcome(c)
	}
	if query, ok := deeplink.CutSearchPayload(payload); ok {
		return h.search.SendResults(c, query)
	}
	ids, err := h.codec.Decode(payload)
	if err != nil {
		h.log.Warn("undecodable start payload",
			zap.String("payload", payload), zap.Int64("user_id", c.Sender().ID), zap.Error(err))
		return c.Send("<b>Error:</b> The link seems to be invalid or expired.")
	}
	return h.deliverFiles(c, ids)
}

func (h *StartController) deliverFiles(c tele.Context, ids []int) error {
	temp, err := c.Bot().Send(c.Chat(), "<b>Please wait, processing your request...</b>",
		&tele.SendOptions{ReplyTo: c.Message()})
	if err != nil {
		h.log.Debug("processing notice failed", zap.Error(err))
	}

	outcome, err := h.delivery.Deliver(context.Background(), c.Sender().ID, ids, false)
	if err != nil {
		return fmt.Errorf("delivering %d files: %w", len(ids), err)
	}
	if outcome.Stopped {
		return nil
	}

	if temp != nil {
		if outcome.Delivered == 0 {
			_, err := c.Bot().Edit(temp, "Something went wrong while fetching the files!")
			return err
		}
		if err := c.Bot().Delete(temp); err != nil {
			h.log.Debug("deleting processing notice failed", zap.Error(err))
		}
	}
	if outcome.Missing > 0 && outcome.Delivered > 0 {
		return c.Send(fmt.Sprintf("⚠️ %d file(s) from this link could not be retrieved.", outcome.Missing))
	}
	return nil
}

func (h *StartController) sendWelcome(c tele.Context) error {
	text := h.welcomeText(c.Sender())
	keyboard := markup.WelcomeMarkup(h.isAdmin(c.Sender().ID), true)
	if h.startPic != "" {
		return c.Reply(&tele.Photo{File: tele.FromURL(h.startPic), Caption: text}, keyboard)
	}
	return c.Reply(text, keyboard, tele.NoPreview)
}

// onMenuRebuild turns any menu page back into the greeting. Rebuilt
// menus carry no request button, only a fresh /start shows it.
func (h *StartController) onMenuRebuild(c tele.Context) error {
	defer tracer.Trace("startMenuHandler")()
	text := h.welcomeText(c.Sender())
	keyboard := markup.WelcomeMarkup(h.isAdmin(c.Sender().ID), false)

	var err error
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		err = c.EditCaption(text, keyboard)
	} else {
		err = c.Edit(text, keyboard, tele.NoPreview)
	}
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

func (h *StartController) welcomeText(sender *tele.User) string {
	return fmt.Sprintf("👋 Hello %s!\n\n%s\n\n<i>\"%s\"</i>",
		format.Mention(sender.ID, sender.FirstName),
		format.FillUserTemplate(h.startMessage, sender.ID, sender.FirstName, sender.LastName, sender.Username),
		quotes[rand.Intn(len(quotes))],
	)
}

func (h *StartController) onHelp(c tele.Context) error {
	defer tracer.Trace("helpInfoHandler")()
	return c.Edit(disclaimerText, markup.BackToMenuMarkup())
}

func (h *StartController) onMyStats(c tele.Context) error {
	defer tracer.Trace("myStatsHandler")()
	if err := c.Respond(&tele.CallbackResponse{Text: "Fetching your stats..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}
	sender := c.Sender()
	count, err := h.analytics.UserDownloadCount(context.Background(), sender.ID)
	if err != nil {
		return fmt.Errorf("counting downloads of %d: %w", sender.ID, err)
	}
	text := fmt.Sprintf(
		"📊 <b>Your Personal Stats</b>\n\nHello %s!\n\nYou have downloaded a total of <b>%d</b> files from me.\n\nKeep exploring!",
		format.Mention(sender.ID, sender.FirstName), count,
	)
	return c.Edit(text, markup.BackToMenuMarkup())
}

func (h *StartController) onRequestInfo(c tele.Context) error {
	defer tracer.Trace("requestInfoHandler")()
	return c.Edit(requestUsageText, markup.BackToMenuMarkup())
}
