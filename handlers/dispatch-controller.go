package handlers

import (
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// chatFallbackText is what anyone who tries to small-talk the bot gets back.
const chatFallbackText = "👋 Hello! I am the HD Cinema File Bot.\n\n" +
	"I am not designed for chatting. I can only provide files through special links " +
	"or respond to commands like /start and /request.\n\n" +
	"If you need help, please use the buttons from the /start command menu."

type videoWorkspace interface {
	HandleVideo(c tele.Context) (bool, error)
	HandleText(c tele.Context) (bool, error)
}

type contentRequests interface {
	HandleText(c tele.Context) (bool, error)
}

type fileSearch interface {
	HandleQuery(c tele.Context) error
}

type fileLinker interface {
	HandleMedia(c tele.Context) error
	HandleChannelPost(c tele.Context) error
}

// MessageDispatcher owns the catch-all endpoints (plain text, media,
// channel posts) and routes each update to the controller whose pending
// conversation state claims it. Order matters: workspace and request
// replies are short-lived states and get first refusal, search takes
// whatever text is left over.
type MessageDispatcher struct {
	workspace videoWorkspace
	request   contentRequests
	search    fileSearch
	linker    fileLinker
	isAdmin   func(int64) bool
	channelID int64
	log       *zap.Logger
}

func NewMessageDispatcher(
	workspace videoWorkspace,
	request contentRequests,
	search fileSearch,
	linker fileLinker,
	isAdmin func(int64) bool,
	channelID int64,
	log *zap.Logger,
) *MessageDispatcher {
	return &MessageDispatcher{
		workspace: workspace,
		request:   request,
		search:    search,
		linker:    linker,
		isAdmin:   isAdmin,
		channelID: channelID,
		log:       log.Named("dispatch"),
	}
}

func (d *MessageDispatcher) Register(mux botMux) {
	mux.Handle(tele.OnText, d.onText)
	// OnMedia fires for every photo/voice/audio/animation/document/
	// sticker/video/video-note message, so one endpoint covers them all.
	mux.Handle(tele.OnMedia, d.onMedia)
	mux.Handle(tele.OnChannelPost, d.onChannelPost)
	for _, endpoint := range []string{tele.OnContact, tele.OnLocation, tele.OnDice} {
		mux.Handle(endpoint, d.onUnsupported)
	}
}

// onText is the funnel for all text that matched no command endpoint.
func (d *MessageDispatcher) onText(c tele.Context) error {
	defer tracer.Trace("dispatchTextHandler")()
	msg := c.Message()
	if msg == nil || msg.Via != nil {
		return nil
	}
	// Unknown commands stay unanswered rather than triggering a search.
	if strings.HasPrefix(msg.Text, "/") {
		return nil
	}

	if isGroup(c.Chat()) {
		return d.search.HandleQuery(c)
	}
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}

	if handled, err := d.workspace.HandleText(c); handled || err != nil {
		return err
	}
	if handled, err := d.request.HandleText(c); handled || err != nil {
		return err
	}
	return d.search.HandleQuery(c)
}

// onMedia routes admin uploads into the video workspace (when one is
// pending) or the link generator, and meets everyone else with the
// no-chatting notice.
func (d *MessageDispatcher) onMedia(c tele.Context) error {
	defer tracer.Trace("dispatchMediaHandler")()
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate || c.Sender() == nil {
		return nil
	}

	if d.isAdmin(c.Sender().ID) {
		if handled, err := d.workspace.HandleVideo(c); handled || err != nil {
			return err
		}
		if isIndexableMedia(c.Message()) {
			return d.linker.HandleMedia(c)
		}
		// Stickers, voice notes and the like from admins are ignored.
		return nil
	}
	return c.Reply(chatFallbackText)
}

// onChannelPost auto-indexes media posted straight into the DB channel.
// Posts anywhere else are none of our business.
func (d *MessageDispatcher) onChannelPost(c tele.Context) error {
	defer tracer.Trace("dispatchChannelPostHandler")()
	if c.Chat() == nil || c.Chat().ID != d.channelID {
		return nil
	}
	if !isIndexableMedia(c.Message()) {
		return nil
	}
	return d.linker.HandleChannelPost(c)
}

func (d *MessageDispatcher) onUnsupported(c tele.Context) error {
	defer tracer.Trace("dispatchUnsupportedHandler")()
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate || c.Sender() == nil {
		return nil
	}
	if d.isAdmin(c.Sender().ID) {
		return nil
	}
	return c.Reply(chatFallbackText)
}

// isIndexableMedia reports whether the message carries one of the media
// kinds the file index stores.
func isIndexableMedia(msg *tele.Message) bool {
	if msg == nil {
		return false
	}
	return msg.Document != nil || msg.Video != nil || msg.Photo != nil || msg.Audio != nil
}
