package middleware

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// SubGate keeps non-subscribers out of the public entry points until
// they join the configured channel. In join-request mode a pending
// request already counts: the bot hears about it through the
// chat_join_request update and remembers the user.
type SubGate struct {
	isAdminFn       func(userID int64) bool
	joinRequestMode bool
	message         string
	log             *zap.Logger

	mu        sync.Mutex
	channel   int64
	invite    string
	requested map[int64]struct{}
}

func NewSubGate(channel int64, joinRequestMode bool, message string, isAdmin func(userID int64) bool, log *zap.Logger) *SubGate {
	return &SubGate{
		isAdminFn:       isAdmin,
		joinRequestMode: joinRequestMode,
		message:         message,
		log:             log.Named("subGate"),
		channel:         channel,
		requested:       map[int64]struct{}{},
	}
}

// Enabled reports whether the gate does anything at all.
func (g *SubGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channel != 0
}

func (g *SubGate) Channel() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channel
}

// SetInvite arms the gate with the invite link shown to outsiders.
func (g *SubGate) SetInvite(link string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invite = link
}

// Disable turns the gate off, used when no invite link could be
// resolved at startup. A gate without a join button would lock
// everyone out for good.
func (g *SubGate) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channel = 0
}

// NoteJoinRequest records a pending join request so the user passes the
// gate while an admin reviews the request.
func (g *SubGate) NoteJoinRequest(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requested[userID] = struct{}{}
}

func (g *SubGate) hasRequested(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.requested[userID]
	return ok
}

func (g *SubGate) inviteLink() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.invite
}

// Middleware enforces the gate. Apply it to the handlers that should be
// members-only; everything else stays open.
func (g *SubGate) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer tracer.Trace("SubGate middleware")()
		if g.allowed(c) {
			return next(c)
		}
		sender := c.Sender()
		text := format.FillUserTemplate(g.message, sender.ID, sender.FirstName, sender.LastName, sender.Username)
		joinLabel := "➡️ Join Channel"
		if g.joinRequestMode {
			joinLabel = "➡️ Request to Join Channel"
		}
		rows := []tele.Row{markup.Row(markup.URL(joinLabel, g.inviteLink()))}
		if msg := c.Message(); msg != nil {
			if payload := strings.TrimSpace(msg.Payload); payload != "" {
				rows = append(rows, markup.Row(
					markup.URL("🔄 Try Again", deeplink.BotLink(c.Bot().Me.Username, payload)),
				))
			}
		}
		return c.Send(text, markup.InlineMarkup(rows...))
	}
}

func (g *SubGate) allowed(c tele.Context) bool {
	channel := g.Channel()
	if channel == 0 {
		return true
	}
	sender := c.Sender()
	if sender == nil {
		return true
	}
	if g.isAdminFn(sender.ID) {
		return true
	}
	if g.joinRequestMode && g.hasRequested(sender.ID) {
		return true
	}
	member, err := c.Bot().ChatMemberOf(tele.ChatID(channel), sender)
	if err != nil {
		// Telegram answers with an error for users it has never seen
		// in the channel. Same outcome as an explicit "left".
		g.log.Debug("member lookup failed", zap.Int64("user_id", sender.ID), zap.Error(err))
		return false
	}
	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	}
	return false
}
