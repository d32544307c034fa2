package handlers

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/notify"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/services"
)

const (
	requestAcceptUnique  = "req-accept"
	requestDeclineUnique = "req-decline"
	requestReasonUnique  = "req-reason"
	requestReplyUnique   = "req-reply"

	requestMaxLen      = 500
	requestReplyWindow = 5 * time.Minute
)

const requestUsageText = `🎬 <b>How to Request Content</b>

Please use the <code>/request</code> command followed by a description of what you're looking for.

<b>Example:</b>
<code>/request The Dark Knight (2008) 4K</code>

<i>💡 Being specific helps us find it faster!</i>`

// requestSeparator splits the request card from its status annotations.
var requestSeparator = strings.Repeat("─", 20)

var declineReasons = map[string]struct{ Title, Text string }{
	"na": {"📵 Not Available", "The content you requested is not available in our collection."},
	"ir": {"❓ Invalid Request", "Your request was not specific enough. Please provide more details."},
	"pv": {"🚫 Policy Violation", "Your request violates our content policy and cannot be fulfilled."},
}

// RequestController runs the content request pipeline: users file a
// request, every admin gets an interactive card, and the decision
// (accept, decline with a reason, or a relayed reply) lands back in the
// requester's chat.
type RequestController struct {
	conversations *services.ConversationService
	notifier      *notify.Notifier
	log           *zap.Logger
}

func NewRequestController(conversations *services.ConversationService, notifier *notify.Notifier, log *zap.Logger) *RequestController {
	return &RequestController{
		conversations: conversations,
		notifier:      notifier,
		log:           log.Named("request"),
	}
}

func (h *RequestController) Register(mux botMux, adminAuth tele.MiddlewareFunc) {
	mux.Handle("/request", h.onRequest)
	mux.Handle(&tele.Btn{Unique: requestAcceptUnique}, h.onAccept, adminAuth)
	mux.Handle(&tele.Btn{Unique: requestDeclineUnique}, h.onDecline, adminAuth)
	mux.Handle(&tele.Btn{Unique: requestReasonUnique}, h.onReason, adminAuth)
	mux.Handle(&tele.Btn{Unique: requestReplyUnique}, h.onReply, adminAuth)
}

func (h *RequestController) onRequest(c tele.Context) error {
	defer tracer.Trace("/request")()
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return c.Reply(requestUsageText)
	}
	if len([]rune(text)) > requestMaxLen {
		return c.Reply("❌ <b>Request too long!</b>\nPlease keep your request under 500 characters.")
	}

	sender := c.Sender()
	card := fmt.Sprintf(
		"📩 <b>New File Request</b> 📩\n\n<b>From:</b> %s (<code>%d</code>)\n<b>Username:</b> @%s\n\n<b>Request:</b>\n<blockquote><i>%s</i></blockquote>",
		format.Mention(sender.ID, sender.FirstName), sender.ID,
		usernameOr(sender.Username, "N/A"), html.EscapeString(text),
	)
	keyboard := requestCardMarkup(sender.ID, c.Message().ID)

	delivered, err := h.notifier.Admins(card, keyboard, tele.NoPreview)
	if err != nil {
		h.log.Warn("request fan-out incomplete", zap.Int("delivered", delivered), zap.Error(err))
	}
	if delivered == 0 {
		return c.Reply("❌ <b>Unable to Send Request</b>\n\nSorry, we couldn't forward your request right now.")
	}
	return c.Reply("✅ <b>Request Sent!</b>\n\nYour request has been forwarded to our admin team. We'll review it shortly. 😊")
}

func requestCardMarkup(requesterID int64, msgID int) *tele.ReplyMarkup {
	requester := strconv.FormatInt(requesterID, 10)
	origin := strconv.Itoa(msgID)
	return markup.InlineMarkup(
		markup.Row(
			markup.Data("✅ Accept", requestAcceptUnique, requester, origin),
			markup.Data("❌ Decline", requestDeclineUnique, requester, origin),
		),
		markup.Row(markup.Data("💬 Reply to User", requestReplyUnique, requester, origin)),
	)
}

func (h *RequestController) onAccept(c tele.Context) error {
	defer tracer.Trace("requestAccept")()
	requesterID, _, err := requestCallbackArgs(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	notice := fmt.Sprintf(
		"🎉 <b>Great News!</b>\n\nYour request has been <b>accepted</b>:\n<blockquote><i>%s</i></blockquote>\n\nOur team will upload the content soon.",
		html.EscapeString(requestBody(c.Message().Text)),
	)
	if _, err := c.Bot().Send(&tele.User{ID: requesterID}, notice); err != nil {
		return h.markUnreachable(c, err)
	}

	annotated := fmt.Sprintf("%s\n\n%s\n<b>✅ ACCEPTED</b> by %s",
		c.Message().Text, requestSeparator, adminMention(c))
	if err := c.Edit(annotated); err != nil {
		h.log.Debug("card annotation failed", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ User notified of acceptance!"})
}

func (h *RequestController) onDecline(c tele.Context) error {
	defer tracer.Trace("requestDecline")()
	requesterID, msgID, err := requestCallbackArgs(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	requester := strconv.FormatInt(requesterID, 10)
	origin := strconv.Itoa(msgID)
	keyboard := markup.InlineMarkup(
		markup.Row(markup.Data("📵 Not Available", requestReasonUnique, "na", requester, origin)),
		markup.Row(markup.Data("❓ Invalid Request", requestReasonUnique, "ir", requester, origin)),
		markup.Row(markup.Data("🚫 Policy Violation", requestReasonUnique, "pv", requester, origin)),
		markup.Row(markup.Data("⬅️ Back", requestReasonUnique, "cancel", requester, origin)),
	)
	return c.Edit(fmt.Sprintf("%s\n\n%s\n<b>🔽 SELECT DECLINE REASON:</b>", c.Message().Text, requestSeparator), keyboard)
}

func (h *RequestController) onReason(c tele.Context) error {
	defer tracer.Trace("requestReason")()
	args := c.Args()
	if len(args) != 3 {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	code := args[0]
	requesterID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	msgID, err := strconv.Atoi(args[2])
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	card := requestCard(c.Message().Text)
	if code == "cancel" {
		if err := c.Edit(card, requestCardMarkup(requesterID, msgID)); err != nil {
			h.log.Debug("card restore failed", zap.Error(err))
		}
		return c.Respond(&tele.CallbackResponse{Text: "Action cancelled."})
	}

	reason, ok := declineReasons[code]
	if !ok {
		reason.Title, reason.Text = "Unknown", "Your request could not be fulfilled."
	}
	notice := fmt.Sprintf(
		"❌ <b>Request Declined</b>\n\nYour request for \"<i>%s</i>\" was declined.\n\n<b>Reason:</b> %s",
		html.EscapeString(requestBody(card)), reason.Text,
	)
	if _, err := c.Bot().Send(&tele.User{ID: requesterID}, notice); err != nil {
		return h.markUnreachable(c, err)
	}

	annotated := fmt.Sprintf("%s\n\n%s\n<b>❌ DECLINED</b> (%s) by %s",
		card, requestSeparator, reason.Title, adminMention(c))
	if err := c.Edit(annotated); err != nil {
		h.log.Debug("card annotation failed", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ User notified: " + reason.Title})
}

func (h *RequestController) onReply(c tele.Context) error {
	defer tracer.Trace("requestReply")()
	requesterID, _, err := requestCallbackArgs(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	admin := c.Sender().ID
	cardMsgID := c.Message().ID
	h.conversations.Expect(admin, services.ConversationState{
		Kind:        services.ConversationAwaitingRequestReply,
		RequesterID: requesterID,
		CardChatID:  c.Chat().ID,
		CardMsgID:   cardMsgID,
		CardText:    c.Message().Text,
	}, requestReplyWindow)

	bot := c.Bot()
	time.AfterFunc(requestReplyWindow, func() {
		state, ok := h.conversations.Peek(admin)
		if !ok || state.Kind != services.ConversationAwaitingRequestReply || state.CardMsgID != cardMsgID {
			return
		}
		h.conversations.Clear(admin)
		if _, err := bot.Send(&tele.User{ID: admin}, "⏰ <b>Timeout!</b> The reply operation was cancelled."); err != nil {
			h.log.Debug("reply timeout notice failed", zap.Error(err))
		}
	})

	if err := c.Respond(&tele.CallbackResponse{Text: "📝 Send your message..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}
	return c.Send("📝 Please send the message you want to forward to the user.\n\nYou have 5 minutes.")
}

// HandleText relays an admin's pending reply to the requester. It
// reports false when the admin has no reply in flight so the dispatcher
// can try the other text consumers.
func (h *RequestController) HandleText(c tele.Context) (bool, error) {
	state, ok := h.conversations.Peek(c.Sender().ID)
	if !ok || state.Kind != services.ConversationAwaitingRequestReply {
		return false, nil
	}
	defer tracer.Trace("requestReplyRelay")()
	h.conversations.Clear(c.Sender().ID)

	notice := fmt.Sprintf(
		"💬 <b>A message from our admin team regarding your request:</b>\n\n<i>%s</i>",
		html.EscapeString(c.Text()),
	)
	card := tele.StoredMessage{MessageID: strconv.Itoa(state.CardMsgID), ChatID: state.CardChatID}
	if _, err := c.Bot().Send(&tele.User{ID: state.RequesterID}, notice); err != nil {
		if isUnreachable(err) {
			_, err = c.Bot().Edit(card, unreachableAnnotation(state.CardText))
			return true, err
		}
		return true, fmt.Errorf("relaying reply to %d: %w", state.RequesterID, err)
	}

	annotated := fmt.Sprintf("%s\n\n%s\n<b>💬 REPLY SENT</b> by %s",
		state.CardText, requestSeparator, adminMention(c))
	if _, err := c.Bot().Edit(card, annotated); err != nil {
		h.log.Debug("card annotation failed", zap.Error(err))
	}
	return true, c.Reply("✅ Message sent successfully!")
}

// markUnreachable stamps the card when the requester cannot be reached
// anymore. Other send errors bubble up.
func (h *RequestController) markUnreachable(c tele.Context, err error) error {
	if !isUnreachable(err) {
		return fmt.Errorf("notifying requester: %w", err)
	}
	if err := c.Edit(unreachableAnnotation(c.Message().Text)); err != nil {
		h.log.Debug("card annotation failed", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: "⚠️ User has blocked the bot!", ShowAlert: true})
}

func unreachableAnnotation(card string) string {
	return fmt.Sprintf("%s\n\n%s\n<b>⚠️ STATUS:</b> User has blocked the bot.",
		requestCard(card), requestSeparator)
}

func isUnreachable(err error) bool {
	return errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated)
}

func requestCallbackArgs(c tele.Context) (requesterID int64, msgID int, err error) {
	args := c.Args()
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("unexpected callback args %v", args)
	}
	requesterID, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing requester id: %w", err)
	}
	msgID, err = strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing message id: %w", err)
	}
	return requesterID, msgID, nil
}

// requestCard strips any status annotation, returning the bare card.
func requestCard(text string) string {
	return strings.TrimSpace(strings.SplitN(text, requestSeparator, 2)[0])
}

// requestBody pulls the requested content description out of the card.
// Cards arrive as plain text, so this is a plain string carve-out.
func requestBody(text string) string {
	parts := strings.SplitN(requestCard(text), "Request:", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func adminMention(c tele.Context) string {
	sender := c.Sender()
	return format.Mention(sender.ID, sender.FirstName)
}

func usernameOr(username, fallback string) string {
	if username == "" {
		return fallback
	}
	return username
}
