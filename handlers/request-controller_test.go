package handlers

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/notify"
	"github.com/dhanushrs1/HDC-File/logger"
	"github.com/dhanushrs1/HDC-File/services"
)

// sampleCard is the card as Telegram hands it back in a callback:
// plain text, entities stripped.
const sampleCard = "📩 New File Request 📩\n\nFrom: Dana (5)\nUsername: @dana\n\nRequest:\nInception 2010"

func newRequestFixture(t *testing.T, admins ...int64) (*RequestController, *tele.Bot, *stubTransport, *services.ConversationService) {
	t.Helper()
	bot, transport := newTestBot(t)
	conversations := services.NewConversationService()
	notifier := notify.New(bot, admins[0], admins, logger.ForTests())
	h := NewRequestController(conversations, notifier, logger.ForTests())
	return h, bot, transport, conversations
}

func TestRequestCommandFansOutToAdmins(t *testing.T) {
	h, bot, transport, _ := newRequestFixture(t, 1, 2)

	upd := privateText(5, "/request Inception 2010")
	upd.Message.Payload = "Inception 2010"
	require.NoError(t, h.onRequest(bot.NewContext(upd)))

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 3, "one card per admin plus the confirmation")
	assert.Contains(t, sent[0].Params["text"], "New File Request")
	assert.Contains(t, sent[0].Params["text"], "Inception 2010")
	assert.Contains(t, sent[0].Params["reply_markup"], requestAcceptUnique)
	assert.Contains(t, sent[2].Params["text"], "Request Sent")
}

func TestRequestCommandUsageAndLimits(t *testing.T) {
	h, bot, transport, _ := newRequestFixture(t, 1)

	empty := privateText(5, "/request")
	require.NoError(t, h.onRequest(bot.NewContext(empty)))

	long := privateText(5, "/request")
	long.Message.Payload = strings.Repeat("х", requestMaxLen+1)
	require.NoError(t, h.onRequest(bot.NewContext(long)))

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Params["text"], "How to Request Content")
	assert.Contains(t, sent[1].Params["text"], "Request too long")
}

func TestRequestCommandIgnoresGroups(t *testing.T) {
	h, bot, transport, _ := newRequestFixture(t, 1)

	upd := groupText(-500, 5, "/request Inception")
	upd.Message.Payload = "Inception"
	require.NoError(t, h.onRequest(bot.NewContext(upd)))
	assert.Empty(t, transport.byMethod("sendMessage"))
}

func TestRequestAcceptNotifiesRequester(t *testing.T) {
	h, bot, transport, _ := newRequestFixture(t, 1)
	card := &tele.Message{ID: 33, Text: sampleCard, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}}

	require.NoError(t, h.onAccept(bot.NewContext(callbackUpdate(1, "5|33", card))))

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "5", sent[0].Params["chat_id"])
	assert.Contains(t, sent[0].Params["text"], "accepted")
	assert.Contains(t, sent[0].Params["text"], "Inception 2010")

	edits := transport.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Params["text"], "ACCEPTED")
	require.Len(t, transport.byMethod("answerCallbackQuery"), 1)
}

func TestRequestDeclineReason(t *testing.T) {
	h, bot, transport, _ := newRequestFixture(t, 1)
	card := &tele.Message{ID: 33, Text: sampleCard, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}}

	require.NoError(t, h.onReason(bot.NewContext(callbackUpdate(1, "na|5|33", card))))

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "Request Declined")
	assert.Contains(t, sent[0].Params["text"], "not available in our collection")

	edits := transport.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Params["text"], "DECLINED")
	assert.Contains(t, edits[0].Params["text"], "Not Available")
}

func TestRequestDeclineCancelRestoresCard(t *testing.T) {
	h, bot, transport, _ := newRequestFixture(t, 1)
	annotated := sampleCard + "\n\n" + requestSeparator + "\n<b>🔽 SELECT DECLINE REASON:</b>"
	card := &tele.Message{ID: 33, Text: annotated, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}}

	require.NoError(t, h.onReason(bot.NewContext(callbackUpdate(1, "cancel|5|33", card))))

	assert.Empty(t, transport.byMethod("sendMessage"), "cancel must not message the requester")
	edits := transport.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, sampleCard, edits[0].Params["text"])
	assert.Contains(t, edits[0].Params["reply_markup"], requestAcceptUnique)
}

func TestRequestReplyRelay(t *testing.T) {
	h, bot, transport, conversations := newRequestFixture(t, 1)
	conversations.Expect(1, services.ConversationState{
		Kind:        services.ConversationAwaitingRequestReply,
		RequesterID: 5,
		CardChatID:  1,
		CardMsgID:   33,
		CardText:    sampleCard,
	}, 0)

	handled, err := h.HandleText(bot.NewContext(privateText(1, "uploading it tonight")))
	require.NoError(t, err)
	assert.True(t, handled)

	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 2, "the relayed notice plus the admin confirmation")
	assert.Equal(t, "5", sent[0].Params["chat_id"])
	assert.Contains(t, sent[0].Params["text"], "uploading it tonight")
	assert.Contains(t, sent[1].Params["text"], "Message sent successfully")

	edits := transport.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Params["text"], "REPLY SENT")

	handled, err = h.HandleText(bot.NewContext(privateText(1, "again")))
	require.NoError(t, err)
	assert.False(t, handled, "the pending reply is consumed by the relay")
}

func TestRequestCallbackArgs(t *testing.T) {
	bot, _ := newTestBot(t)
	card := &tele.Message{ID: 33, Chat: &tele.Chat{ID: 1}}

	requesterID, msgID, err := requestCallbackArgs(bot.NewContext(callbackUpdate(1, "512|33", card)))
	require.NoError(t, err)
	assert.EqualValues(t, 512, requesterID)
	assert.Equal(t, 33, msgID)

	for _, data := range []string{"512", "512|33|extra", "abc|33", "512|def"} {
		_, _, err := requestCallbackArgs(bot.NewContext(callbackUpdate(1, data, card)))
		assert.Error(t, err, "data %q should not parse", data)
	}
}

func TestRequestCardCarving(t *testing.T) {
	annotated := fmt.Sprintf("%s\n\n%s\n<b>✅ ACCEPTED</b> by Ops", sampleCard, requestSeparator)

	assert.Equal(t, sampleCard, requestCard(annotated))
	assert.Equal(t, sampleCard, requestCard(sampleCard))
	assert.Equal(t, "Inception 2010", requestBody(annotated))
	assert.Equal(t, "", requestBody("no marker here"))
}

func TestUnreachableDetection(t *testing.T) {
	assert.True(t, isUnreachable(tele.ErrBlockedByUser))
	assert.True(t, isUnreachable(fmt.Errorf("send: %w", tele.ErrUserIsDeactivated)))
	assert.False(t, isUnreachable(errors.New("timeout")))

	note := unreachableAnnotation(sampleCard + "\n\n" + requestSeparator + "\nold status")
	assert.Contains(t, note, "User has blocked the bot")
	assert.True(t, strings.HasPrefix(note, sampleCard))
}
