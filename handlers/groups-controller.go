package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/notify"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/services"
)

const (
	groupApproveUnique    = "grp-approve"
	groupDisapproveUnique = "grp-disapprove"
)

// GroupsController tracks the bot's membership in groups and lets the
// owner manage the auto-search whitelist. Every membership change the
// bot sees about itself turns into an owner notification with the
// matching management buttons.
type GroupsController struct {
	groups   *services.GroupService
	notifier *notify.Notifier
	log      *zap.Logger
}

func NewGroupsController(groups *services.GroupService, notifier *notify.Notifier, log *zap.Logger) *GroupsController {
	return &GroupsController{
		groups:   groups,
		notifier: notifier,
		log:      log.Named("groups"),
	}
}

func (h *GroupsController) Register(mux botMux, ownerAuth tele.MiddlewareFunc) {
	mux.Handle(tele.OnMyChatMember, h.onMembershipChange)
	mux.Handle("/groups", h.onListGroups, ownerAuth)
	mux.Handle(&tele.Btn{Unique: groupApproveUnique}, h.onApprove, ownerAuth)
	mux.Handle(&tele.Btn{Unique: groupDisapproveUnique}, h.onDisapprove, ownerAuth)
}

func (h *GroupsController) onMembershipChange(c tele.Context) error {
	defer tracer.Trace("groupMembershipChange")()
	update := c.ChatMember()
	if update == nil || update.NewChatMember == nil || update.Chat == nil {
		return nil
	}
	chat := update.Chat
	if chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup {
		return nil
	}

	var text string
	var keyboard *tele.ReplyMarkup
	groupID := strconv.FormatInt(chat.ID, 10)

	switch update.NewChatMember.Role {
	case tele.Member:
		if h.isAdminIn(c, chat) {
			text = fmt.Sprintf(
				"🔔 <b>Admin Promotion Alert</b> 🔔\n\nI have been added and promoted to admin in a new group:\n\n<b>Name:</b> %s\n<b>ID:</b> <code>%d</code>\n<b>Members:</b> %s",
				html.EscapeString(chat.Title), chat.ID, h.memberCount(c, chat),
			)
			keyboard = markup.InlineMarkup(markup.Row(
				markup.Data("✅ Approve Group", groupApproveUnique, groupID),
				markup.Data("❌ Disapprove & Leave", groupDisapproveUnique, groupID),
			))
		} else {
			text = fmt.Sprintf(
				"⚠️ <b>Permissions Needed</b> ⚠️\n\nI have been added to a new group, but I am not an admin.\n\n<b>Name:</b> %s\n<b>ID:</b> <code>%d</code>\n\nPlease promote me to admin so I can function correctly.",
				html.EscapeString(chat.Title), chat.ID,
			)
			keyboard = markup.InlineMarkup(markup.Row(
				markup.Data("❌ Leave Group", groupDisapproveUnique, groupID),
			))
		}

	case tele.Administrator:
		text = fmt.Sprintf(
			"✅ <b>Promoted to Admin</b> ✅\n\nI have been promoted to admin in the group:\n\n<b>Name:</b> %s\n<b>ID:</b> <code>%d</code>\n\nYou can now approve this group for auto-search.",
			html.EscapeString(chat.Title), chat.ID,
		)
		keyboard = markup.InlineMarkup(markup.Row(
			markup.Data("✅ Approve Group", groupApproveUnique, groupID),
			markup.Data("❌ Leave Group", groupDisapproveUnique, groupID),
		))

	case tele.Kicked, tele.Left:
		if err := h.groups.Remove(context.Background(), chat.ID); err != nil {
			h.log.Warn("group cleanup failed", zap.Int64("chat_id", chat.ID), zap.Error(err))
		}
		text = fmt.Sprintf(
			"❌ <b>Removed from Group</b> ❌\n\nI have been removed from the group:\n\n<b>Name:</b> %s\n<b>ID:</b> <code>%d</code>",
			html.EscapeString(chat.Title), chat.ID,
		)

	default:
		return nil
	}

	if keyboard != nil {
		return h.notifier.Owner(text, keyboard)
	}
	return h.notifier.Owner(text)
}

// isAdminIn rechecks the bot's own role because an "added as member"
// update can race with an immediate promotion.
func (h *GroupsController) isAdminIn(c tele.Context, chat *tele.Chat) bool {
	member, err := c.Bot().ChatMemberOf(chat, c.Bot().Me)
	if err != nil {
		h.log.Debug("member lookup failed", zap.Int64("chat_id", chat.ID), zap.Error(err))
		return false
	}
	return member.Role == tele.Administrator
}

func (h *GroupsController) memberCount(c tele.Context, chat *tele.Chat) string {
	count, err := c.Bot().Len(chat)
	if err != nil || count <= 0 {
		return "N/A"
	}
	return strconv.Itoa(count)
}

func (h *GroupsController) onListGroups(c tele.Context) error {
	defer tracer.Trace("/groups")()
	groups := h.groups.Groups()
	if len(groups) == 0 {
		return c.Reply("There are no approved groups yet.")
	}

	rows := make([]tele.Row, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, markup.Row(
			markup.URL(group.Name, deeplink.ChannelMessageLink(group.ID, 1)),
			markup.Data("❌ Disapprove & Leave", groupDisapproveUnique, strconv.FormatInt(group.ID, 10)),
		))
	}
	return c.Reply(
		"📝 <b>Approved Groups for Auto-Search:</b>\n\nHere is the list of all groups where the auto-search feature is currently active. You can disapprove a group at any time.",
		markup.InlineMarkup(rows...),
	)
}

func (h *GroupsController) onApprove(c tele.Context) error {
	defer tracer.Trace("groupApprove")()
	groupID, err := groupCallbackArg(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	name := h.groupName(c, groupID)
	if err := h.groups.Approve(context.Background(), groupID, name); err != nil {
		return fmt.Errorf("approving group %d: %w", groupID, err)
	}
	if err := c.Edit(fmt.Sprintf(
		"✅ <b>Group Approved!</b>\n<b>%s</b> (<code>%d</code>) is now enabled for auto-search.",
		html.EscapeString(name), groupID,
	)); err != nil {
		h.log.Debug("approval edit failed", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: "Approved!"})
}

func (h *GroupsController) onDisapprove(c tele.Context) error {
	defer tracer.Trace("groupDisapprove")()
	groupID, err := groupCallbackArg(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	name := h.groupName(c, groupID)
	if err := h.groups.Remove(context.Background(), groupID); err != nil {
		return fmt.Errorf("disapproving group %d: %w", groupID, err)
	}
	if err := c.Edit(fmt.Sprintf(
		"❌ <b>Group Disapproved.</b>\nAuto-search has been disabled for <b>%s</b> (<code>%d</code>). I will now leave the group.",
		html.EscapeString(name), groupID,
	)); err != nil {
		h.log.Debug("disapproval edit failed", zap.Error(err))
	}
	if err := c.Bot().Leave(&tele.Chat{ID: groupID}); err != nil {
		h.log.Warn("leave failed, possibly already removed", zap.Int64("chat_id", groupID), zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: "Disapproved and Left!"})
}

// groupName resolves the current chat title, falling back to a neutral
// label when the bot is no longer in the group.
func (h *GroupsController) groupName(c tele.Context, groupID int64) string {
	chat, err := c.Bot().ChatByID(groupID)
	if err != nil || chat.Title == "" {
		h.log.Debug("chat lookup failed", zap.Int64("chat_id", groupID), zap.Error(err))
		return "this group"
	}
	return chat.Title
}

func groupCallbackArg(c tele.Context) (int64, error) {
	args := c.Args()
	if len(args) != 1 {
		return 0, fmt.Errorf("unexpected callback args %v", args)
	}
	return strconv.ParseInt(args[0], 10, 64)
}
