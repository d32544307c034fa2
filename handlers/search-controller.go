package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/repository"
)

const (
	searchResultsPerPage = 5
	searchMinQueryLen    = 3
	searchResultLimit    = 50

	selectFileUnique = "select-file"
	searchPageUnique = "search-page"
)

type searchIndex interface {
	Search(ctx context.Context, query string, limit int64) ([]repository.File, error)
}

type searchGroupGate interface {
	IsApproved(chatID int64) bool
}

// SearchController answers free-text queries with paginated results.
// Private chats get the result buttons directly; approved groups get a
// deep-link button that carries the query into the private chat.
type SearchController struct {
	files          searchIndex
	groups         searchGroupGate
	codec          *deeplink.Codec
	redirectURL    string
	groupSearchPic string
	log            *zap.Logger
}

func NewSearchController(
	files searchIndex,
	groups searchGroupGate,
	codec *deeplink.Codec,
	redirectURL, groupSearchPic string,
	log *zap.Logger,
) *SearchController {
	return &SearchController{
		files:          files,
		groups:         groups,
		codec:          codec,
		redirectURL:    redirectURL,
		groupSearchPic: groupSearchPic,
		log:            log.Named("search"),
	}
}

func (h *SearchController) Register(mux botMux) {
	mux.Handle(&tele.Btn{Unique: searchPageUnique}, h.onPageSwitch)
	mux.Handle(&tele.Btn{Unique: selectFileUnique}, h.onSelectFile)
}

// HandleQuery is the text entry point, called by the message dispatcher
// for both private chats and groups. Queries that are too short or turn
// up nothing stay silent on purpose.
func (h *SearchController) HandleQuery(c tele.Context) error {
	defer tracer.Trace("searchQueryHandler")()
	msg := c.Message()
	if msg == nil || msg.Via != nil {
		return nil
	}
	query := strings.TrimSpace(c.Text())
	if len([]rune(query)) < searchMinQueryLen {
		return nil
	}

	if isGroup(c.Chat()) {
		return h.answerGroup(c, query)
	}

	results, err := h.files.Search(context.Background(), query, searchResultLimit)
	if err != nil {
		return fmt.Errorf("searching [%s]: %w", query, err)
	}
	if len(results) == 0 {
		return nil
	}
	text, keyboard := h.resultsPage(query, results, 1)
	return c.Reply(text, keyboard)
}

// answerGroup replies with a handoff button instead of results: the
// query travels inside a start payload so the user taps straight into
// the private chat.
func (h *SearchController) answerGroup(c tele.Context, query string) error {
	if !h.groups.IsApproved(c.Chat().ID) {
		return nil
	}
	me, err := c.Bot().ChatMemberOf(c.Chat(), c.Bot().Me)
	if err != nil || me.Role != tele.Administrator {
		return nil
	}

	results, err := h.files.Search(context.Background(), query, searchResultLimit)
	if err != nil {
		return fmt.Errorf("group search [%s]: %w", query, err)
	}
	if len(results) == 0 {
		return nil
	}

	sender := c.Sender()
	caption := fmt.Sprintf(
		"👋 Hey %s, I found some results for your query.\n\nTap the button below to view them in your private chat.",
		format.Mention(sender.ID, sender.FirstName),
	)
	link := deeplink.BotLink(c.Bot().Me.Username, deeplink.SearchPayload(query))
	keyboard := markup.InlineMarkup(markup.Row(
		markup.URL(fmt.Sprintf("✅ Found %d result(s). Tap to view.", len(results)), link),
	))
	if h.groupSearchPic != "" {
		return c.Reply(&tele.Photo{File: tele.FromURL(h.groupSearchPic), Caption: caption}, keyboard)
	}
	return c.Reply(caption, keyboard)
}

// SendResults runs the query and sends page one as a fresh message.
// The start controller calls this for search handoff payloads.
func (h *SearchController) SendResults(c tele.Context, query string) error {
	defer tracer.Trace("searchHandoff")()
	results, err := h.files.Search(context.Background(), query, searchResultLimit)
	if err != nil {
		return fmt.Errorf("searching [%s]: %w", query, err)
	}
	if len(results) == 0 {
		return c.Send(fmt.Sprintf("🔎 Sorry, I found no results for '%s'.", html.EscapeString(query)))
	}
	text, keyboard := h.resultsPage(query, results, 1)
	return c.Send(text, keyboard)
}

func (h *SearchController) onPageSwitch(c tele.Context) error {
	defer tracer.Trace("searchPageSwitch")()
	args := c.Args()
	if len(args) < 2 {
		return c.Respond(&tele.CallbackResponse{Text: "This button seems to be broken.", ShowAlert: true})
	}
	page, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "This button seems to be broken.", ShowAlert: true})
	}
	// The query itself may contain the args separator.
	query := strings.Join(args[1:], "|")

	results, err := h.files.Search(context.Background(), query, searchResultLimit)
	if err != nil {
		return fmt.Errorf("searching [%s]: %w", query, err)
	}
	if len(results) == 0 {
		return c.Edit(fmt.Sprintf("🔎 No more results for '%s'.", html.EscapeString(query)))
	}
	text, keyboard := h.resultsPage(query, results, page)
	return c.Edit(text, keyboard)
}

func (h *SearchController) onSelectFile(c tele.Context) error {
	defer tracer.Trace("searchSelectFile")()
	args := c.Args()
	if len(args) < 1 {
		return c.Respond(&tele.CallbackResponse{Text: "This button seems to be broken.", ShowAlert: true})
	}
	fileID, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "This button seems to be broken.", ShowAlert: true})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Generating your link..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}

	payload, err := h.codec.EncodeSingle(fileID)
	if err != nil {
		return fmt.Errorf("encoding link for file %d: %w", fileID, err)
	}
	link := deeplink.RedirectLink(h.redirectURL, c.Bot().Me.Username, payload)

	return c.Edit(
		fmt.Sprintf("✅ <b>Your Link is Ready!</b>\n\nClick below to access your file:\n\n<code>%s</code>", link),
		markup.InlineMarkup(markup.Row(markup.URL("🔗 Get File", link))),
		tele.NoPreview,
	)
}

// resultsPage renders one page of file buttons plus the nav row. The
// requested page is clamped into the valid range.
func (h *SearchController) resultsPage(query string, results []repository.File, page int) (string, *tele.ReplyMarkup) {
	totalPages := (len(results) + searchResultsPerPage - 1) / searchResultsPerPage
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * searchResultsPerPage
	end := start + searchResultsPerPage
	if end > len(results) {
		end = len(results)
	}

	var rows []tele.Row
	for _, file := range results[start:end] {
		label := fmt.Sprintf("📄 %s (%s)", format.Truncate(file.FileName, 40), format.Bytes(file.FileSize))
		rows = append(rows, markup.Row(markup.Data(label, selectFileUnique, strconv.FormatInt(file.ID, 10))))
	}

	var nav []tele.Btn
	if page > 1 {
		nav = append(nav, markup.Data("⬅️ Prev", searchPageUnique, strconv.Itoa(page-1), query))
	}
	if page < totalPages {
		nav = append(nav, markup.Data("Next ➡️", searchPageUnique, strconv.Itoa(page+1), query))
	}
	if len(nav) > 0 {
		rows = append(rows, markup.Row(nav...))
	}

	text := fmt.Sprintf("🔎 <b>Results for '%s'</b> (Page %d/%d)\n\nPlease select a file below:",
		html.EscapeString(query), page, totalPages)
	return text, markup.InlineMarkup(rows...)
}

func isGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}
