package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/logger"
	"github.com/dhanushrs1/HDC-File/repository"
)

type fakeSearchIndex struct {
	results []repository.File
	queries []string
}

func (f *fakeSearchIndex) Search(_ context.Context, query string, _ int64) ([]repository.File, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

type approveAll struct{}

func (approveAll) IsApproved(int64) bool { return true }

func someFiles(n int) []repository.File {
	files := make([]repository.File, n)
	for i := range files {
		files[i] = repository.File{
			ID:       int64(100 + i),
			FileName: fmt.Sprintf("Movie.%02d.2024.mkv", i),
			FileSize: 700 * 1024 * 1024,
		}
	}
	return files
}

func newSearchController(index *fakeSearchIndex) *SearchController {
	return NewSearchController(
		index, approveAll{}, deeplink.NewCodec(-1001234),
		"", "", logger.ForTests(),
	)
}

func TestResultsPagePagination(t *testing.T) {
	h := newSearchController(&fakeSearchIndex{})
	results := someFiles(12)

	text, keyboard := h.resultsPage("dune", results, 1)
	assert.Contains(t, text, "(Page 1/3)")
	// Five file rows and the nav row.
	require.Len(t, keyboard.InlineKeyboard, 6)
	assert.Equal(t, selectFileUnique, keyboard.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "100", keyboard.InlineKeyboard[0][0].Data)

	nav := keyboard.InlineKeyboard[5]
	require.Len(t, nav, 1)
	assert.Equal(t, "Next ➡️", nav[0].Text)
	assert.Equal(t, "2|dune", nav[0].Data)

	text, keyboard = h.resultsPage("dune", results, 2)
	assert.Contains(t, text, "(Page 2/3)")
	nav = keyboard.InlineKeyboard[5]
	require.Len(t, nav, 2, "middle pages offer both directions")

	text, keyboard = h.resultsPage("dune", results, 3)
	assert.Contains(t, text, "(Page 3/3)")
	// Two leftover files and the prev-only nav row.
	require.Len(t, keyboard.InlineKeyboard, 3)
}

func TestResultsPageClampsOutOfRange(t *testing.T) {
	h := newSearchController(&fakeSearchIndex{})
	results := someFiles(7)

	text, _ := h.resultsPage("dune", results, 0)
	assert.Contains(t, text, "(Page 1/2)")

	text, _ = h.resultsPage("dune", results, 9)
	assert.Contains(t, text, "(Page 2/2)")
}

func TestResultsPageEscapesQuery(t *testing.T) {
	h := newSearchController(&fakeSearchIndex{})

	text, _ := h.resultsPage("alien <3", someFiles(1), 1)
	assert.Contains(t, text, "alien &lt;3")
}

func TestHandleQuerySkipsShortAndForwarded(t *testing.T) {
	index := &fakeSearchIndex{}
	h := newSearchController(index)
	bot, transport := newTestBot(t)

	require.NoError(t, h.HandleQuery(bot.NewContext(privateText(5, "ab"))))

	viaBot := privateText(5, "some long result text")
	viaBot.Message.Via = &tele.User{ID: 42}
	require.NoError(t, h.HandleQuery(bot.NewContext(viaBot)))

	assert.Empty(t, index.queries, "neither update should hit the index")
	assert.Empty(t, transport.byMethod("sendMessage"))
}

func TestHandleQueryRepliesWithResults(t *testing.T) {
	index := &fakeSearchIndex{results: someFiles(2)}
	h := newSearchController(index)
	bot, transport := newTestBot(t)

	require.NoError(t, h.HandleQuery(bot.NewContext(privateText(5, "movie"))))

	require.Equal(t, []string{"movie"}, index.queries)
	sent := transport.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "Results for 'movie'")
	assert.Contains(t, sent[0].Params["reply_markup"], selectFileUnique)
}

func TestHandleQuerySilentOnNoResults(t *testing.T) {
	index := &fakeSearchIndex{}
	h := newSearchController(index)
	bot, transport := newTestBot(t)

	require.NoError(t, h.HandleQuery(bot.NewContext(privateText(5, "nothing here"))))

	assert.Equal(t, []string{"nothing here"}, index.queries)
	assert.Empty(t, transport.byMethod("sendMessage"), "misses stay silent")
}

func TestSearchPayloadRoundTripThroughPageData(t *testing.T) {
	// Queries containing the callback args separator survive the nav
	// buttons because the page handler re-joins the tail args.
	h := newSearchController(&fakeSearchIndex{})
	_, keyboard := h.resultsPage("dune | part two", someFiles(12), 1)

	nav := keyboard.InlineKeyboard[5][0]
	parts := strings.SplitN(nav.Data, "|", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "2", parts[0])
	assert.Equal(t, "dune | part two", strings.Join(strings.Split(nav.Data, "|")[1:], "|"))
}
