package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/logger"
	"github.com/dhanushrs1/HDC-File/repository"
)

type fakePanelUsers struct {
	users  []repository.User
	bans   []int64
	unbans []int64
}

func (f *fakePanelUsers) All(context.Context) ([]repository.User, error) { return f.users, nil }

func (f *fakePanelUsers) ByID(_ context.Context, userID int64) (*repository.User, error) {
	for i := range f.users {
		if f.users[i].ID == userID {
			return &f.users[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePanelUsers) Count(context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakePanelUsers) Ban(_ context.Context, userID int64) error {
	f.bans = append(f.bans, userID)
	return nil
}

func (f *fakePanelUsers) Unban(_ context.Context, userID int64) error {
	f.unbans = append(f.unbans, userID)
	return nil
}

type fakePanelFiles struct {
	count int64
	size  int64
}

func (f *fakePanelFiles) TotalStats(context.Context) (int64, int64, error) {
	return f.count, f.size, nil
}

type fakePanelAnalytics struct {
	top []repository.TopFile
}

func (f *fakePanelAnalytics) DailyCounts(context.Context) (int64, int64, int64, error) {
	return 5, 3, 1, nil
}

func (f *fakePanelAnalytics) TopFiles(context.Context, int) ([]repository.TopFile, error) {
	return f.top, nil
}

func (f *fakePanelAnalytics) UserDownloadCount(context.Context, int64) (int64, error) {
	return 9, nil
}

func (f *fakePanelAnalytics) UserLastDownloads(context.Context, int64, int) ([]repository.UserDownload, error) {
	return nil, nil
}

func (f *fakePanelAnalytics) DBStats(context.Context) (int64, int64, error) {
	return 4096, 2048, nil
}

func newPanelFixture(t *testing.T, users *fakePanelUsers, tempDir string) (*AdminPanelController, *tele.Bot, *stubTransport) {
	t.Helper()
	bot, transport := newTestBot(t)
	h := NewAdminPanelController(
		users,
		&fakePanelFiles{count: 12, size: 2 * 1024 * 1024},
		&fakePanelAnalytics{},
		func(userID int64) bool { return userID == 1 },
		time.Now().Add(-time.Hour),
		tempDir,
		logger.ForTests(),
	)
	return h, bot, transport
}

func TestDashboardText(t *testing.T) {
	users := &fakePanelUsers{users: make([]repository.User, 3)}
	h, _, _ := newPanelFixture(t, users, t.TempDir())

	text, keyboard, err := h.dashboard(context.Background())
	require.NoError(t, err)

	assert.Contains(t, text, "Admin Panel")
	assert.Contains(t, text, "<b>Users:</b> <code>3</code>")
	assert.Contains(t, text, "<b>Files Indexed:</b> <code>12</code> (2.0 MiB)")
	assert.Contains(t, text, "<b>Data Size:</b> <code>2.0 KiB</code>")
	require.Len(t, keyboard.InlineKeyboard, 3)
	assert.Equal(t, adminRefreshUnique, keyboard.InlineKeyboard[2][0].Unique)
}

func TestUsersKeyboardPagination(t *testing.T) {
	users := &fakePanelUsers{}
	for i := 1; i <= 23; i++ {
		users.users = append(users.users, repository.User{ID: int64(i)})
	}
	users.users[2].Banned = true

	h, bot, _ := newPanelFixture(t, users, t.TempDir())
	c := bot.NewContext(privateText(1, "/admin"))

	first := h.usersKeyboard(c, users.users, 1)
	// 10 user rows, one nav row, one back row.
	require.Len(t, first.InlineKeyboard, 12)
	nav := first.InlineKeyboard[10]
	require.Len(t, nav, 1)
	assert.Equal(t, "Next ➡️", nav[0].Text)
	assert.Equal(t, "2", nav[0].Data)

	// The banned user gets an unban toggle, everyone else a ban one.
	assert.Equal(t, adminUnbanUnique, first.InlineKeyboard[2][1].Unique)
	assert.Equal(t, adminBanUnique, first.InlineKeyboard[3][1].Unique)
	assert.Equal(t, "3|1", first.InlineKeyboard[2][1].Data)

	last := h.usersKeyboard(c, users.users, 3)
	// 3 user rows, the prev nav, the back row.
	require.Len(t, last.InlineKeyboard, 5)
	assert.Equal(t, "⬅️ Previous", last.InlineKeyboard[3][0].Text)

	clamped := h.usersKeyboard(c, users.users, 99)
	assert.Equal(t, len(last.InlineKeyboard), len(clamped.InlineKeyboard), "overshooting pages clamps to the last one")
}

func TestUserPageArgs(t *testing.T) {
	bot, _ := newTestBot(t)
	card := &tele.Message{ID: 3, Chat: &tele.Chat{ID: 1}}

	userID, page, err := userPageArgs(bot.NewContext(callbackUpdate(1, "512|4", card)))
	require.NoError(t, err)
	assert.EqualValues(t, 512, userID)
	assert.Equal(t, 4, page)

	for _, data := range []string{"512", "a|1", "512|b", "512|0", "512|1|9"} {
		_, _, err := userPageArgs(bot.NewContext(callbackUpdate(1, data, card)))
		assert.Error(t, err, "data %q should not parse", data)
	}
}

func TestSetBannedGuardsSelf(t *testing.T) {
	users := &fakePanelUsers{users: []repository.User{{ID: 1}, {ID: 5}}}
	h, bot, transport := newPanelFixture(t, users, t.TempDir())
	card := &tele.Message{ID: 3, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}}

	require.NoError(t, h.onBan(bot.NewContext(callbackUpdate(1, "1|1", card))))
	assert.Empty(t, users.bans, "admins cannot ban themselves")
	require.Len(t, transport.byMethod("answerCallbackQuery"), 1)
}

func TestSetBannedRefreshesList(t *testing.T) {
	users := &fakePanelUsers{users: []repository.User{{ID: 1}, {ID: 5}}}
	h, bot, transport := newPanelFixture(t, users, t.TempDir())
	card := &tele.Message{ID: 3, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}}

	require.NoError(t, h.onBan(bot.NewContext(callbackUpdate(1, "5|1", card))))
	assert.Equal(t, []int64{5}, users.bans)
	assert.Len(t, transport.byMethod("editMessageReplyMarkup"), 1)

	require.NoError(t, h.onUnban(bot.NewContext(callbackUpdate(1, "5|1", card))))
	assert.Equal(t, []int64{5}, users.unbans)
}

func TestTimeRangeLabel(t *testing.T) {
	assert.Equal(t, "All Time", timeRangeLabel(0))
	assert.Equal(t, "Today", timeRangeLabel(1))
	assert.Equal(t, "This Week", timeRangeLabel(7))
	assert.Equal(t, "This Month", timeRangeLabel(30))
	assert.Equal(t, "14 Days", timeRangeLabel(14))
}

func TestTempFilesKeyboard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	h, _, _ := newPanelFixture(t, &fakePanelUsers{}, dir)

	keyboard := h.tempFilesKeyboard()
	// Two file rows, the delete-all row, the back row. The directory
	// is not offered for deletion.
	require.Len(t, keyboard.InlineKeyboard, 4)
	assert.Equal(t, "⚠️ DELETE ALL FILES ⚠️", keyboard.InlineKeyboard[2][0].Text)

	empty := t.TempDir()
	h, _, _ = newPanelFixture(t, &fakePanelUsers{}, empty)
	keyboard = h.tempFilesKeyboard()
	require.Len(t, keyboard.InlineKeyboard, 2)
	assert.Contains(t, keyboard.InlineKeyboard[0][0].Text, "No temporary files found")
}

func TestTempDelete(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.jpg", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	h, bot, _ := newPanelFixture(t, &fakePanelUsers{}, dir)
	card := &tele.Message{ID: 3, Text: tempManagerText, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}}

	require.NoError(t, h.onTempDelete(bot.NewContext(callbackUpdate(1, "a.mp4", card))))
	assert.NoFileExists(t, filepath.Join(dir, "a.mp4"))
	assert.FileExists(t, filepath.Join(dir, "b.jpg"))

	// Path escapes are reduced to their base name.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "passwd"), []byte("x"), 0o644))
	escape := fmt.Sprintf("..%cpasswd", filepath.Separator)
	require.NoError(t, h.onTempDelete(bot.NewContext(callbackUpdate(1, escape, card))))
	assert.NoFileExists(t, filepath.Join(dir, "passwd"))

	require.NoError(t, h.onTempDelete(bot.NewContext(callbackUpdate(1, "all", card))))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
