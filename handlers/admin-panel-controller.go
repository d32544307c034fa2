package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/repository"
)

const (
	adminRefreshUnique    = "admin-refresh"
	adminAnalyticsUnique  = "admin-analytics"
	adminTopUnique        = "admin-top"
	adminServerUnique     = "admin-server"
	adminUsersUnique      = "admin-users"
	adminListUsersUnique  = "admin-list-users"
	adminUserUnique       = "admin-user"
	adminHistoryUnique    = "admin-history"
	adminBanUnique        = "admin-ban"
	adminUnbanUnique      = "admin-unban"
	adminTempFilesUnique  = "admin-temp-files"
	adminTempDeleteUnique = "admin-temp-delete"
	noopUnique            = "noop"

	usersPerPage   = 10
	tempFilesShown = 20
	historyLimit   = 5
)

const tempManagerText = "<b>📂 Temp File Manager</b>\n\nThis tool allows you to clean up temporary files created by the bot."

type panelUsers interface {
	All(ctx context.Context) ([]repository.User, error)
	ByID(ctx context.Context, userID int64) (*repository.User, error)
	Count(ctx context.Context) (int64, error)
	Ban(ctx context.Context, userID int64) error
	Unban(ctx context.Context, userID int64) error
}

type panelFiles interface {
	TotalStats(ctx context.Context) (count int64, size int64, err error)
}

type panelAnalytics interface {
	DailyCounts(ctx context.Context) (today, yesterday, dayBefore int64, err error)
	TopFiles(ctx context.Context, days int) ([]repository.TopFile, error)
	UserDownloadCount(ctx context.Context, userID int64) (int64, error)
	UserLastDownloads(ctx context.Context, userID int64, limit int) ([]repository.UserDownload, error)
	DBStats(ctx context.Context) (storageSize, dataSize int64, err error)
}

// AdminPanelController is the inline dashboard: live totals, download
// analytics, paginated user management with ban toggles, server load
// and the temp file manager.
type AdminPanelController struct {
	users     panelUsers
	files     panelFiles
	analytics panelAnalytics
	isAdmin   func(userID int64) bool
	startedAt time.Time
	tempDir   string
	log       *zap.Logger
}

func NewAdminPanelController(
	users panelUsers,
	files panelFiles,
	analytics panelAnalytics,
	isAdmin func(userID int64) bool,
	startedAt time.Time,
	tempDir string,
	log *zap.Logger,
) *AdminPanelController {
	return &AdminPanelController{
		users:     users,
		files:     files,
		analytics: analytics,
		isAdmin:   isAdmin,
		startedAt: startedAt,
		tempDir:   tempDir,
		log:       log.Named("admin-panel"),
	}
}

// Register wires the panel. The panel button itself stays ungated: it
// sits under every welcome message, and pressing it as a non-admin
// should explain itself instead of staying silent.
func (h *AdminPanelController) Register(mux botMux, adminAuth tele.MiddlewareFunc) {
	mux.Handle(&markup.AdminPanelBtn, h.onMenu)
	mux.Handle("/admin", h.onAdmin, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminRefreshUnique}, h.onRefresh, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminAnalyticsUnique}, h.onAnalytics, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminTopUnique}, h.onTopFiles, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminServerUnique}, h.onServer, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminUsersUnique}, h.onUsers, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminListUsersUnique}, h.onListUsers, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminUserUnique}, h.onUserDetail, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminHistoryUnique}, h.onHistory, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminBanUnique}, h.onBan, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminUnbanUnique}, h.onUnban, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminTempFilesUnique}, h.onTempFiles, adminAuth)
	mux.Handle(&tele.Btn{Unique: adminTempDeleteUnique}, h.onTempDelete, adminAuth)
	mux.Handle(&tele.Btn{Unique: noopUnique}, h.onNoop)
}

func (h *AdminPanelController) onAdmin(c tele.Context) error {
	defer tracer.Trace("/admin")()
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	text, keyboard, err := h.dashboard(context.Background())
	if err != nil {
		return err
	}
	return c.Reply(text, keyboard)
}

func (h *AdminPanelController) onMenu(c tele.Context) error {
	defer tracer.Trace("adminMenu")()
	if c.Sender() == nil || !h.isAdmin(c.Sender().ID) {
		return c.Respond(&tele.CallbackResponse{Text: "This is an admin-only area.", ShowAlert: true})
	}
	text, keyboard, err := h.dashboard(context.Background())
	if err != nil {
		return err
	}
	return h.edit(c, text, keyboard)
}

func (h *AdminPanelController) onRefresh(c tele.Context) error {
	defer tracer.Trace("adminRefresh")()
	if err := c.Respond(&tele.CallbackResponse{Text: "Refreshing stats..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}
	text, keyboard, err := h.dashboard(context.Background())
	if err != nil {
		return err
	}
	return h.edit(c, text, keyboard)
}

func (h *AdminPanelController) dashboard(ctx context.Context) (string, *tele.ReplyMarkup, error) {
	userCount, err := h.users.Count(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("counting users: %w", err)
	}
	fileCount, fileSize, err := h.files.TotalStats(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("collecting file stats: %w", err)
	}
	storageSize, dataSize, err := h.analytics.DBStats(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("collecting db stats: %w", err)
	}

	text := fmt.Sprintf(
		"👑 <b>Admin Panel</b> 👑\n\nHere's a quick overview of your bot's status:\n\n👤 <b>Users:</b> <code>%d</code>\n🗂️ <b>Files Indexed:</b> <code>%d</code> (%s)\n💽 <b>Data Size:</b> <code>%s</code>\n💾 <b>Storage Size:</b> <code>%s</code>\n\n<i>Last Updated: %s</i>",
		userCount, fileCount, format.Bytes(fileSize),
		format.Bytes(dataSize), format.Bytes(storageSize),
		time.Now().Format("03:04:05 PM"),
	)
	keyboard := markup.InlineMarkup(
		markup.Row(
			markup.Data("📈 Analytics", adminAnalyticsUnique),
			markup.Data("👥 Users", adminUsersUnique),
		),
		markup.Row(
			markup.Data("🖥️ Server", adminServerUnique),
			markup.Data("📂 Temp Files", adminTempFilesUnique),
		),
		markup.Row(markup.Data("🔄 Refresh Stats", adminRefreshUnique)),
	)
	return text, keyboard, nil
}

func (h *AdminPanelController) onAnalytics(c tele.Context) error {
	defer tracer.Trace("adminAnalytics")()
	today, yesterday, dayBefore, err := h.analytics.DailyCounts(context.Background())
	if err != nil {
		return fmt.Errorf("collecting daily counts: %w", err)
	}

	text := fmt.Sprintf(
		"📈 <b>Bot Analytics</b>\n\n<b>File Requests (Downloads):</b>\n  - <b>Today:</b> <code>%d</code>\n  - <b>Yesterday:</b> <code>%d</code>\n  - <b>Day Before:</b> <code>%d</code>\n\nSelect a time range to view top trending files.",
		today, yesterday, dayBefore,
	)
	keyboard := markup.InlineMarkup(
		markup.Row(
			markup.Data("Today", adminTopUnique, "1"),
			markup.Data("Week", adminTopUnique, "7"),
			markup.Data("Month", adminTopUnique, "30"),
			markup.Data("All Time", adminTopUnique, "0"),
		),
		markup.Row(backToMainBtn()),
	)
	return h.edit(c, text, keyboard)
}

func (h *AdminPanelController) onTopFiles(c tele.Context) error {
	defer tracer.Trace("adminTopFiles")()
	args := c.Args()
	if len(args) != 1 {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Fetching top files..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}

	top, err := h.analytics.TopFiles(context.Background(), days)
	if err != nil {
		return fmt.Errorf("collecting top files: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 <b>Top 5 Trending Files (%s)</b>\n\n", timeRangeLabel(days))
	if len(top) == 0 {
		b.WriteString("<code>No download data available for this period.</code>")
	} else {
		for i, file := range top {
			name := file.FileName
			if name == "" {
				name = "Unknown File"
			}
			fmt.Fprintf(&b, "<b>%d.</b> <code>%s</code> - <b>%d</b> requests\n", i+1, html.EscapeString(name), file.Count)
		}
	}
	keyboard := markup.InlineMarkup(markup.Row(markup.Data("⬅️ Back to Analytics", adminAnalyticsUnique)))
	return h.edit(c, b.String(), keyboard)
}

func timeRangeLabel(days int) string {
	switch days {
	case 0:
		return "All Time"
	case 1:
		return "Today"
	case 7:
		return "This Week"
	case 30:
		return "This Month"
	}
	return fmt.Sprintf("%d Days", days)
}

func (h *AdminPanelController) onServer(c tele.Context) error {
	defer tracer.Trace("adminServer")()
	text := fmt.Sprintf(
		"🖥️ <b>Server Information</b>\n\n<b>Uptime:</b> <code>%s</code>\n<b>CPU Usage:</b> <code>%.1f%%</code>\n<b>Memory Usage:</b> <code>%.1f%%</code>\n<b>Disk Usage:</b> <code>%.1f%%</code>",
		format.ReadableTime(time.Since(h.startedAt)),
		cpuPercent(), memoryPercent(), diskPercent(),
	)
	keyboard := markup.InlineMarkup(markup.Row(backToMainBtn()))
	return h.edit(c, text, keyboard)
}

func cpuPercent() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}

func memoryPercent() float64 {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return stat.UsedPercent
}

func diskPercent() float64 {
	stat, err := disk.Usage("/")
	if err != nil {
		return 0
	}
	return stat.UsedPercent
}

func (h *AdminPanelController) onUsers(c tele.Context) error {
	defer tracer.Trace("adminUsers")()
	keyboard := markup.InlineMarkup(
		markup.Row(markup.Data("📜 List All Users", adminListUsersUnique, "1")),
		markup.Row(markup.Data("⬅️ Back", markup.AdminPanelBtn.Unique)),
	)
	return h.edit(c, "👥 <b>User Management</b>", keyboard)
}

func (h *AdminPanelController) onListUsers(c tele.Context) error {
	defer tracer.Trace("adminListUsers")()
	page := 1
	if args := c.Args(); len(args) == 1 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Fetching user details..."}); err != nil {
		h.log.Debug("callback respond failed", zap.Error(err))
	}

	users, err := h.users.All(context.Background())
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	text := fmt.Sprintf("👥 <b>All Users (%d) - Page %d</b>", len(users), page)
	return h.edit(c, text, h.usersKeyboard(c, users, page))
}

func (h *AdminPanelController) usersKeyboard(c tele.Context, users []repository.User, page int) *tele.ReplyMarkup {
	totalPages := (len(users) + usersPerPage - 1) / usersPerPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * usersPerPage
	end := start + usersPerPage
	if end > len(users) {
		end = len(users)
	}

	pageArg := strconv.Itoa(page)
	var rows []tele.Row
	for _, user := range users[start:end] {
		uid := strconv.FormatInt(user.ID, 10)
		action := markup.Data("🚫 Ban", adminBanUnique, uid, pageArg)
		if user.Banned {
			action = markup.Data("✅ Unban", adminUnbanUnique, uid, pageArg)
		}
		rows = append(rows, markup.Row(
			markup.Data(h.displayName(c, user.ID), adminUserUnique, uid, pageArg),
			action,
		))
	}

	var nav []tele.Btn
	if page > 1 {
		nav = append(nav, markup.Data("⬅️ Previous", adminListUsersUnique, strconv.Itoa(page-1)))
	}
	if page < totalPages {
		nav = append(nav, markup.Data("Next ➡️", adminListUsersUnique, strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, markup.Row(backToMainBtn()))
	return markup.InlineMarkup(rows...)
}

// displayName resolves the user's current first name. Telegram forgets
// users the bot never talked to, hence the ID fallback.
func (h *AdminPanelController) displayName(c tele.Context, userID int64) string {
	chat, err := c.Bot().ChatByID(userID)
	if err != nil || chat.FirstName == "" {
		return fmt.Sprintf("👤 ID: %d", userID)
	}
	return "👤 " + chat.FirstName
}

func (h *AdminPanelController) onUserDetail(c tele.Context) error {
	defer tracer.Trace("adminUserDetail")()
	userID, page, err := userPageArgs(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	ctx := context.Background()

	joined, status := "N/A", "Active ✅"
	user, err := h.users.ByID(ctx, userID)
	switch {
	case err == nil:
		if !user.JoinedDate.IsZero() {
			joined = user.JoinedDate.Format("02 Jan 2006")
		}
		if user.Banned {
			status = "Banned 🚫"
		}
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("fetching user %d: %w", userID, err)
	}

	downloads, err := h.analytics.UserDownloadCount(ctx, userID)
	if err != nil {
		return fmt.Errorf("counting downloads: %w", err)
	}

	name, username := "Unknown", "N/A"
	if chat, err := c.Bot().ChatByID(userID); err == nil {
		if chat.FirstName != "" {
			name = chat.FirstName
		}
		if chat.Username != "" {
			username = chat.Username
		}
	}

	text := fmt.Sprintf(
		"👤 <b>User Details:</b>\n\n • <b>Name:</b> %s\n • <b>User ID:</b> <code>%d</code>\n • <b>Username:</b> @%s\n • <b>Joined:</b> <code>%s</code>\n • <b>Bot Status:</b> %s\n • <b>Total Requests:</b> <code>%d</code>",
		format.Mention(userID, name), userID, username, joined, status, downloads,
	)
	uid := strconv.FormatInt(userID, 10)
	pageArg := strconv.Itoa(page)
	keyboard := markup.InlineMarkup(
		markup.Row(markup.Data("📜 View Last 5 Downloads", adminHistoryUnique, uid, pageArg)),
		markup.Row(markup.Data(fmt.Sprintf("⬅️ Back to Page %d", page), adminListUsersUnique, pageArg)),
	)
	return h.edit(c, text, keyboard)
}

func (h *AdminPanelController) onHistory(c tele.Context) error {
	defer tracer.Trace("adminHistory")()
	userID, page, err := userPageArgs(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	downloads, err := h.analytics.UserLastDownloads(context.Background(), userID, historyLimit)
	if err != nil {
		return fmt.Errorf("fetching download history: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 <b>Last 5 Downloads for User %d</b>\n\n", userID)
	if len(downloads) == 0 {
		b.WriteString("<code>This user has not downloaded any files yet.</code>")
	} else {
		for i, download := range downloads {
			fmt.Fprintf(&b, "<b>%d.</b> <code>%s</code>\n     <i>(On %s)</i>\n",
				i+1, html.EscapeString(download.FileName), download.Timestamp.Format("02 Jan 2006"))
		}
	}
	keyboard := markup.InlineMarkup(markup.Row(
		markup.Data("⬅️ Back to User Details", adminUserUnique, strconv.FormatInt(userID, 10), strconv.Itoa(page)),
	))
	return h.edit(c, b.String(), keyboard)
}

func (h *AdminPanelController) onBan(c tele.Context) error {
	defer tracer.Trace("adminBan")()
	return h.setBanned(c, true)
}

func (h *AdminPanelController) onUnban(c tele.Context) error {
	defer tracer.Trace("adminUnban")()
	return h.setBanned(c, false)
}

func (h *AdminPanelController) setBanned(c tele.Context, banned bool) error {
	userID, page, err := userPageArgs(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}
	if userID == c.Sender().ID {
		return c.Respond(&tele.CallbackResponse{Text: "You cannot ban yourself.", ShowAlert: true})
	}
	ctx := context.Background()

	if banned {
		if err := h.users.Ban(ctx, userID); err != nil {
			return fmt.Errorf("banning user %d: %w", userID, err)
		}
		if err := c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("User %d has been BANNED.", userID), ShowAlert: true}); err != nil {
			h.log.Debug("callback respond failed", zap.Error(err))
		}
	} else {
		if err := h.users.Unban(ctx, userID); err != nil {
			return fmt.Errorf("unbanning user %d: %w", userID, err)
		}
		if err := c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("User %d has been UNBANNED.", userID), ShowAlert: true}); err != nil {
			h.log.Debug("callback respond failed", zap.Error(err))
		}
	}

	users, err := h.users.All(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if _, err := c.Bot().EditReplyMarkup(c.Message(), h.usersKeyboard(c, users, page)); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		return fmt.Errorf("refreshing user list: %w", err)
	}
	return nil
}

func (h *AdminPanelController) onTempFiles(c tele.Context) error {
	defer tracer.Trace("adminTempFiles")()
	return h.edit(c, tempManagerText, h.tempFilesKeyboard())
}

func (h *AdminPanelController) onTempDelete(c tele.Context) error {
	defer tracer.Trace("adminTempDelete")()
	target := strings.Join(c.Args(), "|")
	if target == "" {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid callback data.", ShowAlert: true})
	}

	if target == "all" {
		removed := h.clearTempDir()
		if err := c.Respond(&tele.CallbackResponse{
			Text:      fmt.Sprintf("All %d temporary files have been deleted.", removed),
			ShowAlert: true,
		}); err != nil {
			h.log.Debug("callback respond failed", zap.Error(err))
		}
		return h.edit(c, tempManagerText, h.tempFilesKeyboard())
	}

	name := filepath.Base(target)
	err := os.Remove(filepath.Join(h.tempDir, name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := c.Respond(&tele.CallbackResponse{Text: "File not found.", ShowAlert: true}); err != nil {
			h.log.Debug("callback respond failed", zap.Error(err))
		}
	case err != nil:
		return fmt.Errorf("removing temp file %s: %w", name, err)
	default:
		if err := c.Respond(&tele.CallbackResponse{Text: "Deleted: " + name, ShowAlert: true}); err != nil {
			h.log.Debug("callback respond failed", zap.Error(err))
		}
	}
	return h.edit(c, tempManagerText, h.tempFilesKeyboard())
}

func (h *AdminPanelController) tempFilesKeyboard() *tele.ReplyMarkup {
	names := h.tempFileNames()
	var rows []tele.Row
	if len(names) == 0 {
		rows = append(rows, markup.Row(markup.Data("✅ No temporary files found.", noopUnique)))
	} else {
		if len(names) > tempFilesShown {
			names = names[:tempFilesShown]
		}
		for _, name := range names {
			rows = append(rows, markup.Row(
				markup.Data("📄 "+format.Truncate(name, 30), noopUnique),
				markup.Data("🗑️ Delete", adminTempDeleteUnique, name),
			))
		}
		rows = append(rows, markup.Row(markup.Data("⚠️ DELETE ALL FILES ⚠️", adminTempDeleteUnique, "all")))
	}
	rows = append(rows, markup.Row(backToMainBtn()))
	return markup.InlineMarkup(rows...)
}

func (h *AdminPanelController) tempFileNames() []string {
	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		h.log.Warn("temp dir listing failed", zap.String("dir", h.tempDir), zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}

func (h *AdminPanelController) clearTempDir() int {
	removed := 0
	for _, name := range h.tempFileNames() {
		if err := os.Remove(filepath.Join(h.tempDir, name)); err != nil {
			h.log.Warn("temp file removal failed", zap.String("name", name), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

func (h *AdminPanelController) onNoop(c tele.Context) error {
	return nil
}

// edit replaces the panel message in place, switching to caption edits
// when the menu lives under a welcome photo.
func (h *AdminPanelController) edit(c tele.Context, text string, keyboard *tele.ReplyMarkup) error {
	var err error
	if c.Message() != nil && c.Message().Photo != nil {
		err = c.EditCaption(text, keyboard)
	} else {
		err = c.Edit(text, keyboard, tele.NoPreview)
	}
	if errors.Is(err, tele.ErrSameMessageContent) {
		return c.Respond(&tele.CallbackResponse{Text: "No changes to show."})
	}
	return err
}

func backToMainBtn() tele.Btn {
	return markup.Data("⬅️ Back to Main Menu", markup.AdminPanelBtn.Unique)
}

func userPageArgs(c tele.Context) (userID int64, page int, err error) {
	args := c.Args()
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("unexpected callback args %v", args)
	}
	userID, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing user id: %w", err)
	}
	page, err = strconv.Atoi(args[1])
	if err != nil || page < 1 {
		return 0, 0, fmt.Errorf("parsing page: %w", err)
	}
	return userID, page, nil
}
