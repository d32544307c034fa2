package markup

import (
	tele "gopkg.in/telebot.v3"
)

var (
	AdminPanelBtn     = Data("👑 Admin Panel", "admin-menu")
	RequestContentBtn = Data("🎬 Request Content", "request-info")
	HelpBtn           = Data("❓ Help & About", "help-info")
	MyStatsBtn        = Data("📊 My Stats", "my-stats")
	StartMenuBtn      = Data("⬅️ Back to Main Menu", "start-menu")

	SupportBtn = URL("💬 Support", "https://t.me/YourSupportGroup")
	UpdatesBtn = URL("📣 Updates", "https://t.me/YourUpdatesChannel")
)

// WelcomeMarkup is the inline keyboard under the greeting. The request
// button only appears on a fresh /start; menu rebuilds drop it. Admins
// get a panel row on top.
func WelcomeMarkup(isAdmin bool, withRequest bool) *tele.ReplyMarkup {
	var rows []tele.Row
	if isAdmin {
		rows = append(rows, Row(AdminPanelBtn))
	}
	if withRequest {
		rows = append(rows, Row(RequestContentBtn))
	}
	rows = append(rows,
		Row(HelpBtn, MyStatsBtn),
		Row(SupportBtn, UpdatesBtn),
	)
	return InlineMarkup(rows...)
}

func BackToMenuMarkup() *tele.ReplyMarkup {
	return InlineMarkup(Row(StartMenuBtn))
}

func ShareLinkMarkup(shareURL string) *tele.ReplyMarkup {
	return InlineMarkup(Row(URL("🔁 Share Link", shareURL)))
}
