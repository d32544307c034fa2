package handlers

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

const botDescription = `I am the HD Cinema file bot. I keep a private library of movies and series and deliver them through special sharable links.

Use /start to open the menu, or /request to ask for a title we don't have yet.`

const botShortDescription = "HD Cinema file bot. Files through special links, requests welcome."

var publicCommands = []tele.Command{
	{Text: "start", Description: "Open the main menu"},
	{Text: "request", Description: "Request new content"},
}

var adminCommands = []tele.Command{
	{Text: "genlink", Description: "Generate sharable file links"},
	{Text: "admin", Description: "Open the admin panel"},
	{Text: "broadcast", Description: "Broadcast a replied-to message"},
	{Text: "process", Description: "Open the video workspace"},
	{Text: "stats", Description: "Uptime and user count"},
	{Text: "groups", Description: "Manage approved groups"},
	{Text: "service", Description: "Refresh commands and descriptions"},
}

// ServiceController installs the command menus and bot descriptions.
// Run /service once after deploying a new build.
func ServiceController(mux botMux, adminAuth tele.MiddlewareFunc, admins []int64) {
	mux.Handle("/service", func(c tele.Context) error {
		defer tracer.Trace("/service")()
		bot := c.Bot()

		if err := bot.SetCommands(publicCommands); err != nil {
			return fmt.Errorf("/service SetCommands: %w", err)
		}
		// A chat-scoped list replaces the default one entirely, so
		// admins get the public commands again on top of their own.
		for _, adminID := range admins {
			combined := append(append([]tele.Command{}, publicCommands...), adminCommands...)
			if err := bot.SetCommands(combined, tele.CommandScope{
				Type:   tele.CommandScopeChat,
				ChatID: adminID,
			}); err != nil {
				return fmt.Errorf("/service admin commands for %d: %w", adminID, err)
			}
		}

		if _, err := bot.Raw("setMyDescription", map[string]string{
			"description": botDescription,
		}); err != nil {
			return fmt.Errorf("/service setMyDescription: %w", err)
		}
		if _, err := bot.Raw("setMyShortDescription", map[string]string{
			"short_description": botShortDescription,
		}); err != nil {
			return fmt.Errorf("/service setMyShortDescription: %w", err)
		}
		return c.Reply("✅ Bot commands and descriptions have been updated.")
	}, adminAuth)
}
