package handlers

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

type userCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsController answers /stats with uptime and user-base size.
func StatsController(mux botMux, adminAuth tele.MiddlewareFunc, users userCounter, startedAt time.Time) {
	mux.Handle("/stats", func(c tele.Context) error {
		defer tracer.Trace("/stats")()
		count, err := users.Count(context.Background())
		if err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		return c.Reply(fmt.Sprintf(
			"📊 <b>HD Cinema Bot Status</b>\n\n » <b>Bot Uptime:</b> <code>%s</code>\n » <b>Active Users:</b> <code>%d</code>",
			format.ReadableTime(time.Since(startedAt)), count,
		))
	}, adminAuth)
}
