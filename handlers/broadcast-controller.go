package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/services"
)

// BroadcastController copies a replied-to message to the entire user
// base and reports the delivery tally back to the admin.
func BroadcastController(mux botMux, adminAuth tele.MiddlewareFunc, broadcast *services.BroadcastService, log *zap.Logger) {
	log = log.Named("broadcast")
	mux.Handle("/broadcast", func(c tele.Context) error {
		defer tracer.Trace("/broadcast")()
		source := c.Message().ReplyTo
		if source == nil {
			return c.Reply("<b>Usage:</b> Reply to the message you want to broadcast with <code>/broadcast</code>.")
		}

		progress, err := c.Bot().Reply(c.Message(), "<i>Broadcasting Message... This will take some time.</i>")
		if err != nil {
			return fmt.Errorf("creating progress message: %w", err)
		}

		report, err := broadcast.Run(context.Background(), source, progress)
		if err != nil {
			log.Error("broadcast aborted", zap.Error(err))
		}
		if _, err := c.Bot().Edit(progress, report.Text()); err != nil {
			return fmt.Errorf("publishing broadcast report: %w", err)
		}
		return nil
	}, adminAuth)
}
