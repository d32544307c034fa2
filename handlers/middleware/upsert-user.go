package middleware

import (
	"context"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

type userAdder interface {
	Add(ctx context.Context, userID int64) error
}

// UpsertUserMiddleware records everyone who talks to the bot in private.
// The write is fire-and-forget so a slow database never delays a reply.
func UpsertUserMiddleware(log *zap.Logger, users userAdder) func(hf tele.HandlerFunc) tele.HandlerFunc {
	return func(hf tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer tracer.Trace("UpsertUser middleware")()
			if sender := c.Sender(); sender != nil && !sender.IsBot &&
				c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
				go func(userID int64) {
					if err := users.Add(context.Background(), userID); err != nil {
						log.Warn("upserting user failed", zap.Int64("user_id", userID), zap.Error(err))
					}
				}(sender.ID)
			}
			return hf(c)
		}
	}
}
