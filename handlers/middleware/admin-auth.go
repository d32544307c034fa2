package middleware

import (
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// AdminOnly drops updates from everyone the predicate rejects. Silence
// is deliberate: strangers poking admin commands get no reaction at all.
func AdminOnly(isAdmin func(userID int64) bool) tele.MiddlewareFunc {
	return func(hf tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer tracer.Trace("AdminOnly middleware")()
			if sender := c.Sender(); sender != nil && isAdmin(sender.ID) {
				return hf(c)
			}
			return nil
		}
	}
}
