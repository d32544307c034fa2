package middleware

import (
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/notify"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

func RecoverMiddleware(log *zap.Logger, notifier *notify.Notifier) func(hf tele.HandlerFunc) tele.HandlerFunc {
	return func(hf tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				defer tracer.Trace("RecoverMiddleware::defer")()
				if r := recover(); r != nil {
					log.WithOptions(zap.AddCallerSkip(3)).Error("panic in handler", zap.Any("panicObj", r))
					_ = notifier.Owner(fmt.Sprintf("Panic\n\n%v\n\n%#v", r, r))
				}
			}()
			return hf(c)
		}
	}
}
