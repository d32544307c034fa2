package middleware

import (
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

func TracingMiddleware(hf tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer tracer.Trace("TraceMiddleware")()
		return hf(c)
	}
}
