package middleware

import (
	tele "gopkg.in/telebot.v3"
)

// AutoRespondCallback closes the loading spinner on every callback the
// handler did not answer itself. Responding twice is harmless, Telegram
// drops the second answer.
func AutoRespondCallback(hf tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		err := hf(c)
		if c.Callback() != nil {
			_ = c.Respond(&tele.CallbackResponse{})
		}
		return err
	}
}
