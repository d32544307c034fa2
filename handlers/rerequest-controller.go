package handlers

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/services"
)

// RerequestController serves the one-time "Request File Again" button
// that replaces an expired delivery. The button carries the channel
// message id and its own deadline; past it only the final goodbye is
// left.
func RerequestController(mux botMux, delivery startDeliverer, finalExpiredMessage string, log *zap.Logger) {
	log = log.Named("rerequest")
	mux.Handle(&tele.Btn{Unique: services.ReRequestUnique}, func(c tele.Context) error {
		defer tracer.Trace("rerequestHandler")()
		args := c.Args()
		if len(args) != 2 {
			return brokenButton(c)
		}
		dbMsgID, err := strconv.Atoi(args[0])
		if err != nil {
			return brokenButton(c)
		}
		deadline, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return brokenButton(c)
		}

		if time.Now().Unix() > deadline {
			if err := c.Edit(finalExpiredMessage); err != nil {
				log.Debug("final expiry edit failed", zap.Error(err))
			}
			return c.Respond(&tele.CallbackResponse{
				Text:      "This re-request link has also expired.",
				ShowAlert: true,
			})
		}

		outcome, err := delivery.Deliver(context.Background(), c.Sender().ID, []int{dbMsgID}, true)
		if err != nil {
			log.Error("re-delivery failed", zap.Int("message_id", dbMsgID), zap.Error(err))
			return c.Respond(&tele.CallbackResponse{
				Text:      "An unexpected error occurred. Please try again.",
				ShowAlert: true,
			})
		}
		if outcome.Delivered == 0 {
			if err := c.Edit("❌ <b>File Not Found</b>\nThe original file could not be retrieved from our database."); err != nil {
				log.Debug("file-not-found edit failed", zap.Error(err))
			}
			return c.Respond(&tele.CallbackResponse{
				Text:      "Sorry, I couldn't find the original file. It might have been deleted.",
				ShowAlert: true,
			})
		}

		// The old offer message has served its purpose.
		return c.Delete()
	})
}

func brokenButton(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{
		Text:      "This button seems to be broken. Please try requesting the content again.",
		ShowAlert: true,
	})
}
