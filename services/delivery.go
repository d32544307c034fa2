package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/repository"
)

// deliveryPause spaces out multi-file deliveries so Telegram does not
// throttle us on every bulk link.
const deliveryPause = 500 * time.Millisecond

// DeliveryBot is the slice of the bot API needed to hand files over.
// Raw is used directly because copyMessage with a caption override is
// not covered by the high-level API.
type DeliveryBot interface {
	Raw(method string, payload interface{}) ([]byte, error)
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type deliveryFiles interface {
	ByID(ctx context.Context, messageID int64) (*repository.File, error)
}

type deliveryAnalytics interface {
	LogDownload(ctx context.Context, fileID, userID int64) error
}

// DeliveryOutcome sums up one delivery run.
type DeliveryOutcome struct {
	Delivered int
	Missing   int  // ids that could not be copied from the storage channel
	Stopped   bool // the user blocked us mid-run
}

// DeliveryService copies stored files from the database channel to a
// user, stamps the configured caption on them and arms the expiry
// countdown for every copy.
type DeliveryService struct {
	bot           DeliveryBot
	files         deliveryFiles
	analytics     deliveryAnalytics
	expiry        *ExpiryService
	channelID     int64
	botUsername   string
	customCaption string
	protect       bool
	channelButton bool
	log           *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDeliveryService(
	bot DeliveryBot,
	files deliveryFiles,
	analytics deliveryAnalytics,
	expiry *ExpiryService,
	channelID int64,
	botUsername string,
	customCaption string,
	protect bool,
	channelButton bool,
	log *zap.Logger,
) *DeliveryService {
	return &DeliveryService{
		bot:           bot,
		files:         files,
		analytics:     analytics,
		expiry:        expiry,
		channelID:     channelID,
		botUsername:   botUsername,
		customCaption: customCaption,
		protect:       protect,
		channelButton: channelButton,
		log:           log.Named("delivery"),
		sleep:         sleepContext,
	}
}

// Deliver copies every requested file to the user. finalPass marks a
// re-requested delivery: those copies expire for good, without another
// re-request offer.
func (s *DeliveryService) Deliver(ctx context.Context, userID int64, msgIDs []int, finalPass bool) (DeliveryOutcome, error) {
	defer tracer.Trace("DeliveryService::Deliver")()
	var out DeliveryOutcome
	for i, msgID := range msgIDs {
		if i > 0 {
			if err := s.sleep(ctx, deliveryPause); err != nil {
				return out, err
			}
		}
		copied, err := s.deliverOne(ctx, userID, msgID)
		if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) {
			out.Stopped = true
			return out, nil
		}
		if err != nil {
			s.log.Warn("file copy failed",
				zap.Int("message_id", msgID), zap.Int64("user_id", userID), zap.Error(err))
			out.Missing++
			continue
		}
		out.Delivered++

		if err := s.analytics.LogDownload(ctx, int64(msgID), userID); err != nil {
			s.log.Warn("recording download failed", zap.Error(err))
		}
		notice, err := s.bot.Send(&tele.User{ID: userID},
			s.expiry.InitialNoticeText(finalPass),
			&tele.SendOptions{ReplyTo: copied},
		)
		if err != nil {
			s.log.Warn("sending countdown notice failed", zap.Error(err))
			continue
		}
		go s.expiry.Watch(ctx, copied, notice, msgID, finalPass)
	}
	return out, nil
}

// deliverOne copies a single channel message, retrying once after a
// flood wait.
func (s *DeliveryService) deliverOne(ctx context.Context, userID int64, msgID int) (*tele.Message, error) {
	copied, err := s.copyMessage(userID, msgID)
	var flood tele.FloodError
	if errors.As(err, &flood) {
		s.log.Warn("flood wait during delivery", zap.Int("retry_after", flood.RetryAfter))
		if err := s.sleep(ctx, time.Duration(flood.RetryAfter)*time.Second); err != nil {
			return nil, err
		}
		copied, err = s.copyMessage(userID, msgID)
	}
	return copied, err
}

func (s *DeliveryService) copyMessage(userID int64, msgID int) (*tele.Message, error) {
	params := map[string]string{
		"chat_id":      strconv.FormatInt(userID, 10),
		"from_chat_id": strconv.FormatInt(s.channelID, 10),
		"message_id":   strconv.Itoa(msgID),
	}
	if caption := s.caption(msgID); caption != "" {
		params["caption"] = caption
		params["parse_mode"] = "HTML"
	}
	if s.protect {
		params["protect_content"] = "true"
	}
	if s.channelButton {
		if btns := s.shareMarkup(msgID); btns != nil {
			raw, err := json.Marshal(btns)
			if err != nil {
				return nil, fmt.Errorf("marshalling share markup: %w", err)
			}
			params["reply_markup"] = string(raw)
		}
	}
	data, err := s.bot.Raw("copyMessage", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result struct {
			MessageID int `json:"message_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding copyMessage response: %w", err)
	}
	return &tele.Message{ID: resp.Result.MessageID, Chat: &tele.Chat{ID: userID}}, nil
}

// caption renders the configured caption template for an indexed file.
// Without a template the original caption travels with the copy.
func (s *DeliveryService) caption(msgID int) string {
	if s.customCaption == "" {
		return ""
	}
	file, err := s.files.ByID(context.Background(), int64(msgID))
	if err != nil {
		return ""
	}
	return strings.NewReplacer(
		"{filename}", html.EscapeString(file.FileName),
		"{previous_caption}", file.Caption,
	).Replace(s.customCaption)
}

// shareMarkup rebuilds the share button the channel copy carries.
func (s *DeliveryService) shareMarkup(msgID int) *tele.ReplyMarkup {
	codec := deeplink.NewCodec(s.channelID)
	payload, err := codec.EncodeSingle(msgID)
	if err != nil {
		return nil
	}
	link := deeplink.BotLink(s.botUsername, payload)
	return markup.ShareLinkMarkup(deeplink.ShareLink(link))
}
