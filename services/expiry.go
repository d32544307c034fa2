package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/markup"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

const (
	countdownText          = "⏳ This file will expire in: <b>%s</b>"
	rerequestCountdownText = "⏳ This re-requested file will expire in: <b>%s</b>"
	expiredFallbackText    = "This file has expired."
	reRequestButtonText    = "🔄 Request File Again"

	// ReRequestUnique tags the callback behind the re-request button.
	// Payload: channel message id, window deadline as unix seconds.
	ReRequestUnique = "rerequest"
)

// ExpiryBot is the slice of the bot API the watcher needs.
type ExpiryBot interface {
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// ExpiryService removes delivered files after the configured lifetime.
// A countdown notice is kept up to date while the file lives; once the
// file is deleted the notice turns into a one-time re-request offer,
// or a final goodbye if the offer was already used.
type ExpiryService struct {
	bot                 ExpiryBot
	autoDelete          time.Duration
	reRequestWindow     time.Duration
	expiredMessage      string
	finalExpiredMessage string
	log                 *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExpiryService(
	bot ExpiryBot,
	autoDelete, reRequestWindow time.Duration,
	expiredMessage, finalExpiredMessage string,
	log *zap.Logger,
) *ExpiryService {
	return &ExpiryService{
		bot:                 bot,
		autoDelete:          autoDelete,
		reRequestWindow:     reRequestWindow,
		expiredMessage:      expiredMessage,
		finalExpiredMessage: finalExpiredMessage,
		log:                 log.Named("expiry"),
		now:                 time.Now,
		sleep:               sleepContext,
	}
}

// Lifetime reports how long delivered files live.
func (s *ExpiryService) Lifetime() time.Duration { return s.autoDelete }

// CountdownText renders the notice shown under a delivered file.
func (s *ExpiryService) CountdownText(remaining time.Duration) string {
	return fmt.Sprintf(countdownText, format.ReadableTime(remaining))
}

// InitialNoticeText is the first countdown message sent right after a
// delivery. Re-requested files get their own wording.
func (s *ExpiryService) InitialNoticeText(finalPass bool) string {
	if finalPass {
		return fmt.Sprintf(rerequestCountdownText, format.ReadableTime(s.autoDelete))
	}
	return fmt.Sprintf(countdownText, format.ReadableTime(s.autoDelete))
}

// Watch runs the countdown for one delivered file. Call it in its own
// goroutine. delivered is the file copy in the user's chat, notice the
// countdown message below it, dbMsgID the file's id in the storage
// channel. finalPass marks a re-requested delivery, which gets no
// second offer.
func (s *ExpiryService) Watch(ctx context.Context, delivered, notice tele.Editable, dbMsgID int, finalPass bool) {
	defer tracer.Trace("ExpiryService::Watch")()

	deadline := s.now().Add(s.autoDelete)
	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			break
		}
		if _, err := s.bot.Edit(notice, s.CountdownText(remaining)); err != nil {
			// The notice may be gone or we are rate limited. Either
			// way the timer keeps running.
			s.log.Debug("countdown edit failed", zap.Error(err))
		}
		if err := s.sleep(ctx, nextTick(remaining)); err != nil {
			return
		}
	}

	if err := s.bot.Delete(delivered); err != nil {
		s.log.Warn("deleting expired file", zap.Error(err))
	}
	if err := s.finalize(notice, dbMsgID, finalPass); err != nil {
		s.log.Warn("closing expiry notice", zap.Error(err))
		if _, err := s.bot.Edit(notice, expiredFallbackText); err != nil {
			s.log.Debug("fallback expiry edit failed", zap.Error(err))
		}
	}
}

func (s *ExpiryService) finalize(notice tele.Editable, dbMsgID int, finalPass bool) error {
	if finalPass {
		_, err := s.bot.Edit(notice, s.finalExpiredMessage)
		return err
	}
	windowDeadline := s.now().Add(s.reRequestWindow)
	hours := strconv.Itoa(int(s.reRequestWindow.Hours()))
	text := strings.ReplaceAll(s.expiredMessage, "{hours}", hours)
	btn := markup.Data(reRequestButtonText, ReRequestUnique,
		strconv.Itoa(dbMsgID),
		strconv.FormatInt(windowDeadline.Unix(), 10),
	)
	_, err := s.bot.Edit(notice, text, markup.InlineMarkup(markup.Row(btn)))
	return err
}

// nextTick keeps the countdown cheap: five second steps until the last
// ten seconds, then every second.
func nextTick(remaining time.Duration) time.Duration {
	if remaining > 10*time.Second {
		return 5 * time.Second
	}
	if remaining < time.Second {
		return remaining
	}
	return time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
