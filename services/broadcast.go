package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// broadcastProgressEvery is how many deliveries pass between edits of
// the progress message.
const broadcastProgressEvery = 100

// BroadcastSender is the slice of the bot API the broadcaster needs.
type BroadcastSender interface {
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// BroadcastAudience lists deliverable users and prunes dead accounts.
type BroadcastAudience interface {
	ActiveIDs(ctx context.Context) ([]int64, error)
	Delete(ctx context.Context, userID int64) error
}

// BroadcastReport tallies one broadcast run.
type BroadcastReport struct {
	Total      int
	Successful int
	Blocked    int
	Deleted    int
	Failed     int
}

// Text renders the completion summary shown to the admin.
func (r BroadcastReport) Text() string {
	return fmt.Sprintf(`<b><u>Broadcast Completed</u></b>

<b>Total Users:</b> <code>%d</code>
<b>✅ Successful:</b> <code>%d</code>
<b>🚫 Blocked Users:</b> <code>%d</code>
<b>🗑️ Deleted Accounts:</b> <code>%d</code>
<b>❌ Unsuccessful:</b> <code>%d</code>`,
		r.Total, r.Successful, r.Blocked, r.Deleted, r.Failed)
}

func (r BroadcastReport) progressText() string {
	return fmt.Sprintf("<i>Broadcasting...</i>\n\n<b>Sent:</b> %d\n<b>Blocked:</b> %d\n<b>Failed:</b> %d",
		r.Successful, r.Blocked, r.Failed)
}

// BroadcastService copies an admin's message to every active user.
// Users who blocked the bot or deleted their account are dropped from
// the user base as they are discovered.
type BroadcastService struct {
	bot   BroadcastSender
	users BroadcastAudience
	log   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewBroadcastService(bot BroadcastSender, users BroadcastAudience, log *zap.Logger) *BroadcastService {
	return &BroadcastService{
		bot:   bot,
		users: users,
		log:   log.Named("broadcast"),
		sleep: sleepContext,
	}
}

// Run fans source out to the whole active user base, editing progress
// along the way. It returns the partial report with ctx.Err() when
// cancelled mid-run.
func (s *BroadcastService) Run(ctx context.Context, source, progress tele.Editable) (BroadcastReport, error) {
	defer tracer.Trace("BroadcastService::Run")()

	var report BroadcastReport
	ids, err := s.users.ActiveIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("loading broadcast audience: %w", err)
	}

	runID := uuid.NewString()[:8]
	log := s.log.With(zap.String("run", runID), zap.Int("audience", len(ids)))
	log.Info("broadcast started")

	for _, userID := range ids {
		if ctx.Err() != nil {
			log.Warn("broadcast cancelled", zap.Int("delivered", report.Successful))
			return report, ctx.Err()
		}
		report.Total++
		switch err := s.copyTo(ctx, userID, source); {
		case err == nil:
			report.Successful++
		case errors.Is(err, tele.ErrBlockedByUser):
			s.dropUser(ctx, userID, log)
			report.Blocked++
		case errors.Is(err, tele.ErrUserIsDeactivated):
			s.dropUser(ctx, userID, log)
			report.Deleted++
		default:
			report.Failed++
			log.Debug("broadcast delivery failed", zap.Int64("user", userID), zap.Error(err))
		}
		if progress != nil && report.Total%broadcastProgressEvery == 0 {
			if _, err := s.bot.Edit(progress, report.progressText()); err != nil {
				log.Debug("progress edit failed", zap.Error(err))
			}
		}
	}

	log.Info("broadcast finished",
		zap.Int("successful", report.Successful),
		zap.Int("blocked", report.Blocked),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed))
	return report, nil
}

// copyTo delivers once, honouring a flood wait with a single retry.
func (s *BroadcastService) copyTo(ctx context.Context, userID int64, source tele.Editable) error {
	_, err := s.bot.Copy(tele.ChatID(userID), source)
	var flood tele.FloodError
	if errors.As(err, &flood) {
		s.log.Warn("hit flood limit, waiting", zap.Int("retry_after", flood.RetryAfter))
		if serr := s.sleep(ctx, time.Duration(flood.RetryAfter)*time.Second); serr != nil {
			return serr
		}
		_, err = s.bot.Copy(tele.ChatID(userID), source)
	}
	return err
}

func (s *BroadcastService) dropUser(ctx context.Context, userID int64, log *zap.Logger) {
	if err := s.users.Delete(ctx, userID); err != nil {
		log.Warn("pruning unreachable user", zap.Int64("user", userID), zap.Error(err))
	}
}
