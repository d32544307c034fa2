// Package notify fans service messages out to the bot operators.
// Operational notices go to the owner only; content requests and group
// events go to every admin.
package notify

import (
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	liberrors "github.com/dhanushrs1/HDC-File/lib/errors"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// Sender is the slice of the bot API the notifier needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Notifier struct {
	bot    Sender
	owner  int64
	admins []int64
	log    *zap.Logger
}

func New(bot Sender, owner int64, admins []int64, log *zap.Logger) *Notifier {
	return &Notifier{bot: bot, owner: owner, admins: admins, log: log.Named("notify")}
}

// Owner delivers a message to the owner chat.
func (n *Notifier) Owner(what interface{}, opts ...interface{}) error {
	defer tracer.Trace("notify::Owner")()
	if _, err := n.bot.Send(&tele.Chat{ID: n.owner}, what, opts...); err != nil {
		return fmt.Errorf("notifying owner: %w", err)
	}
	return nil
}

// Admins delivers a message to every admin chat. It returns how many
// deliveries succeeded along with the joined per-admin errors, so a
// caller can treat one successful delivery as good enough.
func (n *Notifier) Admins(what interface{}, opts ...interface{}) (int, error) {
	defer tracer.Trace("notify::Admins")()
	var delivered int
	var errs []error
	for _, adminID := range n.admins {
		if _, err := n.bot.Send(&tele.Chat{ID: adminID}, what, opts...); err != nil {
			n.log.Warn("admin notification failed", zap.Int64("admin_id", adminID), zap.Error(err))
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
			continue
		}
		delivered++
	}
	return delivered, liberrors.Join(errs...)
}
