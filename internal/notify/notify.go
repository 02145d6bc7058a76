// Package notify sends auto-clock-out notifications to an employee and
// their manager over the chat transport, rate limited to respect the
// chat platform's flood limits.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
	"github.com/bbt-251/geofence-attendance-core/internal/transport"
)

// Notifier sends auto-clock-out messages, rate limited per the configured
// policy and globally suppressible via Enabled.
type Notifier struct {
	transport transport.ChatTransport
	limiter   *rate.Limiter
	logger    *zap.Logger
	Enabled   bool
}

// New builds a Notifier. ratePerSecond/burst follow the same
// rate.NewLimiter construction the HTTP layer uses for inbound traffic,
// applied here to outbound notification flood-control.
func New(t transport.ChatTransport, ratePerSecond float64, burst int, logger *zap.Logger) *Notifier {
	return &Notifier{
		transport: t,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		logger:    logger,
		Enabled:   true,
	}
}

// NotifyAutoClockOut messages the employee, and the manager if resolvable,
// that an automatic clock-out happened and why. Failures are logged, not
// retried or propagated — a missed notification must never block the
// monitor loop.
func (n *Notifier) NotifyAutoClockOut(ctx context.Context, employee, manager *models.Employee, reason string) {
	if !n.Enabled {
		return
	}
	if employee.TelegramChatID != nil {
		n.send(ctx, *employee.TelegramChatID, fmt.Sprintf(
			"⚠️ You have been automatically clocked out because %s.", reason))
	}
	if manager != nil && manager.TelegramChatID != nil {
		n.send(ctx, *manager.TelegramChatID, fmt.Sprintf(
			"👤 Employee %s has been automatically clocked out due to %s.", employee.UID, reason))
	}
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) {
	if err := n.limiter.Wait(ctx); err != nil {
		if n.logger != nil {
			n.logger.Warn("notify: rate limiter wait failed", zap.Error(err))
		}
		return
	}
	if err := n.transport.Send(ctx, chatID, text, nil); err != nil {
		if n.logger != nil {
			n.logger.Warn("notify: send failed", zap.Int64("chatID", chatID), zap.Error(err))
		}
	}
}
