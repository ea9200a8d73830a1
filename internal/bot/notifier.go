package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/animegate/internal/authorization"
	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	"github.com/smallbiznis/animegate/internal/config"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	"go.uber.org/zap"
)

// AdminNotifier tells every administrator about VIP purchases. The
// subscription service calls it after commit on its own goroutine.
type AdminNotifier struct {
	transport Transport
	authz     authorization.Service
	botCfg    *config.BotConfigHolder
	log       *zap.Logger
}

func NewAdminNotifier(transport Transport, authz authorization.Service, botCfg *config.BotConfigHolder, log *zap.Logger) *AdminNotifier {
	return &AdminNotifier{
		transport: transport,
		authz:     authz,
		botCfg:    botCfg,
		log:       log.Named("bot.notifier"),
	}
}

func (n *AdminNotifier) NotifyPurchase(ctx context.Context, result subscriptiondomain.PurchaseResult) error {
	admins, err := n.authz.Admins(ctx)
	if err != nil {
		return err
	}
	cfg := n.botCfg.Get()
	t := texts{cfg: cfg}
	text := t.format(textVIPAdminNotice, result.UserID, result.Days, result.Price, cfg.VIP.Currency)

	var errs []error
	for _, adminID := range admins {
		if _, err := n.transport.SendMessage(ctx, adminID, Message{Text: text}); err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
		}
	}
	return errors.Join(errs...)
}

// BroadcastSender delivers broadcast copies through the transport.
type BroadcastSender struct {
	transport Transport
	botCfg    *config.BotConfigHolder
	log       *zap.Logger
}

func NewBroadcastSender(transport Transport, botCfg *config.BotConfigHolder, log *zap.Logger) *BroadcastSender {
	return &BroadcastSender{
		transport: transport,
		botCfg:    botCfg,
		log:       log.Named("bot.broadcast"),
	}
}

func (s *BroadcastSender) Deliver(ctx context.Context, job broadcastdomain.Job, recipientID int64) error {
	var err error
	if job.Mode == broadcastdomain.ModeForward {
		_, err = s.transport.ForwardMessage(ctx, recipientID, job.SourceChat, job.SourceMessage)
	} else {
		_, err = s.transport.CopyMessage(ctx, recipientID, job.SourceChat, job.SourceMessage)
	}
	return err
}

func (s *BroadcastSender) Finished(ctx context.Context, job broadcastdomain.Job, report broadcastdomain.Report) {
	t := texts{cfg: s.botCfg.Get()}
	text := t.format(textBroadcastReport, report.Sent, report.Failed, report.Duration.Round(time.Second))
	if report.Aborted {
		text = t.get(textBroadcastStopped) + "\n\n" + text
	}
	if _, err := s.transport.SendMessage(ctx, job.AdminID, Message{Text: text}); err != nil {
		s.log.Warn("broadcast report not delivered",
			zap.Int64("admin_id", job.AdminID),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}
