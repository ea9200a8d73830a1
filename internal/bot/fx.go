package bot

import (
	"context"

	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("bot",
	fx.Provide(NewEngine),
	fx.Provide(NewDispatcher),
	fx.Provide(NewAdminNotifier),
	fx.Provide(NewBroadcastSender),
	fx.Provide(providePurchaseNotifier),
	fx.Provide(provideBroadcastSender),
	fx.Invoke(registerDispatcher),
)

func providePurchaseNotifier(n *AdminNotifier) subscriptiondomain.Notifier {
	return n
}

func provideBroadcastSender(s *BroadcastSender) broadcastdomain.Sender {
	return s
}

func registerDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})
}
