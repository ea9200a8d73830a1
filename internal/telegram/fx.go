package telegram

import (
	"github.com/smallbiznis/animegate/internal/bot"
	gatedomain "github.com/smallbiznis/animegate/internal/gate/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("telegram",
	fx.Provide(NewBotAPI),
	fx.Provide(NewClient),
	fx.Provide(provideTransport),
	fx.Provide(provideMembershipChecker),
	fx.Provide(provideDispatcher),
	fx.Provide(NewIntake),
	fx.Invoke(registerIntake),
)

func provideTransport(c *Client) bot.Transport {
	return c
}

func provideMembershipChecker(c *Client) gatedomain.MembershipChecker {
	return c
}

func provideDispatcher(d *bot.Dispatcher) Dispatcher {
	return d
}

func registerIntake(lc fx.Lifecycle, intake *Intake) {
	lc.Append(fx.Hook{
		OnStart: intake.Start,
		OnStop:  intake.Stop,
	})
}
