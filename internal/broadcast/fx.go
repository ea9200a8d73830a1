package broadcast

import (
	"context"

	"github.com/smallbiznis/animegate/internal/broadcast/domain"
	"github.com/smallbiznis/animegate/internal/broadcast/repository"
	"github.com/smallbiznis/animegate/internal/broadcast/service"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("broadcast.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(provideRecipients),
	fx.Invoke(registerShutdown),
)

func registerShutdown(lc fx.Lifecycle, svc domain.Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = svc.Abort(ctx)
			done := make(chan struct{})
			go func() {
				svc.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func provideRecipients(users userdomain.Service) domain.Recipients {
	return users
}
