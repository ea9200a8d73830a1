package gate

import (
	"github.com/smallbiznis/animegate/internal/cache"
	"github.com/smallbiznis/animegate/internal/gate/repository"
	"github.com/smallbiznis/animegate/internal/gate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gate.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.NewMembershipCache),
	fx.Provide(service.New),
)
