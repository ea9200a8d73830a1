package step

import (
	"github.com/smallbiznis/animegate/internal/step/repository"
	"github.com/smallbiznis/animegate/internal/step/service"
	"go.uber.org/fx"
)

var Module = fx.Module("step.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
