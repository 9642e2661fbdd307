//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"github.com/zeusync/gridkit/pkg/spatial/metrics"
)

func InitializeApp(path ConfigPath) (*App, error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		wire.Bind(new(log.Log), new(*log.Logger)),
		ProvideSimulation,
		metrics.NewCollector,
		ProvideRegistry,
		NewApp,
	)
	return nil, nil
}
