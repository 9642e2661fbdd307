package injector

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeusync/gridkit/internal/config"
	"github.com/zeusync/gridkit/internal/sim"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"github.com/zeusync/gridkit/pkg/spatial/metrics"
)

// ConfigPath is the config file to load; empty means defaults.
type ConfigPath string

// App is the assembled demo.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Sim      *sim.Simulation
	Metrics  *metrics.Collector
	Registry *prometheus.Registry
	world    *metrics.Binding
}

func ProvideConfig(path ConfigPath) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(string(path))
}

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.NewWithEncoding(cfg.Level(), log.Encoding(cfg.Logging.Format))
}

func ProvideSimulation(cfg *config.Config, logger log.Log) (*sim.Simulation, error) {
	return sim.New(cfg, logger)
}

func ProvideRegistry(c *metrics.Collector) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return nil, fmt.Errorf("register spatial metrics: %w", err)
	}
	return registry, nil
}

// NewApp attaches the simulation's world to the metrics collector.
func NewApp(cfg *config.Config, logger *log.Logger, s *sim.Simulation, c *metrics.Collector, registry *prometheus.Registry) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Sim:      s,
		Metrics:  c,
		Registry: registry,
		world:    metrics.Instrument[*sim.Entity](c, "world", s.World()),
	}
}

// Close detaches the metrics and flushes the logger.
func (a *App) Close() {
	a.world.Detach()
	_ = a.Logger.Sync()
}
