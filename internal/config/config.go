package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/zeusync/gridkit/pkg/geometry"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"github.com/zeusync/gridkit/pkg/spatial"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalid           = errors.New("invalid config")
)

type Config struct {
	World      WorldConfig      `yaml:"world" toml:"world"`
	Layers     LayersConfig     `yaml:"layers" toml:"layers"`
	Simulation SimulationConfig `yaml:"simulation" toml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

type WorldConfig struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	YAxis  string `yaml:"y_axis" toml:"y_axis"` // "down" or "up"
}

type LayersConfig struct {
	Count     int   `yaml:"count" toml:"count"`
	Starting  int   `yaml:"starting" toml:"starting"`
	MultiItem []int `yaml:"multi_item" toml:"multi_item"` // absolute layer numbers
}

type SimulationConfig struct {
	Entities int           `yaml:"entities" toml:"entities"`
	Ticks    int           `yaml:"ticks" toml:"ticks"` // 0 runs until stopped
	TickRate time.Duration `yaml:"tick_rate" toml:"tick_rate"`
	Seed     uint64        `yaml:"seed" toml:"seed"`
	Diagonal bool          `yaml:"diagonal" toml:"diagonal"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Address string `yaml:"address" toml:"address"`
}

// Load reads path, picking the decoder by extension (.yaml, .yml or .toml).
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml", "yml" or "toml") over the defaults.
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse toml: unknown key %s: %w", undecoded[0], ErrInvalid)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Width:  64,
			Height: 64,
			YAxis:  "down",
		},
		Layers: LayersConfig{
			Count:     3,
			MultiItem: []int{2},
		},
		Simulation: SimulationConfig{
			Entities: 256,
			TickRate: 100 * time.Millisecond,
			Seed:     1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":2112",
		},
	}
}

func (c *Config) Validate() error {
	switch {
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("%w: world size %dx%d", ErrInvalid, c.World.Width, c.World.Height)
	case c.Layers.Count < 1 || c.Layers.Starting < 0 || c.Layers.Starting+c.Layers.Count > spatial.MaxLayers:
		return fmt.Errorf("%w: %d layers from %d", ErrInvalid, c.Layers.Count, c.Layers.Starting)
	case c.Simulation.Entities < 0 || c.Simulation.Entities > c.World.Width*c.World.Height:
		return fmt.Errorf("%w: %d entities on a %dx%d world", ErrInvalid, c.Simulation.Entities, c.World.Width, c.World.Height)
	case c.Simulation.Ticks < 0:
		return fmt.Errorf("%w: negative tick count", ErrInvalid)
	case c.Simulation.TickRate < 0:
		return fmt.Errorf("%w: negative tick rate", ErrInvalid)
	case c.Metrics.Enabled && c.Metrics.Address == "":
		return fmt.Errorf("%w: metrics enabled without an address", ErrInvalid)
	}
	for _, l := range c.Layers.MultiItem {
		if l < c.Layers.Starting || l >= c.Layers.Starting+c.Layers.Count {
			return fmt.Errorf("%w: multi-item layer %d out of range", ErrInvalid, l)
		}
	}
	if _, ok := geometry.ParseYAxis(c.World.YAxis); !ok {
		return fmt.Errorf("%w: y_axis %q", ErrInvalid, c.World.YAxis)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Logging.Format != string(log.EncodingJSON) && c.Logging.Format != string(log.EncodingConsole) {
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// YAxis is the configured orientation. Call after Validate.
func (c *Config) YAxis() geometry.YAxis {
	axis, _ := geometry.ParseYAxis(c.World.YAxis)
	return axis
}

// MultiItemMask selects the layers configured to hold many items per position.
func (c *Config) MultiItemMask() spatial.LayerMask {
	return spatial.MaskOf(c.Layers.MultiItem...)
}

// Level is the configured log level. Call after Validate.
func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.Logging.Level)
	return level
}
