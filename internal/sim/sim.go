// Package sim is a random-walk demo over an auto-synced layered world.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/zeusync/gridkit/internal/config"
	"github.com/zeusync/gridkit/pkg/geometry"
	"github.com/zeusync/gridkit/pkg/idgen"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"github.com/zeusync/gridkit/pkg/spatial"
)

var ErrWorldFull = errors.New("no free position left for entity")

const (
	placementAttempts = 64
	reportEvery       = 100
)

// Entity is a walker. Its position is owned by the embedded tracker, so
// setting it moves the entity in the world.
type Entity struct {
	spatial.PositionTracker
	id    uint32
	layer int
}

func (e *Entity) ID() uint32 { return e.id }
func (e *Entity) Layer() int { return e.layer }

// StepStats counts the outcome of one tick.
type StepStats struct {
	Moved   int
	Blocked int
}

type Simulation struct {
	cfg        config.SimulationConfig
	width      int
	height     int
	axis       geometry.YAxis
	directions []geometry.Direction

	world    *spatial.AutoSyncLayeredSpatialMap[*Entity]
	ids      *idgen.IDGenerator
	rng      *rand.Rand
	entities []*Entity
	tick     int
	logger   log.Log
}

func New(cfg *config.Config, logger log.Log) (*Simulation, error) {
	logger = logger.With(log.String("component", "sim"))

	world, err := spatial.NewAutoSyncLayeredSpatialMap[*Entity](cfg.Layers.Count,
		spatial.WithLogger(logger),
		spatial.WithCapacity(cfg.Simulation.Entities),
		spatial.WithStartingLayer(cfg.Layers.Starting),
		spatial.WithMultiItemLayers(cfg.MultiItemMask()),
	)
	if err != nil {
		return nil, fmt.Errorf("create world: %w", err)
	}

	directions := geometry.Cardinals[:]
	if cfg.Simulation.Diagonal {
		directions = geometry.Directions8[:]
	}

	return &Simulation{
		cfg:        cfg.Simulation,
		width:      cfg.World.Width,
		height:     cfg.World.Height,
		axis:       cfg.YAxis(),
		directions: directions,
		world:      world,
		ids:        idgen.New(1),
		rng:        rand.New(rand.NewPCG(cfg.Simulation.Seed, cfg.Simulation.Seed^0x9e3779b97f4a7c15)),
		logger:     logger,
	}, nil
}

// World exposes the map read-only, e.g. for metrics.
func (s *Simulation) World() spatial.ReadOnlyLayeredSpatialMap[*Entity] {
	return s.world.ReadOnlyLayeredSpatialMap
}

func (s *Simulation) Entities() []*Entity {
	return s.entities
}

func (s *Simulation) Tick() int {
	return s.tick
}

// Digest fingerprints the current placement of every entity.
func (s *Simulation) Digest() uint64 {
	return spatial.Digest(s.world.Entries())
}

// Populate spawns the configured number of entities on random layers at
// random free positions.
func (s *Simulation) Populate() error {
	for len(s.entities) < s.cfg.Entities {
		if _, err := s.Spawn(); err != nil {
			return err
		}
	}
	s.logger.Info("world populated",
		log.Int("entities", len(s.entities)),
		log.Int("positions", countPositions(s.World())),
	)
	return nil
}

// Spawn adds one entity on a random layer.
func (s *Simulation) Spawn() (*Entity, error) {
	id, err := s.ids.UseID()
	if err != nil {
		return nil, err
	}
	e := &Entity{id: id, layer: s.world.StartingLayer() + s.rng.IntN(s.world.LayerCount())}

	for range placementAttempts {
		if err := e.SetPosition(s.randomPoint()); err != nil {
			return nil, err
		}
		if s.world.TryAdd(e) {
			s.entities = append(s.entities, e)
			return e, nil
		}
	}
	// Crowded world: fall back to the first free cell.
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			if err := e.SetPosition(geometry.NewPoint(x, y)); err != nil {
				return nil, err
			}
			if s.world.TryAdd(e) {
				s.entities = append(s.entities, e)
				return e, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: entity %d on layer %d", ErrWorldFull, id, e.layer)
}

// Despawn removes e from the world.
func (s *Simulation) Despawn(e *Entity) error {
	if err := s.world.Remove(e); err != nil {
		return err
	}
	for i, v := range s.entities {
		if v == e {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			break
		}
	}
	return nil
}

// Step moves every entity one step in a random direction. Steps off the
// world or onto an occupied position are counted as blocked.
func (s *Simulation) Step() (StepStats, error) {
	var st StepStats
	for _, e := range s.entities {
		to := e.Position().Translate(s.directions[s.rng.IntN(len(s.directions))], s.axis)
		if !s.inBounds(to) {
			st.Blocked++
			continue
		}
		switch err := e.SetPosition(to); {
		case err == nil:
			st.Moved++
		case errors.Is(err, spatial.ErrPositionOccupied):
			st.Blocked++
		default:
			return st, fmt.Errorf("tick %d: %w", s.tick, err)
		}
	}
	s.tick++
	return st, nil
}

// Run populates the world if needed and steps it until the configured tick
// count is reached or ctx is done.
func (s *Simulation) Run(ctx context.Context) error {
	if len(s.entities) == 0 {
		if err := s.Populate(); err != nil {
			return err
		}
	}

	var tick <-chan time.Time
	if s.cfg.TickRate > 0 {
		ticker := time.NewTicker(s.cfg.TickRate)
		defer ticker.Stop()
		tick = ticker.C
	}

	var total StepStats
	for s.cfg.Ticks == 0 || s.tick < s.cfg.Ticks {
		if tick != nil {
			select {
			case <-ctx.Done():
				s.stopped(total)
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			s.stopped(total)
			return nil
		}

		st, err := s.Step()
		if err != nil {
			s.logger.Error("simulation step failed", log.Error(err))
			return err
		}
		total.Moved += st.Moved
		total.Blocked += st.Blocked

		if s.tick%reportEvery == 0 {
			s.logger.Info("simulation progress",
				log.Int("tick", s.tick),
				log.Int("moved", total.Moved),
				log.Int("blocked", total.Blocked),
				log.Uint64("digest", s.Digest()),
			)
		}
	}

	s.logger.Info("simulation finished",
		log.Int("ticks", s.tick),
		log.Int("moved", total.Moved),
		log.Int("blocked", total.Blocked),
		log.Uint64("digest", s.Digest()),
	)
	return nil
}

func (s *Simulation) stopped(total StepStats) {
	s.logger.Info("simulation stopped",
		log.Int("tick", s.tick),
		log.Int("moved", total.Moved),
		log.Int("blocked", total.Blocked),
	)
}

func (s *Simulation) randomPoint() geometry.Point {
	return geometry.NewPoint(s.rng.IntN(s.width), s.rng.IntN(s.height))
}

func (s *Simulation) inBounds(p geometry.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.width && p.Y < s.height
}

func countPositions(m spatial.ReadOnlyLayeredSpatialMap[*Entity]) int {
	n := 0
	for range m.Positions() {
		n++
	}
	return n
}
