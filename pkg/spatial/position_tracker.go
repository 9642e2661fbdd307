package spatial

import "github.com/zeusync/gridkit/pkg/geometry"

// PositionTracker implements the position half of Positionable. Embed it in
// an entity struct and use the entity through a pointer:
//
//	type Monster struct {
//		spatial.PositionTracker
//		id uint32
//	}
//
//	func (m *Monster) ID() uint32 { return m.id }
type PositionTracker struct {
	pos   geometry.Point
	hooks handlerList[PositionHooks]
}

// NewPositionTracker returns a tracker starting at pos.
func NewPositionTracker(pos geometry.Point) PositionTracker {
	return PositionTracker{pos: pos}
}

func (t *PositionTracker) Position() geometry.Point {
	return t.pos
}

// SetPosition runs the Changing hooks, stops at the first error and returns
// it with the position untouched, otherwise commits and runs the Changed
// hooks. Setting the current position is a no-op that runs no hooks.
func (t *PositionTracker) SetPosition(p geometry.Point) error {
	if p == t.pos {
		return nil
	}
	from := t.pos
	entries := t.hooks.entries
	for _, e := range entries {
		if e.sub.active && e.fn.Changing != nil {
			if err := e.fn.Changing(from, p); err != nil {
				return err
			}
		}
	}

	t.pos = p

	for _, e := range entries {
		if e.sub.active && e.fn.Changed != nil {
			e.fn.Changed(from, p)
		}
	}
	return nil
}

// ObservePosition registers a pair of hooks.
func (t *PositionTracker) ObservePosition(hooks PositionHooks) *Subscription {
	return t.hooks.add(hooks)
}

// Observers reports how many hook pairs are registered.
func (t *PositionTracker) Observers() int {
	return len(t.hooks.entries)
}
