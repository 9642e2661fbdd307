// Package spatial indexes grid entities by ID and by position.
//
// Every map keeps two mutually consistent indexes: ID -> (entity, position)
// and position -> entities. How many entities one position may hold is the
// map's Multiplicity. LayeredSpatialMap stacks several such maps and routes
// entities by their Layer. The AutoSync wrappers keep an entity's own
// Position in step with the map through position hooks.
//
// Maps are not safe for concurrent use. Every mutation runs to completion
// before returning and notifications are delivered synchronously on the
// caller's goroutine.
package spatial

import "github.com/zeusync/gridkit/pkg/geometry"

// HasID is the minimal contract for anything stored in a spatial map.
// IDs must be unique among the entities stored in one map at a time.
type HasID interface {
	ID() uint32
}

// HasLayer is required by LayeredSpatialMap. Layer must not change while the
// entity is stored; doing so leaves lookups undefined.
type HasLayer interface {
	HasID
	Layer() int
}

// Positionable entities own their position and announce changes to it.
// SetPosition must call every Changing hook before committing the new
// value, abort with the first error returned, and call every Changed hook
// after committing. PositionTracker implements this contract.
type Positionable interface {
	HasID
	Position() geometry.Point
	SetPosition(p geometry.Point) error
	ObservePosition(hooks PositionHooks) *Subscription
}

// PositionableLayer is the entity contract for AutoSyncLayeredSpatialMap.
type PositionableLayer interface {
	Positionable
	Layer() int
}

// PositionHooks are the pre/post-change callbacks of a Positionable.
type PositionHooks struct {
	// Changing runs before the position changes. A non-nil error cancels the change.
	Changing func(from, to geometry.Point) error
	// Changed runs after the position changed.
	Changed func(from, to geometry.Point)
}
