package spatial

import "github.com/zeusync/gridkit/pkg/geometry"

// SpatialMap holds at most one item per position.
type SpatialMap[T HasID] struct {
	*AdvancedSpatialMap[T]
}

func NewSpatialMap[T HasID](opts ...Option) *SpatialMap[T] {
	return &SpatialMap[T]{AdvancedSpatialMap: NewAdvancedSpatialMap[T](Single, opts...)}
}

// GetItemAt returns the item at pos, if any.
func (m *SpatialMap[T]) GetItemAt(pos geometry.Point) (T, bool) {
	if b, ok := m.positions[pos]; ok {
		return b.items[0], true
	}
	var zero T
	return zero, false
}

// MultiSpatialMap holds any number of items per position, kept in the
// order they arrived there.
type MultiSpatialMap[T HasID] struct {
	*AdvancedSpatialMap[T]
}

func NewMultiSpatialMap[T HasID](opts ...Option) *MultiSpatialMap[T] {
	return &MultiSpatialMap[T]{AdvancedSpatialMap: NewAdvancedSpatialMap[T](Multiple, opts...)}
}
