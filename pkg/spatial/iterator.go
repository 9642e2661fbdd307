package spatial

import (
	"iter"
	"math/bits"
	"slices"

	"github.com/zeusync/gridkit/pkg/geometry"
)

// ItemsAtIterator walks the items at one position. It is a value type:
// obtaining and driving it does not allocate. It is single-pass; to walk
// the position again, ask the map for a new iterator. The map must not be
// mutated at that position while the iterator is in use.
//
//	it := m.GetItemsAt(p)
//	for it.Next() {
//		use(it.Current())
//	}
type ItemsAtIterator[T any] struct {
	items []T
	next  int
	cur   T
}

func newItemsAtIterator[T any](items []T) ItemsAtIterator[T] {
	return ItemsAtIterator[T]{items: items}
}

// Next advances to the next item and reports whether there was one.
func (it *ItemsAtIterator[T]) Next() bool {
	if it.next >= len(it.items) {
		var zero T
		it.cur = zero
		return false
	}
	it.cur = it.items[it.next]
	it.next++
	return true
}

// Current is the item Next last advanced to.
func (it ItemsAtIterator[T]) Current() T {
	return it.cur
}

// Len is the total number of items at the position.
func (it ItemsAtIterator[T]) Len() int {
	return len(it.items)
}

// Reset is not supported and always returns ErrResetNotSupported.
func (it ItemsAtIterator[T]) Reset() error {
	return ErrResetNotSupported
}

// All yields the items not yet consumed, for use with range.
func (it ItemsAtIterator[T]) All() iter.Seq[T] {
	rest := it.items[it.next:]
	return func(yield func(T) bool) {
		for _, v := range rest {
			if !yield(v) {
				return
			}
		}
	}
}

// ToSlice copies the items not yet consumed.
func (it ItemsAtIterator[T]) ToSlice() []T {
	return slices.Clone(it.items[it.next:])
}

// LayerIterator walks, in ascending order, the layers of a LayeredSpatialMap
// selected by a mask.
type LayerIterator[T HasLayer] struct {
	layers    []*AdvancedSpatialMap[T]
	start     int
	remaining uint32
	layer     int
	current   *AdvancedSpatialMap[T]
}

func newLayerIterator[T HasLayer](layers []*AdvancedSpatialMap[T], start int, mask LayerMask) LayerIterator[T] {
	valid := layerRangeMask(start, len(layers))
	return LayerIterator[T]{
		layers:    layers,
		start:     start,
		remaining: uint32(mask & valid),
		layer:     -1,
	}
}

func (it *LayerIterator[T]) Next() bool {
	if it.remaining == 0 {
		it.current = nil
		it.layer = -1
		return false
	}
	bit := bits.TrailingZeros32(it.remaining)
	it.remaining &= it.remaining - 1
	it.layer = bit
	it.current = it.layers[bit-it.start]
	return true
}

// Current is the layer Next last advanced to.
func (it LayerIterator[T]) Current() ReadOnlySpatialMap[T] {
	if it.current == nil {
		return nil
	}
	return it.current
}

// Layer is the number of the layer Next last advanced to.
func (it LayerIterator[T]) Layer() int {
	return it.layer
}

func (it LayerIterator[T]) Reset() error {
	return ErrResetNotSupported
}

type layeredState uint8

const (
	stateNextLayer layeredState = iota
	stateWithinLayer
	stateDone
)

// LayeredItemsAtIterator walks the items at one position across the layers
// selected by a mask, lowest layer first. Layers with nothing at the
// position are skipped. Like ItemsAtIterator it does not allocate and
// cannot be reset.
type LayeredItemsAtIterator[T HasLayer] struct {
	layers LayerIterator[T]
	pos    geometry.Point
	inner  ItemsAtIterator[T]
	state  layeredState
}

func (it *LayeredItemsAtIterator[T]) Next() bool {
	for {
		switch it.state {
		case stateNextLayer:
			if !it.layers.Next() {
				it.state = stateDone
				it.inner = ItemsAtIterator[T]{}
				return false
			}
			it.inner = it.layers.current.GetItemsAt(it.pos)
			it.state = stateWithinLayer
		case stateWithinLayer:
			if it.inner.Next() {
				return true
			}
			it.state = stateNextLayer
		default:
			return false
		}
	}
}

func (it LayeredItemsAtIterator[T]) Current() T {
	return it.inner.Current()
}

// Layer is the layer of the current item.
func (it LayeredItemsAtIterator[T]) Layer() int {
	return it.layers.Layer()
}

func (it LayeredItemsAtIterator[T]) Reset() error {
	return ErrResetNotSupported
}

// All yields the items not yet consumed, for use with range.
func (it LayeredItemsAtIterator[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		cursor := it
		for cursor.Next() {
			if !yield(cursor.Current()) {
				return
			}
		}
	}
}

// ToSlice collects the items not yet consumed.
func (it LayeredItemsAtIterator[T]) ToSlice() []T {
	var out []T
	for it.Next() {
		out = append(out, it.Current())
	}
	return out
}
