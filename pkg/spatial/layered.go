package spatial

import (
	"iter"

	"github.com/zeusync/gridkit/pkg/geometry"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"github.com/zeusync/gridkit/pkg/sequence"
)

var _ ReadOnlyLayeredSpatialMap[HasLayer] = (*LayeredSpatialMap[HasLayer])(nil)

// ReadOnlyLayeredSpatialMap is the query side of a LayeredSpatialMap.
type ReadOnlyLayeredSpatialMap[T HasLayer] interface {
	EventSource[T]

	Count() int
	LayerCount() int
	StartingLayer() int
	LayerMasker() LayerMasker
	GetLayer(layer int) (ReadOnlySpatialMap[T], error)
	GetLayersInMask(mask LayerMask) LayerIterator[T]

	Contains(item T) bool
	ContainsID(id uint32) bool
	ContainsPosition(pos geometry.Point, mask LayerMask) bool

	GetItem(id uint32) (T, bool)
	GetPositionOf(item T) (geometry.Point, bool)
	GetPositionOfID(id uint32) (geometry.Point, bool)
	GetItemsAt(pos geometry.Point, mask LayerMask) LayeredItemsAtIterator[T]

	CanAdd(item T, pos geometry.Point) bool
	CanMove(item T, pos geometry.Point) bool
	CanMoveAll(src, dst geometry.Point, mask LayerMask) bool

	Items() iter.Seq[T]
	Positions() iter.Seq[geometry.Point]
	Entries() iter.Seq2[T, geometry.Point]
	Query() *sequence.Iterator[T]
}

// LayeredSpatialMap stacks independent spatial maps, one per layer. An item
// lives in the layer named by its Layer(). Layer numbers run from the
// starting layer (0 by default) for LayerCount layers, at most 32 in total.
//
// IDs are assumed unique across all layers. This is not checked: ID-based
// lookups return the first match in ascending layer order.
type LayeredSpatialMap[T HasLayer] struct {
	layers []*AdvancedSpatialMap[T]
	start  int
	masker LayerMasker
	events *eventHub[T]
	logger log.Log
}

// NewLayeredSpatialMap creates a map with layerCount layers. By default
// every layer holds one item per position; WithMultiItemLayers selects
// layers that hold many. WithStartingLayer shifts the layer numbers.
func NewLayeredSpatialMap[T HasLayer](layerCount int, opts ...Option) (*LayeredSpatialMap[T], error) {
	o := buildOptions(opts)
	if layerCount < 1 || o.startingLayer < 0 || o.startingLayer+layerCount > MaxLayers {
		return nil, ErrInvalidLayerCount
	}

	events := newEventHub[T]()
	layerOpts := o
	layerOpts.logger = log.NewNop()

	m := &LayeredSpatialMap[T]{
		layers: make([]*AdvancedSpatialMap[T], layerCount),
		start:  o.startingLayer,
		masker: NewLayerMasker(o.startingLayer, layerCount),
		events: events,
		logger: o.logger,
	}
	for i := range m.layers {
		policy := Single
		if o.multiItemLayer.Has(m.start + i) {
			policy = Multiple
		}
		m.layers[i] = newAdvancedSpatialMap[T](policy, layerOpts, events)
	}

	if m.logger.Enabled(log.LevelDebug) {
		m.logger.Debug("layered spatial map created",
			log.Int("layers", layerCount),
			log.Int("starting_layer", m.start),
			log.Uint32("multi_item_layers", uint32(o.multiItemLayer&m.masker.AllLayers())),
		)
	}
	return m, nil
}

// MustNewLayeredSpatialMap is NewLayeredSpatialMap for static configurations.
func MustNewLayeredSpatialMap[T HasLayer](layerCount int, opts ...Option) *LayeredSpatialMap[T] {
	m, err := NewLayeredSpatialMap[T](layerCount, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *LayeredSpatialMap[T]) LayerCount() int          { return len(m.layers) }
func (m *LayeredSpatialMap[T]) StartingLayer() int       { return m.start }
func (m *LayeredSpatialMap[T]) LayerMasker() LayerMasker { return m.masker }

func (m *LayeredSpatialMap[T]) OnItemAdded(fn func(ItemEvent[T])) *Subscription {
	return m.events.OnItemAdded(fn)
}

func (m *LayeredSpatialMap[T]) OnItemRemoved(fn func(ItemEvent[T])) *Subscription {
	return m.events.OnItemRemoved(fn)
}

func (m *LayeredSpatialMap[T]) OnItemMoved(fn func(ItemMovedEvent[T])) *Subscription {
	return m.events.OnItemMoved(fn)
}

// layer returns the map for a layer number, or nil when out of range.
func (m *LayeredSpatialMap[T]) layer(layer int) *AdvancedSpatialMap[T] {
	i := layer - m.start
	if i < 0 || i >= len(m.layers) {
		return nil
	}
	return m.layers[i]
}

// GetLayer exposes one layer read-only.
func (m *LayeredSpatialMap[T]) GetLayer(layer int) (ReadOnlySpatialMap[T], error) {
	l := m.layer(layer)
	if l == nil {
		return nil, &MapError{Op: "get layer", Position: geometry.None, Layer: layer, HasLayer: true, Err: ErrLayerOutOfRange}
	}
	return l, nil
}

// GetLayersInMask iterates the layers selected by mask, ascending.
func (m *LayeredSpatialMap[T]) GetLayersInMask(mask LayerMask) LayerIterator[T] {
	return newLayerIterator(m.layers, m.start, mask)
}

// Queries

func (m *LayeredSpatialMap[T]) Count() int {
	n := 0
	for _, l := range m.layers {
		n += l.Count()
	}
	return n
}

func (m *LayeredSpatialMap[T]) Contains(item T) bool {
	l := m.layer(item.Layer())
	return l != nil && l.Contains(item)
}

func (m *LayeredSpatialMap[T]) ContainsID(id uint32) bool {
	return m.layerOfID(id) != nil
}

// ContainsPosition reports whether any layer selected by mask has an item at pos.
func (m *LayeredSpatialMap[T]) ContainsPosition(pos geometry.Point, mask LayerMask) bool {
	it := m.GetLayersInMask(mask)
	for it.Next() {
		if it.current.ContainsPosition(pos) {
			return true
		}
	}
	return false
}

func (m *LayeredSpatialMap[T]) GetItem(id uint32) (T, bool) {
	if l := m.layerOfID(id); l != nil {
		return l.GetItem(id)
	}
	var zero T
	return zero, false
}

func (m *LayeredSpatialMap[T]) GetPositionOf(item T) (geometry.Point, bool) {
	l := m.layer(item.Layer())
	if l == nil {
		return geometry.None, false
	}
	return l.GetPositionOf(item)
}

func (m *LayeredSpatialMap[T]) GetPositionOfID(id uint32) (geometry.Point, bool) {
	if l := m.layerOfID(id); l != nil {
		return l.GetPositionOfID(id)
	}
	return geometry.None, false
}

// GetItemsAt iterates the items at pos on the layers selected by mask,
// lowest layer first.
func (m *LayeredSpatialMap[T]) GetItemsAt(pos geometry.Point, mask LayerMask) LayeredItemsAtIterator[T] {
	return LayeredItemsAtIterator[T]{
		layers: m.GetLayersInMask(mask),
		pos:    pos,
	}
}

func (m *LayeredSpatialMap[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, l := range m.layers {
			for item := range l.Items() {
				if !yield(item) {
					return
				}
			}
		}
	}
}

// Positions yields every occupied position once, whatever the number of
// layers occupying it.
func (m *LayeredSpatialMap[T]) Positions() iter.Seq[geometry.Point] {
	all := make([]*sequence.Iterator[geometry.Point], len(m.layers))
	for i, l := range m.layers {
		all[i] = sequence.FromSeq(l.Positions())
	}
	return sequence.Distinct(sequence.Chain(all...)).Seq()
}

func (m *LayeredSpatialMap[T]) Entries() iter.Seq2[T, geometry.Point] {
	return func(yield func(T, geometry.Point) bool) {
		for _, l := range m.layers {
			for item, pos := range l.Entries() {
				if !yield(item, pos) {
					return
				}
			}
		}
	}
}

func (m *LayeredSpatialMap[T]) Query() *sequence.Iterator[T] {
	return sequence.FromSeq(m.Items())
}

func (m *LayeredSpatialMap[T]) CanAdd(item T, pos geometry.Point) bool {
	l := m.layer(item.Layer())
	return l != nil && l.CanAdd(item, pos)
}

func (m *LayeredSpatialMap[T]) CanMove(item T, pos geometry.Point) bool {
	l := m.layer(item.Layer())
	return l != nil && l.CanMove(item, pos)
}

// CanMoveAll reports whether, on every layer selected by mask, all items at
// src fit at dst.
func (m *LayeredSpatialMap[T]) CanMoveAll(src, dst geometry.Point, mask LayerMask) bool {
	it := m.GetLayersInMask(mask)
	for it.Next() {
		if !it.current.CanMoveAll(src, dst) {
			return false
		}
	}
	return true
}

func (m *LayeredSpatialMap[T]) layerOfID(id uint32) *AdvancedSpatialMap[T] {
	for _, l := range m.layers {
		if l.ContainsID(id) {
			return l
		}
	}
	return nil
}

// routed resolves the layer of item, or returns the strict error for op.
func (m *LayeredSpatialMap[T]) routed(op string, item T) (*AdvancedSpatialMap[T], error) {
	l := m.layer(item.Layer())
	if l == nil {
		return nil, m.fail(layerError(op, item.ID(), item.Layer(), ErrLayerOutOfRange))
	}
	return l, nil
}

// Mutations

// Add places item at pos on its layer. Besides the errors of
// AdvancedSpatialMap.Add it fails with ErrLayerOutOfRange.
func (m *LayeredSpatialMap[T]) Add(item T, pos geometry.Point) error {
	l, err := m.routed("add", item)
	if err != nil {
		return err
	}
	if err := l.checkAdd(item.ID(), pos); err != nil {
		return m.fail(m.withLayer(idError("add", item.ID(), pos, err), item))
	}
	l.add(item.ID(), item, pos)
	return nil
}

func (m *LayeredSpatialMap[T]) TryAdd(item T, pos geometry.Point) bool {
	l := m.layer(item.Layer())
	return l != nil && l.TryAdd(item, pos)
}

func (m *LayeredSpatialMap[T]) Remove(item T) error {
	l, err := m.routed("remove", item)
	if err != nil {
		return err
	}
	e, ok := l.items[item.ID()]
	if !ok {
		return m.fail(m.withLayer(idError("remove", item.ID(), geometry.None, ErrIDNotFound), item))
	}
	l.remove(item.ID(), e)
	return nil
}

func (m *LayeredSpatialMap[T]) TryRemove(item T) bool {
	l := m.layer(item.Layer())
	return l != nil && l.TryRemove(item)
}

// RemoveByID removes the item with the given ID from whichever layer holds it.
func (m *LayeredSpatialMap[T]) RemoveByID(id uint32) (T, error) {
	if l := m.layerOfID(id); l != nil {
		item, _ := l.TryRemoveByID(id)
		return item, nil
	}
	var zero T
	return zero, m.fail(idError("remove", id, geometry.None, ErrIDNotFound))
}

func (m *LayeredSpatialMap[T]) TryRemoveByID(id uint32) (T, bool) {
	if l := m.layerOfID(id); l != nil {
		return l.TryRemoveByID(id)
	}
	var zero T
	return zero, false
}

// RemoveAt removes everything at pos on the layers selected by mask.
func (m *LayeredSpatialMap[T]) RemoveAt(pos geometry.Point, mask LayerMask) []T {
	var removed []T
	it := m.GetLayersInMask(mask)
	for it.Next() {
		removed = append(removed, it.current.RemoveAt(pos)...)
	}
	return removed
}

// Clear empties every layer.
func (m *LayeredSpatialMap[T]) Clear() {
	for _, l := range m.layers {
		l.Clear()
	}
}

// Move relocates item within its layer. Besides the errors of
// AdvancedSpatialMap.Move it fails with ErrLayerOutOfRange.
func (m *LayeredSpatialMap[T]) Move(item T, pos geometry.Point) error {
	l, err := m.routed("move", item)
	if err != nil {
		return err
	}
	if err := l.checkMove(item.ID(), pos); err != nil {
		return m.fail(m.withLayer(idError("move", item.ID(), pos, err), item))
	}
	l.move(item.ID(), pos)
	return nil
}

func (m *LayeredSpatialMap[T]) TryMove(item T, pos geometry.Point) bool {
	l := m.layer(item.Layer())
	return l != nil && l.TryMove(item, pos)
}

// MoveByID moves the item with the given ID, wherever it is stored.
func (m *LayeredSpatialMap[T]) MoveByID(id uint32, pos geometry.Point) error {
	l := m.layerOfID(id)
	if l == nil {
		return m.fail(idError("move", id, pos, ErrIDNotFound))
	}
	if err := l.checkMove(id, pos); err != nil {
		return m.fail(idError("move", id, pos, err))
	}
	l.move(id, pos)
	return nil
}

// MoveAll moves every item at src to dst on the layers selected by mask.
// If any selected layer cannot take all of its items at dst, nothing moves
// on any layer and ErrInvalidOperation is returned.
func (m *LayeredSpatialMap[T]) MoveAll(src, dst geometry.Point, mask LayerMask) error {
	if !m.CanMoveAll(src, dst, mask) {
		return m.fail(moveAllError("move all", src, dst, ErrInvalidOperation))
	}
	m.transfer(src, dst, mask, true, nil)
	return nil
}

// TryMoveAll moves, on each selected layer, as many items as fit and returns
// those moved. ok is true when nothing is left at src on the selected layers.
func (m *LayeredSpatialMap[T]) TryMoveAll(src, dst geometry.Point, mask LayerMask) (moved []T, ok bool) {
	moved = m.MoveValid(src, dst, mask)
	return moved, src == dst || !m.ContainsPosition(src, mask)
}

// MoveValid moves, on each selected layer, as many items as fit and returns
// exactly those.
func (m *LayeredSpatialMap[T]) MoveValid(src, dst geometry.Point, mask LayerMask) []T {
	return m.MoveValidInto(src, dst, mask, nil)
}

func (m *LayeredSpatialMap[T]) MoveValidInto(src, dst geometry.Point, mask LayerMask, buf []T) []T {
	return m.transfer(src, dst, mask, false, buf)
}

// transfer moves items from src to dst on the layers selected by mask, all
// of them when whole is set and otherwise as many as fit on each layer.
// ItemMoved is raised only once every selected layer has settled.
func (m *LayeredSpatialMap[T]) transfer(src, dst geometry.Point, mask LayerMask, whole bool, buf []T) []T {
	if src == dst {
		return buf
	}
	type span struct {
		layer      *AdvancedSpatialMap[T]
		start, end int
	}
	var spans [32]span
	n := 0
	it := m.GetLayersInMask(mask)
	for it.Next() {
		l := it.current
		limit := -1
		if !whole {
			limit = l.multiplicity.Room(l.CountAt(dst))
		}
		start := len(buf)
		buf = l.relocate(src, dst, limit, buf)
		if len(buf) > start {
			spans[n] = span{layer: l, start: start, end: len(buf)}
			n++
		}
	}
	for _, sp := range spans[:n] {
		sp.layer.emitMovedAll(buf[sp.start:sp.end], src, dst)
	}
	return buf
}

func (m *LayeredSpatialMap[T]) withLayer(err *MapError, item T) *MapError {
	err.Layer = item.Layer()
	err.HasLayer = true
	return err
}

func (m *LayeredSpatialMap[T]) fail(err *MapError) error {
	if m.logger.Enabled(log.LevelDebug) {
		m.logger.Debug("layered spatial map operation rejected",
			log.String("op", err.Op),
			log.Uint32("id", err.ID),
			log.Int("layer", err.Layer),
			log.Stringer("position", err.Position),
			log.Error(err.Err),
		)
	}
	return err
}
