package spatial

import (
	"iter"
	"slices"

	"github.com/zeusync/gridkit/pkg/generic"
	"github.com/zeusync/gridkit/pkg/geometry"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"github.com/zeusync/gridkit/pkg/sequence"
)

var (
	_ ReadOnlySpatialMap[HasID] = (*AdvancedSpatialMap[HasID])(nil)
	_ EventSource[HasID]        = (*AdvancedSpatialMap[HasID])(nil)
)

// ReadOnlySpatialMap is the query side of a spatial map.
type ReadOnlySpatialMap[T HasID] interface {
	EventSource[T]

	Count() int
	Multiplicity() Multiplicity

	Contains(item T) bool
	ContainsID(id uint32) bool
	ContainsPosition(pos geometry.Point) bool

	GetItem(id uint32) (T, bool)
	GetPositionOf(item T) (geometry.Point, bool)
	GetPositionOfID(id uint32) (geometry.Point, bool)
	GetItemsAt(pos geometry.Point) ItemsAtIterator[T]

	CanAdd(item T, pos geometry.Point) bool
	CanMove(item T, pos geometry.Point) bool
	CanMoveByID(id uint32, pos geometry.Point) bool
	CanMoveAll(src, dst geometry.Point) bool

	Items() iter.Seq[T]
	Positions() iter.Seq[geometry.Point]
	Entries() iter.Seq2[T, geometry.Point]
	Query() *sequence.Iterator[T]
}

const maxHotBuckets = 64

type entry[T any] struct {
	item T
	pos  geometry.Point
}

// bucket holds the items at one position in insertion order.
type bucket[T HasID] struct {
	items []T
}

func (b *bucket[T]) indexOf(id uint32) int {
	for i, v := range b.items {
		if v.ID() == id {
			return i
		}
	}
	return -1
}

func (b *bucket[T]) remove(id uint32) {
	if i := b.indexOf(id); i >= 0 {
		b.items = slices.Delete(b.items, i, i+1)
	}
}

// AdvancedSpatialMap is the engine behind SpatialMap and MultiSpatialMap:
// a bidirectional ID/position index whose per-position capacity is set by
// a Multiplicity.
type AdvancedSpatialMap[T HasID] struct {
	multiplicity Multiplicity
	items        map[uint32]entry[T]
	positions    map[geometry.Point]*bucket[T]
	buckets      *generic.Pool[*bucket[T]]
	events       *eventHub[T]
	logger       log.Log
}

// NewAdvancedSpatialMap creates a map with the given capacity policy.
func NewAdvancedSpatialMap[T HasID](m Multiplicity, opts ...Option) *AdvancedSpatialMap[T] {
	return newAdvancedSpatialMap[T](m, buildOptions(opts), newEventHub[T]())
}

func newAdvancedSpatialMap[T HasID](m Multiplicity, o options, events *eventHub[T]) *AdvancedSpatialMap[T] {
	hint := m.bucketHint()
	newBucket := func() *bucket[T] {
		return &bucket[T]{items: make([]T, 0, hint)}
	}
	return &AdvancedSpatialMap[T]{
		multiplicity: m,
		items:        make(map[uint32]entry[T], o.capacity),
		positions:    make(map[geometry.Point]*bucket[T], o.capacity),
		buckets:      generic.NewHotPool(newBucket, min(o.capacity, maxHotBuckets)),
		events:       events,
		logger:       o.logger,
	}
}

func (m *AdvancedSpatialMap[T]) Multiplicity() Multiplicity {
	return m.multiplicity
}

func (m *AdvancedSpatialMap[T]) Count() int {
	return len(m.items)
}

func (m *AdvancedSpatialMap[T]) OnItemAdded(fn func(ItemEvent[T])) *Subscription {
	return m.events.OnItemAdded(fn)
}

func (m *AdvancedSpatialMap[T]) OnItemRemoved(fn func(ItemEvent[T])) *Subscription {
	return m.events.OnItemRemoved(fn)
}

func (m *AdvancedSpatialMap[T]) OnItemMoved(fn func(ItemMovedEvent[T])) *Subscription {
	return m.events.OnItemMoved(fn)
}

// Queries

func (m *AdvancedSpatialMap[T]) Contains(item T) bool {
	return m.ContainsID(item.ID())
}

func (m *AdvancedSpatialMap[T]) ContainsID(id uint32) bool {
	_, ok := m.items[id]
	return ok
}

func (m *AdvancedSpatialMap[T]) ContainsPosition(pos geometry.Point) bool {
	_, ok := m.positions[pos]
	return ok
}

func (m *AdvancedSpatialMap[T]) GetItem(id uint32) (T, bool) {
	e, ok := m.items[id]
	return e.item, ok
}

func (m *AdvancedSpatialMap[T]) GetPositionOf(item T) (geometry.Point, bool) {
	return m.GetPositionOfID(item.ID())
}

func (m *AdvancedSpatialMap[T]) GetPositionOfID(id uint32) (geometry.Point, bool) {
	e, ok := m.items[id]
	if !ok {
		return geometry.None, false
	}
	return e.pos, true
}

// GetItemsAt returns an iterator over the items at pos; empty when nothing is there.
func (m *AdvancedSpatialMap[T]) GetItemsAt(pos geometry.Point) ItemsAtIterator[T] {
	if b, ok := m.positions[pos]; ok {
		return newItemsAtIterator(b.items)
	}
	return ItemsAtIterator[T]{}
}

// CountAt is the number of items at pos.
func (m *AdvancedSpatialMap[T]) CountAt(pos geometry.Point) int {
	if b, ok := m.positions[pos]; ok {
		return len(b.items)
	}
	return 0
}

func (m *AdvancedSpatialMap[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, e := range m.items {
			if !yield(e.item) {
				return
			}
		}
	}
}

func (m *AdvancedSpatialMap[T]) Positions() iter.Seq[geometry.Point] {
	return func(yield func(geometry.Point) bool) {
		for p := range m.positions {
			if !yield(p) {
				return
			}
		}
	}
}

func (m *AdvancedSpatialMap[T]) Entries() iter.Seq2[T, geometry.Point] {
	return func(yield func(T, geometry.Point) bool) {
		for _, e := range m.items {
			if !yield(e.item, e.pos) {
				return
			}
		}
	}
}

// Query wraps Items for chained filtering.
func (m *AdvancedSpatialMap[T]) Query() *sequence.Iterator[T] {
	return sequence.FromSeq(m.Items())
}

// Predicates. These are not atomic with respect to a later mutation; use
// the Try forms to check and act in one step.

func (m *AdvancedSpatialMap[T]) CanAdd(item T, pos geometry.Point) bool {
	return m.checkAdd(item.ID(), pos) == nil
}

func (m *AdvancedSpatialMap[T]) CanMove(item T, pos geometry.Point) bool {
	return m.checkMove(item.ID(), pos) == nil
}

func (m *AdvancedSpatialMap[T]) CanMoveByID(id uint32, pos geometry.Point) bool {
	return m.checkMove(id, pos) == nil
}

// CanMoveAll reports whether every item at src fits at dst.
func (m *AdvancedSpatialMap[T]) CanMoveAll(src, dst geometry.Point) bool {
	return m.checkMoveAll(src, dst) == nil
}

func (m *AdvancedSpatialMap[T]) checkAdd(id uint32, pos geometry.Point) error {
	if _, ok := m.items[id]; ok {
		return ErrDuplicateID
	}
	if !m.multiplicity.Accepts(m.CountAt(pos)) {
		return ErrPositionOccupied
	}
	return nil
}

func (m *AdvancedSpatialMap[T]) checkMove(id uint32, pos geometry.Point) error {
	e, ok := m.items[id]
	if !ok {
		return ErrIDNotFound
	}
	if e.pos == pos {
		return nil
	}
	if !m.multiplicity.Accepts(m.CountAt(pos)) {
		return ErrPositionOccupied
	}
	return nil
}

func (m *AdvancedSpatialMap[T]) checkMoveAll(src, dst geometry.Point) error {
	if src == dst {
		return nil
	}
	if !m.multiplicity.Fits(m.CountAt(dst), m.CountAt(src)) {
		return ErrInvalidOperation
	}
	return nil
}

// Add

// Add places item at pos. It fails with ErrDuplicateID or ErrPositionOccupied.
func (m *AdvancedSpatialMap[T]) Add(item T, pos geometry.Point) error {
	id := item.ID()
	if err := m.checkAdd(id, pos); err != nil {
		return m.fail(idError("add", id, pos, err))
	}
	m.add(id, item, pos)
	return nil
}

// TryAdd is Add reporting failure as false, without mutating anything.
func (m *AdvancedSpatialMap[T]) TryAdd(item T, pos geometry.Point) bool {
	id := item.ID()
	if m.checkAdd(id, pos) != nil {
		return false
	}
	m.add(id, item, pos)
	return true
}

func (m *AdvancedSpatialMap[T]) add(id uint32, item T, pos geometry.Point) {
	m.items[id] = entry[T]{item: item, pos: pos}
	b := m.bucketFor(pos)
	b.items = append(b.items, item)
	m.events.emitAdded(item, pos)
}

// Remove

// Remove takes item out of the map. It fails with ErrIDNotFound.
func (m *AdvancedSpatialMap[T]) Remove(item T) error {
	_, err := m.RemoveByID(item.ID())
	return err
}

// RemoveByID removes the item with the given ID and returns it.
func (m *AdvancedSpatialMap[T]) RemoveByID(id uint32) (T, error) {
	e, ok := m.items[id]
	if !ok {
		var zero T
		return zero, m.fail(idError("remove", id, geometry.None, ErrIDNotFound))
	}
	m.remove(id, e)
	return e.item, nil
}

func (m *AdvancedSpatialMap[T]) TryRemove(item T) bool {
	_, ok := m.TryRemoveByID(item.ID())
	return ok
}

func (m *AdvancedSpatialMap[T]) TryRemoveByID(id uint32) (T, bool) {
	e, ok := m.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	m.remove(id, e)
	return e.item, true
}

func (m *AdvancedSpatialMap[T]) remove(id uint32, e entry[T]) {
	delete(m.items, id)
	m.unlink(id, e.pos)
	m.events.emitRemoved(e.item, e.pos)
}

// RemoveAt removes every item at pos and returns them, possibly none.
func (m *AdvancedSpatialMap[T]) RemoveAt(pos geometry.Point) []T {
	b, ok := m.positions[pos]
	if !ok {
		return nil
	}
	removed := slices.Clone(b.items)
	for _, item := range removed {
		delete(m.items, item.ID())
	}
	m.release(pos, b)
	for _, item := range removed {
		m.events.emitRemoved(item, pos)
	}
	return removed
}

// Clear removes every item, raising ItemRemoved for each.
func (m *AdvancedSpatialMap[T]) Clear() {
	if len(m.items) == 0 {
		return
	}
	var removed []entry[T]
	if !m.events.removed.empty() {
		removed = make([]entry[T], 0, len(m.items))
		for _, e := range m.items {
			removed = append(removed, e)
		}
	}
	clear(m.items)
	for pos, b := range m.positions {
		m.release(pos, b)
	}
	for _, e := range removed {
		m.events.emitRemoved(e.item, e.pos)
	}
}

// Move

// Move relocates item to pos. Moving to the current position succeeds
// without raising ItemMoved. It fails with ErrIDNotFound or
// ErrPositionOccupied, in which case nothing changes.
func (m *AdvancedSpatialMap[T]) Move(item T, pos geometry.Point) error {
	return m.MoveByID(item.ID(), pos)
}

func (m *AdvancedSpatialMap[T]) MoveByID(id uint32, pos geometry.Point) error {
	if err := m.checkMove(id, pos); err != nil {
		return m.fail(idError("move", id, pos, err))
	}
	m.move(id, pos)
	return nil
}

func (m *AdvancedSpatialMap[T]) TryMove(item T, pos geometry.Point) bool {
	return m.TryMoveByID(item.ID(), pos)
}

func (m *AdvancedSpatialMap[T]) TryMoveByID(id uint32, pos geometry.Point) bool {
	if m.checkMove(id, pos) != nil {
		return false
	}
	m.move(id, pos)
	return true
}

func (m *AdvancedSpatialMap[T]) move(id uint32, pos geometry.Point) {
	e := m.items[id]
	from := e.pos
	if from == pos {
		return
	}
	m.unlink(id, from)
	b := m.bucketFor(pos)
	b.items = append(b.items, e.item)
	e.pos = pos
	m.items[id] = e
	m.events.emitMoved(e.item, from, pos)
}

// MoveAll moves every item at src to dst. Either all of them fit at dst and
// all move, or it fails with ErrInvalidOperation and nothing moves.
// Moving from an empty position, or onto src itself, succeeds trivially.
func (m *AdvancedSpatialMap[T]) MoveAll(src, dst geometry.Point) error {
	if err := m.checkMoveAll(src, dst); err != nil {
		return m.fail(moveAllError("move all", src, dst, err))
	}
	m.transfer(src, dst, -1, nil)
	return nil
}

// TryMoveAll moves as many items from src to dst as fit, in the order they
// were placed at src, and returns those moved. ok is true when src ended up
// empty (every item moved).
func (m *AdvancedSpatialMap[T]) TryMoveAll(src, dst geometry.Point) (moved []T, ok bool) {
	moved = m.MoveValid(src, dst)
	return moved, src == dst || !m.ContainsPosition(src)
}

// MoveValid moves as many items from src to dst as fit and returns exactly
// those. It never fails; an empty result means nothing could move.
func (m *AdvancedSpatialMap[T]) MoveValid(src, dst geometry.Point) []T {
	return m.MoveValidInto(src, dst, nil)
}

// MoveValidInto is MoveValid appending the moved items to buf.
func (m *AdvancedSpatialMap[T]) MoveValidInto(src, dst geometry.Point, buf []T) []T {
	if src == dst {
		return buf
	}
	return m.transfer(src, dst, m.multiplicity.Room(m.CountAt(dst)), buf)
}

// transfer moves up to limit items (all when limit < 0) from src to dst in
// bucket order, appends them to out and raises ItemMoved for each once
// every index is consistent again.
func (m *AdvancedSpatialMap[T]) transfer(src, dst geometry.Point, limit int, out []T) []T {
	start := len(out)
	out = m.relocate(src, dst, limit, out)
	m.emitMovedAll(out[start:], src, dst)
	return out
}

// relocate is transfer without notifications.
func (m *AdvancedSpatialMap[T]) relocate(src, dst geometry.Point, limit int, out []T) []T {
	if src == dst || limit == 0 {
		return out
	}
	sb, ok := m.positions[src]
	if !ok {
		return out
	}
	n := len(sb.items)
	if limit >= 0 && limit < n {
		n = limit
	}
	start := len(out)
	out = append(out, sb.items[:n]...)
	moved := out[start:]

	if db, ok := m.positions[dst]; !ok && n == len(sb.items) {
		// The whole bucket moves to an empty position: re-key it.
		delete(m.positions, src)
		m.positions[dst] = sb
	} else {
		if !ok {
			db = m.bucketFor(dst)
		}
		db.items = append(db.items, moved...)
		sb.items = slices.Delete(sb.items, 0, n)
		if len(sb.items) == 0 {
			m.release(src, sb)
		}
	}

	for _, item := range moved {
		id := item.ID()
		e := m.items[id]
		e.pos = dst
		m.items[id] = e
	}
	return out
}

func (m *AdvancedSpatialMap[T]) emitMovedAll(moved []T, src, dst geometry.Point) {
	for _, item := range moved {
		m.events.emitMoved(item, src, dst)
	}
}

// Index maintenance

func (m *AdvancedSpatialMap[T]) bucketFor(pos geometry.Point) *bucket[T] {
	b, ok := m.positions[pos]
	if !ok {
		b = m.buckets.Get()
		m.positions[pos] = b
	}
	return b
}

func (m *AdvancedSpatialMap[T]) unlink(id uint32, pos geometry.Point) {
	b, ok := m.positions[pos]
	if !ok {
		return
	}
	b.remove(id)
	if len(b.items) == 0 {
		m.release(pos, b)
	}
}

// release drops the bucket at pos from the index and recycles it.
func (m *AdvancedSpatialMap[T]) release(pos geometry.Point, b *bucket[T]) {
	delete(m.positions, pos)
	clear(b.items)
	b.items = b.items[:0]
	m.buckets.Put(b)
}

func (m *AdvancedSpatialMap[T]) fail(err *MapError) error {
	if m.logger.Enabled(log.LevelDebug) {
		m.logger.Debug("spatial map operation rejected",
			log.String("op", err.Op),
			log.Uint32("id", err.ID),
			log.Stringer("position", err.Position),
			log.Error(err.Err),
		)
	}
	return err
}
