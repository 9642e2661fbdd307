package spatial

import (
	"errors"

	"github.com/zeusync/gridkit/pkg/geometry"
	"github.com/zeusync/gridkit/pkg/observability/log"
)

// syncCore owns the position-hook subscriptions of the items an AutoSync
// map tracks. checkMove vets a pending position change and move commits it.
type syncCore[T Positionable] struct {
	subs      map[uint32]*Subscription
	checkMove func(item T, to geometry.Point) error
	move      func(item T, to geometry.Point) bool
	logger    log.Log
}

func newSyncCore[T Positionable](logger log.Log) syncCore[T] {
	return syncCore[T]{subs: make(map[uint32]*Subscription), logger: logger}
}

func (s *syncCore[T]) track(item T) {
	s.subs[item.ID()] = item.ObservePosition(PositionHooks{
		Changing: func(_, to geometry.Point) error {
			return s.checkMove(item, to)
		},
		Changed: func(from, to geometry.Point) {
			if !s.move(item, to) {
				// Another observer changed the map between the two hooks.
				s.logger.Warn("auto-sync map lost track of an item position",
					log.Uint32("id", item.ID()),
					log.Stringer("from", from),
					log.Stringer("to", to),
				)
			}
		},
	})
}

func (s *syncCore[T]) untrack(id uint32) {
	if sub, ok := s.subs[id]; ok {
		sub.Cancel()
		delete(s.subs, id)
	}
}

func (s *syncCore[T]) untrackAll() {
	for id, sub := range s.subs {
		sub.Cancel()
		delete(s.subs, id)
	}
}

// moveAll moves every item to dst through its own setter. If one of them is
// refused, the ones already moved are put back on src. An item whose way
// back is refused as well stays at dst; its error is joined to the result.
func (s *syncCore[T]) moveAll(items []T, src, dst geometry.Point) error {
	for i, item := range items {
		if err := item.SetPosition(dst); err != nil {
			errs := []error{err}
			for _, done := range items[:i] {
				if rbErr := done.SetPosition(src); rbErr != nil {
					s.logger.Warn("auto-sync move all left an item behind",
						log.Uint32("id", done.ID()),
						log.Stringer("at", dst),
						log.Stringer("want", src),
						log.ErrorWithKey("rollback_error", rbErr),
					)
					errs = append(errs, rbErr)
				}
			}
			if len(errs) == 1 {
				return err
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

func (s *syncCore[T]) moveValid(items []T, dst geometry.Point, buf []T) []T {
	for _, item := range items {
		if item.SetPosition(dst) == nil {
			buf = append(buf, item)
		}
	}
	return buf
}

// AutoSyncAdvancedSpatialMap keeps items' own positions and the map in step.
// Items are added at their current Position; afterwards assigning a new
// position to an item moves it in the map, and a move the map refuses is
// refused by the item's setter. Moving through the map calls the item's
// setter, so both paths produce the same state and the same events.
type AutoSyncAdvancedSpatialMap[T Positionable] struct {
	ReadOnlySpatialMap[T]
	inner *AdvancedSpatialMap[T]
	sync  syncCore[T]
}

func NewAutoSyncAdvancedSpatialMap[T Positionable](m Multiplicity, opts ...Option) *AutoSyncAdvancedSpatialMap[T] {
	return newAutoSyncAdvanced(NewAdvancedSpatialMap[T](m, opts...))
}

func newAutoSyncAdvanced[T Positionable](inner *AdvancedSpatialMap[T]) *AutoSyncAdvancedSpatialMap[T] {
	m := &AutoSyncAdvancedSpatialMap[T]{
		ReadOnlySpatialMap: inner,
		inner:              inner,
		sync:               newSyncCore[T](inner.logger),
	}
	m.sync.checkMove = func(item T, to geometry.Point) error {
		if err := inner.checkMove(item.ID(), to); err != nil {
			return idError("move", item.ID(), to, err)
		}
		return nil
	}
	m.sync.move = func(item T, to geometry.Point) bool {
		return inner.TryMoveByID(item.ID(), to)
	}
	return m
}

// CanAdd reports whether item can be added at its current position.
func (m *AutoSyncAdvancedSpatialMap[T]) CanAdd(item T) bool {
	return m.inner.CanAdd(item, item.Position())
}

// Add adds item at its current position and starts following its moves.
func (m *AutoSyncAdvancedSpatialMap[T]) Add(item T) error {
	if err := m.inner.Add(item, item.Position()); err != nil {
		return err
	}
	m.sync.track(item)
	return nil
}

func (m *AutoSyncAdvancedSpatialMap[T]) TryAdd(item T) bool {
	if !m.inner.TryAdd(item, item.Position()) {
		return false
	}
	m.sync.track(item)
	return true
}

// Remove stops following item, then removes it.
func (m *AutoSyncAdvancedSpatialMap[T]) Remove(item T) error {
	_, err := m.RemoveByID(item.ID())
	return err
}

func (m *AutoSyncAdvancedSpatialMap[T]) RemoveByID(id uint32) (T, error) {
	m.sync.untrack(id)
	return m.inner.RemoveByID(id)
}

func (m *AutoSyncAdvancedSpatialMap[T]) TryRemove(item T) bool {
	_, ok := m.TryRemoveByID(item.ID())
	return ok
}

func (m *AutoSyncAdvancedSpatialMap[T]) TryRemoveByID(id uint32) (T, bool) {
	m.sync.untrack(id)
	return m.inner.TryRemoveByID(id)
}

func (m *AutoSyncAdvancedSpatialMap[T]) RemoveAt(pos geometry.Point) []T {
	it := m.inner.GetItemsAt(pos)
	for it.Next() {
		m.sync.untrack(it.Current().ID())
	}
	return m.inner.RemoveAt(pos)
}

func (m *AutoSyncAdvancedSpatialMap[T]) Clear() {
	m.sync.untrackAll()
	m.inner.Clear()
}

// Move sets the position of the tracked item with item's ID.
func (m *AutoSyncAdvancedSpatialMap[T]) Move(item T, pos geometry.Point) error {
	return m.MoveByID(item.ID(), pos)
}

func (m *AutoSyncAdvancedSpatialMap[T]) MoveByID(id uint32, pos geometry.Point) error {
	tracked, ok := m.inner.GetItem(id)
	if !ok {
		return m.inner.fail(idError("move", id, pos, ErrIDNotFound))
	}
	return m.report(tracked.SetPosition(pos))
}

func (m *AutoSyncAdvancedSpatialMap[T]) TryMove(item T, pos geometry.Point) bool {
	tracked, ok := m.inner.GetItem(item.ID())
	return ok && tracked.SetPosition(pos) == nil
}

// MoveAll moves every item at src to dst, or none of them.
func (m *AutoSyncAdvancedSpatialMap[T]) MoveAll(src, dst geometry.Point) error {
	if err := m.inner.checkMoveAll(src, dst); err != nil {
		return m.inner.fail(moveAllError("move all", src, dst, err))
	}
	if src == dst {
		return nil
	}
	return m.report(m.sync.moveAll(m.inner.GetItemsAt(src).ToSlice(), src, dst))
}

func (m *AutoSyncAdvancedSpatialMap[T]) TryMoveAll(src, dst geometry.Point) ([]T, bool) {
	moved := m.MoveValid(src, dst)
	return moved, src == dst || !m.inner.ContainsPosition(src)
}

func (m *AutoSyncAdvancedSpatialMap[T]) MoveValid(src, dst geometry.Point) []T {
	if src == dst {
		return nil
	}
	return m.sync.moveValid(m.inner.GetItemsAt(src).ToSlice(), dst, nil)
}

func (m *AutoSyncAdvancedSpatialMap[T]) report(err error) error {
	var mapErr *MapError
	if errors.As(err, &mapErr) {
		_ = m.inner.fail(mapErr)
	}
	return err
}

// AutoSyncSpatialMap is the single-item-per-position AutoSync map.
type AutoSyncSpatialMap[T Positionable] struct {
	*AutoSyncAdvancedSpatialMap[T]
}

func NewAutoSyncSpatialMap[T Positionable](opts ...Option) *AutoSyncSpatialMap[T] {
	return &AutoSyncSpatialMap[T]{NewAutoSyncAdvancedSpatialMap[T](Single, opts...)}
}

func (m *AutoSyncSpatialMap[T]) GetItemAt(pos geometry.Point) (T, bool) {
	if b, ok := m.inner.positions[pos]; ok {
		return b.items[0], true
	}
	var zero T
	return zero, false
}

// AutoSyncMultiSpatialMap is the many-items-per-position AutoSync map.
type AutoSyncMultiSpatialMap[T Positionable] struct {
	*AutoSyncAdvancedSpatialMap[T]
}

func NewAutoSyncMultiSpatialMap[T Positionable](opts ...Option) *AutoSyncMultiSpatialMap[T] {
	return &AutoSyncMultiSpatialMap[T]{NewAutoSyncAdvancedSpatialMap[T](Multiple, opts...)}
}

// AutoSyncLayeredSpatialMap is LayeredSpatialMap with AutoSync semantics.
type AutoSyncLayeredSpatialMap[T PositionableLayer] struct {
	ReadOnlyLayeredSpatialMap[T]
	inner *LayeredSpatialMap[T]
	sync  syncCore[T]
}

func NewAutoSyncLayeredSpatialMap[T PositionableLayer](layerCount int, opts ...Option) (*AutoSyncLayeredSpatialMap[T], error) {
	inner, err := NewLayeredSpatialMap[T](layerCount, opts...)
	if err != nil {
		return nil, err
	}
	m := &AutoSyncLayeredSpatialMap[T]{
		ReadOnlyLayeredSpatialMap: inner,
		inner:                     inner,
		sync:                      newSyncCore[T](inner.logger),
	}
	m.sync.checkMove = func(item T, to geometry.Point) error {
		l := inner.layer(item.Layer())
		if l == nil {
			return layerError("move", item.ID(), item.Layer(), ErrLayerOutOfRange)
		}
		if err := l.checkMove(item.ID(), to); err != nil {
			return inner.withLayer(idError("move", item.ID(), to, err), item)
		}
		return nil
	}
	m.sync.move = func(item T, to geometry.Point) bool {
		l := inner.layer(item.Layer())
		return l != nil && l.TryMoveByID(item.ID(), to)
	}
	return m, nil
}

func (m *AutoSyncLayeredSpatialMap[T]) CanAdd(item T) bool {
	return m.inner.CanAdd(item, item.Position())
}

func (m *AutoSyncLayeredSpatialMap[T]) Add(item T) error {
	if err := m.inner.Add(item, item.Position()); err != nil {
		return err
	}
	m.sync.track(item)
	return nil
}

func (m *AutoSyncLayeredSpatialMap[T]) TryAdd(item T) bool {
	if !m.inner.TryAdd(item, item.Position()) {
		return false
	}
	m.sync.track(item)
	return true
}

func (m *AutoSyncLayeredSpatialMap[T]) Remove(item T) error {
	if m.inner.Contains(item) {
		m.sync.untrack(item.ID())
	}
	return m.inner.Remove(item)
}

func (m *AutoSyncLayeredSpatialMap[T]) RemoveByID(id uint32) (T, error) {
	m.sync.untrack(id)
	return m.inner.RemoveByID(id)
}

func (m *AutoSyncLayeredSpatialMap[T]) TryRemove(item T) bool {
	if !m.inner.Contains(item) {
		return false
	}
	m.sync.untrack(item.ID())
	return m.inner.TryRemove(item)
}

func (m *AutoSyncLayeredSpatialMap[T]) RemoveAt(pos geometry.Point, mask LayerMask) []T {
	it := m.inner.GetItemsAt(pos, mask)
	for it.Next() {
		m.sync.untrack(it.Current().ID())
	}
	return m.inner.RemoveAt(pos, mask)
}

func (m *AutoSyncLayeredSpatialMap[T]) Clear() {
	m.sync.untrackAll()
	m.inner.Clear()
}

func (m *AutoSyncLayeredSpatialMap[T]) Move(item T, pos geometry.Point) error {
	return m.MoveByID(item.ID(), pos)
}

func (m *AutoSyncLayeredSpatialMap[T]) MoveByID(id uint32, pos geometry.Point) error {
	tracked, ok := m.inner.GetItem(id)
	if !ok {
		return m.inner.fail(idError("move", id, pos, ErrIDNotFound))
	}
	return m.report(tracked.SetPosition(pos))
}

func (m *AutoSyncLayeredSpatialMap[T]) TryMove(item T, pos geometry.Point) bool {
	tracked, ok := m.inner.GetItem(item.ID())
	return ok && tracked.SetPosition(pos) == nil
}

// MoveAll moves every item at src on the masked layers to dst, or none.
func (m *AutoSyncLayeredSpatialMap[T]) MoveAll(src, dst geometry.Point, mask LayerMask) error {
	if !m.inner.CanMoveAll(src, dst, mask) {
		return m.inner.fail(moveAllError("move all", src, dst, ErrInvalidOperation))
	}
	if src == dst {
		return nil
	}
	return m.report(m.sync.moveAll(m.inner.GetItemsAt(src, mask).ToSlice(), src, dst))
}

func (m *AutoSyncLayeredSpatialMap[T]) TryMoveAll(src, dst geometry.Point, mask LayerMask) ([]T, bool) {
	moved := m.MoveValid(src, dst, mask)
	return moved, src == dst || !m.inner.ContainsPosition(src, mask)
}

func (m *AutoSyncLayeredSpatialMap[T]) MoveValid(src, dst geometry.Point, mask LayerMask) []T {
	if src == dst {
		return nil
	}
	return m.sync.moveValid(m.inner.GetItemsAt(src, mask).ToSlice(), dst, nil)
}

func (m *AutoSyncLayeredSpatialMap[T]) report(err error) error {
	var mapErr *MapError
	if errors.As(err, &mapErr) {
		_ = m.inner.fail(mapErr)
	}
	return err
}
