package spatial

import (
	"github.com/google/uuid"
	"github.com/zeusync/gridkit/pkg/geometry"
)

// ItemEvent describes an item added to or removed from a map.
type ItemEvent[T any] struct {
	Item     T
	Position geometry.Point
}

// ItemMovedEvent describes an item that changed position within a map.
type ItemMovedEvent[T any] struct {
	Item        T
	OldPosition geometry.Point
	NewPosition geometry.Point
}

// EventSource is implemented by every map type. Handlers run synchronously
// on the goroutine that performed the mutation, after it completed, in
// subscription order. A handler may mutate the map or cancel subscriptions.
type EventSource[T any] interface {
	OnItemAdded(fn func(ItemEvent[T])) *Subscription
	OnItemRemoved(fn func(ItemEvent[T])) *Subscription
	OnItemMoved(fn func(ItemMovedEvent[T])) *Subscription
}

// Subscription is the handle of a registered handler.
type Subscription struct {
	id     string
	active bool
	cancel func()
}

func (s *Subscription) ID() string   { return s.id }
func (s *Subscription) Active() bool { return s.active }

// Cancel detaches the handler. It is safe to call more than once, including
// from inside the handler itself.
func (s *Subscription) Cancel() {
	if s == nil || !s.active {
		return
	}
	s.active = false
	if s.cancel != nil {
		s.cancel()
	}
}

type handlerEntry[F any] struct {
	sub *Subscription
	fn  F
}

// handlerList is copy-on-remove: dispatch ranges over the slice header it
// read at the start, so handlers added or removed during dispatch never
// disturb the loop in progress.
type handlerList[F any] struct {
	entries []handlerEntry[F]
}

func (l *handlerList[F]) add(fn F) *Subscription {
	sub := &Subscription{id: uuid.NewString(), active: true}
	sub.cancel = func() { l.remove(sub) }
	l.entries = append(l.entries, handlerEntry[F]{sub: sub, fn: fn})
	return sub
}

func (l *handlerList[F]) remove(sub *Subscription) {
	next := make([]handlerEntry[F], 0, len(l.entries))
	for _, e := range l.entries {
		if e.sub != sub {
			next = append(next, e)
		}
	}
	l.entries = next
}

func (l *handlerList[F]) empty() bool {
	return len(l.entries) == 0
}

type eventHub[T any] struct {
	added   handlerList[func(ItemEvent[T])]
	removed handlerList[func(ItemEvent[T])]
	moved   handlerList[func(ItemMovedEvent[T])]
}

func newEventHub[T any]() *eventHub[T] {
	return &eventHub[T]{}
}

func (h *eventHub[T]) OnItemAdded(fn func(ItemEvent[T])) *Subscription {
	return h.added.add(fn)
}

func (h *eventHub[T]) OnItemRemoved(fn func(ItemEvent[T])) *Subscription {
	return h.removed.add(fn)
}

func (h *eventHub[T]) OnItemMoved(fn func(ItemMovedEvent[T])) *Subscription {
	return h.moved.add(fn)
}

func (h *eventHub[T]) emitAdded(item T, pos geometry.Point) {
	for _, e := range h.added.entries {
		if e.sub.active {
			e.fn(ItemEvent[T]{Item: item, Position: pos})
		}
	}
}

func (h *eventHub[T]) emitRemoved(item T, pos geometry.Point) {
	for _, e := range h.removed.entries {
		if e.sub.active {
			e.fn(ItemEvent[T]{Item: item, Position: pos})
		}
	}
}

func (h *eventHub[T]) emitMoved(item T, from, to geometry.Point) {
	for _, e := range h.moved.entries {
		if e.sub.active {
			e.fn(ItemMovedEvent[T]{Item: item, OldPosition: from, NewPosition: to})
		}
	}
}
