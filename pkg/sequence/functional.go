package sequence

import (
	"iter"
	"slices"
)

// Iterator is a generic, immutable, chainable iterator for any type T.
// It is lazy: nothing runs until a terminal method (Collect, Count, First, ...)
// or a range loop over Seq pulls from it, and every terminal call re-runs
// the underlying sequence from the start.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// FromSeq wraps an existing sequence.
func FromSeq[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{seq: slices.Values(data)}
}

// FromMap iterates the values of a map in unspecified order.
func FromMap[T any, K comparable](data map[K]T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// Seq returns the underlying sequence function for the iterator.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	var out []T
	for v := range i.seq {
		out = append(out, v)
	}
	return out
}

// AppendTo appends every element to dst and returns the extended slice.
func (i *Iterator[T]) AppendTo(dst []T) []T {
	for v := range i.seq {
		dst = append(dst, v)
	}
	return dst
}

// Filter returns a new Iterator containing only elements that satisfy the predicate.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for v := range i.seq {
				if pred(v) && !yield(v) {
					return
				}
			}
		},
	}
}

// Find returns the first element matching the predicate, or false if not found.
func (i *Iterator[T]) Find(pred func(T) bool) (T, bool) {
	for v := range i.seq {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Any returns true if any element matches the predicate.
func (i *Iterator[T]) Any(pred func(T) bool) bool {
	_, found := i.Find(pred)
	return found
}

// All returns true if all elements match the predicate.
func (i *Iterator[T]) All(pred func(T) bool) bool {
	for v := range i.seq {
		if !pred(v) {
			return false
		}
	}
	return true
}

// Take returns a new Iterator with the first n elements.
func (i *Iterator[T]) Take(n int) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			if n <= 0 {
				return
			}
			count := 0
			for v := range i.seq {
				if !yield(v) {
					return
				}
				count++
				if count >= n {
					return
				}
			}
		},
	}
}

// First returns the first element, or false if empty.
func (i *Iterator[T]) First() (T, bool) {
	for v := range i.seq {
		return v, true
	}
	var zero T
	return zero, false
}

// Count returns the number of elements in the iterator.
func (i *Iterator[T]) Count() int {
	count := 0
	for range i.seq {
		count++
	}
	return count
}

// Map transforms every element with fn.
func Map[T any, R any](it *Iterator[T], fn func(T) R) *Iterator[R] {
	return &Iterator[R]{
		seq: func(yield func(R) bool) {
			for v := range it.seq {
				if !yield(fn(v)) {
					return
				}
			}
		},
	}
}

// Distinct drops repeated elements, keeping the first occurrence.
func Distinct[T comparable](it *Iterator[T]) *Iterator[T] {
	return DistinctBy(it, func(v T) T { return v })
}

// DistinctBy drops elements whose key was already seen.
func DistinctBy[T any, K comparable](it *Iterator[T], keyFn func(T) K) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			seen := make(map[K]struct{})
			for v := range it.seq {
				k := keyFn(v)
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				if !yield(v) {
					return
				}
			}
		},
	}
}

// Chain concatenates multiple iterators into one.
func Chain[T any](iters ...*Iterator[T]) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, it := range iters {
				for v := range it.seq {
					if !yield(v) {
						return
					}
				}
			}
		},
	}
}

// GroupBy groups elements by a key function, returning a map from key to slice of T.
func GroupBy[T any, K comparable](it *Iterator[T], keyFn func(T) K) map[K][]T {
	groups := make(map[K][]T)
	for v := range it.seq {
		k := keyFn(v)
		groups[k] = append(groups[k], v)
	}
	return groups
}

// ToSet builds a set (map[T]struct{}) from the iterator.
func ToSet[T comparable](it *Iterator[T]) map[T]struct{} {
	set := make(map[T]struct{})
	for v := range it.seq {
		set[v] = struct{}{}
	}
	return set
}
