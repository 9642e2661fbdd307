// Package idgen issues unique, monotonically increasing entity IDs.
package idgen

import (
	"errors"
	"math"
)

var ErrIDSpaceExhausted = errors.New("id generator exhausted the uint32 id space")

// IDGenerator hands out IDs in increasing order starting at a fixed value.
// It is not safe for concurrent use; give each goroutine its own range
// or guard it externally.
type IDGenerator struct {
	current   uint32
	exhausted bool
	issued    bool
}

// New returns a generator whose first ID is start.
func New(start uint32) *IDGenerator {
	return &IDGenerator{current: start}
}

// NewWithLast resumes a generator that already issued last, e.g. after
// loading a saved world. The next ID is last+1.
func NewWithLast(last uint32) *IDGenerator {
	if last == math.MaxUint32 {
		return &IDGenerator{current: last, exhausted: true, issued: true}
	}
	return &IDGenerator{current: last + 1, issued: true}
}

// UseID returns the next ID and advances the counter.
func (g *IDGenerator) UseID() (uint32, error) {
	if g.exhausted {
		return 0, ErrIDSpaceExhausted
	}
	id := g.current
	g.issued = true
	if g.current == math.MaxUint32 {
		g.exhausted = true
	} else {
		g.current++
	}
	return id, nil
}

// MustUseID is UseID for callers that treat exhaustion as fatal.
func (g *IDGenerator) MustUseID() uint32 {
	id, err := g.UseID()
	if err != nil {
		panic(err)
	}
	return id
}

// CurrentInteger is the ID the next UseID call will return.
func (g *IDGenerator) CurrentInteger() uint32 {
	return g.current
}

// LastAssigned reports the most recently issued ID.
func (g *IDGenerator) LastAssigned() (uint32, bool) {
	switch {
	case !g.issued:
		return 0, false
	case g.exhausted:
		return g.current, true
	default:
		return g.current - 1, true
	}
}
