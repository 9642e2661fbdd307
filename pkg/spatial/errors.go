package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/gridkit/pkg/geometry"
)

var (
	ErrDuplicateID       = errors.New("id already present")
	ErrIDNotFound        = errors.New("id not found")
	ErrPositionOccupied  = errors.New("position cannot accept another item")
	ErrLayerOutOfRange   = errors.New("layer out of range")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrResetNotSupported = errors.New("iterator reset is not supported; obtain a new iterator")
	ErrInvalidLayerCount = errors.New("layer count must be between 1 and 32 including the starting layer")
)

// MapError is returned by the strict operations (Add, Remove, Move, MoveAll, ...).
// Err is one of the sentinel errors above, so errors.Is works on it.
type MapError struct {
	Op       string
	ID       uint32
	HasID    bool
	Position geometry.Point
	Target   geometry.Point
	HasMove  bool
	Layer    int
	HasLayer bool
	Err      error
}

func (e *MapError) Error() string {
	var b strings.Builder
	b.WriteString("spatial: ")
	b.WriteString(e.Op)
	if e.HasID {
		fmt.Fprintf(&b, " id=%d", e.ID)
	}
	if e.HasLayer {
		fmt.Fprintf(&b, " layer=%d", e.Layer)
	}
	if e.HasMove {
		fmt.Fprintf(&b, " %s -> %s", e.Position, e.Target)
	} else if e.Position != geometry.None {
		fmt.Fprintf(&b, " at %s", e.Position)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *MapError) Unwrap() error {
	return e.Err
}

func idError(op string, id uint32, pos geometry.Point, err error) *MapError {
	return &MapError{Op: op, ID: id, HasID: true, Position: pos, Err: err}
}

func moveAllError(op string, src, dst geometry.Point, err error) *MapError {
	return &MapError{Op: op, Position: src, Target: dst, HasMove: true, Err: err}
}

func layerError(op string, id uint32, layer int, err error) *MapError {
	return &MapError{Op: op, ID: id, HasID: true, Position: geometry.None, Layer: layer, HasLayer: true, Err: err}
}
