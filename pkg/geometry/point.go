// Package geometry holds the grid value types consumed by the spatial maps.
package geometry

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Point is an integer grid coordinate. It is comparable and is used
// directly as a map key.
type Point struct {
	X int
	Y int
}

// None is a sentinel for "no position".
var None = Point{X: int(^uint(0) >> 1), Y: int(^uint(0) >> 1)}

func NewPoint(x, y int) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Translate moves the point one step in d under the given orientation.
func (p Point) Translate(d Direction, axis YAxis) Point {
	return p.Add(d.Delta(axis))
}

// ToIndex converts the point to a row-major index in a grid of the given width.
func (p Point) ToIndex(width int) int {
	return p.Y*width + p.X
}

func FromIndex(index, width int) Point {
	return Point{X: index % width, Y: index / width}
}

// Hash is a stable 64-bit hash of the point. Both coordinates are fed to
// xxhash as 64-bit little-endian words, so sequential coordinates spread
// over the whole output range instead of folding onto each other the way
// x^y does.
func (p Point) Hash() uint64 {
	var buf [16]byte
	p.put(buf[:])
	return xxhash.Sum64(buf[:])
}

// AppendBytes appends the 16-byte little-endian encoding of the point.
func (p Point) AppendBytes(b []byte) []byte {
	var buf [16]byte
	p.put(buf[:])
	return append(b, buf[:]...)
}

func (p Point) put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(p.X)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(p.Y)))
}

func (p Point) String() string {
	return "(" + strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y) + ")"
}
