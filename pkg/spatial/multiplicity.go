package spatial

import "strconv"

// Multiplicity is the per-position capacity policy of a map.
type Multiplicity struct {
	max int // 0 means unbounded
}

var (
	// Single allows one item per position (SpatialMap).
	Single = Multiplicity{max: 1}
	// Multiple allows any number of items per position (MultiSpatialMap).
	Multiple = Multiplicity{}
)

// Bounded allows at most n items per position. n <= 0 means unbounded.
func Bounded(n int) Multiplicity {
	if n < 0 {
		n = 0
	}
	return Multiplicity{max: n}
}

// Accepts reports whether a position holding occupants items can take one more.
func (m Multiplicity) Accepts(occupants int) bool {
	return m.max == 0 || occupants < m.max
}

// Fits reports whether a position holding occupants items can take n more.
func (m Multiplicity) Fits(occupants, n int) bool {
	return m.max == 0 || occupants+n <= m.max
}

// Room is how many more items fit at a position holding occupants, or -1 when unbounded.
func (m Multiplicity) Room(occupants int) int {
	if m.max == 0 {
		return -1
	}
	return max(m.max-occupants, 0)
}

// Max is the capacity, 0 when unbounded.
func (m Multiplicity) Max() int {
	return m.max
}

func (m Multiplicity) bucketHint() int {
	if m.max == 0 || m.max > 4 {
		return 4
	}
	return m.max
}

func (m Multiplicity) String() string {
	switch m.max {
	case 0:
		return "multiple"
	case 1:
		return "single"
	default:
		return "bounded(" + strconv.Itoa(m.max) + ")"
	}
}
