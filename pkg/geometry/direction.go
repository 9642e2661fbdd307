package geometry

// YAxis describes which way Y grows on screen. It is passed explicitly to
// every call that turns a direction into a coordinate delta.
type YAxis uint8

const (
	// YDown is the usual terminal/raster layout: row 0 is the top row.
	YDown YAxis = iota
	// YUp is the mathematical layout: Y grows towards the top of the screen.
	YUp
)

func (a YAxis) String() string {
	if a == YUp {
		return "up"
	}
	return "down"
}

// ParseYAxis accepts "up" or "down" (empty means down).
func ParseYAxis(s string) (YAxis, bool) {
	switch s {
	case "", "down":
		return YDown, true
	case "up":
		return YUp, true
	default:
		return YDown, false
	}
}

// Direction is one of the eight compass directions, or DirNone.
type Direction uint8

const (
	DirNone Direction = iota
	DirUp
	DirUpRight
	DirRight
	DirDownRight
	DirDown
	DirDownLeft
	DirLeft
	DirUpLeft
)

// Cardinals and Directions8 list directions clockwise starting at DirUp.
var (
	Cardinals   = [4]Direction{DirUp, DirRight, DirDown, DirLeft}
	Directions8 = [8]Direction{DirUp, DirUpRight, DirRight, DirDownRight, DirDown, DirDownLeft, DirLeft, DirUpLeft}
)

var screenDeltas = [...]Point{
	DirNone:      {0, 0},
	DirUp:        {0, -1},
	DirUpRight:   {1, -1},
	DirRight:     {1, 0},
	DirDownRight: {1, 1},
	DirDown:      {0, 1},
	DirDownLeft:  {-1, 1},
	DirLeft:      {-1, 0},
	DirUpLeft:    {-1, -1},
}

var directionNames = [...]string{"none", "up", "up-right", "right", "down-right", "down", "down-left", "left", "up-left"}

// Delta returns the coordinate change of one step in d.
func (d Direction) Delta(axis YAxis) Point {
	if int(d) >= len(screenDeltas) {
		return Point{}
	}
	delta := screenDeltas[d]
	if axis == YUp {
		delta.Y = -delta.Y
	}
	return delta
}

func (d Direction) String() string {
	if int(d) >= len(directionNames) {
		return "invalid"
	}
	return directionNames[d]
}
