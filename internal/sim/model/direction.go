package model

// Direction is one of the six block faces. The numeric value doubles as the
// persisted direction code.
type Direction int8

const (
	Down Direction = iota
	Up
	North
	South
	West
	East

	// None means "no direction" (e.g. an output that has no route).
	None
)

var All = [6]Direction{Down, Up, North, South, West, East}

var offsets = [6]Vec3i{
	Down:  {X: 0, Y: -1, Z: 0},
	Up:    {X: 0, Y: 1, Z: 0},
	North: {X: 0, Y: 0, Z: -1},
	South: {X: 0, Y: 0, Z: 1},
	West:  {X: -1, Y: 0, Z: 0},
	East:  {X: 1, Y: 0, Z: 0},
}

var names = [7]string{"DOWN", "UP", "NORTH", "SOUTH", "WEST", "EAST", "NONE"}

func (d Direction) Valid() bool { return d >= Down && d <= East }

func (d Direction) Opposite() Direction {
	if !d.Valid() {
		return None
	}
	return d ^ 1
}

// Offset returns the unit vector pointing out of face d (zero for None).
func (d Direction) Offset() Vec3i {
	if !d.Valid() {
		return Vec3i{}
	}
	return offsets[d]
}

func (d Direction) Code() int8 {
	if !d.Valid() {
		return int8(None)
	}
	return int8(d)
}

func DirectionFromCode(c int8) Direction {
	d := Direction(c)
	if !d.Valid() {
		return None
	}
	return d
}

func (d Direction) String() string {
	if !d.Valid() {
		return names[None]
	}
	return names[d]
}

func ParseDirection(s string) (Direction, bool) {
	for i, n := range names[:6] {
		if n == s {
			return Direction(i), true
		}
	}
	return None, false
}
