package model

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Scale(k int) Vec3i { return Vec3i{X: v.X * k, Y: v.Y * k, Z: v.Z * k} }

func Vec3iFromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func Manhattan(a, b Vec3i) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	return dx + dy + dz
}

// Vec3f is a continuous world position (block corner at integer coordinates).
type Vec3f struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3f) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
