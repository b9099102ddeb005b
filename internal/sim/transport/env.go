package transport

import "pipeworks/internal/sim/model"

// Segment is the pipe a unit currently travels through. All lookups are
// in-memory and read-only except ReceiveUnit with simulate=false.
type Segment interface {
	Pos() model.Vec3i
	Connects(d model.Direction) bool

	// NearestShifter returns the closest shifter able to push items toward d,
	// and how many blocks away it is. (nil, 0) when there is none.
	NearestShifter(d model.Direction) (Shifter, int)
	// ShifterAt returns the shifter located distance blocks away along d, if any.
	ShifterAt(d model.Direction, distance int) Shifter

	// Neighbor returns the entity adjacent on face d: a Segment, an
	// Injectable, an Inventory, or nil.
	Neighbor(d model.Direction) any

	// ReceiveUnit takes a unit entering through face from. With simulate set
	// it only reports whether it would take it.
	ReceiveUnit(u *Unit, from model.Direction, simulate bool) bool
}

type Shifter interface {
	Facing() model.Direction
	Shifting() bool
	HasFilter() bool
	Matches(stack *model.Stack) bool
}

// Injectable is a non-pipe target that takes items pushed into it directly.
type Injectable interface {
	CanInject(from model.Direction) bool
	Inject(stack *model.Stack, from model.Direction, simulate bool) int
}

type Inventory interface {
	Connects(from model.Direction) bool
	AddStack(from model.Direction, stack *model.Stack, simulate bool) int
}

// Sync receives change notifications for remote mirrors. Calls must not block.
type Sync interface {
	UnitChanged(owner Segment, u *Unit, withStack bool)
}

// Spawner releases a stack into the world as a loose item.
type Spawner interface {
	SpawnItem(at model.Vec3f, stack *model.Stack)
}

// Rand is the tie-break source for unforced routing. *math/rand.Rand and
// *math/rand/v2.Rand both satisfy it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}
