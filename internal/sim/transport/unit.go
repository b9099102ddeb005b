package transport

import (
	"sync/atomic"

	"pipeworks/internal/sim/model"
)

const (
	MaxProgress    = 128
	CenterProgress = MaxProgress / 2
	Speed          = MaxProgress / 16

	// SyncGrace is how many segment ends a mirror unit may pass without an
	// authoritative update before it stops forwarding itself.
	SyncGrace = 2
)

// IDAllocator hands out process-unique unit ids. The zero value is ready to use.
type IDAllocator struct {
	next atomic.Uint64
}

func (a *IDAllocator) Next() uint64 { return a.next.Add(1) }

// Unit is a single item stack travelling through pipes. It is owned by exactly
// one Segment at a time and is not safe for concurrent use.
type Unit struct {
	id    uint64
	owner Segment
	stack *model.Stack

	input         model.Direction
	output        model.Direction
	progress      int
	reachedCenter bool
	stuck         bool

	activeShifterDistance int
	blocksSinceSync       int
}

func NewUnit(owner Segment, stack *model.Stack, from model.Direction, ids *IDAllocator) *Unit {
	return NewUnitWithID(owner, ids.Next(), stack, from)
}

// NewUnitWithID builds a unit with a known id, e.g. a mirror replaying an
// authoritative unit it has not seen before.
func NewUnitWithID(owner Segment, id uint64, stack *model.Stack, from model.Direction) *Unit {
	u := &Unit{id: id, owner: owner, stack: stack}
	u.enter(from)
	return u
}

func (u *Unit) enter(from model.Direction) {
	u.input = from
	u.output = model.None
	u.reachedCenter = false
	u.stuck = false
	u.progress = 0
}

// Reset re-initializes the unit for traversal of a new owner, entering
// through face from.
func (u *Unit) Reset(owner Segment, from model.Direction) {
	u.owner = owner
	u.enter(from)
}

func (u *Unit) ID() uint64              { return u.id }
func (u *Unit) Owner() Segment          { return u.owner }
func (u *Unit) Stack() *model.Stack     { return u.stack }
func (u *Unit) Input() model.Direction  { return u.input }
func (u *Unit) Output() model.Direction { return u.output }
func (u *Unit) Progress() int           { return u.progress }
func (u *Unit) ReachedCenter() bool     { return u.reachedCenter }
func (u *Unit) Stuck() bool             { return u.stuck }

// ActiveShifterDistance is the priority of the shifter that chose the
// current output, 0 when routing was unforced.
func (u *Unit) ActiveShifterDistance() int { return u.activeShifterDistance }

func (u *Unit) ProgressFraction() float64 { return float64(u.progress) / MaxProgress }

// Valid reports whether the unit still carries a payload and can be advanced.
func (u *Unit) Valid() bool {
	return u != nil && !u.stack.Empty() && u.input.Valid()
}

// Direction is the current travel direction: toward the center before it is
// reached, toward the output afterwards.
func (u *Unit) Direction() model.Direction {
	if u.reachedCenter {
		return u.output
	}
	return u.input.Opposite()
}

// Position is the unit's location inside its segment, each axis in [0,1].
func (u *Unit) Position() model.Vec3f {
	d := u.Direction()
	if !d.Valid() {
		return model.Vec3f{X: 0.5, Y: 0.5, Z: 0.5}
	}
	off := d.Offset()
	return model.Vec3f{X: u.axis(off.X), Y: u.axis(off.Y), Z: u.axis(off.Z)}
}

func (u *Unit) axis(offset int) float64 {
	if u.progress >= CenterProgress {
		return 0.5 + float64(offset)*float64(u.progress-CenterProgress)/MaxProgress
	}
	switch offset {
	case -1:
		return 1 - float64(u.progress)/MaxProgress
	case 1:
		return float64(u.progress) / MaxProgress
	default:
		return 0.5
	}
}

func (u *Unit) centered() bool { return u.progress == CenterProgress }

// State is the replicated view of a unit.
type State struct {
	Input         model.Direction
	Output        model.Direction
	Progress      int
	ReachedCenter bool
	Stuck         bool
	Stack         *model.Stack
}

func (u *Unit) State() State {
	return State{
		Input:         u.input,
		Output:        u.output,
		Progress:      u.progress,
		ReachedCenter: u.reachedCenter,
		Stuck:         u.stuck,
		Stack:         u.stack,
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxProgress {
		return MaxProgress
	}
	return p
}
