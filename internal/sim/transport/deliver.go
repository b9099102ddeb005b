package transport

import "pipeworks/internal/sim/model"

// handoff tries to move the unit's payload into neighbor n on face d. It
// reports whether anything was (or, with simulate, would be) accepted.
type handoff func(u *Unit, n any, d model.Direction, simulate bool) bool

// deliveryChain is tried in order; the first handler that accepts wins.
var deliveryChain = []handoff{passToSegment, passToInjectable, addToInventory}

func passToSegment(u *Unit, n any, d model.Direction, simulate bool) bool {
	seg, ok := n.(Segment)
	return ok && seg.ReceiveUnit(u, d.Opposite(), simulate)
}

func passToInjectable(u *Unit, n any, d model.Direction, simulate bool) bool {
	if _, isSeg := n.(Segment); isSeg {
		return false
	}
	inj, ok := n.(Injectable)
	if !ok {
		return false
	}
	added := inj.Inject(u.stack, d.Opposite(), simulate)
	if added <= 0 {
		return false
	}
	if !simulate {
		u.stack.Count -= added
	}
	return true
}

func addToInventory(u *Unit, n any, d model.Direction, simulate bool) bool {
	inv, ok := n.(Inventory)
	if !ok {
		return false
	}
	added := inv.AddStack(d.Opposite(), u.stack, simulate)
	if added <= 0 {
		return false
	}
	if !simulate {
		u.stack.Count -= added
	}
	return true
}

// canMove probes, without side effects, whether d would take the item now.
func (u *Unit) canMove(d model.Direction) bool {
	if !d.Valid() {
		return u.activeShifterDistance == 0
	}
	n := u.owner.Neighbor(d)
	for _, h := range deliveryChain {
		if h(u, n, d, true) {
			return true
		}
	}
	return false
}

// Outcome is how a unit left its segment.
type Outcome int

const (
	OutcomeHandoff Outcome = iota + 1
	OutcomeDelivered
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandoff:
		return "HANDOFF"
	case OutcomeDelivered:
		return "DELIVERED"
	case OutcomeDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// deliver resolves the unit at the end of its segment. A pipe handoff keeps
// the stack untouched; otherwise the accepted quantity is subtracted and any
// remainder is dropped.
func (u *Unit) deliver(sp Spawner) (Outcome, int) {
	before := u.stack.Count
	if d := u.output; d.Valid() {
		n := u.owner.Neighbor(d)
		if passToSegment(u, n, d, false) {
			return OutcomeHandoff, before
		}
		if !passToInjectable(u, n, d, false) {
			addToInventory(u, n, d, false)
		}
	}

	stack := u.stack
	u.stack = nil
	if stack.Count > 0 {
		if sp != nil {
			sp.SpawnItem(DropPosition(u.owner), stack)
		}
		return OutcomeDropped, before - stack.Count
	}
	return OutcomeDelivered, before
}

// DropPosition is where a loose item leaves seg: pushed 0.75 blocks away from
// the only connection, or the center when there are zero or several.
func DropPosition(seg Segment) model.Vec3f {
	dir := model.None
	n := 0
	for _, d := range model.All {
		if seg.Connects(d) {
			n++
			dir = d.Opposite()
			if n >= 2 {
				break
			}
		}
	}
	if n != 1 {
		dir = model.None
	}
	p := seg.Pos()
	off := dir.Offset()
	return model.Vec3f{
		X: float64(p.X) + 0.5 + float64(off.X)*0.75,
		Y: float64(p.Y) + 0.5 + float64(off.Y)*0.75,
		Z: float64(p.Z) + 0.5 + float64(off.Z)*0.75,
	}
}
