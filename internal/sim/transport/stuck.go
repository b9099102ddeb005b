package transport

import (
	"math"

	"pipeworks/internal/sim/model"
)

// updateStuck re-validates the output and recomputes the stuck flag. It runs
// every tick after the center has been reached.
func (u *Unit) updateStuck(rnd Rand) {
	if u.progress <= CenterProgress {
		recalc := !u.validDirection(u.output)
		if !recalc && u.stuck && u.centered() {
			recalc = u.pressureChanged()
		}
		if recalc {
			u.resolveOutput(rnd)
		}
	} else if !u.validDirection(u.output) {
		u.output = model.None
	}

	if !u.output.Valid() {
		// No route: the unit will drop, so it is never held.
		u.stuck = false
		return
	}
	if u.centered() && u.activeShifterDistance > 0 && u.opposingBalanced() {
		u.stuck = true
		return
	}
	u.stuck = !u.canMove(u.output)
}

// pressureChanged reports whether the shifter that chose the output has gone
// away, weakened or stopped pushing.
func (u *Unit) pressureChanged() bool {
	found := false
	best := math.MaxInt
	for _, d := range model.All {
		s, _ := u.owner.NearestShifter(d)
		ps := u.priority(d)
		if ps > 0 && ps < best && u.pushing(s, u.output) {
			best = ps
			found = true
		}
	}

	asd := u.activeShifterDistance
	if (!found && asd > 0) || (found && asd != best) || (found && asd != u.priority(u.output)) {
		// asd holds the priority distance*2+unfiltered; halve it back to a distance.
		s := u.owner.ShifterAt(u.output.Opposite(), asd/2)
		if s == nil || !u.pushing(s, u.output) {
			return true
		}
	}
	return false
}

// opposingBalanced reports an equally distant shifter blowing back against
// the output. Distances are compared raw; filters do not break the tie.
func (u *Unit) opposingBalanced() bool {
	back := u.output.Opposite()
	s, backDist := u.owner.NearestShifter(back)
	_, fwdDist := u.owner.NearestShifter(u.output)
	return backDist == fwdDist && u.pushing(s, back)
}
