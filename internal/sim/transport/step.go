package transport

import "pipeworks/internal/sim/model"

// Step advances units of one segment by one tick. A segment picks its Step
// once: AuthoritativeStep on the simulating host, MirrorStep on replicas.
type Step interface {
	// Move advances u. It returns false once u has left the segment (handed
	// off, delivered or dropped) and must not be moved again by this owner.
	Move(u *Unit) bool
	// Adopt takes u into owner, entering through face from.
	Adopt(u *Unit, owner Segment, from model.Direction)
}

// LeaveFunc observes a unit leaving its segment on the authoritative host.
// count is the quantity handed off or accepted by the target.
type LeaveFunc func(owner Segment, u *Unit, item string, outcome Outcome, count int)

// AuthoritativeStep performs routing, stuck detection and delivery.
type AuthoritativeStep struct {
	Rand    Rand
	Sync    Sync
	Spawner Spawner
	OnLeave LeaveFunc
}

func (s AuthoritativeStep) Move(u *Unit) bool {
	if !u.Valid() {
		return false
	}
	if !u.reachedCenter {
		if u.progress+Speed >= CenterProgress {
			s.reachCenter(u)
		} else {
			u.progress += Speed
		}
		return true
	}

	oldOutput, oldStuck := u.output, u.stuck
	u.updateStuck(s.Rand)
	if !u.stuck {
		u.progress = clampProgress(u.progress + Speed)
	}
	if u.progress >= MaxProgress {
		owner, item := u.owner, u.stack.Item
		outcome, n := u.deliver(s.Spawner)
		if s.OnLeave != nil {
			s.OnLeave(owner, u, item, outcome, n)
		}
		return false
	}
	if oldStuck != u.stuck || oldOutput != u.output {
		s.notify(u, false)
	}
	return true
}

func (s AuthoritativeStep) reachCenter(u *Unit) {
	u.progress = CenterProgress
	u.reachedCenter = true
	u.resolveOutput(s.Rand)
	u.updateStuck(s.Rand)
	s.notify(u, false)
}

// Adopt resets u for owner and makes an early routing guess. The guess is
// replaced when the unit reaches the center.
func (s AuthoritativeStep) Adopt(u *Unit, owner Segment, from model.Direction) {
	u.Reset(owner, from)
	u.resolveOutput(s.Rand)
}

func (s AuthoritativeStep) notify(u *Unit, withStack bool) {
	if s.Sync != nil {
		s.Sync.UnitChanged(u.owner, u, withStack)
	}
}

// MirrorStep replays movement from authoritative updates. It never routes and
// never touches payloads or targets.
type MirrorStep struct{}

func (MirrorStep) Move(u *Unit) bool {
	if !u.Valid() {
		return false
	}
	if !u.reachedCenter {
		if u.progress+Speed >= CenterProgress {
			u.progress = CenterProgress
			u.reachedCenter = true
		} else {
			u.progress += Speed
		}
		return true
	}
	if !u.stuck {
		u.progress = clampProgress(u.progress + Speed)
	}
	if u.progress >= MaxProgress {
		// Guard against stray updates: keep forwarding only within the grace window.
		u.blocksSinceSync++
		if u.blocksSinceSync < SyncGrace && u.output.Valid() {
			passToSegment(u, u.owner.Neighbor(u.output), u.output, false)
		}
		return false
	}
	return true
}

func (MirrorStep) Adopt(u *Unit, owner Segment, from model.Direction) {
	u.Reset(owner, from)
}

// Apply overwrites u with an authoritative state and restarts the grace window.
func (MirrorStep) Apply(u *Unit, st State) {
	if st.Input.Valid() {
		u.input = st.Input
	}
	u.output = st.Output
	u.progress = clampProgress(st.Progress)
	u.reachedCenter = st.ReachedCenter
	u.stuck = st.Stuck
	if st.Stack != nil {
		u.stack = st.Stack
	}
	u.blocksSinceSync = 0
}
