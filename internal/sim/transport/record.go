package transport

import "pipeworks/internal/sim/model"

// Record is the persisted form of a unit. Stuck and ActiveShifterDistance are
// optional and default to false/0 when absent.
type Record struct {
	Stack                 model.Stack `json:"stack"`
	Progress              int16       `json:"p"`
	In                    int8        `json:"in"`
	Out                   int8        `json:"out"`
	ReachedCenter         bool        `json:"reachedCenter"`
	Stuck                 bool        `json:"stuck,omitempty"`
	ActiveShifterDistance int         `json:"activePD,omitempty"`
}

func (u *Unit) Record() Record {
	r := Record{
		Progress:              int16(u.progress),
		In:                    u.input.Code(),
		Out:                   u.output.Code(),
		ReachedCenter:         u.reachedCenter,
		Stuck:                 u.stuck,
		ActiveShifterDistance: u.activeShifterDistance,
	}
	if u.stack != nil {
		r.Stack = *u.stack
	}
	return r
}

// LoadUnit rebuilds a unit owned by owner. It gets a fresh id; ids are not
// persisted.
func LoadUnit(owner Segment, r Record, ids *IDAllocator) *Unit {
	stack := r.Stack
	return &Unit{
		id:                    ids.Next(),
		owner:                 owner,
		stack:                 &stack,
		input:                 model.DirectionFromCode(r.In),
		output:                model.DirectionFromCode(r.Out),
		progress:              clampProgress(int(r.Progress)),
		reachedCenter:         r.ReachedCenter,
		stuck:                 r.Stuck,
		activeShifterDistance: r.ActiveShifterDistance,
	}
}
