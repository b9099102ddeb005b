package transport

import (
	"sort"

	"pipeworks/internal/sim/model"
)

// priority ranks a shifter pushing toward d: closer wins, and at equal
// distance a filtered shifter wins. 0 means no shifter.
func (u *Unit) priority(d model.Direction) int {
	s, dist := u.owner.NearestShifter(d)
	if s == nil {
		return 0
	}
	p := dist * 2
	if !s.HasFilter() {
		p++
	}
	return p
}

func (u *Unit) pushing(s Shifter, d model.Direction) bool {
	return s != nil && s.Facing() == d && s.Shifting() && s.Matches(u.stack)
}

func (u *Unit) validDirection(d model.Direction) bool {
	if !d.Valid() || !u.owner.Connects(d) {
		return false
	}
	back := d.Opposite()
	switch n := u.owner.Neighbor(d).(type) {
	case Segment:
		return n.Connects(back)
	case Injectable:
		return n.CanInject(back)
	case Inventory:
		return n.Connects(back)
	}
	return false
}

// resolveOutput picks the output for the current segment: the best-ranked
// shifter that can take the item, else straight through, else a shuffled
// scan of the remaining valid faces.
func (u *Unit) resolveOutput(rnd Rand) {
	u.activeShifterDistance = 0

	var valid, pressure []model.Direction
	for _, d := range model.All {
		if u.validDirection(d) {
			valid = append(valid, d)
		}
		if s, _ := u.owner.NearestShifter(d); u.pushing(s, d) {
			pressure = append(pressure, d)
		}
	}

	sort.SliceStable(pressure, func(i, j int) bool {
		return u.priority(pressure[i]) < u.priority(pressure[j])
	})

	fallback := model.None
	for _, d := range pressure {
		if u.canMove(d) {
			u.output = d
			u.activeShifterDistance = u.priority(d)
			return
		}
		if fallback == model.None && u.validDirection(d) {
			fallback = d
		}
	}

	candidates := make([]model.Direction, 0, len(valid))
	for _, d := range valid {
		if d == u.input || containsDirection(pressure, d) {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		u.output = fallback
		return
	}

	var (
		pick model.Direction
		rest []model.Direction
	)
	if straight := u.input.Opposite(); containsDirection(candidates, straight) {
		pick = straight
		rest = removeDirection(candidates, straight)
	} else {
		if rnd != nil {
			rnd.Shuffle(len(candidates), func(i, j int) {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			})
		}
		pick = candidates[0]
		rest = candidates[1:]
	}
	if fallback == model.None {
		fallback = pick
	}

	dir := pick
	for i := 0; !u.canMove(dir) && i < len(rest); i++ {
		dir = rest[i]
	}
	if u.canMove(dir) {
		u.output = dir
	} else {
		u.output = fallback
	}
}

func containsDirection(ds []model.Direction, d model.Direction) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

func removeDirection(ds []model.Direction, d model.Direction) []model.Direction {
	out := make([]model.Direction, 0, len(ds))
	for _, x := range ds {
		if x != d {
			out = append(out, x)
		}
	}
	return out
}
