package transport

import "pipeworks/internal/sim/model"

type nearShifter struct {
	s    Shifter
	dist int
}

type fakeSeg struct {
	pos    model.Vec3i
	conn   map[model.Direction]bool
	near   map[model.Direction]nearShifter
	at     map[model.Direction]map[int]Shifter
	neigh  map[model.Direction]any
	accept bool
	step   Step

	received []*Unit
}

func newSeg(pos model.Vec3i) *fakeSeg {
	return &fakeSeg{
		pos:   pos,
		conn:  map[model.Direction]bool{},
		near:  map[model.Direction]nearShifter{},
		at:    map[model.Direction]map[int]Shifter{},
		neigh: map[model.Direction]any{},
	}
}

// link connects a and b through face d of a.
func link(a *fakeSeg, d model.Direction, b *fakeSeg) {
	a.conn[d] = true
	a.neigh[d] = b
	b.conn[d.Opposite()] = true
	b.neigh[d.Opposite()] = a
}

// shifter registers s as the nearest shifter pushing toward d, located dist
// blocks behind along d.Opposite().
func (f *fakeSeg) shifter(d model.Direction, dist int, s Shifter) {
	f.near[d] = nearShifter{s: s, dist: dist}
	back := d.Opposite()
	if f.at[back] == nil {
		f.at[back] = map[int]Shifter{}
	}
	f.at[back][dist] = s
}

func (f *fakeSeg) clearShifter(d model.Direction) {
	n := f.near[d]
	delete(f.near, d)
	if m := f.at[d.Opposite()]; m != nil {
		delete(m, n.dist)
	}
}

func (f *fakeSeg) Pos() model.Vec3i                { return f.pos }
func (f *fakeSeg) Connects(d model.Direction) bool { return f.conn[d] }
func (f *fakeSeg) Neighbor(d model.Direction) any  { return f.neigh[d] }

func (f *fakeSeg) NearestShifter(d model.Direction) (Shifter, int) {
	n, ok := f.near[d]
	if !ok {
		return nil, 0
	}
	return n.s, n.dist
}

func (f *fakeSeg) ShifterAt(d model.Direction, distance int) Shifter {
	return f.at[d][distance]
}

func (f *fakeSeg) ReceiveUnit(u *Unit, from model.Direction, simulate bool) bool {
	if !f.accept || !f.conn[from] {
		return false
	}
	if simulate {
		return true
	}
	f.received = append(f.received, u)
	if f.step != nil {
		f.step.Adopt(u, f, from)
	} else {
		u.Reset(f, from)
	}
	return true
}

type fakeShifter struct {
	facing model.Direction
	on     bool
	filter string
}

func (s *fakeShifter) Facing() model.Direction { return s.facing }
func (s *fakeShifter) Shifting() bool          { return s.on }
func (s *fakeShifter) HasFilter() bool         { return s.filter != "" }
func (s *fakeShifter) Matches(st *model.Stack) bool {
	return s.filter == "" || (st != nil && st.Item == s.filter)
}

type fakeInv struct {
	free  int
	sides map[model.Direction]bool
}

func (i *fakeInv) Connects(from model.Direction) bool { return i.sides == nil || i.sides[from] }

func (i *fakeInv) AddStack(from model.Direction, st *model.Stack, simulate bool) int {
	if !i.Connects(from) {
		return 0
	}
	n := st.Count
	if n > i.free {
		n = i.free
	}
	if !simulate {
		i.free -= n
	}
	return n
}

type fakeInjectable struct {
	budget int
	got    int
}

func (m *fakeInjectable) CanInject(model.Direction) bool { return true }

func (m *fakeInjectable) Inject(st *model.Stack, _ model.Direction, simulate bool) int {
	n := st.Count
	if n > m.budget {
		n = m.budget
	}
	if !simulate {
		m.budget -= n
		m.got += n
	}
	return n
}

type drop struct {
	at    model.Vec3f
	stack *model.Stack
}

type fakeSpawner struct{ drops []drop }

func (s *fakeSpawner) SpawnItem(at model.Vec3f, st *model.Stack) {
	s.drops = append(s.drops, drop{at: at, stack: st})
}

type fakeSync struct{ calls int }

func (s *fakeSync) UnitChanged(Segment, *Unit, bool) { s.calls++ }

// seqRand rotates instead of shuffling; enough to exercise the random branch.
type seqRand struct{ k int }

func (r *seqRand) Shuffle(n int, swap func(i, j int)) {
	for s := 0; s < r.k%n; s++ {
		for i := 0; i < n-1; i++ {
			swap(i, i+1)
		}
	}
}
