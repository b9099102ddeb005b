package network

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/transport"
)

const DefaultShifterRange = 64

var (
	ErrOccupied   = errors.New("position occupied")
	ErrNoPipe     = errors.New("no pipe at position")
	ErrRejected   = errors.New("pipe rejected item")
	ErrEmptyStack = errors.New("empty stack")
)

type Config struct {
	// Mirror builds a replica that only replays authoritative updates.
	Mirror bool

	ShifterRange int
	PipeCapacity int // max units per pipe, 0 = unlimited
	Seed         int64
	RunID        string // stamped on audit and tick entries
}

// Ops is the host-facing callback set. Every field is optional.
type Ops struct {
	AuditEvent func(e AuditEntry)
	Broadcast  func(nowTick uint64, pos model.Vec3i, msg any)
	Leave      func(outcome transport.Outcome, item string, count int)
}

// Drop is an item stack released into the world.
type Drop struct {
	Tick  uint64
	At    model.Vec3f
	Item  string
	Count int
}

// Network is an in-memory tile grid of pipes and the blocks around them.
type Network struct {
	cfg  Config
	ops  Ops
	tick uint64
	ids  transport.IDAllocator
	step transport.Step

	pipes      map[model.Vec3i]*Pipe
	containers map[model.Vec3i]*Container
	machines   map[model.Vec3i]*Machine
	shifters   map[model.Vec3i]*ShifterBlock

	drops []Drop
}

func New(cfg Config, ops Ops) *Network {
	if cfg.ShifterRange <= 0 {
		cfg.ShifterRange = DefaultShifterRange
	}
	n := &Network{
		cfg:        cfg,
		ops:        ops,
		pipes:      map[model.Vec3i]*Pipe{},
		containers: map[model.Vec3i]*Container{},
		machines:   map[model.Vec3i]*Machine{},
		shifters:   map[model.Vec3i]*ShifterBlock{},
	}
	if cfg.Mirror {
		n.step = transport.MirrorStep{}
	} else {
		n.step = transport.AuthoritativeStep{
			Rand:    rand.New(rand.NewSource(cfg.Seed)),
			Sync:    n,
			Spawner: n,
			OnLeave: n.onLeave,
		}
	}
	return n
}

func (n *Network) CurrentTick() uint64 { return n.tick }
func (n *Network) Mirror() bool        { return n.cfg.Mirror }

func (n *Network) occupied(p model.Vec3i) bool {
	return n.pipes[p] != nil || n.containers[p] != nil || n.machines[p] != nil || n.shifters[p] != nil
}

func (n *Network) AddPipe(p model.Vec3i) (*Pipe, error) {
	if n.occupied(p) {
		return nil, fmt.Errorf("pipe at %v: %w", p, ErrOccupied)
	}
	pipe := &Pipe{net: n, pos: p}
	n.pipes[p] = pipe
	return pipe, nil
}

func (n *Network) AddContainer(c *Container) error {
	if n.occupied(c.Pos) {
		return fmt.Errorf("container at %v: %w", c.Pos, ErrOccupied)
	}
	if c.Inventory == nil {
		c.Inventory = map[string]int{}
	}
	n.containers[c.Pos] = c
	return nil
}

func (n *Network) AddMachine(m *Machine) error {
	if n.occupied(m.Pos) {
		return fmt.Errorf("machine at %v: %w", m.Pos, ErrOccupied)
	}
	if m.Received == nil {
		m.Received = map[string]int{}
	}
	n.machines[m.Pos] = m
	return nil
}

func (n *Network) AddShifter(s *ShifterBlock) error {
	if n.occupied(s.Pos) {
		return fmt.Errorf("shifter at %v: %w", s.Pos, ErrOccupied)
	}
	n.shifters[s.Pos] = s
	return nil
}

func (n *Network) Pipe(p model.Vec3i) *Pipe            { return n.pipes[p] }
func (n *Network) Container(p model.Vec3i) *Container  { return n.containers[p] }
func (n *Network) Machine(p model.Vec3i) *Machine      { return n.machines[p] }
func (n *Network) Shifter(p model.Vec3i) *ShifterBlock { return n.shifters[p] }
func (n *Network) Drops() []Drop                       { return append([]Drop(nil), n.drops...) }

// RemovePipe deletes the pipe at p and drops whatever it carried.
func (n *Network) RemovePipe(p model.Vec3i) {
	pipe := n.pipes[p]
	if pipe == nil {
		return
	}
	delete(n.pipes, p)
	if n.cfg.Mirror {
		return
	}
	for _, u := range pipe.units {
		if st := u.Stack(); !st.Empty() {
			n.SpawnItem(transport.DropPosition(pipe), st)
		}
	}
	pipe.units = nil
}

// neighbor returns the block at p as one of the transport surfaces, or nil.
func (n *Network) neighbor(p model.Vec3i) any {
	if pipe := n.pipes[p]; pipe != nil {
		return pipe
	}
	if c := n.containers[p]; c != nil {
		return c
	}
	if m := n.machines[p]; m != nil {
		return m
	}
	return nil
}

// Insert puts a new unit into the pipe at p as if it came through face from.
func (n *Network) Insert(p model.Vec3i, stack *model.Stack, from model.Direction) (*transport.Unit, error) {
	pipe := n.pipes[p]
	if pipe == nil {
		return nil, fmt.Errorf("insert at %v: %w", p, ErrNoPipe)
	}
	if stack.Empty() {
		return nil, ErrEmptyStack
	}
	if !from.Valid() || pipe.full() {
		return nil, fmt.Errorf("insert at %v from %s: %w", p, from, ErrRejected)
	}
	u := transport.NewUnit(pipe, stack, from, &n.ids)
	n.step.Adopt(u, pipe, from)
	pipe.units = append(pipe.units, u)
	n.UnitChanged(pipe, u, true)
	n.audit(AuditEntry{
		Action: "PIPE_INSERT",
		Pos:    p.ToArray(),
		UnitID: u.ID(),
		Item:   stack.Item,
		Count:  stack.Count,
		From:   from.String(),
	})
	return u, nil
}

// Tick advances every pipe once, in position order. Each unit moves at most
// once per tick.
func (n *Network) Tick() {
	n.tick++
	for _, m := range n.machines {
		m.intake = 0
	}
	// Units handed to a pipe later in the order wait for the next tick.
	order := sortedPositions(n.pipes)
	held := make([]int, len(order))
	for i, p := range order {
		held[i] = len(n.pipes[p].units)
	}
	for i, p := range order {
		if pipe := n.pipes[p]; pipe != nil {
			pipe.tick(held[i])
		}
	}
}

// UnitCount and StuckCount summarize units currently in transit.
func (n *Network) UnitCount() int {
	total := 0
	for _, p := range n.pipes {
		total += len(p.units)
	}
	return total
}

func (n *Network) StuckCount() int {
	total := 0
	for _, p := range n.pipes {
		for _, u := range p.units {
			if u.Stuck() {
				total++
			}
		}
	}
	return total
}

// UnitChanged implements transport.Sync.
func (n *Network) UnitChanged(owner transport.Segment, u *transport.Unit, withStack bool) {
	if n.cfg.Mirror || n.ops.Broadcast == nil {
		return
	}
	n.ops.Broadcast(n.tick, owner.Pos(), UpdateFor(n.tick, owner, u, withStack))
}

// SpawnItem implements transport.Spawner.
func (n *Network) SpawnItem(at model.Vec3f, stack *model.Stack) {
	if stack.Empty() {
		return
	}
	n.drops = append(n.drops, Drop{Tick: n.tick, At: at, Item: stack.Item, Count: stack.Count})
}

func (n *Network) onLeave(owner transport.Segment, u *transport.Unit, item string, outcome transport.Outcome, count int) {
	if n.ops.Leave != nil {
		n.ops.Leave(outcome, item, count)
	}
	pos := owner.Pos()
	if outcome != transport.OutcomeHandoff && n.ops.Broadcast != nil {
		n.ops.Broadcast(n.tick, pos, protocol.UnitGone{
			Type:            protocol.TypePipeGone,
			ProtocolVersion: protocol.Version,
			Tick:            n.tick,
			Pipe:            pos.ToArray(),
			UnitID:          u.ID(),
			Outcome:         outcome.String(),
		})
	}
	e := AuditEntry{
		Action: "PIPE_" + outcome.String(),
		Pos:    pos.ToArray(),
		UnitID: u.ID(),
		Item:   item,
		Count:  count,
	}
	if outcome == transport.OutcomeHandoff {
		to := u.Owner().Pos().ToArray()
		e.To = &to
	}
	n.audit(e)
}

// UpdateFor builds the sync message for u in owner.
func UpdateFor(tick uint64, owner transport.Segment, u *transport.Unit, withStack bool) protocol.UnitUpdate {
	msg := protocol.UnitUpdate{
		Type:            protocol.TypePipeItem,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Pipe:            owner.Pos().ToArray(),
		UnitID:          u.ID(),
		Input:           u.Input().String(),
		Output:          u.Output().String(),
		Progress:        u.Progress(),
		ReachedCenter:   u.ReachedCenter(),
		Stuck:           u.Stuck(),
	}
	if st := u.Stack(); withStack && st != nil {
		msg.Stack = &protocol.ItemStack{Item: st.Item, Count: st.Count}
	}
	return msg
}

func sortedPositions[T any](m map[model.Vec3i]T) []model.Vec3i {
	if len(m) == 0 {
		return nil
	}
	out := make([]model.Vec3i, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// Containers returns every container in position order.
func (n *Network) Containers() []*Container {
	ps := sortedPositions(n.containers)
	out := make([]*Container, 0, len(ps))
	for _, p := range ps {
		out = append(out, n.containers[p])
	}
	return out
}

// UnitIDs maps every unit in transit to its pipe.
func (n *Network) UnitIDs() map[uint64]model.Vec3i {
	out := map[uint64]model.Vec3i{}
	for p, pipe := range n.pipes {
		for _, u := range pipe.units {
			out[u.ID()] = p
		}
	}
	return out
}
