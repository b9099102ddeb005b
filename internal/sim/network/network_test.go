package network

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/transport"
)

func line(t *testing.T, n *Network, xs ...int) {
	t.Helper()
	for _, x := range xs {
		_, err := n.AddPipe(model.Vec3i{X: x})
		require.NoError(t, err)
	}
}

func TestNetwork_StraightLineIntoChest(t *testing.T) {
	var audits []AuditEntry
	n := New(Config{Seed: 1, RunID: "run-1"}, Ops{
		AuditEvent: func(e AuditEntry) { audits = append(audits, e) },
	})
	line(t, n, 0, 1, 2)
	chest := &Container{Pos: model.Vec3i{X: 3}}
	require.NoError(t, n.AddContainer(chest))

	_, err := n.Insert(model.Vec3i{}, &model.Stack{Item: "COAL", Count: 4}, model.West)
	require.NoError(t, err)

	for i := 0; i < 47; i++ {
		n.Tick()
	}
	require.Equal(t, 0, chest.Total())
	require.Equal(t, 1, n.UnitCount())

	n.Tick()
	require.Equal(t, 4, chest.Inventory["COAL"])
	require.Equal(t, 0, n.UnitCount())
	require.Empty(t, n.Drops())

	var actions []string
	for _, a := range audits {
		actions = append(actions, a.Action)
	}
	require.Equal(t, []string{"PIPE_INSERT", "PIPE_HANDOFF", "PIPE_HANDOFF", "PIPE_DELIVERED"}, actions)
	require.Equal(t, uint64(16), audits[1].Tick)
	require.Equal(t, &[3]int{1, 0, 0}, audits[1].To)
	require.Equal(t, uint64(32), audits[2].Tick)
	require.Equal(t, [3]int{2, 0, 0}, audits[3].Pos)
	require.Equal(t, "run-1", audits[3].RunID)
	require.Equal(t, 4, audits[3].Count)
	require.Equal(t, "WEST", audits[0].From)

	sum := n.Summary()
	require.Equal(t, TickEntry{RunID: "run-1", Tick: 48, Pipes: 3}, sum)
}

func TestNetwork_TravelTimeIndependentOfFlowDirection(t *testing.T) {
	deliveredAt := func(start, chestX int, from model.Direction) uint64 {
		n := New(Config{Seed: 5}, Ops{})
		line(t, n, 0, 1, 2)
		chest := &Container{Pos: model.Vec3i{X: chestX}}
		require.NoError(t, n.AddContainer(chest))
		_, err := n.Insert(model.Vec3i{X: start}, &model.Stack{Item: "COAL", Count: 1}, from)
		require.NoError(t, err)
		for i := 0; i < 100 && chest.Total() == 0; i++ {
			n.Tick()
		}
		require.Equal(t, 1, chest.Total())
		return n.CurrentTick()
	}

	east := deliveredAt(0, 3, model.West)
	west := deliveredAt(2, -1, model.East)
	if east != 48 || west != 48 {
		t.Fatalf("delivered east at %d, west at %d, want 48 both", east, west)
	}
}

func TestNetwork_ShifterOverridesStraightThrough(t *testing.T) {
	build := func(filter []string) (*Network, *Container, *Container) {
		n := New(Config{Seed: 2}, Ops{})
		line(t, n, 0, 1)
		east := &Container{Pos: model.Vec3i{X: 2}}
		south := &Container{Pos: model.Vec3i{Z: 1}}
		require.NoError(t, n.AddContainer(east))
		require.NoError(t, n.AddContainer(south))
		require.NoError(t, n.AddShifter(&ShifterBlock{Pos: model.Vec3i{Z: -1}, Dir: model.South, On: true, Filter: filter}))
		return n, east, south
	}

	n, east, south := build(nil)
	_, err := n.Insert(model.Vec3i{}, &model.Stack{Item: "SAND", Count: 2}, model.West)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		n.Tick()
	}
	require.Equal(t, 2, south.Inventory["SAND"])
	require.Equal(t, 0, east.Total())

	n, east, south = build([]string{"COAL"})
	_, err = n.Insert(model.Vec3i{}, &model.Stack{Item: "SAND", Count: 2}, model.West)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		n.Tick()
	}
	require.Equal(t, 0, south.Total())
	require.Equal(t, 2, east.Inventory["SAND"])
}

func TestNetwork_ClogHoldsUnitsUntilSpaceFrees(t *testing.T) {
	n := New(Config{Seed: 3, PipeCapacity: 1}, Ops{})
	line(t, n, 0, 1)
	chest := &Container{Pos: model.Vec3i{X: 2}, Capacity: 1, Inventory: map[string]int{"STONE": 1}}
	require.NoError(t, n.AddContainer(chest))

	_, err := n.Insert(model.Vec3i{X: 1}, &model.Stack{Item: "COAL", Count: 1}, model.West)
	require.NoError(t, err)
	_, err = n.Insert(model.Vec3i{X: 1}, &model.Stack{Item: "COAL", Count: 1}, model.West)
	require.ErrorIs(t, err, ErrRejected)
	_, err = n.Insert(model.Vec3i{}, &model.Stack{Item: "COAL", Count: 2}, model.West)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		n.Tick()
	}
	require.Equal(t, 2, n.StuckCount())
	for _, p := range []model.Vec3i{{}, {X: 1}} {
		us := n.Pipe(p).Units()
		require.Len(t, us, 1)
		require.Equal(t, transport.CenterProgress, us[0].Progress())
	}

	chest.Capacity = 10
	for i := 0; i < 40; i++ {
		n.Tick()
	}
	require.Equal(t, 0, n.UnitCount())
	require.Equal(t, 3, chest.Inventory["COAL"])
	require.Empty(t, n.Drops())
}

func TestNetwork_LonePipeDropsAtCenter(t *testing.T) {
	var left []transport.Outcome
	n := New(Config{}, Ops{Leave: func(o transport.Outcome, _ string, _ int) { left = append(left, o) }})
	line(t, n, 5)
	_, err := n.Insert(model.Vec3i{X: 5}, &model.Stack{Item: "COAL", Count: 9}, model.Up)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		n.Tick()
	}
	drops := n.Drops()
	require.Len(t, drops, 1)
	require.Equal(t, Drop{Tick: 16, At: model.Vec3f{X: 5.5, Y: 0.5, Z: 0.5}, Item: "COAL", Count: 9}, drops[0])
	require.Equal(t, []transport.Outcome{transport.OutcomeDropped}, left)
}

func TestNetwork_BalancedShiftersHoldUnit(t *testing.T) {
	n := New(Config{}, Ops{})
	line(t, n, -1, 0, 1)
	west := &ShifterBlock{Pos: model.Vec3i{X: -2}, Dir: model.East, On: true}
	east := &ShifterBlock{Pos: model.Vec3i{X: 2}, Dir: model.West, On: true}
	require.NoError(t, n.AddShifter(west))
	require.NoError(t, n.AddShifter(east))

	u, err := n.Insert(model.Vec3i{}, &model.Stack{Item: "COAL", Count: 1}, model.North)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		n.Tick()
	}
	require.True(t, u.Stuck())
	require.Equal(t, transport.CenterProgress, u.Progress())
	require.Equal(t, 1, n.StuckCount())

	east.On = false
	n.Tick()
	require.False(t, u.Stuck())
	require.Equal(t, transport.CenterProgress+transport.Speed, u.Progress())
}

func TestNetwork_MachineIntakeBudget(t *testing.T) {
	n := New(Config{}, Ops{})
	line(t, n, 0)
	m := &Machine{Pos: model.Vec3i{X: 1}, PerTick: 3}
	require.NoError(t, n.AddMachine(m))
	_, err := n.Insert(model.Vec3i{}, &model.Stack{Item: "ORE", Count: 5}, model.West)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		n.Tick()
	}
	require.Equal(t, 3, m.Received["ORE"])
	drops := n.Drops()
	require.Len(t, drops, 1)
	require.Equal(t, 2, drops[0].Count)
	require.InDelta(t, -0.25, drops[0].At.X, 1e-9)
}

func TestNetwork_BroadcastsAndMirrorReplay(t *testing.T) {
	var queue []any
	auth := New(Config{Seed: 4}, Ops{
		Broadcast: func(_ uint64, _ model.Vec3i, msg any) { queue = append(queue, msg) },
	})
	mirror := New(Config{Mirror: true}, Ops{})
	for _, n := range []*Network{auth, mirror} {
		line(t, n, 0, 1)
		require.NoError(t, n.AddContainer(&Container{Pos: model.Vec3i{X: 2}}))
	}

	_, err := auth.Insert(model.Vec3i{}, &model.Stack{Item: "COAL", Count: 6}, model.West)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	first, ok := queue[0].(protocol.UnitUpdate)
	require.True(t, ok)
	require.Equal(t, protocol.TypePipeItem, first.Type)
	require.NotNil(t, first.Stack)
	require.Equal(t, 6, first.Stack.Count)

	var updates, gone int
	flush := func() {
		for _, m := range queue {
			switch msg := m.(type) {
			case protocol.UnitUpdate:
				updates++
				require.NoError(t, mirror.ApplyUpdate(msg))
			case protocol.UnitGone:
				gone++
				mirror.ApplyGone(msg)
			}
		}
		queue = queue[:0]
	}
	flush()
	require.Equal(t, 1, mirror.UnitCount())

	for i := 0; i < 32; i++ {
		auth.Tick()
		mirror.Tick()
		flush()
		require.LessOrEqual(t, mirror.UnitCount(), 1)
	}
	require.Equal(t, 0, auth.UnitCount())
	require.Equal(t, 0, mirror.UnitCount())
	require.Equal(t, 1, gone)
	require.GreaterOrEqual(t, updates, 3)
	require.Equal(t, 6, auth.Container(model.Vec3i{X: 2}).Inventory["COAL"])
	require.Equal(t, 0, mirror.Container(model.Vec3i{X: 2}).Total())
	require.Empty(t, mirror.Drops())
}

func TestNetwork_RecordsReload(t *testing.T) {
	n := New(Config{}, Ops{})
	line(t, n, 0, 1)
	_, err := n.Insert(model.Vec3i{}, &model.Stack{Item: "COAL", Count: 2}, model.West)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		n.Tick()
	}
	recs := n.Pipe(model.Vec3i{}).Records()
	require.Len(t, recs, 1)

	m := New(Config{}, Ops{})
	line(t, m, 0, 1)
	m.Pipe(model.Vec3i{}).LoadRecords(recs)
	require.Equal(t, recs, m.Pipe(model.Vec3i{}).Records())
}

func TestNetwork_RemovePipeDropsContents(t *testing.T) {
	n := New(Config{}, Ops{})
	line(t, n, 0, 1)
	_, err := n.Insert(model.Vec3i{X: 1}, &model.Stack{Item: "COAL", Count: 2}, model.West)
	require.NoError(t, err)
	n.RemovePipe(model.Vec3i{X: 1})
	require.Nil(t, n.Pipe(model.Vec3i{X: 1}))
	require.Len(t, n.Drops(), 1)
	require.False(t, n.Pipe(model.Vec3i{}).Connects(model.East))
}

func TestNetwork_OccupiedPosition(t *testing.T) {
	n := New(Config{}, Ops{})
	line(t, n, 0)
	_, err := n.AddPipe(model.Vec3i{})
	require.ErrorIs(t, err, ErrOccupied)
	require.ErrorIs(t, n.AddContainer(&Container{}), ErrOccupied)
	_, err = n.Insert(model.Vec3i{X: 9}, &model.Stack{Item: "COAL", Count: 1}, model.West)
	require.ErrorIs(t, err, ErrNoPipe)
	_, err = n.Insert(model.Vec3i{}, &model.Stack{}, model.West)
	require.ErrorIs(t, err, ErrEmptyStack)
}
