package network

import (
	"sort"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
)

// Container is a chest-like inventory. It implements transport.Inventory.
type Container struct {
	Pos      model.Vec3i
	Capacity int                      // total items, 0 = unlimited
	Sides    map[model.Direction]bool // faces items may enter through, nil = all

	Inventory map[string]int
}

func (c *Container) Connects(from model.Direction) bool {
	if !from.Valid() {
		return false
	}
	return c.Sides == nil || c.Sides[from]
}

func (c *Container) Total() int {
	total := 0
	for _, n := range c.Inventory {
		total += n
	}
	return total
}

func (c *Container) AddStack(from model.Direction, stack *model.Stack, simulate bool) int {
	if !c.Connects(from) || stack.Empty() {
		return 0
	}
	n := stack.Count
	if c.Capacity > 0 {
		free := c.Capacity - c.Total()
		if free <= 0 {
			return 0
		}
		if n > free {
			n = free
		}
	}
	if !simulate {
		if c.Inventory == nil {
			c.Inventory = map[string]int{}
		}
		c.Inventory[stack.Item] += n
	}
	return n
}

func (c *Container) InventoryList() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(c.Inventory))
	for item, n := range c.Inventory {
		if n <= 0 {
			continue
		}
		out = append(out, protocol.ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Machine takes items injected directly, up to PerTick per tick. It
// implements transport.Injectable.
type Machine struct {
	Pos     model.Vec3i
	Accepts string // single item type, "" = any
	PerTick int    // 0 = unlimited

	Received map[string]int
	intake   int
}

func (m *Machine) CanInject(from model.Direction) bool { return from.Valid() }

func (m *Machine) Inject(stack *model.Stack, from model.Direction, simulate bool) int {
	if !m.CanInject(from) || stack.Empty() {
		return 0
	}
	if m.Accepts != "" && stack.Item != m.Accepts {
		return 0
	}
	n := stack.Count
	if m.PerTick > 0 {
		left := m.PerTick - m.intake
		if left <= 0 {
			return 0
		}
		if n > left {
			n = left
		}
	}
	if !simulate {
		m.intake += n
		if m.Received == nil {
			m.Received = map[string]int{}
		}
		m.Received[stack.Item] += n
	}
	return n
}

// ShifterBlock blows items along Dir through the pipes in front of it. It
// implements transport.Shifter.
type ShifterBlock struct {
	Pos    model.Vec3i
	Dir    model.Direction
	On     bool
	Filter []string
}

func (s *ShifterBlock) Facing() model.Direction { return s.Dir }
func (s *ShifterBlock) Shifting() bool          { return s.On }
func (s *ShifterBlock) HasFilter() bool         { return len(s.Filter) > 0 }

func (s *ShifterBlock) Matches(stack *model.Stack) bool {
	if len(s.Filter) == 0 {
		return true
	}
	if stack == nil {
		return false
	}
	for _, item := range s.Filter {
		if item == stack.Item {
			return true
		}
	}
	return false
}
