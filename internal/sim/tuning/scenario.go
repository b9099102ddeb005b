package tuning

import (
	"fmt"

	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/network"
)

// Scenario is a static block layout plus a schedule of item insertions.
type Scenario struct {
	Pipes      []PipeSpec      `yaml:"pipes"`
	Containers []ContainerSpec `yaml:"containers"`
	Machines   []MachineSpec   `yaml:"machines"`
	Shifters   []ShifterSpec   `yaml:"shifters"`
	Injections []Injection     `yaml:"injections"`
}

type PipeSpec struct {
	Pos     [3]int   `yaml:"pos"`
	Blocked []string `yaml:"blocked"`
}

type ContainerSpec struct {
	Pos      [3]int         `yaml:"pos"`
	Capacity int            `yaml:"capacity"`
	Sides    []string       `yaml:"sides"`
	Items    map[string]int `yaml:"items"`
}

type MachineSpec struct {
	Pos     [3]int `yaml:"pos"`
	Accepts string `yaml:"accepts"`
	PerTick int    `yaml:"per_tick"`
}

type ShifterSpec struct {
	Pos    [3]int   `yaml:"pos"`
	Facing string   `yaml:"facing"`
	On     *bool    `yaml:"on"` // nil = on
	Filter []string `yaml:"filter"`
}

// Injection inserts Count of Item into the pipe at Pos every Every ticks,
// starting at tick At. Every=0 inserts once.
type Injection struct {
	Pos   [3]int `yaml:"pos"`
	From  string `yaml:"from"`
	Item  string `yaml:"item"`
	Count int    `yaml:"count"`
	At    uint64 `yaml:"at"`
	Every uint64 `yaml:"every"`
}

// Due reports whether the injection fires on tick.
func (in Injection) Due(tick uint64) bool {
	if tick < in.At {
		return false
	}
	if in.Every == 0 {
		return tick == in.At
	}
	return (tick-in.At)%in.Every == 0
}

func (s Scenario) validate() error {
	for i, p := range s.Pipes {
		for _, f := range p.Blocked {
			if _, ok := model.ParseDirection(f); !ok {
				return fmt.Errorf("pipes[%d].blocked: bad face %q", i, f)
			}
		}
	}
	for i, c := range s.Containers {
		for _, f := range c.Sides {
			if _, ok := model.ParseDirection(f); !ok {
				return fmt.Errorf("containers[%d].sides: bad face %q", i, f)
			}
		}
		if c.Capacity < 0 {
			return fmt.Errorf("containers[%d].capacity=%d: must be >= 0", i, c.Capacity)
		}
	}
	for i, m := range s.Machines {
		if m.PerTick < 0 {
			return fmt.Errorf("machines[%d].per_tick=%d: must be >= 0", i, m.PerTick)
		}
	}
	for i, sh := range s.Shifters {
		if _, ok := model.ParseDirection(sh.Facing); !ok {
			return fmt.Errorf("shifters[%d].facing: bad face %q", i, sh.Facing)
		}
	}
	for i, in := range s.Injections {
		if _, ok := model.ParseDirection(in.From); !ok {
			return fmt.Errorf("injections[%d].from: bad face %q", i, in.From)
		}
		if in.Item == "" || in.Count <= 0 {
			return fmt.Errorf("injections[%d]: item and positive count required", i)
		}
	}
	return nil
}

// Build places every block of the layout into n.
func (s Scenario) Build(n *network.Network) error {
	for _, ps := range s.Pipes {
		p, err := n.AddPipe(model.Vec3iFromArray(ps.Pos))
		if err != nil {
			return err
		}
		for _, f := range ps.Blocked {
			d, _ := model.ParseDirection(f)
			p.SetBlocked(d, true)
		}
	}
	for _, cs := range s.Containers {
		c := &network.Container{
			Pos:       model.Vec3iFromArray(cs.Pos),
			Capacity:  cs.Capacity,
			Inventory: map[string]int{},
		}
		if len(cs.Sides) > 0 {
			c.Sides = map[model.Direction]bool{}
			for _, f := range cs.Sides {
				d, _ := model.ParseDirection(f)
				c.Sides[d] = true
			}
		}
		for item, cnt := range cs.Items {
			c.Inventory[item] = cnt
		}
		if err := n.AddContainer(c); err != nil {
			return err
		}
	}
	for _, ms := range s.Machines {
		m := &network.Machine{Pos: model.Vec3iFromArray(ms.Pos), Accepts: ms.Accepts, PerTick: ms.PerTick}
		if err := n.AddMachine(m); err != nil {
			return err
		}
	}
	for _, ss := range s.Shifters {
		d, _ := model.ParseDirection(ss.Facing)
		on := ss.On == nil || *ss.On
		sh := &network.ShifterBlock{Pos: model.Vec3iFromArray(ss.Pos), Dir: d, On: on, Filter: ss.Filter}
		if err := n.AddShifter(sh); err != nil {
			return err
		}
	}
	return nil
}

// Inject runs every injection due on tick. Rejected insertions are returned;
// the rest still run.
func (s Scenario) Inject(n *network.Network, tick uint64) []error {
	var errs []error
	for _, in := range s.Injections {
		if !in.Due(tick) {
			continue
		}
		from, _ := model.ParseDirection(in.From)
		stack := &model.Stack{Item: in.Item, Count: in.Count}
		if _, err := n.Insert(model.Vec3iFromArray(in.Pos), stack, from); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
