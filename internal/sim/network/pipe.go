package network

import (
	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/transport"
)

// Pipe is one conduit block. It implements transport.Segment.
type Pipe struct {
	net     *Network
	pos     model.Vec3i
	blocked [6]bool
	units   []*transport.Unit
}

func (p *Pipe) Pos() model.Vec3i { return p.pos }

// SetBlocked closes or reopens face d.
func (p *Pipe) SetBlocked(d model.Direction, blocked bool) {
	if d.Valid() {
		p.blocked[d] = blocked
	}
}

func (p *Pipe) Units() []*transport.Unit { return append([]*transport.Unit(nil), p.units...) }

func (p *Pipe) full() bool {
	return p.net.cfg.PipeCapacity > 0 && len(p.units) >= p.net.cfg.PipeCapacity
}

func (p *Pipe) Connects(d model.Direction) bool {
	if !d.Valid() || p.blocked[d] {
		return false
	}
	switch n := p.net.neighbor(p.pos.Add(d.Offset())).(type) {
	case *Pipe:
		return !n.blocked[d.Opposite()]
	case *Container, *Machine:
		return true
	}
	return false
}

func (p *Pipe) Neighbor(d model.Direction) any {
	if !d.Valid() {
		return nil
	}
	return p.net.neighbor(p.pos.Add(d.Offset()))
}

// NearestShifter walks back from the pipe against d, through pipes only, and
// returns the first shifter found if it blows toward d.
func (p *Pipe) NearestShifter(d model.Direction) (transport.Shifter, int) {
	if !d.Valid() {
		return nil, 0
	}
	back := d.Opposite().Offset()
	for k := 1; k <= p.net.cfg.ShifterRange; k++ {
		q := p.pos.Add(back.Scale(k))
		if s := p.net.shifters[q]; s != nil {
			if s.Dir == d {
				return s, k
			}
			return nil, 0
		}
		if p.net.pipes[q] == nil {
			return nil, 0
		}
	}
	return nil, 0
}

func (p *Pipe) ShifterAt(d model.Direction, distance int) transport.Shifter {
	if !d.Valid() || distance <= 0 {
		return nil
	}
	if s := p.net.shifters[p.pos.Add(d.Offset().Scale(distance))]; s != nil {
		return s
	}
	return nil
}

func (p *Pipe) ReceiveUnit(u *transport.Unit, from model.Direction, simulate bool) bool {
	if !p.Connects(from) || p.full() {
		return false
	}
	if simulate {
		return true
	}
	p.net.step.Adopt(u, p, from)
	p.units = append(p.units, u)
	p.net.UnitChanged(p, u, true)
	return true
}

// tick moves the first n units; the rest arrived during this tick.
func (p *Pipe) tick(n int) {
	live := p.units[:0]
	for i, u := range p.units {
		if i >= n || p.net.step.Move(u) {
			live = append(live, u)
		}
	}
	for i := len(live); i < len(p.units); i++ {
		p.units[i] = nil
	}
	p.units = live
}

func (p *Pipe) Records() []transport.Record {
	out := make([]transport.Record, 0, len(p.units))
	for _, u := range p.units {
		if u.Valid() {
			out = append(out, u.Record())
		}
	}
	return out
}

// LoadRecords appends persisted units to the pipe.
func (p *Pipe) LoadRecords(recs []transport.Record) {
	for _, r := range recs {
		u := transport.LoadUnit(p, r, &p.net.ids)
		if !u.Valid() {
			continue
		}
		p.units = append(p.units, u)
	}
}
