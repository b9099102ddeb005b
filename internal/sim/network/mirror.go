package network

import (
	"fmt"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/transport"
)

// ApplyUpdate replays an authoritative unit update on a mirror network. A
// unit seen in another pipe (forwarded speculatively) is moved to the pipe
// named by the update.
func (n *Network) ApplyUpdate(msg protocol.UnitUpdate) error {
	if !n.cfg.Mirror {
		return fmt.Errorf("apply update: network is authoritative")
	}
	pos := model.Vec3iFromArray(msg.Pipe)
	pipe := n.pipes[pos]
	if pipe == nil {
		return fmt.Errorf("apply update %d: %w", msg.UnitID, ErrNoPipe)
	}

	u := pipe.take(msg.UnitID)
	if u == nil {
		for _, p := range sortedPositions(n.pipes) {
			if u = n.pipes[p].take(msg.UnitID); u != nil {
				break
			}
		}
	}

	in, _ := model.ParseDirection(msg.Input)
	out, _ := model.ParseDirection(msg.Output)
	st := transport.State{
		Input:         in,
		Output:        out,
		Progress:      msg.Progress,
		ReachedCenter: msg.ReachedCenter,
		Stuck:         msg.Stuck,
	}
	if msg.Stack != nil {
		st.Stack = &model.Stack{Item: msg.Stack.Item, Count: msg.Stack.Count}
	}

	if u == nil {
		if st.Stack.Empty() {
			// Unknown unit without payload; wait for a full update.
			return nil
		}
		u = transport.NewUnitWithID(pipe, msg.UnitID, st.Stack, in)
	} else if u.Owner() != transport.Segment(pipe) {
		u.Reset(pipe, in)
	}
	transport.MirrorStep{}.Apply(u, st)
	pipe.units = append(pipe.units, u)
	return nil
}

// ApplyGone removes a unit the authoritative host reports as delivered or dropped.
func (n *Network) ApplyGone(msg protocol.UnitGone) {
	if pipe := n.pipes[model.Vec3iFromArray(msg.Pipe)]; pipe != nil {
		if pipe.take(msg.UnitID) != nil {
			return
		}
	}
	for _, pipe := range n.pipes {
		if pipe.take(msg.UnitID) != nil {
			return
		}
	}
}

func (p *Pipe) take(id uint64) *transport.Unit {
	for i, u := range p.units {
		if u.ID() == id {
			p.units = append(p.units[:i], p.units[i+1:]...)
			return u
		}
	}
	return nil
}
