package network

// AuditEntry records one unit entering or leaving the network.
type AuditEntry struct {
	RunID  string  `json:"run_id,omitempty"`
	Tick   uint64  `json:"tick"`
	Action string  `json:"action"`
	Pos    [3]int  `json:"pos"`
	UnitID uint64  `json:"unit_id"`
	Item   string  `json:"item"`
	Count  int     `json:"count"`
	From   string  `json:"from,omitempty"`
	To     *[3]int `json:"to,omitempty"`
}

// TickEntry is the per-tick summary written to the tick log.
type TickEntry struct {
	RunID string `json:"run_id,omitempty"`
	Tick  uint64 `json:"tick"`
	Pipes int    `json:"pipes"`
	Units int    `json:"units"`
	Stuck int    `json:"stuck"`
	Drops int    `json:"drops"`
}

func (n *Network) Summary() TickEntry {
	return TickEntry{
		RunID: n.cfg.RunID,
		Tick:  n.tick,
		Pipes: len(n.pipes),
		Units: n.UnitCount(),
		Stuck: n.StuckCount(),
		Drops: len(n.drops),
	}
}

func (n *Network) audit(e AuditEntry) {
	if n.ops.AuditEvent == nil {
		return
	}
	e.RunID = n.cfg.RunID
	e.Tick = n.tick
	n.ops.AuditEvent(e)
}
