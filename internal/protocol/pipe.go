package protocol

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// UnitUpdate (server -> observer) carries the replicated state of one unit in
// one pipe. Stack is only sent when the observer may not know the unit yet.
type UnitUpdate struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Pipe            [3]int     `json:"pipe"`
	UnitID          uint64     `json:"unit_id"`
	Input           string     `json:"input"`
	Output          string     `json:"output"`
	Progress        int        `json:"progress"`
	ReachedCenter   bool       `json:"reached_center"`
	Stuck           bool       `json:"stuck"`
	Stack           *ItemStack `json:"stack,omitempty"`
}

// UnitGone (server -> observer) tells mirrors a unit was delivered or dropped.
type UnitGone struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Pipe            [3]int `json:"pipe"`
	UnitID          uint64 `json:"unit_id"`
	Outcome         string `json:"outcome"`
}

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Center          [3]int `json:"center"`
	Radius          int    `json:"radius"`
}
