package model

// Stack is an item type plus quantity. Units in transit hold a pointer so a
// pipe-to-pipe handoff keeps the same stack.
type Stack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

func (s *Stack) Empty() bool { return s == nil || s.Item == "" || s.Count <= 0 }

func (s *Stack) Clone() *Stack {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
