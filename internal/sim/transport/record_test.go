package transport

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pipeworks/internal/sim/model"
)

func TestRecord_RoundTrip(t *testing.T) {
	var ids IDAllocator
	seg := newSeg(model.Vec3i{})
	u := NewUnit(seg, &model.Stack{Item: "GOLD_INGOT", Count: 12}, model.North, &ids)
	u.output = model.East
	u.progress = CenterProgress
	u.reachedCenter = true
	u.stuck = true
	u.activeShifterDistance = 5

	b, err := json.Marshal(u.Record())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v := LoadUnit(seg, rec, &ids)

	if diff := cmp.Diff(u.Record(), v.Record()); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if v.Input() != model.North || v.Output() != model.East || !v.Stuck() || v.ActiveShifterDistance() != 5 {
		t.Fatalf("loaded unit state=%+v asd=%d", v.State(), v.ActiveShifterDistance())
	}
	if v.ID() == u.ID() {
		t.Fatalf("loaded unit reused id %d", v.ID())
	}
}

func TestRecord_OptionalFieldsDefault(t *testing.T) {
	raw := `{"stack":{"item":"COAL","count":3},"p":64,"in":4,"out":5,"reachedCenter":true}`
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var ids IDAllocator
	u := LoadUnit(newSeg(model.Vec3i{}), rec, &ids)

	want := State{
		Input:         model.West,
		Output:        model.East,
		Progress:      64,
		ReachedCenter: true,
		Stack:         &model.Stack{Item: "COAL", Count: 3},
	}
	if diff := cmp.Diff(want, u.State()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	if u.ActiveShifterDistance() != 0 {
		t.Fatalf("activeShifterDistance=%d, want 0", u.ActiveShifterDistance())
	}
}

func TestRecord_OmitsZeroOptionalFields(t *testing.T) {
	var ids IDAllocator
	u := NewUnit(newSeg(model.Vec3i{}), &model.Stack{Item: "COAL", Count: 1}, model.South, &ids)
	b, err := json.Marshal(u.Record())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "stuck") || strings.Contains(s, "activePD") {
		t.Fatalf("optional fields written: %s", s)
	}
	if !strings.Contains(s, `"out":6`) {
		t.Fatalf("missing output should encode as code 6: %s", s)
	}
}
