package model

import "testing"

func TestDirectionOpposite(t *testing.T) {
	want := map[Direction]Direction{
		Down: Up, Up: Down, North: South, South: North, West: East, East: West, None: None,
	}
	for d, o := range want {
		if got := d.Opposite(); got != o {
			t.Fatalf("%s.Opposite()=%s, want %s", d, got, o)
		}
	}
	for _, d := range All {
		if d.Offset().Add(d.Opposite().Offset()) != (Vec3i{}) {
			t.Fatalf("offsets of %s and its opposite do not cancel", d)
		}
	}
}

func TestDirectionCodes(t *testing.T) {
	for _, d := range All {
		if got := DirectionFromCode(d.Code()); got != d {
			t.Fatalf("DirectionFromCode(%d)=%s, want %s", d.Code(), got, d)
		}
	}
	if None.Code() != 6 {
		t.Fatalf("None.Code()=%d, want 6", None.Code())
	}
	for _, c := range []int8{-1, 6, 7, 100} {
		if got := DirectionFromCode(c); got != None {
			t.Fatalf("DirectionFromCode(%d)=%s, want NONE", c, got)
		}
	}
}

func TestParseDirection(t *testing.T) {
	if d, ok := ParseDirection("EAST"); !ok || d != East {
		t.Fatalf("ParseDirection(EAST)=%s,%v", d, ok)
	}
	if _, ok := ParseDirection("NONE"); ok {
		t.Fatalf("NONE must not parse as a face")
	}
}

func TestStackEmpty(t *testing.T) {
	var nilStack *Stack
	cases := []struct {
		s    *Stack
		want bool
	}{
		{nilStack, true},
		{&Stack{}, true},
		{&Stack{Item: "COAL"}, true},
		{&Stack{Item: "COAL", Count: -1}, true},
		{&Stack{Item: "COAL", Count: 1}, false},
	}
	for _, c := range cases {
		if got := c.s.Empty(); got != c.want {
			t.Fatalf("%+v.Empty()=%v, want %v", c.s, got, c.want)
		}
	}
}

func TestManhattan(t *testing.T) {
	if got := Manhattan(Vec3i{X: 1, Y: 2, Z: 3}, Vec3i{X: -1, Y: 2, Z: 0}); got != 5 {
		t.Fatalf("Manhattan=%d, want 5", got)
	}
}
