package module

import "testing"

func TestEventAtOutOfRangeReturnsZeroValue(t *testing.T) {
	g := NewGridData("t", 4)
	p := g.AddPattern(8)

	cases := []struct{ pat, row, chn int }{
		{-1, 0, 0},
		{p + 1, 0, 0},
		{p, -1, 0},
		{p, 8, 0},
		{p, 0, -1},
		{p, 0, 4},
	}
	for _, c := range cases {
		if got := g.EventAt(c.pat, c.row, c.chn); !got.Empty() {
			t.Errorf("EventAt(%d,%d,%d) = %+v, want zero Event", c.pat, c.row, c.chn, got)
		}
	}
}

func TestSetEventAtThenEventAtRoundTrip(t *testing.T) {
	g := NewGridData("t", 4)
	p := g.AddPattern(8)

	e := Event{Note: 60, Instrument: 3, Volume: 40, Effect: 0xA, Param: 0x10}
	g.SetEventAt(p, 2, 1, e)

	if got := g.EventAt(p, 2, 1); got != e {
		t.Errorf("EventAt after SetEventAt = %+v, want %+v", got, e)
	}
	// Neighboring cells must remain untouched.
	if got := g.EventAt(p, 2, 0); !got.Empty() {
		t.Errorf("neighboring channel cell was modified: %+v", got)
	}
}

func TestSetEventAtOutOfRangeIsNoop(t *testing.T) {
	g := NewGridData("t", 4)
	p := g.AddPattern(2)

	// None of these should panic.
	g.SetEventAt(p+1, 0, 0, Event{Note: 60})
	g.SetEventAt(p, -1, 0, Event{Note: 60})
	g.SetEventAt(p, 0, 4, Event{Note: 60})

	if got := g.EventAt(p, 0, 0); !got.Empty() {
		t.Errorf("out-of-range SetEventAt leaked into a valid cell: %+v", got)
	}
}

func TestPatternLenOutOfRange(t *testing.T) {
	g := NewGridData("t", 4)
	g.AddPattern(16)

	if got := g.PatternLen(-1); got != 0 {
		t.Errorf("PatternLen(-1) = %d, want 0", got)
	}
	if got := g.PatternLen(1); got != 0 {
		t.Errorf("PatternLen(1) = %d, want 0 (only one pattern exists)", got)
	}
	if got := g.PatternLen(0); got != 16 {
		t.Errorf("PatternLen(0) = %d, want 16", got)
	}
}

func TestNormalizeOrdersClampsOutOfRange(t *testing.T) {
	g := NewGridData("t", 4)
	g.AddPattern(4)
	g.AddPattern(4)

	g.SetOrders([]byte{0, 1, 5, 0xFF, 0xFE})
	g.NormalizeOrders()

	want := []byte{0, 1, 1, 0xFF, 0xFE}
	got := g.Orders()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Orders()[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestNormalizeOrdersNoPatternsLeavesOrdersAlone(t *testing.T) {
	g := NewGridData("t", 4)
	g.SetOrders([]byte{3, 7})
	g.NormalizeOrders()

	got := g.Orders()
	if got[0] != 3 || got[1] != 7 {
		t.Errorf("Orders() with zero patterns should be left untouched, got %v", got)
	}
}

func TestModuleTitleNilData(t *testing.T) {
	m := &Module{}
	if got := m.Title(); got != "" {
		t.Errorf("Title() on a Module with nil Data = %q, want empty string", got)
	}
}

func TestModuleTitleDelegatesToGridData(t *testing.T) {
	g := NewGridData("Test Song", 4)
	m := &Module{Data: g}
	if got := m.Title(); got != "Test Song" {
		t.Errorf("Title() = %q, want %q", got, "Test Song")
	}
}
