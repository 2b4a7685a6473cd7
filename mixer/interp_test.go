package mixer

import "testing"

func TestParseInterpolation(t *testing.T) {
	if ParseInterpolation("nearest") != Nearest {
		t.Error(`ParseInterpolation("nearest") should select Nearest`)
	}
	for _, s := range []string{"linear", "", "bogus"} {
		if ParseInterpolation(s) != Linear {
			t.Errorf("ParseInterpolation(%q) should default to Linear", s)
		}
	}
}

func TestNearestInterpReturnsCenterTap(t *testing.T) {
	tap := tap4{10, 20, 30, 40}
	if got := interpolate(Nearest, tap, 0xFFFF); got != 20 {
		t.Errorf("nearest interpolation = %d, want 20", got)
	}
}

func TestLinearInterpEndpoints(t *testing.T) {
	tap := tap4{0, 100, 200, 0}

	if got := interpolate(Linear, tap, 0); got != 100 {
		t.Errorf("linear at frac=0 = %d, want tap[1]=100", got)
	}

	// frac near the top of the 16-bit range should land close to tap[2].
	got := interpolate(Linear, tap, 0xFFFF)
	if got < 195 || got > 200 {
		t.Errorf("linear at frac=0xFFFF = %d, want close to tap[2]=200", got)
	}
}

func TestLinearInterpMonotonic(t *testing.T) {
	tap := tap4{0, 50, 150, 0}
	prev := int32(-1)
	for _, frac := range []uint32{0, 0x4000, 0x8000, 0xC000, 0xFFFF} {
		got := interpolate(Linear, tap, frac)
		if got < prev {
			t.Errorf("linear interpolation not monotonic: frac=%#x produced %d after %d", frac, got, prev)
		}
		prev = got
	}
}
