package scream

import "testing"

func TestVolumeSlideRegularUpAndDown(t *testing.T) {
	e := New(Dialect{})

	up := &chanState{volume: 40, param: 0x30}
	e.volumeSlide(up)
	if up.volume != 43 {
		t.Errorf("volume slide up by 3 = %d, want 43", up.volume)
	}

	down := &chanState{volume: 40, param: 0x03}
	e.volumeSlide(down)
	if down.volume != 37 {
		t.Errorf("volume slide down by 3 = %d, want 37", down.volume)
	}
}

// DFx (hi nibble 0xF, nonzero lo) and DxF (nonzero hi, lo nibble 0xF) are
// both already routed through the regular up/down branches regardless of
// the FastVolSlide quirk; 0xF0 and 0x0F by themselves (the boundary values
// with a zero slide amount) are genuinely a no-op in every mode.
func TestVolumeSlideDFxAndDxFSlideRegardlessOfQuirk(t *testing.T) {
	for _, quirk := range []bool{false, true} {
		e := New(Dialect{Quirks: Quirks{FastVolSlide: quirk}})

		dfx := &chanState{volume: 40, param: 0xF3}
		e.volumeSlide(dfx)
		if dfx.volume != 37 {
			t.Errorf("quirk=%v: DFx (param=0xF3) = %d, want 37", quirk, dfx.volume)
		}

		dxf := &chanState{volume: 40, param: 0x3F}
		e.volumeSlide(dxf)
		if dxf.volume != 43 {
			t.Errorf("quirk=%v: DxF (param=0x3F) = %d, want 43", quirk, dxf.volume)
		}
	}
}

func TestVolumeSlideZeroAmountBoundaryIsNoop(t *testing.T) {
	e := New(Dialect{Quirks: Quirks{FastVolSlide: true}})

	c1 := &chanState{volume: 40, param: 0xF0}
	e.volumeSlide(c1)
	if c1.volume != 40 {
		t.Errorf("param=0xF0 (zero slide amount) should be a no-op, got %d", c1.volume)
	}

	c2 := &chanState{volume: 40, param: 0x0F}
	e.volumeSlide(c2)
	if c2.volume != 40 {
		t.Errorf("param=0x0F (zero slide amount) should be a no-op, got %d", c2.volume)
	}
}

func TestClampAmigaLimitsNoopWithoutQuirk(t *testing.T) {
	e := New(Dialect{})
	c := &chanState{period: 1000}
	e.clampAmigaLimits(c)
	if c.period != 1000 {
		t.Errorf("clampAmigaLimits without the quirk should not touch period, got %v", c.period)
	}
}

func TestClampAmigaLimitsClampsBothEnds(t *testing.T) {
	e := New(Dialect{Quirks: Quirks{AmigaLimits: true}})

	hi := &chanState{period: 1000}
	e.clampAmigaLimits(hi)
	if hi.period != 856 {
		t.Errorf("period above the Amiga ceiling should clamp to 856, got %v", hi.period)
	}

	lo := &chanState{period: 50}
	e.clampAmigaLimits(lo)
	if lo.period != 113 {
		t.Errorf("period below the Amiga floor should clamp to 113, got %v", lo.period)
	}
}

func TestTonePortaTowardTargetClampsExactly(t *testing.T) {
	e := New(Dialect{})
	c := &chanState{period: 400, portaPeriod: 428, portaSpeed: 50}
	e.tonePorta(c)
	if c.period != 428 {
		t.Errorf("tonePorta overshooting the target should clamp to 428, got %v", c.period)
	}
}
