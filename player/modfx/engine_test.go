package modfx

import "testing"

func TestClampVolClampsToValidRange(t *testing.T) {
	if got := clampVol(-5); got != 0 {
		t.Errorf("clampVol(-5) = %d, want 0", got)
	}
	if got := clampVol(100); got != 64 {
		t.Errorf("clampVol(100) = %d, want 64", got)
	}
	if got := clampVol(40); got != 40 {
		t.Errorf("clampVol(40) = %d, want 40", got)
	}
}

// Vibrato's sine table covers one half cycle per spec's wraparound
// scenario: a position and its mirror 32 ticks later on the 64-tick wheel
// must produce equal-magnitude, opposite-sign deltas.
func TestWaveDeltaSineWraparoundSymmetry(t *testing.T) {
	e := New(Dialect{})
	a := e.waveDelta(8, 15, 0)
	b := e.waveDelta(8+32, 15, 0)
	if a == 0 {
		t.Fatal("test fixture produced a zero delta, pick a different phase")
	}
	if (a > 0) == (b > 0) {
		t.Errorf("waveDelta(8) = %d and waveDelta(40) = %d should have opposite signs", a, b)
	}
	diff := a + b
	if diff < -1 || diff > 1 {
		t.Errorf("waveDelta(8) = %d, waveDelta(40) = %d, want near-equal magnitude (sum within rounding of 0)", a, b)
	}
}

func TestWaveDeltaRampDownWaveform(t *testing.T) {
	e := New(Dialect{})
	first := e.waveDelta(0, 15, 1)
	mid := e.waveDelta(16, 15, 1)
	if mid <= first {
		t.Errorf("ramp-down waveform should increase in magnitude across the first quarter: waveDelta(0)=%d waveDelta(16)=%d", first, mid)
	}
}

func TestWaveDeltaSquareWaveform(t *testing.T) {
	e := New(Dialect{})
	got := e.waveDelta(0, 10, 2)
	want := (255 * 10) >> 7
	if got != want {
		t.Errorf("waveDelta square wave at idx 0 = %d, want %d", got, want)
	}
}

func TestTonePortaRisesTowardTargetWithoutOvershoot(t *testing.T) {
	c := &chanState{period: 400, portaPeriod: 428, portaSpeed: 20}
	e := New(Dialect{})

	e.tonePorta(c)
	if c.period != 420 {
		t.Errorf("after one tonePorta step, period = %d, want 420", c.period)
	}
	e.tonePorta(c)
	if c.period != 428 {
		t.Errorf("tonePorta should clamp exactly at the target, got %d", c.period)
	}
	e.tonePorta(c) // further calls once at target must be a no-op
	if c.period != 428 {
		t.Errorf("tonePorta past the target should hold steady at 428, got %d", c.period)
	}
}

func TestTonePortaFallsTowardTargetWithoutUndershoot(t *testing.T) {
	c := &chanState{period: 450, portaPeriod: 428, portaSpeed: 100}
	e := New(Dialect{})

	e.tonePorta(c)
	if c.period != 428 {
		t.Errorf("tonePorta descending past the target should clamp to 428, got %d", c.period)
	}
}

func TestVolumeSlideUpAndDownClamp(t *testing.T) {
	e := New(Dialect{AllowVolumeSlide: true})

	up := &chanState{volume: 60, param: 0xF0} // slide up by 15
	e.volumeSlide(up)
	if up.volume != 64 {
		t.Errorf("volume slide up should clamp at 64, got %d", up.volume)
	}

	down := &chanState{volume: 5, param: 0x0F} // slide down by 15
	e.volumeSlide(down)
	if down.volume != 0 {
		t.Errorf("volume slide down should clamp at 0, got %d", down.volume)
	}
}

func TestVolumeSlideIgnoredWhenDialectDisallows(t *testing.T) {
	e := New(Dialect{AllowVolumeSlide: false})
	c := &chanState{volume: 30, param: 0xF0}
	e.volumeSlide(c)
	if c.volume != 30 {
		t.Errorf("volumeSlide should be a no-op when the dialect disallows it, got %d", c.volume)
	}
}
