package mixer

import (
	"testing"

	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/period"
)

// squareSample builds a minimal 8-bit sample alternating +peak/-peak, long
// enough that a single Mix call at a slow note doesn't run off the end.
func squareSample(frames int, peak byte) module.Sample {
	s := module.Sample{Number: 1, Frames: frames, Rate: 8363, Type: module.Sample8}
	raw := make([]byte, frames)
	for i := range raw {
		if i%2 == 0 {
			raw[i] = peak
		} else {
			raw[i] = byte(-int8(peak))
		}
	}
	s.Store(raw)
	return s
}

func TestMixSilentVoiceProducesZero(t *testing.T) {
	m := New(4, 44100)
	m.SetSamples([]module.Sample{squareSample(256, 64)})

	out := m.Mix(125)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence from an unmapped voice, got out[%d]=%d", i, v)
		}
	}
}

func TestMixMappedVoiceProducesNonZero(t *testing.T) {
	m := New(4, 44100)
	m.SetSamples([]module.Sample{squareSample(256, 100)})

	m.SetVoice(0, 0)
	m.SetPatch(0, 1, 0, false)
	m.SetPeriod(0, float64(period.NoteToPeriod(60, 0)))
	m.SetVolume(0, 1024)
	m.SetPan(0, 0)

	out := m.Mix(125)
	nonZero := false
	for _, v := range out {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("expected a mapped, full-volume voice to produce audible output")
	}
}

func TestMixRespectsMute(t *testing.T) {
	m := New(4, 44100)
	m.SetSamples([]module.Sample{squareSample(256, 100)})

	m.SetVoice(0, 0)
	m.SetPatch(0, 1, 0, false)
	m.SetPeriod(0, float64(period.NoteToPeriod(60, 0)))
	m.SetVolume(0, 1024)
	m.SetMute(0, true)

	out := m.Mix(125)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected muted voice to be silent, got out[%d]=%d", i, v)
		}
	}
}

func TestFindFreeVoiceThenFull(t *testing.T) {
	m := New(2, 44100)
	first := m.FindFreeVoice()
	if first != 0 {
		t.Fatalf("first free voice = %d, want 0", first)
	}
	m.SetVoice(first, 0)

	second := m.FindFreeVoice()
	if second != 1 {
		t.Fatalf("second free voice = %d, want 1", second)
	}
	m.SetVoice(second, 1)

	if m.FindFreeVoice() != -1 {
		t.Fatal("expected no free voice once the pool is exhausted")
	}
}

func TestFindLowestVoiceIgnoresForegroundChannels(t *testing.T) {
	m := New(3, 44100)
	m.SetVoice(0, 0) // foreground (root channel < numTracks)
	m.SetVolume(0, 10)
	m.SetVoice(1, 2) // background
	m.SetVolume(1, 900)
	m.SetVoice(2, 3) // background, quieter
	m.SetVolume(2, 50)

	lowest := m.FindLowestVoice(2)
	if lowest != 2 {
		t.Fatalf("FindLowestVoice(2) = %d, want 2 (voice 0 is foreground and must be ignored)", lowest)
	}
}

func TestResetVoiceClearsMapping(t *testing.T) {
	m := New(2, 44100)
	m.SetVoice(0, 3)
	m.SetVolume(0, 500)

	m.ResetVoice(0)

	if m.FindFreeVoice() != 0 {
		t.Fatal("ResetVoice should return the voice to the free pool")
	}
}

func TestLoopWraparoundKeepsRendering(t *testing.T) {
	m := New(1, 8000) // low rate, low bpm below forces many samples per frame
	s := squareSample(32, 100)
	s.HasLoop = true
	s.LoopStart = 4
	s.LoopEnd = 28
	m.SetSamples([]module.Sample{s})

	m.SetVoice(0, 0)
	m.SetPatch(0, 1, 0, false)
	m.SetPeriod(0, float64(period.NoteToPeriod(72, 0))) // high note, short period, large step
	m.SetVolume(0, 1024)
	m.EnableLoop(0, true, false)
	m.SetLoopStart(0, float64(s.LoopStart))
	m.SetLoopEnd(0, float64(s.LoopEnd))

	// Render several frames; a looping voice should never go silent from
	// naturally running off the end of the sample.
	for i := 0; i < 20; i++ {
		out := m.Mix(50)
		anyNonZero := false
		for _, v := range out {
			if v != 0 {
				anyNonZero = true
				break
			}
		}
		if !anyNonZero {
			t.Fatalf("frame %d: looping voice went silent, loop wraparound likely broken", i)
		}
	}
}
