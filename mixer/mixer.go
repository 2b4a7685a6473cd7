// Package mixer implements the polyphonic voice engine that converts
// active sample playback requests into a summed stereo PCM buffer, per
// spec §4.3.
package mixer

import (
	"math"

	"github.com/trackerplay/oxdz/internal/dsp"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/period"
)

// PALRate is the classic Amiga "50 Hz / bpm*2 / 125" frame-rate constant
// used to derive how many samples one tracker tick spans.
const PALRate = 250

// FrameSize computes how many interleaved int16 slots (L+R) one mixer
// frame produces at the given output rate and BPM:
// framesize = (rate * PALRate * 2) / (bpm * 100).
func FrameSize(rate, bpm int) int {
	if bpm <= 0 {
		bpm = 125
	}
	return (rate * PALRate * 2) / (bpm * 100)
}

// Mixer owns a fixed pool of voices and renders them into a stereo
// accumulator once per frame (tick). Samples is a read-only view into the
// owning Module's sample slice; the mixer never mutates it.
type Mixer struct {
	rate    int
	voices  []Voice
	samples []module.Sample

	interp        Interpolation
	panSeparation int // 0..100

	paulaFilter *dsp.PaulaFilter

	buf32 []int32
	out   []int16
}

// New builds a mixer with numVoices physical voices rendering at rate Hz.
// numVoices must be >= the module's channel count; VirtualChannels maps
// a larger logical channel count down onto this pool.
func New(numVoices, rate int) *Mixer {
	m := &Mixer{
		rate:          rate,
		voices:        make([]Voice, numVoices),
		interp:        Linear,
		panSeparation: 70,
		paulaFilter:   dsp.NewPaulaFilter(0.4),
	}
	for i := range m.voices {
		m.voices[i] = newVoice()
	}
	return m
}

// SetSamples installs the sample table voices will read from. Called once
// after a Module is loaded.
func (m *Mixer) SetSamples(samples []module.Sample) { m.samples = samples }

// SetInterpolation selects the resampling method used for every voice.
func (m *Mixer) SetInterpolation(i Interpolation) { m.interp = i }

// SetPanSeparation sets the stereo separation percentage (0..100).
func (m *Mixer) SetPanSeparation(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	m.panSeparation = pct
}

// NumVoices returns the size of the physical voice pool.
func (m *Mixer) NumVoices() int { return len(m.voices) }

// --- voice allocation -------------------------------------------------

// FindFreeVoice returns the index of the first voice with no channel
// mapping, or -1 if the pool is fully allocated.
func (m *Mixer) FindFreeVoice() int {
	for i := range m.voices {
		if !m.voices[i].mapped {
			return i
		}
	}
	return -1
}

// FindLowestVoice returns the voice with the lowest current volume among
// those mapped to a "background" channel (root channel index >=
// numTracks), used when the pool is exhausted and a virtual channel needs
// to steal a voice. Returns -1 if no such voice exists.
func (m *Mixer) FindLowestVoice(numTracks int) int {
	best := -1
	bestVol := 1 << 30
	for i := range m.voices {
		v := &m.voices[i]
		if !v.mapped || v.rootChannel < numTracks {
			continue
		}
		if v.volume < bestVol {
			bestVol = v.volume
			best = i
		}
	}
	return best
}

// SetVoice binds voice num to root channel chn.
func (m *Mixer) SetVoice(num, chn int) {
	if num < 0 || num >= len(m.voices) {
		return
	}
	m.voices[num].mapped = true
	m.voices[num].rootChannel = chn
}

// ResetVoice unbinds and silences voice num.
func (m *Mixer) ResetVoice(num int) {
	if num < 0 || num >= len(m.voices) {
		return
	}
	m.voices[num].Reset()
}

// --- per-voice parameter setters, all silently ignoring bad indices ---

func (m *Mixer) voice(chn int) *Voice {
	if chn < 0 || chn >= len(m.voices) {
		return nil
	}
	return &m.voices[chn]
}

// SetPatch re-seats voice chn onto sample smp at position 0.
func (m *Mixer) SetPatch(chn, ins, smp int, anticlick bool) {
	v := m.voice(chn)
	if v == nil {
		return
	}
	v.sampleIdx = smp
	v.pos = 0
	_ = ins // instrument number retained by the caller, not needed by mixer
	_ = anticlick
}

// SetVoicePos seeks within the sample, clamped to size or loop start on
// overflow.
func (m *Mixer) SetVoicePos(chn int, pos float64, anticlick bool) {
	v := m.voice(chn)
	if v == nil || v.sampleIdx < 0 || v.sampleIdx >= len(m.samples) {
		return
	}
	s := &m.samples[v.sampleIdx]
	max := float64(s.Frames)
	if pos >= max {
		if v.loopEnabled {
			pos = v.loopStart
		} else {
			pos = max
		}
	}
	v.pos = pos
	_ = anticlick
}

// SetNote sets pitch from a tuning-agnostic note index, clamped to <=149.
func (m *Mixer) SetNote(chn int, note float64) {
	v := m.voice(chn)
	if v == nil {
		return
	}
	if note > 149 {
		note = 149
	}
	v.note = note
}

// SetPeriod sets pitch directly from an Amiga-style period.
func (m *Mixer) SetPeriod(chn int, period float64) {
	v := m.voice(chn)
	if v == nil {
		return
	}
	v.period = period
}

// SetVolume sets voice volume in the 0..1024 domain.
func (m *Mixer) SetVolume(chn, vol int) {
	v := m.voice(chn)
	if v == nil {
		return
	}
	if vol < 0 {
		vol = 0
	}
	if vol > 1024 {
		vol = 1024
	}
	v.volume = vol
}

// SetPan sets a signed pan (-128..127).
func (m *Mixer) SetPan(chn, pan int) {
	v := m.voice(chn)
	if v == nil {
		return
	}
	v.pan = pan
}

func (m *Mixer) SetLoopStart(chn int, frames float64) {
	if v := m.voice(chn); v != nil {
		v.loopStart = frames
	}
}

func (m *Mixer) SetLoopEnd(chn int, frames float64) {
	if v := m.voice(chn); v != nil {
		v.loopEnd = frames
	}
}

func (m *Mixer) EnableLoop(chn int, on, bidi bool) {
	if v := m.voice(chn); v != nil {
		v.loopEnabled = on
		v.bidi = bidi
	}
}

// EnableFilter/EnablePaula are advisory; implementer may treat as no-op
// per spec §4.3. We wire them to the one-pole Paula-style low-pass in
// internal/dsp rather than discarding the flag outright.
func (m *Mixer) EnableFilter(on bool) { m.paulaFilter.SetEnabled(on) }
func (m *Mixer) EnablePaula(on bool)  { m.paulaFilter.SetEnabled(on) }

// SetMute silences voice chn at mix time without touching its playback
// state (used by virtual channels' mute flag).
func (m *Mixer) SetMute(chn int, mute bool) {
	if v := m.voice(chn); v != nil {
		v.muted = mute
	}
}

// --- rendering ----------------------------------------------------------

// Mix renders one frame (tick) at the given BPM and returns an interleaved
// stereo int16 buffer. The returned slice is owned by the Mixer and is
// only valid until the next call to Mix.
func (m *Mixer) Mix(bpm int) []int16 {
	total := FrameSize(m.rate, bpm)
	if cap(m.buf32) < total {
		m.buf32 = make([]int32, total)
	}
	buf32 := m.buf32[:total]
	for i := range buf32 {
		buf32[i] = 0
	}

	pairs := total / 2
	for i := range m.voices {
		m.renderVoice(&m.voices[i], buf32, pairs)
	}

	if cap(m.out) < total {
		m.out = make([]int16, total)
	}
	out := m.out[:total]
	for i := 0; i < total; i++ {
		out[i] = downmix(buf32[i])
	}

	m.paulaFilter.Process(out)

	return out
}

func downmix(acc int32) int16 {
	v := acc >> 8
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func (m *Mixer) renderVoice(v *Voice, buf32 []int32, pairs int) {
	if !v.mapped || v.sampleIdx < 0 || v.sampleIdx >= len(m.samples) {
		return
	}
	if v.period < 1.0 {
		return
	}
	s := &m.samples[v.sampleIdx]
	if s.FrameCount() == 0 {
		return
	}

	step := float64(period.C4Period) * float64(s.Rate) / float64(m.rate) / v.period

	vol := v.volume
	if v.muted {
		vol = 0
	}
	// vol_r = vol*(0x80-pan), vol_l = vol*(0x80+pan), both /256.
	volL := (vol * (128 + v.pan)) / 256
	volR := (vol * (128 - v.pan)) / 256

	var end float64
	if v.loopEnabled {
		end = v.loopEnd
	} else {
		end = float64(s.Frames)
	}
	v.end = end

	idx := 0
	for idx < pairs {
		if v.pos > end {
			// Voice just passed its boundary without having looped or
			// been cut yet; emit one step of silence and retry.
			buf32[idx*2+0] += 0
			buf32[idx*2+1] += 0
			v.pos += step
			idx++
			continue
		}

		remain := pairs - idx
		var n int
		if step > 0 {
			n = int(math.Ceil((end - v.pos) / step))
		}
		if n <= 0 {
			n = 1
		}
		if n > remain {
			n = remain
		}

		for k := 0; k < n; k++ {
			ip := int(v.pos)
			frac := uint32((v.pos - math.Floor(v.pos)) * 65536)
			tap := tap4{s.FrameAt(ip - 1), s.FrameAt(ip), s.FrameAt(ip + 1), s.FrameAt(ip + 2)}
			samp := interpolate(m.interp, tap, frac)

			buf32[idx*2+0] += (samp * int32(volL))
			buf32[idx*2+1] += (samp * int32(volR))

			v.pos += step
			idx++
		}

		if v.pos >= end {
			if v.loopEnabled {
				v.pos = v.loopStart + (v.pos - end)
				end = v.loopEnd
				v.end = end
			} else if v.pos >= float64(s.Frames) {
				v.volume = 0
				vol = 0
				volL, volR = 0, 0
			}
		}
	}
}
