// Package hmn registers the His Master's Noise frame player: a
// Noisetracker derivative (spec §4.7.2) that additionally drives "Mupp"
// wavetable chip instruments, per spec §4.7.7. A Mupp instrument's
// "sample" is really a 1024-byte block of 32 waveforms (32 bytes each)
// borrowed from one of the module's own patterns; at runtime the player
// walks a short per-instrument waveform program (encoded in the
// instrument name, looping between a dataloopstart/dataloopend pair) and
// repoints the voice at 32*waveform_index every tick, instead of letting
// the sample play back linearly like an ordinary PCM instrument.
package hmn

import (
	clone "github.com/huandu/go-clone/generic"

	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/modfx"
)

func init() {
	player.Register("hmn", New)
}

var dialect = modfx.Dialect{
	Name:             "His Master's Noise",
	AllowVibrato:     true,
	AllowTremolo:     false,
	AllowOffset:      false,
	AllowExtended:    true,
	AllowVolumeSlide: true,
	AllowPosJump:     true,
	AllowPatternBrk:  true,
	AllowSetVolume:   true,
	AllowSetSpeed:    true,
	AllowTonePorta:   true,
}

const (
	waveformSize = 32 // bytes per waveform
	maxWaveforms = 16 // a chip program only ever selects among 16
)

// chipProgram is one Mupp instrument's waveform-stepping sequence, parsed
// once at Start from the instrument name.
type chipProgram struct {
	steps      []int // waveform indices, 0..maxWaveforms-1
	loopStart  int
	loopEnd    int
}

// chipState tracks one logical channel's position in its chip program.
// Only channels currently playing a Mupp instrument have active set.
type chipState struct {
	active  bool
	prog    chipProgram
	pos     int
	sampIdx int // module.Sample index backing the active Mupp instrument
}

// framePlayer layers Mupp chip-instrument stepping on top of an ordinary
// modfx.Engine, which still drives every other effect and channel.
type framePlayer struct {
	engine *modfx.Engine

	vc   *mixer.VirtualChannels
	chip []chipState

	// muppProgram is indexed by module.Sample index (0-based) and only
	// populated for samples loaded from a "Mupp" instrument.
	muppProgram map[int]chipProgram
}

// New builds a fresh His Master's Noise frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{engine: modfx.New(dialect)}
}

func (f *framePlayer) Name() string { return "His Master's Noise" }

func (f *framePlayer) Start(mod *module.Module, vc *mixer.VirtualChannels) {
	f.engine.Start(mod, vc)
	f.vc = vc
	f.chip = make([]chipState, mod.Channels)

	f.muppProgram = map[int]chipProgram{}
	for i, ins := range mod.Data.Instruments() {
		name := ins.InstrumentName()
		if len(name) < 5 || name[:4] != "Mupp" {
			continue
		}
		f.muppProgram[i] = parseChipProgram(name)
	}
}

func (f *framePlayer) Mute(chn int, muted bool) { f.engine.Mute(chn, muted) }

type snapshot struct {
	engine player.Snapshot
	chip   []chipState
}

func (f *framePlayer) Snapshot() player.Snapshot {
	return snapshot{engine: f.engine.Snapshot(), chip: clone.Clone(f.chip)}
}

func (f *framePlayer) Restore(snap player.Snapshot) {
	s := snap.(snapshot)
	f.engine.Restore(s.engine)
	f.chip = clone.Clone(s.chip)
}

func (f *framePlayer) PlayTick(mod *module.Module, st *module.PlaybackState) {
	if st.Finished {
		return
	}

	// Detect new-note triggers before the engine advances st, so a channel
	// switching onto or off a Mupp instrument is caught on the same row the
	// engine sees it.
	if st.Frame <= 0 {
		f.scanRowForChips(mod, st)
	}

	f.engine.PlayTick(mod, st)

	for c := range f.chip {
		f.stepChip(c)
	}
}

func (f *framePlayer) scanRowForChips(mod *module.Module, st *module.PlaybackState) {
	gd := mod.Data
	orders := gd.Orders()
	if st.Pos < 0 || st.Pos >= len(orders) {
		return
	}
	pat := int(orders[st.Pos])
	if pat >= gd.NumPatterns() || st.Row >= gd.PatternLen(pat) {
		return
	}
	for c := 0; c < mod.Channels; c++ {
		ev := gd.EventAt(pat, st.Row, c)
		if ev.Instrument <= 0 || ev.Instrument > len(mod.Samples) {
			continue
		}
		idx := ev.Instrument - 1
		if prog, ok := f.muppProgram[idx]; ok {
			f.chip[c] = chipState{active: true, prog: prog, pos: prog.loopStart, sampIdx: idx}
		} else {
			f.chip[c].active = false
		}
	}
}

func (f *framePlayer) stepChip(chn int) {
	cs := &f.chip[chn]
	if !cs.active || len(cs.prog.steps) == 0 {
		return
	}
	v := f.vc.Voice(chn)
	if v < 0 {
		return
	}

	waveform := cs.prog.steps[cs.pos%len(cs.prog.steps)]
	f.vc.Mixer().SetVoicePos(v, float64(waveform*waveformSize), false)

	cs.pos++
	if cs.prog.loopEnd > cs.prog.loopStart && cs.pos > cs.prog.loopEnd {
		cs.pos = cs.prog.loopStart
	} else if cs.pos >= len(cs.prog.steps) {
		cs.pos = 0
	}
}

// parseChipProgram reads a Mupp instrument's waveform-stepping sequence out
// of its name: byte 4 is the donor pattern number (consumed by the loader),
// bytes 5 and 6 are dataloopstart/dataloopend into the remaining bytes,
// which form the waveform-index program itself.
func parseChipProgram(name string) chipProgram {
	if len(name) < 7 {
		return chipProgram{steps: []int{0}}
	}
	loopStart := int(name[5])
	loopEnd := int(name[6])

	raw := name[7:]
	steps := make([]int, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		steps = append(steps, int(raw[i])%maxWaveforms)
	}
	if len(steps) == 0 {
		steps = []int{0}
	}
	if loopStart >= len(steps) {
		loopStart = 0
	}
	if loopEnd >= len(steps) || loopEnd < loopStart {
		loopEnd = len(steps) - 1
	}
	return chipProgram{steps: steps, loopStart: loopStart, loopEnd: loopEnd}
}

var _ player.FramePlayer = (*framePlayer)(nil)
