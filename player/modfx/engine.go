// Package modfx is the shared Amiga-tracker frame-player engine: the
// common tick loop, channel effect memory, and PT2.1A-derived effect set
// that Protracker, Noisetracker, Soundtracker, Ultimate Soundtracker and
// FastTracker 1 all specialize, per spec §4.7.1-§4.7.5 and the common
// tick loop described in §4.7 ("Common tick loop (Amiga dialects)").
//
// Each dialect gets its own package (player/protracker, player/noisetracker,
// etc.) that builds an Engine with a Dialect value gating which effects are
// legal, and registers it under its PlayerID. This mirrors the teacher's
// player.go sequenceTick/channelTick split, generalized so the same state
// machine serves every Amiga dialect instead of only Protracker.
package modfx

import (
	clone "github.com/huandu/go-clone/generic"

	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/period"
	"github.com/trackerplay/oxdz/player"
)

// vibratoTable is the classic Protracker 32-entry half-cycle sine table
// used for both vibrato and tremolo, values 0..255; waveDelta negates it
// for the second half of the 64-step cycle.
var vibratoTable = [32]int{
	0, 24, 49, 74, 97, 120, 141, 161, 180, 197, 212, 224, 235, 244, 250, 253,
	255, 253, 250, 244, 235, 224, 212, 197, 180, 161, 141, 120, 97, 74, 49, 24,
}

// Dialect gates which effects a particular tracker understands, and the
// handful of behavioral differences spec §4.7.2-§4.7.5 call out between
// otherwise-identical Amiga players.
type Dialect struct {
	Name string

	// Command gates. Soundtracker/UST reject most of the PT effect set;
	// Noisetracker rejects 7..9 and the Exx subcommands beyond basic
	// filter/loop.
	AllowVibrato     bool
	AllowTremolo     bool
	AllowOffset      bool
	AllowExtended    bool
	AllowVolumeSlide bool
	AllowPosJump     bool
	AllowPatternBrk  bool
	AllowSetVolume   bool
	AllowSetSpeed    bool
	AllowTonePorta   bool

	// FastTracker1Order swaps the evaluation order of combined volume/period
	// effects (5/6). Retrigger and note delay run the same with or without
	// it.
	FastTracker1Order bool

	// FixedTempo is used by dialects that predate the CIA timer and the Fxx
	// tempo effect: with AllowSetSpeed false (or set-speed gated to values
	// below the tempo split), the module's own frame-rate byte has already
	// been folded into Module.InitialTempo by the loader, so FixedTempo only
	// needs setting here when a dialect's tempo can never change mid-song
	// regardless of what PlaybackState.Tempo starts as. 0 means "leave
	// PlaybackState.Tempo alone".
	FixedTempo int
}

type chanState struct {
	sampleIdx int // 0-based index into mod.Samples, -1 = none triggered yet
	note      int // last triggered note index (period.NoteMin..NoteMax)
	period    int
	fineTune  int
	volume    int // 0..64
	pan       int // our mixer's signed -128..127 convention

	portaPeriod int
	portaSpeed  int

	vibratoPos   int
	vibratoSpeed int
	vibratoDepth int
	vibratoWave  int

	tremoloPos   int
	tremoloSpeed int
	tremoloDepth int
	tremoloWave  int

	glissando     bool
	arpeggio      [2]int
	sampleOffset  int
	lastVolSlide  int
	lastFineUp    int
	lastFineDown  int
	lastRetrig    int
	patLoopRow    int
	patLoopCount  int

	// periodOffset/volOffset are transient, recomputed every tick by
	// whichever effect is active (vibrato/arpeggio, tremolo); they are
	// never folded back into period/volume, so switching away from the
	// effect snaps the channel back to its true pitch/volume.
	periodOffset int
	volOffset    int

	effect        byte
	param         byte
	effectCounter int
}

// Engine is the FramePlayer implementation shared by every Amiga dialect.
// A fresh Engine is built per Module (via each dialect package's factory)
// so replaying a second module never observes leftover state.
type Engine struct {
	d Dialect

	vc       *mixer.VirtualChannels
	channels []chanState

	patDelay int
	breakRow int
	jumpPos  int
	doBreak  bool
	doJump   bool
}

// New builds an Engine for the given dialect. Dialect packages call this
// from their own New factory.
func New(d Dialect) *Engine {
	return &Engine{d: d}
}

func (e *Engine) Name() string { return e.d.Name }

func (e *Engine) Start(mod *module.Module, vc *mixer.VirtualChannels) {
	e.vc = vc
	e.channels = make([]chanState, mod.Channels)
	for i := range e.channels {
		c := &e.channels[i]
		c.sampleIdx = -1
		c.volume = 0
		// Classic Amiga hard L-R-R-L stereo layout. This mixer's pan
		// convention is positive = left, negative = right (see
		// mixer.renderVoice's volL/volR weighting).
		if i%4 == 0 || i%4 == 3 {
			c.pan = 127
		} else {
			c.pan = -127
		}
		c.vibratoWave = 0
		c.tremoloWave = 0
	}
	e.patDelay = 0
}

func (e *Engine) Mute(chn int, muted bool) {
	e.vc.SetMute(chn, muted)
}

// snapshot is the deep-copyable slice of Engine fields a seek needs to
// restore; vc is never part of it since it's bound once at Start and
// outlives any number of Snapshot/Restore round trips.
type snapshot struct {
	channels []chanState
	patDelay int
	breakRow int
	jumpPos  int
	doBreak  bool
	doJump   bool
}

func (e *Engine) Snapshot() player.Snapshot {
	return clone.Clone(snapshot{
		channels: e.channels,
		patDelay: e.patDelay,
		breakRow: e.breakRow,
		jumpPos:  e.jumpPos,
		doBreak:  e.doBreak,
		doJump:   e.doJump,
	})
}

func (e *Engine) Restore(snap player.Snapshot) {
	s := snap.(snapshot)
	e.channels = clone.Clone(s.channels)
	e.patDelay, e.breakRow, e.jumpPos = s.patDelay, s.breakRow, s.jumpPos
	e.doBreak, e.doJump = s.doBreak, s.doJump
}

// PlayTick advances playback by one tick, per the common Amiga tick loop
// in spec §4.7: on tick 0 of a row, decode the row and apply new-note
// effect pre-handlers; otherwise run each channel's effect continuation.
// Pattern-break/position-jump are latched during row decode and applied
// only once the row finishes, never mid-row.
func (e *Engine) PlayTick(mod *module.Module, st *module.PlaybackState) {
	if st.Finished {
		return
	}

	if e.d.FixedTempo != 0 {
		// Pre-CIA dialects (Soundtracker, Ultimate Soundtracker) have no Fxx
		// tempo effect; their tempo is a constant derived from the module's
		// own frame-rate byte, not something a row can change.
		st.Tempo = e.d.FixedTempo
	}

	if st.Frame <= 0 {
		st.Frame = st.Speed - 1
		e.decodeRow(mod, st)
	} else {
		st.Frame--
		for i := range e.channels {
			e.channelTick(mod, i, &e.channels[i])
		}
	}

	tickMs := 2500.0 / float64(st.Tempo)
	st.TimeMs += tickMs
}

func (e *Engine) decodeRow(mod *module.Module, st *module.PlaybackState) {
	gd := mod.Data
	orders := gd.Orders()
	if st.Pos < 0 || st.Pos >= len(orders) {
		st.Finished = true
		return
	}
	pat := int(orders[st.Pos])
	if pat >= gd.NumPatterns() {
		st.Finished = true
		return
	}

	e.doBreak = false
	e.doJump = false

	for c := 0; c < mod.Channels; c++ {
		ev := gd.EventAt(pat, st.Row, c)
		e.applyRowEvent(mod, st, c, ev)
	}

	if e.patDelay > 0 {
		e.patDelay--
		return
	}

	nextRow := st.Row + 1
	nextPos := st.Pos
	if e.doBreak {
		nextRow = e.breakRow
		nextPos = st.Pos + 1
	} else if e.doJump {
		nextRow = e.breakRow
		nextPos = e.jumpPos
	} else if nextRow >= gd.PatternLen(pat) {
		nextRow = 0
		nextPos = st.Pos + 1
	}

	if nextPos >= len(orders) {
		restart := gd.RestartPos()
		if restart < 0 || restart >= len(orders) {
			restart = 0
		}
		nextPos = restart
		st.LoopCount++
	}

	st.Row = nextRow
	st.Pos = nextPos
}

func (e *Engine) applyRowEvent(mod *module.Module, st *module.PlaybackState, chn int, ev module.Event) {
	c := &e.channels[chn]
	c.effectCounter = 0

	if ev.Instrument > 0 && ev.Instrument <= len(mod.Samples) {
		c.sampleIdx = ev.Instrument - 1
		if ins, ok := gridInstrument(mod, ev.Instrument-1); ok {
			c.volume = ins.Volume
			c.fineTune = ins.FineTune
		}
	}

	newPeriod := 0
	if ev.Note != 0 && ev.Note != module.NoteKeyOff {
		newPeriod = period.NoteToPeriod(ev.Note, c.fineTune)
	}

	isTonePorta := ev.Effect == 0x3 || ev.Effect == 0x5
	if newPeriod != 0 {
		c.portaPeriod = newPeriod
		if !isTonePorta {
			c.note = ev.Note
			c.period = newPeriod
			c.sampleOffset = 0
			c.vibratoPos = 0
			c.tremoloPos = 0
			e.triggerVoice(chn, c, mod.Samples)
		}
	}

	c.effect = ev.Effect
	c.param = ev.Param
	if ev.Param != 0 {
		switch ev.Effect {
		case 0xA:
			c.lastVolSlide = int(ev.Param)
		}
	}

	if ev.Volume != module.NoNoteVolume {
		vol := ev.Volume
		if vol > 64 {
			vol = 64
		}
		c.volume = vol
	}

	e.applyRowEffect(mod, st, chn, c, ev)
	e.updateMixer(chn, c)
}

// triggerVoice re-seats chn's voice on c's current sample, honoring any
// pending sample-offset (9xx) and the sample's own loop points.
func (e *Engine) triggerVoice(chn int, c *chanState, samples []module.Sample) {
	if c.sampleIdx < 0 || c.sampleIdx >= len(samples) {
		return
	}
	v := e.vc.AllocVoice(chn)
	if v < 0 {
		return
	}
	mx := e.vc.Mixer()
	s := &samples[c.sampleIdx]
	mx.SetPatch(v, c.sampleIdx+1, c.sampleIdx, false)
	mx.SetVoicePos(v, float64(c.sampleOffset), false)
	mx.EnableLoop(v, s.HasLoop, s.Bidi)
	if s.HasLoop {
		mx.SetLoopStart(v, float64(s.LoopStart))
		mx.SetLoopEnd(v, float64(s.LoopEnd))
	}
}

func (e *Engine) applyRowEffect(mod *module.Module, st *module.PlaybackState, chn int, c *chanState, ev module.Event) {
	switch ev.Effect {
	case 0x3: // tone portamento
		if e.d.AllowTonePorta && ev.Param != 0 {
			c.portaSpeed = int(ev.Param)
		}
	case 0x4: // vibrato
		if e.d.AllowVibrato {
			if ev.Param&0xF0 != 0 {
				c.vibratoSpeed = int(ev.Param >> 4)
			}
			if ev.Param&0x0F != 0 {
				c.vibratoDepth = int(ev.Param & 0xF)
			}
		}
	case 0x7: // tremolo
		if e.d.AllowTremolo {
			if ev.Param&0xF0 != 0 {
				c.tremoloSpeed = int(ev.Param >> 4)
			}
			if ev.Param&0x0F != 0 {
				c.tremoloDepth = int(ev.Param & 0xF)
			}
		}
	case 0x9: // sample offset
		if e.d.AllowOffset {
			off := int(ev.Param)
			if off != 0 {
				c.sampleOffset = off << 8
			}
			e.vc.SetMute(chn, false)
		}
	case 0xB: // position jump
		if e.d.AllowPosJump {
			e.doJump = true
			e.jumpPos = int(ev.Param)
			e.breakRow = 0
		}
	case 0xC: // set volume
		if e.d.AllowSetVolume {
			c.volume = clampVol(int(ev.Param))
		}
	case 0xD: // pattern break
		if e.d.AllowPatternBrk {
			e.doBreak = true
			e.breakRow = int(ev.Param>>4)*10 + int(ev.Param&0xF)
		}
	case 0xE:
		if e.d.AllowExtended {
			e.applyExtended(mod, st, chn, c, ev.Param)
		}
	case 0xF:
		if e.d.AllowSetSpeed {
			if ev.Param == 0 {
				// ignored: speed 0 would stall the song
			} else if ev.Param < 0x20 {
				st.Speed = int(ev.Param)
			} else {
				st.Tempo = int(ev.Param)
			}
		}
	case 0x0: // arpeggio
		c.arpeggio[0] = int(ev.Param >> 4)
		c.arpeggio[1] = int(ev.Param & 0xF)
	}
}

func (e *Engine) applyExtended(mod *module.Module, st *module.PlaybackState, chn int, c *chanState, param byte) {
	sub := param >> 4
	x := param & 0xF
	switch sub {
	case 0x3: // glissando control
		c.glissando = x != 0
	case 0x4: // vibrato waveform
		c.vibratoWave = int(x & 0x3)
	case 0x5: // set finetune
		c.fineTune = int(int8(x<<4)) >> 4
	case 0x6: // pattern loop
		if x == 0 {
			c.patLoopRow = st.Row
		} else {
			if c.patLoopCount == 0 {
				c.patLoopCount = int(x)
			} else {
				c.patLoopCount--
			}
			if c.patLoopCount > 0 {
				e.doBreak = true
				e.breakRow = c.patLoopRow
			}
		}
	case 0x7: // tremolo waveform
		c.tremoloWave = int(x & 0x3)
	case 0xA: // fine volume slide up
		if x != 0 {
			c.lastFineUp = int(x)
		}
		c.volume = clampVol(c.volume + c.lastFineUp)
	case 0xB: // fine volume slide down
		if x != 0 {
			c.lastFineDown = int(x)
		}
		c.volume = clampVol(c.volume - c.lastFineDown)
	case 0xE: // pattern delay
		e.patDelay = int(x)
	case 0x1: // fine portamento up
		c.period -= int(x)
		if c.period < 1 {
			c.period = 1
		}
	case 0x2: // fine portamento down
		c.period += int(x)
	case 0x9: // retrigger
		if x != 0 {
			c.lastRetrig = int(x)
		}
	case 0xC: // note cut (also handled per-tick below via effectCounter==0 case)
		if x == 0 {
			c.volume = 0
		}
	case 0xD: // note delay handled in channelTick via effectCounter check
	case 0x0: // set filter: ignored; the mixer's filter is not switched here
	}
}

func (e *Engine) channelTick(mod *module.Module, chn int, c *chanState) {
	c.effectCounter++
	c.periodOffset = 0
	c.volOffset = 0

	switch c.effect {
	case 0x0:
		if c.arpeggio[0] != 0 || c.arpeggio[1] != 0 {
			step := int(c.effectCounter % 3)
			shift := 0
			if step == 1 {
				shift = c.arpeggio[0]
			} else if step == 2 {
				shift = c.arpeggio[1]
			}
			c.periodOffset = period.NoteToPeriod(c.note+shift, c.fineTune) - c.period
		}
	case 0x1:
		c.period -= int(c.param)
		if c.period < 1 {
			c.period = 1
		}
	case 0x2:
		c.period += int(c.param)
		if c.period > 65535 {
			c.period = 65535
		}
	case 0x3:
		e.tonePorta(c)
	case 0x5:
		if e.d.FastTracker1Order {
			e.volumeSlide(c)
			e.tonePorta(c)
		} else {
			e.tonePorta(c)
			e.volumeSlide(c)
		}
	case 0x6:
		if e.d.FastTracker1Order {
			e.volumeSlide(c)
			e.vibrato(c)
		} else {
			e.vibrato(c)
			e.volumeSlide(c)
		}
	case 0x4:
		e.vibrato(c)
	case 0x7:
		e.tremolo(c)
	case 0xA:
		e.volumeSlide(c)
	case 0xE:
		switch c.param >> 4 {
		case 0x9: // retrigger
			if c.lastRetrig != 0 && c.effectCounter%c.lastRetrig == 0 {
				e.triggerVoice(chn, c, mod.Samples)
			}
		case 0xC: // note cut
			if c.effectCounter == int(c.param&0xF) {
				c.volume = 0
			}
		case 0xD: // note delay
			if c.effectCounter == int(c.param&0xF) {
				e.triggerVoice(chn, c, mod.Samples)
			}
		}
	}

	e.updateMixer(chn, c)
}

func (e *Engine) tonePorta(c *chanState) {
	if c.portaPeriod == 0 {
		return
	}
	if c.period < c.portaPeriod {
		c.period += c.portaSpeed
		if c.period > c.portaPeriod {
			c.period = c.portaPeriod
		}
	} else if c.period > c.portaPeriod {
		c.period -= c.portaSpeed
		if c.period < c.portaPeriod {
			c.period = c.portaPeriod
		}
	}
}

func (e *Engine) volumeSlide(c *chanState) {
	if !e.d.AllowVolumeSlide {
		return
	}
	hi := c.param >> 4
	lo := c.param & 0xF
	if hi > 0 {
		c.volume = clampVol(c.volume + int(hi))
	} else if lo > 0 {
		c.volume = clampVol(c.volume - int(lo))
	}
}

func (e *Engine) vibrato(c *chanState) {
	if !e.d.AllowVibrato {
		return
	}
	c.periodOffset = e.waveDelta(c.vibratoPos, c.vibratoDepth, c.vibratoWave)
	c.vibratoPos += c.vibratoSpeed
}

func (e *Engine) tremolo(c *chanState) {
	if !e.d.AllowTremolo {
		return
	}
	c.volOffset = e.waveDelta(c.tremoloPos, c.tremoloDepth, c.tremoloWave)
	c.tremoloPos += c.tremoloSpeed
}

// waveDelta evaluates one of the three PT waveforms (sine, ramp down,
// square) at the given position, scaled by depth, matching the classic
// vibrato/tremolo table lookup.
func (e *Engine) waveDelta(pos, depth, wave int) int {
	idx := pos & 63
	var amp int
	switch wave & 0x3 {
	case 1: // ramp down
		amp = (idx & 31) * 8
		if idx >= 32 {
			amp = 255 - amp
		}
	case 2: // square
		amp = 255
	default: // sine
		amp = vibratoTable[idx&31]
	}
	if idx >= 32 {
		amp = -amp
	}
	return (amp * depth) >> 7
}

func clampVol(v int) int {
	if v < 0 {
		return 0
	}
	if v > 64 {
		return 64
	}
	return v
}

// gridInstrument downcasts Module.Data's Instruments()[idx] to the Amiga
// shape every dialect in this package uses.
func gridInstrument(mod *module.Module, idx int) (*module.AmigaInstrument, bool) {
	ins := mod.Data.Instruments()
	if idx < 0 || idx >= len(ins) {
		return nil, false
	}
	ai, ok := ins[idx].(*module.AmigaInstrument)
	return ai, ok
}

// updateMixer pushes a channel's current state to its virtual channel's
// mixer voice: period (base plus any transient vibrato/arpeggio offset),
// volume (base plus any transient tremolo offset) and pan. Sample
// patch/position/loop wiring happens only at trigger time, in
// triggerVoice, so a continuation tick never resets playback position.
func (e *Engine) updateMixer(chn int, c *chanState) {
	if c.sampleIdx < 0 {
		e.vc.ReclaimIfSilent(chn, 0)
		return
	}
	v := e.vc.AllocVoice(chn)
	if v < 0 {
		return
	}
	mx := e.vc.Mixer()
	outPeriod := c.period + c.periodOffset
	if outPeriod < 1 {
		outPeriod = 1
	}
	mx.SetPeriod(v, float64(outPeriod))
	mx.SetVolume(v, clampVol(c.volume+c.volOffset)*16)
	mx.SetPan(v, c.pan)
	e.vc.ReclaimIfSilent(chn, c.volume)
}
