// Package scream is the shared Scream Tracker frame-player engine for
// both the STM (Scream Tracker 2) and S3M (Scream Tracker 3) dialects,
// per spec §4.7.8: letter-keyed effect commands (stored in pattern data
// as 1=A..26=Z), global and per-channel volume, panning, and a handful
// of tracker-of-origin quirks gated by a Quirks value.
package scream

import (
	clone "github.com/huandu/go-clone/generic"

	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/period"
	"github.com/trackerplay/oxdz/player"
)

// Command letters, 1-based to match the raw byte S3M/STM pattern data
// stores (0 means "no effect").
const (
	cmdSetSpeed = iota + 1
	cmdPosJump
	cmdPatternBreak
	cmdVolumeSlide
	cmdPortaDown
	cmdPortaUp
	cmdTonePorta
	cmdVibrato
	cmdTremor
	cmdArpeggio
	cmdVibVolSlide
	cmdPortaVolSlide
	cmdChannelVol
	cmdChannelVolSlide
	cmdSampleOffset
	cmdPanSlide
	cmdRetrigVolSlide
	cmdTremolo
	cmdExtra
	cmdTempo
	cmdFineVibrato
	cmdGlobalVolume
	cmdGlobalVolSlide
	cmdSetPan
	cmdPanbrello
	cmdMacro
)

// Quirks gates the tracker-of-origin differences this engine implements:
// the amiga-limits period clamp and the fast-volume-slide edge case. The
// st3 dialect enables both; the zero value (used by st2) enables neither.
type Quirks struct {
	AmigaLimits bool // clamp portamento so it can't exceed classic Amiga periods
	// FastVolSlide only changes parameter DFF, which then slides the volume
	// down by 15 per tick instead of doing nothing. DFx and DxF with x in
	// 1..E slide down/up by x per tick with or without it.
	FastVolSlide bool
}

// Dialect configures one letter-command frame player: its channel-count
// cap, which commands exist, and its quirks.
type Dialect struct {
	Name         string
	NumChannels  int // used only when the loader doesn't already know
	HasPanning   bool
	Quirks       Quirks
}

type chanState struct {
	sampleIdx int
	note      int
	period    float64
	volume    int // 0..64
	chanVol   int // 0..64, S3M per-channel volume (Mxx/Nxx)
	pan       int // our mixer convention, -128..127

	portaPeriod float64
	portaSpeed  int

	vibratoPos, vibratoSpeed, vibratoDepth int
	volSlideMem, panSlideMem, retrigMem    int
	tremorOn, tremorOff, tremorCounter     int
	arpeggio                               [2]int

	effect, param byte
	tick          int
}

type Engine struct {
	d  Dialect
	vc *mixer.VirtualChannels

	channels []chanState

	globalVolume int
	doBreak, doJump bool
	breakRow, jumpPos int
	patDelay int
}

func New(d Dialect) *Engine { return &Engine{d: d} }

func (e *Engine) Name() string { return e.d.Name }

func (e *Engine) Start(mod *module.Module, vc *mixer.VirtualChannels) {
	e.vc = vc
	e.globalVolume = 64
	e.channels = make([]chanState, mod.Channels)
	for i := range e.channels {
		e.channels[i] = chanState{sampleIdx: -1, chanVol: 64}
		if e.d.HasPanning {
			if i%2 == 0 {
				e.channels[i].pan = 64
			} else {
				e.channels[i].pan = -64
			}
		}
	}
}

func (e *Engine) Mute(chn int, muted bool) { e.vc.SetMute(chn, muted) }

type snapshot struct {
	channels        []chanState
	globalVolume    int
	doBreak, doJump bool
	breakRow, jumpPos int
	patDelay        int
}

func (e *Engine) Snapshot() player.Snapshot {
	return clone.Clone(snapshot{
		channels:     e.channels,
		globalVolume: e.globalVolume,
		doBreak:      e.doBreak,
		doJump:       e.doJump,
		breakRow:     e.breakRow,
		jumpPos:      e.jumpPos,
		patDelay:     e.patDelay,
	})
}

func (e *Engine) Restore(snap player.Snapshot) {
	s := snap.(snapshot)
	e.channels = clone.Clone(s.channels)
	e.globalVolume = s.globalVolume
	e.doBreak, e.doJump = s.doBreak, s.doJump
	e.breakRow, e.jumpPos = s.breakRow, s.jumpPos
	e.patDelay = s.patDelay
}

func (e *Engine) PlayTick(mod *module.Module, st *module.PlaybackState) {
	if st.Finished {
		return
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
	st.TimeMs += 2500.0 / float64(st.Tempo)
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

	e.doBreak, e.doJump = false, false

	for c := 0; c < mod.Channels; c++ {
		ev := gd.EventAt(pat, st.Row, c)
		e.applyRowEvent(mod, st, c, ev)
	}

	if e.patDelay > 0 {
		e.patDelay--
		return
	}

	nextRow, nextPos := st.Row+1, st.Pos
	if e.doBreak {
		nextRow, nextPos = e.breakRow, st.Pos+1
	} else if e.doJump {
		nextRow, nextPos = e.breakRow, e.jumpPos
	} else if nextRow >= gd.PatternLen(pat) {
		nextRow, nextPos = 0, st.Pos+1
	}

	if nextPos >= len(orders) {
		restart := gd.RestartPos()
		if restart < 0 || restart >= len(orders) {
			restart = 0
		}
		nextPos = restart
		st.LoopCount++
	}

	st.Row, st.Pos = nextRow, nextPos
}

func (e *Engine) applyRowEvent(mod *module.Module, st *module.PlaybackState, chn int, ev module.Event) {
	c := &e.channels[chn]
	c.tick = 0

	if ev.Instrument > 0 && ev.Instrument <= len(mod.Samples) {
		c.sampleIdx = ev.Instrument - 1
		if ins, ok := gridInstrument(mod, ev.Instrument-1); ok {
			c.volume = ins.Volume
		}
	}

	isTonePorta := ev.Effect == cmdTonePorta || ev.Effect == cmdPortaVolSlide
	if ev.Note != 0 && ev.Note != module.NoteKeyOff {
		target := float64(period.NoteToPeriod(ev.Note, 0))
		c.portaPeriod = target
		if !isTonePorta {
			c.note = ev.Note
			c.period = target
			e.triggerVoice(chn, c, mod.Samples)
		}
	} else if ev.Note == module.NoteKeyOff {
		c.volume = 0
	}

	c.effect, c.param = ev.Effect, ev.Param

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

func (e *Engine) applyRowEffect(mod *module.Module, st *module.PlaybackState, chn int, c *chanState, ev module.Event) {
	switch ev.Effect {
	case cmdSetSpeed:
		if ev.Param != 0 {
			st.Speed = int(ev.Param)
		}
	case cmdPosJump:
		e.doJump, e.jumpPos, e.breakRow = true, int(ev.Param), 0
	case cmdPatternBreak:
		e.doBreak, e.breakRow = true, int(ev.Param>>4)*10+int(ev.Param&0xF)
	case cmdTonePorta:
		if ev.Param != 0 {
			c.portaSpeed = int(ev.Param)
		}
	case cmdVibrato:
		if ev.Param&0xF0 != 0 {
			c.vibratoSpeed = int(ev.Param >> 4)
		}
		if ev.Param&0x0F != 0 {
			c.vibratoDepth = int(ev.Param & 0xF)
		}
	case cmdTremor:
		if ev.Param != 0 {
			c.tremorOn, c.tremorOff = int(ev.Param>>4)+1, int(ev.Param&0xF)+1
		}
	case cmdArpeggio:
		c.arpeggio[0] = int(ev.Param >> 4)
		c.arpeggio[1] = int(ev.Param & 0xF)
	case cmdChannelVol:
		c.chanVol = clampVol(int(ev.Param))
	case cmdSampleOffset:
		if ev.Param != 0 {
			if v := e.vc.Voice(chn); v >= 0 {
				e.vc.Mixer().SetVoicePos(v, float64(int(ev.Param)<<8), false)
			}
		}
	case cmdRetrigVolSlide:
		if ev.Param != 0 {
			c.retrigMem = int(ev.Param)
		}
	case cmdExtra:
		e.applyExtra(st, c, ev.Param)
	case cmdTempo:
		if ev.Param >= 0x20 {
			st.Tempo = int(ev.Param)
		}
	case cmdGlobalVolume:
		e.globalVolume = clampVol(int(ev.Param))
	case cmdSetPan:
		if e.d.HasPanning {
			// S3M panning is 0..15 low nibble, left..right.
			c.pan = clampPan(127 - int(ev.Param&0xF)*17)
		}
	}
}

func (e *Engine) applyExtra(st *module.PlaybackState, c *chanState, param byte) {
	sub, x := param>>4, int(param&0xF)
	switch sub {
	case 0x1: // glissando control: no continuous state needed here
	case 0x8: // set fine pan
		if e.d.HasPanning {
			c.pan = clampPan(127 - x*17)
		}
	case 0xA: // fine volume slide up
		c.volume = clampVol(c.volume + x)
	case 0xB: // fine volume slide down
		c.volume = clampVol(c.volume - x)
	case 0xC: // note cut
		if x == 0 {
			c.volume = 0
		}
	case 0xD: // note delay handled per-tick
	case 0xE: // pattern delay
		e.patDelay = x
	}
}

func (e *Engine) channelTick(mod *module.Module, chn int, c *chanState) {
	c.tick++

	switch c.effect {
	case cmdPortaDown:
		c.period += float64(c.param)
		e.clampAmigaLimits(c)
	case cmdPortaUp:
		c.period -= float64(c.param)
		if c.period < 1 {
			c.period = 1
		}
		e.clampAmigaLimits(c)
	case cmdTonePorta:
		e.tonePorta(c)
	case cmdPortaVolSlide:
		e.tonePorta(c)
		e.volumeSlide(c)
	case cmdVibrato, cmdFineVibrato:
		e.vibrato(c)
	case cmdVibVolSlide:
		e.vibrato(c)
		e.volumeSlide(c)
	case cmdVolumeSlide, cmdChannelVolSlide:
		e.volumeSlide(c)
	case cmdArpeggio:
		if c.arpeggio[0] != 0 || c.arpeggio[1] != 0 {
			step := c.tick % 3
			shift := 0
			if step == 1 {
				shift = c.arpeggio[0]
			} else if step == 2 {
				shift = c.arpeggio[1]
			}
			c.period = float64(period.NoteToPeriod(c.note+shift, 0))
		}
	case cmdTremor:
		if c.tremorOn+c.tremorOff > 0 {
			c.tremorCounter = (c.tremorCounter + 1) % (c.tremorOn + c.tremorOff)
		}
	case cmdRetrigVolSlide:
		n := c.retrigMem & 0xF
		if n != 0 && c.tick%n == 0 {
			e.triggerVoice(chn, c, mod.Samples)
		}
	case cmdExtra:
		switch c.param >> 4 {
		case 0xC:
			if c.tick == int(c.param&0xF) {
				c.volume = 0
			}
		case 0xD:
			if c.tick == int(c.param&0xF) {
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
		c.period += float64(c.portaSpeed)
		if c.period > c.portaPeriod {
			c.period = c.portaPeriod
		}
	} else if c.period > c.portaPeriod {
		c.period -= float64(c.portaSpeed)
		if c.period < c.portaPeriod {
			c.period = c.portaPeriod
		}
	}
}

func (e *Engine) volumeSlide(c *chanState) {
	hi, lo := c.param>>4, c.param&0xF
	if hi > 0 && hi != 0xF {
		c.volume = clampVol(c.volume + int(hi))
	} else if lo > 0 && lo != 0xF {
		c.volume = clampVol(c.volume - int(lo))
	} else if e.d.Quirks.FastVolSlide {
		if hi == 0xF && lo != 0 {
			c.volume = clampVol(c.volume - int(lo))
		} else if lo == 0xF && hi != 0 {
			c.volume = clampVol(c.volume + int(hi))
		}
	}
}

// clampAmigaLimits restricts a channel's period to the classic Amiga
// period table's range, per the amiga-limits tracker quirk: real Amiga
// hardware can't step outside 113..856 regardless of how far a slide asks
// it to go.
func (e *Engine) clampAmigaLimits(c *chanState) {
	if !e.d.Quirks.AmigaLimits {
		return
	}
	if c.period < 113 {
		c.period = 113
	}
	if c.period > 856 {
		c.period = 856
	}
}

func (e *Engine) vibrato(c *chanState) {
	idx := c.vibratoPos & 63
	sine := sineTable[idx&31]
	if idx >= 32 {
		sine = -sine
	}
	c.period += float64((sine * c.vibratoDepth) >> 7)
	c.vibratoPos += c.vibratoSpeed
}

// triggerVoice re-seats chn's voice on c's current sample at position 0.
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
	mx.EnableLoop(v, s.HasLoop, s.Bidi)
	if s.HasLoop {
		mx.SetLoopStart(v, float64(s.LoopStart))
		mx.SetLoopEnd(v, float64(s.LoopEnd))
	}
}

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

	outPeriod := c.period
	if outPeriod < 1 {
		outPeriod = 1
	}
	mx.SetPeriod(v, outPeriod)

	vol := c.volume * c.chanVol * e.globalVolume / (64 * 64)
	if c.tremorOn+c.tremorOff > 0 && c.tremorCounter >= c.tremorOn {
		vol = 0
	}
	mx.SetVolume(v, clampVol(vol)*16)
	mx.SetPan(v, c.pan)

	e.vc.ReclaimIfSilent(chn, vol)
}

var sineTable = [32]int{
	0, 24, 49, 74, 97, 120, 141, 161, 180, 197, 212, 224, 235, 244, 250, 253,
	255, 253, 250, 244, 235, 224, 212, 197, 180, 161, 141, 120, 97, 74, 49, 24,
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

func clampPan(v int) int {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return v
}

func gridInstrument(mod *module.Module, idx int) (*module.AmigaInstrument, bool) {
	ins := mod.Data.Instruments()
	if idx < 0 || idx >= len(ins) {
		return nil, false
	}
	ai, ok := ins[idx].(*module.AmigaInstrument)
	return ai, ok
}
