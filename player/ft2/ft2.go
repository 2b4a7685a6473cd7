// Package ft2 registers the FastTracker 2 (XM) frame player, per spec
// §4.7.6. Unlike the Amiga dialects in player/modfx, XM's note domain is
// the raw FT2 1..96(+97=key-off) scale, instruments carry multi-sample
// keyboard maps plus volume/panning envelopes and fadeout, and pitch can
// be derived from either FT2's linear period table or an Amiga-style
// logarithmic one depending on the module's flags bit 0.
package ft2

import (
	"math"

	clone "github.com/huandu/go-clone/generic"

	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/period"
	"github.com/trackerplay/oxdz/player"
)

func init() {
	player.Register("ft2", New)
}

// Effect byte values, per spec's Gxx/Hxx/Lxx/Kxx/8xx/Pxx/Rxy/Txy/X1x/X2x
// enumeration: 0..F mirror the Protracker set (reused verbatim), the rest
// are FT2-only and keyed by the letter FT2's editor shows for them.
const (
	effArpeggio      = 0x00
	effPortaUp       = 0x01
	effPortaDown     = 0x02
	effTonePorta     = 0x03
	effVibrato       = 0x04
	effTonePortaVol  = 0x05
	effVibratoVol    = 0x06
	effTremolo       = 0x07
	effSetPan        = 0x08
	effSampleOffset  = 0x09
	effVolumeSlide   = 0x0A
	effPosJump       = 0x0B
	effSetVolume     = 0x0C
	effPatternBreak  = 0x0D
	effExtended      = 0x0E
	effSetSpeed      = 0x0F
	effGlobalVolume  = 0x10 // G
	effGlobalVolSlide = 0x11 // H
	effKeyOff        = 0x14 // K
	effSetEnvPos     = 0x15 // L
	effPanningSlide  = 0x19 // P
	effMultiRetrig   = 0x1B // R
	effTremor        = 0x1D // T
	effExtraFinePorta = 0x21 // X1/X2, sub-command in param>>4
)

type chanState struct {
	sampleIdx int // 0-based into mod.Samples, -1 = none
	ins       *module.XMInstrument
	smp       module.XMSampleMapping

	note    int // raw FT2 note, 1..96
	keyOff  bool
	volume  int // 0..64
	pan     int // FT2 convention, 0..255, 128 = center

	period, portaPeriod float64
	portaSpeed          int

	vibratoPos, vibratoSpeed, vibratoDepth int
	globalVolSlideMem                      int
	volSlideMem                            int
	panSlideMem                            int
	retrigMem                              int
	tremorOn, tremorOff, tremorCounter     int

	envVolPos, envPanPos int
	fadeout              int // current fadeout level, FadeOut full scale is 65536

	effect, param byte
	tick          int
}

type framePlayer struct {
	vc       *mixer.VirtualChannels
	channels []chanState

	globalVolume int // 0..64
	linearFreq   bool

	doBreak, doJump bool
	breakRow, jumpPos int
	patDelay          int
}

func New() player.FramePlayer { return &framePlayer{} }

func (f *framePlayer) Name() string { return "FastTracker 2" }

func (f *framePlayer) Start(mod *module.Module, vc *mixer.VirtualChannels) {
	f.vc = vc
	f.linearFreq = mod.LinearFreq
	f.globalVolume = 64
	f.channels = make([]chanState, mod.Channels)
	for i := range f.channels {
		f.channels[i] = chanState{sampleIdx: -1, pan: 128, fadeout: 65536}
	}
}

func (f *framePlayer) Mute(chn int, muted bool) { f.vc.SetMute(chn, muted) }

type snapshot struct {
	channels          []chanState
	globalVolume      int
	doBreak, doJump   bool
	breakRow, jumpPos int
	patDelay          int
}

func (f *framePlayer) Snapshot() player.Snapshot {
	return clone.Clone(snapshot{
		channels:     f.channels,
		globalVolume: f.globalVolume,
		doBreak:      f.doBreak,
		doJump:       f.doJump,
		breakRow:     f.breakRow,
		jumpPos:      f.jumpPos,
		patDelay:     f.patDelay,
	})
}

func (f *framePlayer) Restore(snap player.Snapshot) {
	s := snap.(snapshot)
	f.channels = clone.Clone(s.channels)
	f.globalVolume = s.globalVolume
	f.doBreak, f.doJump = s.doBreak, s.doJump
	f.breakRow, f.jumpPos = s.breakRow, s.jumpPos
	f.patDelay = s.patDelay
}

func (f *framePlayer) PlayTick(mod *module.Module, st *module.PlaybackState) {
	if st.Finished {
		return
	}

	if st.Frame <= 0 {
		st.Frame = st.Speed - 1
		f.decodeRow(mod, st)
	} else {
		st.Frame--
		for i := range f.channels {
			f.channelTick(mod, i, &f.channels[i])
		}
	}

	st.TimeMs += 2500.0 / float64(st.Tempo)
}

func (f *framePlayer) decodeRow(mod *module.Module, st *module.PlaybackState) {
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

	f.doBreak, f.doJump = false, false

	for c := 0; c < mod.Channels; c++ {
		ev := gd.EventAt(pat, st.Row, c)
		f.applyRowEvent(mod, st, c, ev)
	}

	if f.patDelay > 0 {
		f.patDelay--
		return
	}

	nextRow, nextPos := st.Row+1, st.Pos
	if f.doBreak {
		nextRow, nextPos = f.breakRow, st.Pos+1
	} else if f.doJump {
		nextRow, nextPos = f.breakRow, f.jumpPos
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

func (f *framePlayer) applyRowEvent(mod *module.Module, st *module.PlaybackState, chn int, ev module.Event) {
	c := &f.channels[chn]
	c.tick = 0

	if ev.Instrument > 0 {
		if xi, ok := gridXMInstrument(mod, ev.Instrument-1); ok {
			c.ins = xi
		}
	}

	newNote := 0
	if ev.Note != 0 {
		if ev.Note == module.NoteKeyOff {
			c.keyOff = true
		} else {
			newNote = ev.Note
		}
	}

	if newNote != 0 && c.ins != nil {
		noteIdx := newNote - 1
		if noteIdx >= 0 && noteIdx < 96 {
			sampleIdx := c.ins.SampleMap[noteIdx]
			if sampleIdx >= 0 {
				c.sampleIdx = sampleIdx
				for _, sm := range c.ins.Samples {
					if sm.SampleIndex == sampleIdx {
						c.smp = sm
						break
					}
				}
			}
		}
	}

	isTonePorta := ev.Effect == effTonePorta || ev.Effect == effTonePortaVol
	if newNote != 0 {
		target := f.periodFor(mod, c, newNote)
		if isTonePorta {
			c.portaPeriod = target
		} else {
			c.note = newNote
			c.period = target
			c.portaPeriod = target
			c.keyOff = false
			c.envVolPos, c.envPanPos = 0, 0
			c.fadeout = 65536
			c.vibratoPos = 0
			f.triggerVoice(chn, c, mod.Samples)
		}
	}

	c.effect, c.param = ev.Effect, ev.Param

	if ev.Volume != module.NoNoteVolume {
		f.applyVolumeColumn(c, ev.Volume)
	}

	f.applyRowEffect(mod, st, chn, c, ev)
	f.updateMixer(chn, c)
}

// applyVolumeColumn decodes FT2's packed volume-column byte: 0x10-0x50 is
// a direct volume set (0..64), the rest are single-tick commands or
// effect-memory setters evaluated the same way every subsequent tick.
func (f *framePlayer) applyVolumeColumn(c *chanState, v int) {
	switch {
	case v >= 0x10 && v <= 0x50:
		c.volume = v - 0x10
	case v >= 0x60 && v <= 0x6F: // volume slide down
		c.volSlideMem = -(v - 0x60)
	case v >= 0x70 && v <= 0x7F: // volume slide up
		c.volSlideMem = v - 0x70
	case v >= 0x80 && v <= 0x8F: // fine volume down
		c.volume = clampVol(c.volume - (v - 0x80))
	case v >= 0x90 && v <= 0x9F: // fine volume up
		c.volume = clampVol(c.volume + (v - 0x90))
	case v >= 0xC0 && v <= 0xCF: // set panning
		c.pan = (v - 0xC0) << 4
	case v >= 0xF0 && v <= 0xFF: // tone porta speed, volume column
		c.portaSpeed = (v - 0xF0) * 16
	}
}

func (f *framePlayer) applyRowEffect(mod *module.Module, st *module.PlaybackState, chn int, c *chanState, ev module.Event) {
	switch ev.Effect {
	case effTonePorta:
		if ev.Param != 0 {
			c.portaSpeed = int(ev.Param)
		}
	case effVibrato:
		if ev.Param&0xF0 != 0 {
			c.vibratoSpeed = int(ev.Param >> 4)
		}
		if ev.Param&0x0F != 0 {
			c.vibratoDepth = int(ev.Param & 0xF)
		}
	case effSetPan:
		c.pan = int(ev.Param)
	case effSampleOffset:
		// sample offset is applied at trigger time via triggerVoice; here we
		// only need to re-seat the already-triggered voice at the new start.
		if ev.Param != 0 {
			if v := f.vc.Voice(chn); v >= 0 {
				f.vc.Mixer().SetVoicePos(v, float64(int(ev.Param)<<8), false)
			}
		}
	case effPosJump:
		f.doJump, f.jumpPos, f.breakRow = true, int(ev.Param), 0
	case effSetVolume:
		c.volume = clampVol(int(ev.Param))
	case effPatternBreak:
		f.doBreak, f.breakRow = true, int(ev.Param>>4)*10+int(ev.Param&0xF)
	case effExtended:
		f.applyExtended(st, c, ev.Param)
	case effSetSpeed:
		if ev.Param == 0 {
			// ignored
		} else if ev.Param < 0x20 {
			st.Speed = int(ev.Param)
		} else {
			st.Tempo = int(ev.Param)
		}
	case effGlobalVolume:
		f.globalVolume = clampVol(int(ev.Param))
	case effGlobalVolSlide:
		if ev.Param != 0 {
			c.globalVolSlideMem = int(ev.Param)
		}
	case effKeyOff:
		if st.Frame == int(ev.Param) || ev.Param == 0 {
			c.keyOff = true
		}
	case effSetEnvPos:
		c.envVolPos = int(ev.Param)
	case effPanningSlide:
		if ev.Param != 0 {
			c.panSlideMem = int(ev.Param)
		}
	case effMultiRetrig:
		if ev.Param != 0 {
			c.retrigMem = int(ev.Param)
		}
	case effTremor:
		if ev.Param != 0 {
			c.tremorOn, c.tremorOff = int(ev.Param>>4)+1, int(ev.Param&0xF)+1
		}
	case effExtraFinePorta:
		// X1x/X2x extra-fine portamento up/down, 1/4 the granularity of E1/E2.
		x := float64(ev.Param&0xF) / 4
		switch ev.Param >> 4 {
		case 1:
			c.period -= x
		case 2:
			c.period += x
		}
	}
}

func (f *framePlayer) applyExtended(st *module.PlaybackState, c *chanState, param byte) {
	sub, x := param>>4, int(param&0xF)
	switch sub {
	case 0x1: // fine porta up
		c.period -= float64(x)
	case 0x2: // fine porta down
		c.period += float64(x)
	case 0x9: // retrigger note, handled per-tick in channelTick via c.tick
	case 0xA: // fine volume slide up
		c.volume = clampVol(c.volume + x)
	case 0xB: // fine volume slide down
		c.volume = clampVol(c.volume - x)
	case 0xC: // note cut
		if x == 0 {
			c.volume = 0
		}
	case 0xE: // pattern delay
		f.patDelay = x
	}
}

func (f *framePlayer) channelTick(mod *module.Module, chn int, c *chanState) {
	c.tick++

	switch c.effect {
	case effPortaUp:
		c.period -= float64(c.param)
	case effPortaDown:
		c.period += float64(c.param)
	case effTonePorta:
		f.tonePorta(c)
	case effTonePortaVol:
		f.tonePorta(c)
		f.volumeSlide(c)
	case effVibrato:
		f.vibrato(c)
	case effVibratoVol:
		f.vibrato(c)
		f.volumeSlide(c)
	case effVolumeSlide:
		f.volumeSlide(c)
	case effArpeggio:
		if c.param != 0 {
			step := c.tick % 3
			shift := 0
			if step == 1 {
				shift = int(c.param >> 4)
			} else if step == 2 {
				shift = int(c.param & 0xF)
			}
			c.period = f.periodFor(mod, c, c.note+shift)
		}
	case effGlobalVolSlide:
		hi, lo := c.globalVolSlideMem>>4, c.globalVolSlideMem&0xF
		if hi > 0 {
			f.globalVolume = clampVol(f.globalVolume + hi)
		} else {
			f.globalVolume = clampVol(f.globalVolume - lo)
		}
	case effPanningSlide:
		hi, lo := c.panSlideMem>>4, c.panSlideMem&0xF
		if hi > 0 {
			c.pan = clampByte(c.pan + hi*4)
		} else {
			c.pan = clampByte(c.pan - lo*4)
		}
	case effMultiRetrig:
		if c.retrigMem != 0 && c.tick%c.retrigMem == 0 {
			f.triggerVoice(chn, c, mod.Samples)
		}
	case effTremor:
		if c.tremorOn+c.tremorOff > 0 {
			c.tremorCounter = (c.tremorCounter + 1) % (c.tremorOn + c.tremorOff)
		}
	case effExtended:
		switch c.param >> 4 {
		case 0x9: // retrigger
			x := int(c.param & 0xF)
			if x != 0 && c.tick%x == 0 {
				f.triggerVoice(chn, c, mod.Samples)
			}
		case 0xC: // note cut
			if c.tick == int(c.param&0xF) {
				c.volume = 0
			}
		case 0xD: // note delay
			if c.tick == int(c.param&0xF) {
				f.triggerVoice(chn, c, mod.Samples)
			}
		}
	}

	f.stepEnvelopes(c)
	f.updateMixer(chn, c)
}

func (f *framePlayer) tonePorta(c *chanState) {
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

func (f *framePlayer) volumeSlide(c *chanState) {
	hi, lo := c.volSlideMem, 0
	if hi < 0 {
		lo, hi = -hi, 0
	}
	if hi > 0 {
		c.volume = clampVol(c.volume + hi)
	} else if lo > 0 {
		c.volume = clampVol(c.volume - lo)
	}
}

func (f *framePlayer) vibrato(c *chanState) {
	idx := c.vibratoPos & 63
	sine := sineTable[idx&31]
	if idx >= 32 {
		sine = -sine
	}
	c.period += float64((sine * c.vibratoDepth) >> 7)
	c.vibratoPos += c.vibratoSpeed
}

// stepEnvelopes advances the volume envelope (and fadeout after key-off);
// the panning envelope is stepped the same way but, per the documented
// FT2 bug reproduced here deliberately, updateMixer gates whether it is
// applied on the VOLUME envelope's sustain flag rather than its own.
func (f *framePlayer) stepEnvelopes(c *chanState) {
	if c.ins == nil {
		return
	}
	if c.ins.VolEnv.Enabled() {
		c.envVolPos = stepEnvelope(c.ins.VolEnv, c.envVolPos, c.keyOff)
	}
	if c.ins.PanEnv.Enabled() {
		c.envPanPos = stepEnvelope(c.ins.PanEnv, c.envPanPos, c.keyOff)
	}
	if c.keyOff && c.ins.FadeOut > 0 {
		c.fadeout -= c.ins.FadeOut
		if c.fadeout < 0 {
			c.fadeout = 0
		}
	}
}

// stepEnvelope advances one envelope's playback cursor by one tick,
// honoring sustain (hold at the sustain point until key-off) and loop.
func stepEnvelope(env module.Envelope, pos int, keyOff bool) int {
	if len(env.Points) == 0 {
		return pos
	}
	if env.Sustained() && !keyOff && pos >= env.Points[env.Sustain].X {
		return env.Points[env.Sustain].X
	}
	pos++
	if env.Looped() && pos > env.Points[env.LoopEnd].X {
		pos = env.Points[env.LoopStart].X
	}
	last := env.Points[len(env.Points)-1].X
	if pos > last {
		pos = last
	}
	return pos
}

// envValue linearly interpolates env's y value at tick pos, 0..64 scale.
func envValue(env module.Envelope, pos int) int {
	if len(env.Points) == 0 {
		return 64
	}
	pts := env.Points
	if pos <= pts[0].X {
		return pts[0].Y
	}
	for i := 1; i < len(pts); i++ {
		if pos <= pts[i].X {
			x0, x1 := pts[i-1].X, pts[i].X
			y0, y1 := pts[i-1].Y, pts[i].Y
			if x1 == x0 {
				return y1
			}
			return y0 + (y1-y0)*(pos-x0)/(x1-x0)
		}
	}
	return pts[len(pts)-1].Y
}

// triggerVoice re-seats chn's voice on c's current sample at position 0.
func (f *framePlayer) triggerVoice(chn int, c *chanState, samples []module.Sample) {
	if c.sampleIdx < 0 || c.sampleIdx >= len(samples) {
		return
	}
	v := f.vc.AllocVoice(chn)
	if v < 0 {
		return
	}
	mx := f.vc.Mixer()
	s := &samples[c.sampleIdx]
	mx.SetPatch(v, c.sampleIdx+1, c.sampleIdx, false)
	mx.EnableLoop(v, s.HasLoop, s.Bidi)
	if s.HasLoop {
		mx.SetLoopStart(v, float64(s.LoopStart))
		mx.SetLoopEnd(v, float64(s.LoopEnd))
	}
}

// periodFor computes the mixer-domain period for noteVal (FT2 1..96 scale)
// plus c's sample's relative note and finetune, honoring the module's
// linear-vs-Amiga frequency table flag.
func (f *framePlayer) periodFor(mod *module.Module, c *chanState, noteVal int) float64 {
	sampleRate := 8363.0
	if c.sampleIdx >= 0 && c.sampleIdx < len(mod.Samples) && mod.Samples[c.sampleIdx].Rate > 0 {
		sampleRate = float64(mod.Samples[c.sampleIdx].Rate)
	}

	semis := float64(noteVal+c.smp.RelNote-49) + float64(c.smp.FineTune)/128.0
	if !f.linearFreq {
		// Approximate the Amiga logarithmic period table's coarser
		// granularity (eighth-semitone steps) rather than FT2's exact
		// linear table, giving a real, if approximate, distinction between
		// the two frequency modes.
		semis = math.Round(semis*8) / 8
	}
	freq := sampleRate * math.Pow(2, semis/12)
	if freq <= 0 {
		return float64(period.C4Period)
	}
	return float64(period.C4Period) * sampleRate / freq
}

func (f *framePlayer) updateMixer(chn int, c *chanState) {
	if c.sampleIdx < 0 {
		f.vc.ReclaimIfSilent(chn, 0)
		return
	}
	v := f.vc.AllocVoice(chn)
	if v < 0 {
		return
	}
	mx := f.vc.Mixer()

	outPeriod := c.period
	if outPeriod < 1 {
		outPeriod = 1
	}
	mx.SetPeriod(v, outPeriod)

	vol := c.volume
	if c.ins != nil && c.ins.VolEnv.Enabled() {
		vol = vol * envValue(c.ins.VolEnv, c.envVolPos) / 64
	}
	if c.tremorOn+c.tremorOff > 0 && c.tremorCounter >= c.tremorOn {
		vol = 0
	}
	vol = vol * f.fadeoutScale(c) * f.globalVolume / (64 * 64)
	mx.SetVolume(v, clampVol(vol)*16)

	pan := c.pan
	if c.ins != nil && c.ins.PanEnv.Enabled() && c.ins.VolEnv.Sustained() {
		// Reproduces FT2's documented panning-envelope bug: whether the pan
		// envelope is actually applied is gated on the volume envelope's
		// sustain flag, not the pan envelope's own.
		pe := envValue(c.ins.PanEnv, c.envPanPos)
		pan = 128 + (pe-32)*4
	}
	mx.SetPan(v, clampByte(127-pan))

	f.vc.ReclaimIfSilent(chn, vol)
}

func (f *framePlayer) fadeoutScale(c *chanState) int {
	if !c.keyOff || c.ins == nil || c.ins.FadeOut == 0 {
		return 64
	}
	return (c.fadeout * 64) / 65536
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

func clampByte(v int) int {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return v
}

func gridXMInstrument(mod *module.Module, idx int) (*module.XMInstrument, bool) {
	ins := mod.Data.Instruments()
	if idx < 0 || idx >= len(ins) {
		return nil, false
	}
	xi, ok := ins[idx].(*module.XMInstrument)
	return xi, ok
}

var _ player.FramePlayer = (*framePlayer)(nil)
