// Package oxdz is the player harness described in spec §4.8: Oxdz.New
// probes and loads a module, picks (or is told) which frame player
// dialect drives it, and from then on the caller drives playback one
// frame at a time via PlayFrame/FillBuffer while reading position/timing
// through FrameInfo.
//
// Every supported format loader and frame player dialect registers
// itself via an init() in its own package; this file's blank imports are
// what actually pull them into the binary.
package oxdz

import (
	"github.com/trackerplay/oxdz/format"
	_ "github.com/trackerplay/oxdz/format/fest"
	_ "github.com/trackerplay/oxdz/format/mk"
	_ "github.com/trackerplay/oxdz/format/s3m"
	_ "github.com/trackerplay/oxdz/format/st"
	_ "github.com/trackerplay/oxdz/format/stm"
	_ "github.com/trackerplay/oxdz/format/xm"

	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
	"github.com/trackerplay/oxdz/player"
	_ "github.com/trackerplay/oxdz/player/fasttracker"
	_ "github.com/trackerplay/oxdz/player/ft2"
	_ "github.com/trackerplay/oxdz/player/hmn"
	_ "github.com/trackerplay/oxdz/player/noisetracker"
	_ "github.com/trackerplay/oxdz/player/protracker"
	_ "github.com/trackerplay/oxdz/player/soundtracker"
	_ "github.com/trackerplay/oxdz/player/st2"
	_ "github.com/trackerplay/oxdz/player/st3"
	_ "github.com/trackerplay/oxdz/player/ust"
)

// defaultNumVoices is the physical voice pool size handed to the mixer
// when a caller doesn't need precise control over polyphony; virtual
// channels steal from this pool by volume once it's exhausted.
const defaultNumVoices = 32

// Oxdz drives one loaded Module: its own mixer, virtual channel layer and
// frame player, stepped one tick at a time.
type Oxdz struct {
	mod      *module.Module
	mx       *mixer.Mixer
	vc       *mixer.VirtualChannels
	play     player.FramePlayer
	playerID string
	state    module.PlaybackState
	config   Config
	scan     *player.ScanResult
}

// New probes b against every registered format loader and loads the
// first match, then instantiates the frame player named by the loader
// (or by playerIDHint, if non-empty, to force a specific dialect — e.g.
// replaying an M.K. module through the Noisetracker engine instead of
// Protracker). rate is the output sample rate in Hz.
func New(b []byte, rate int, playerIDHint string) (*Oxdz, error) {
	mod, err := format.Load(b, "")
	if err != nil {
		return nil, err
	}

	id := mod.PlayerID
	if playerIDHint != "" {
		id = playerIDHint
	}
	fp, err := player.New(id)
	if err != nil {
		return nil, oxdzerr.Loadf("no frame player for %q: %v", id, err)
	}

	numVoices := defaultNumVoices
	if mod.Channels > numVoices {
		numVoices = mod.Channels
	}

	mx := mixer.New(numVoices, rate)
	mx.SetSamples(mod.Samples)

	o := &Oxdz{
		mod:      mod,
		mx:       mx,
		vc:       mixer.NewVirtualChannels(mx, mod.Channels),
		play:     fp,
		playerID: id,
		config:   DefaultConfig(),
	}
	o.config.apply(mx)
	o.start()
	return o, nil
}

// start (re)seeds timing and hands the mixer/virtual-channel layer to the
// frame player. Exposed indirectly for symmetry with the Rust harness's
// player.start(); Go callers just get a ready Oxdz from New.
func (o *Oxdz) start() {
	o.state = module.PlaybackState{
		Speed: o.mod.InitialSpeed,
		Tempo: o.mod.InitialTempo,
	}
	if o.state.Speed == 0 {
		o.state.Speed = 6
	}
	if o.state.Tempo == 0 {
		o.state.Tempo = 125
	}
	o.play.Start(o.mod, o.vc)
}

// SetConfig applies c's pan/interpolation settings immediately.
func (o *Oxdz) SetConfig(c Config) {
	o.config = c
	c.apply(o.mx)
}

// Mute controls whether logical channel chn is audible.
func (o *Oxdz) Mute(chn int, muted bool) { o.play.Mute(chn, muted) }

// Module exposes the underlying, read-only *module.Module for diagnostic
// and introspection tools (pattern dumps, note-data display) that need
// more detail than ModuleInfo/FrameInfo summarize. Callers must not
// mutate anything reachable through it.
func (o *Oxdz) Module() *module.Module { return o.mod }

// ModuleInfo is the static, load-time description of the module being
// played: nothing here changes as playback advances.
type ModuleInfo struct {
	Title       string
	Format      module.FormatID
	Creator     string
	Channels    int
	NumPatterns int
	NumOrders   int
	TotalTimeMs float64
}

// ModuleInfo reports the static module description. TotalTimeMs is
// computed by a silent ScanPositions pass through a throwaway player
// instance, so calling this never disturbs o's own playback position.
func (o *Oxdz) ModuleInfo() ModuleInfo {
	info := ModuleInfo{
		Title:       o.mod.Title(),
		Format:      o.mod.Format,
		Creator:     o.mod.Creator,
		Channels:    o.mod.Channels,
		NumPatterns: o.mod.Data.NumPatterns(),
		NumOrders:   len(o.mod.Data.Orders()),
	}
	o.ensureScan()
	if o.scan != nil {
		info.TotalTimeMs = o.scan.TotalTimeMs
	}
	return info
}

// ensureScan lazily computes and caches the position scan used by both
// ModuleInfo (for TotalTimeMs) and Seek (for its per-order checkpoints).
// It runs a throwaway FramePlayer instance, never the one driving o's own
// playback, so scanning never disturbs the caller's current position.
func (o *Oxdz) ensureScan() {
	if o.scan != nil {
		return
	}
	fp, err := player.New(o.playerID)
	if err != nil {
		return
	}
	r := player.ScanPositions(o.mod, fp)
	o.scan = &r
}

// Seek jumps playback to the start of order index pos, restoring both the
// harness's PlaybackState and the frame player's own effect memory from
// the nearest scan checkpoint rather than replaying the song from the
// top. It is a no-op if pos was never reached by a normal linear play
// (e.g. an order past an unconditional position-jump).
func (o *Oxdz) Seek(pos int) bool {
	o.ensureScan()
	if o.scan == nil || pos < 0 || pos >= len(o.scan.Orders) {
		return false
	}
	ot := o.scan.Orders[pos]
	if !ot.Visited {
		return false
	}
	o.state = ot.State
	o.play.Restore(ot.Snap)
	return true
}

// FrameInfo is a plain value snapshot of playback position, safe to copy
// across a consumer's own mutex boundary (spec §5).
type FrameInfo struct {
	Pos       int
	Row       int
	Frame     int
	Speed     int
	Bpm       int
	TimeMs    float64
	LoopCount int
	Finished  bool
}

// FrameInfo reports the current playback position without advancing it.
func (o *Oxdz) FrameInfo() FrameInfo {
	return FrameInfo{
		Pos:       o.state.Pos,
		Row:       o.state.Row,
		Frame:     o.state.Frame,
		Speed:     o.state.Speed,
		Bpm:       o.state.Tempo,
		TimeMs:    o.state.TimeMs,
		LoopCount: o.state.LoopCount,
		Finished:  o.state.Finished,
	}
}

// PlayFrame advances playback by exactly one tick and renders the
// mixer's output buffer for it. The returned slice is owned by the
// mixer and is only valid until the next call to PlayFrame.
func (o *Oxdz) PlayFrame() []int16 {
	o.play.PlayTick(o.mod, &o.state)
	return o.mx.Mix(o.state.Tempo)
}

// FillBuffer fills out (a multiple of one mixer frame's length) by
// calling PlayFrame repeatedly, stopping early once loopCount stops
// being hit (-1 means "never stop early"). Returns the number of int16
// slots actually written.
func (o *Oxdz) FillBuffer(out []int16, loopCount int) int {
	n := 0
	for n < len(out) {
		if o.state.Finished {
			break
		}
		if loopCount >= 0 && o.state.LoopCount > loopCount {
			break
		}
		frame := o.PlayFrame()
		n += copy(out[n:], frame)
	}
	return n
}
