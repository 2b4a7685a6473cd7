// Package protracker registers the Protracker PT2.1A frame player, the
// reference Amiga dialect with the full effect set described in spec
// §4.7.1: arpeggio, slides, tone portamento, vibrato/tremolo, volume
// slides, sample offset, position jump, pattern break, the full Exx
// extended command set, and speed/tempo.
package protracker

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/modfx"
)

func init() {
	player.Register("pt2", New)
}

var dialect = modfx.Dialect{
	Name:             "Protracker",
	AllowVibrato:     true,
	AllowTremolo:     true,
	AllowOffset:      true,
	AllowExtended:    true,
	AllowVolumeSlide: true,
	AllowPosJump:     true,
	AllowPatternBrk:  true,
	AllowSetVolume:   true,
	AllowSetSpeed:    true,
	AllowTonePorta:   true,
}

// framePlayer wraps a *modfx.Engine so the package can satisfy
// player.FramePlayer without exposing modfx.Engine's constructor directly.
type framePlayer struct {
	*modfx.Engine
}

// New builds a fresh Protracker frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{modfx.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
