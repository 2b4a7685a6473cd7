// Package soundtracker registers the D.O.C. Soundtracker V2 frame player:
// a reduced command set predating Protracker's vibrato/tremolo/offset/
// retrigger additions, with tempo sourced from the module's own frame-rate
// byte rather than the Fxx effect, per spec §4.7.3.
package soundtracker

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/modfx"
)

func init() {
	player.Register("dst2", New)
}

var dialect = modfx.Dialect{
	Name:             "Soundtracker",
	AllowVibrato:     false,
	AllowTremolo:     false,
	AllowOffset:      false,
	AllowExtended:    false,
	AllowVolumeSlide: false,
	AllowPosJump:     false,
	AllowPatternBrk:  true,
	AllowSetVolume:   true,
	AllowSetSpeed:    true,
	AllowTonePorta:   false,
}

type framePlayer struct {
	*modfx.Engine
}

// New builds a fresh Soundtracker frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{modfx.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
