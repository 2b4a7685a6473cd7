// Package noisetracker registers the Noisetracker frame player: a subset
// of Protracker that rejects effects 7..9 (tremolo, unused, sample
// offset), per spec §4.7.2.
package noisetracker

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/modfx"
)

func init() {
	player.Register("nt", New)
}

var dialect = modfx.Dialect{
	Name:             "Noisetracker",
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

type framePlayer struct {
	*modfx.Engine
}

// New builds a fresh Noisetracker frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{modfx.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
