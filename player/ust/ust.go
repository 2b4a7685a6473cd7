// Package ust registers the Ultimate Soundtracker frame player: the
// earliest dialect, with only arpeggio and pitch-bend effects and a fixed
// frame rate (no Fxx, no CIA timer), per spec §4.7.4.
package ust

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/modfx"
)

func init() {
	player.Register("ust", New)
}

var dialect = modfx.Dialect{
	Name:             "Ultimate Soundtracker",
	AllowVibrato:     false,
	AllowTremolo:     false,
	AllowOffset:      false,
	AllowExtended:    false,
	AllowVolumeSlide: false,
	AllowPosJump:     false,
	AllowPatternBrk:  false,
	AllowSetVolume:   false,
	AllowSetSpeed:    false,
	AllowTonePorta:   false,
	FixedTempo:       125,
}

type framePlayer struct {
	*modfx.Engine
}

// New builds a fresh Ultimate Soundtracker frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{modfx.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
