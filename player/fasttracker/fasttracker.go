// Package fasttracker registers the FastTracker 1.01 frame player: the
// same effect set as Protracker, but with the evaluation order of the
// combined tone-porta/vibrato + volume-slide effects (5/6) swapped, per
// spec §4.7.5. Retrigger and note delay run as in Protracker.
package fasttracker

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/modfx"
)

func init() {
	player.Register("ft", New)
}

var dialect = modfx.Dialect{
	Name:              "FastTracker",
	AllowVibrato:      true,
	AllowTremolo:      true,
	AllowOffset:       true,
	AllowExtended:     true,
	AllowVolumeSlide:  true,
	AllowPosJump:      true,
	AllowPatternBrk:   true,
	AllowSetVolume:    true,
	AllowSetSpeed:     true,
	AllowTonePorta:    true,
	FastTracker1Order: true,
}

type framePlayer struct {
	*modfx.Engine
}

// New builds a fresh FastTracker 1.01 frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{modfx.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
