// Package st3 registers the Scream Tracker 3 (S3M) frame player: the full
// scream engine with panning, amiga-limits period clamping and the
// fast-volume-slide DFx/DxF edge case, per spec §4.7.8.
package st3

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/scream"
)

func init() {
	player.Register("st3", New)
}

var dialect = scream.Dialect{
	Name:       "Scream Tracker 3",
	HasPanning: true,
	Quirks: scream.Quirks{
		AmigaLimits:  true,
		FastVolSlide: true,
	},
}

type framePlayer struct {
	*scream.Engine
}

// New builds a fresh Scream Tracker 3 frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{scream.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
