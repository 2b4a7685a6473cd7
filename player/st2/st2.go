// Package st2 registers the Scream Tracker 2 (STM) frame player: the
// scream engine without panning or the amiga-limits/fast-volume-slide
// quirks, per spec §4.7.8.
package st2

import (
	"github.com/trackerplay/oxdz/player"
	"github.com/trackerplay/oxdz/player/scream"
)

func init() {
	player.Register("st2", New)
}

var dialect = scream.Dialect{
	Name:       "Scream Tracker 2",
	HasPanning: false,
}

type framePlayer struct {
	*scream.Engine
}

// New builds a fresh Scream Tracker 2 frame player, per player.Factory.
func New() player.FramePlayer {
	return &framePlayer{scream.New(dialect)}
}

var _ player.FramePlayer = (*framePlayer)(nil)
