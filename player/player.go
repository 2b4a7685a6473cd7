// Package player defines the common frame-player contract every tracker
// dialect implements, plus the registry the harness uses to look one up by
// the PlayerID a loader attached to a Module, per spec §4.7 and §9.
package player

import (
	"fmt"

	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
)

// FramePlayer is the finite state machine a tracker dialect implements:
// one call to Start per loaded Module, then one PlayTick per output frame
// (tick), with the harness threading the same *module.PlaybackState value
// through every call. The Amiga-family and Scream Tracker players keep no
// pointer into the Module across calls; the FastTracker 2 player keeps a
// pointer to each channel's current XM instrument, which it only reads.
// Everything else a player needs to remember about where it is lives in
// its own channel state plus the PlaybackState the harness owns.
type FramePlayer interface {
	// Name is a human-readable identifier, e.g. "Protracker".
	Name() string

	// Start resets all per-channel state for a freshly loaded module and
	// binds it to the virtual channel layer it will drive.
	Start(mod *module.Module, vc *mixer.VirtualChannels)

	// PlayTick advances playback by exactly one tick: on the first tick of
	// a row it decodes the row's events (triggering notes, applying
	// once-per-row effects), on the row's remaining ticks it applies per-tick effects
	// (slides, vibrato, tremolo, arpeggio), and it updates st in place
	// (Row/Pos/Frame/Speed/Tempo/Finished/LoopCount).
	PlayTick(mod *module.Module, st *module.PlaybackState)

	// Mute controls whether logical channel chn is audible.
	Mute(chn int, muted bool)

	// Snapshot returns a deep copy of the engine's per-channel effect
	// memory (portamento targets, vibrato phase, volume, pattern-loop
	// counters, ...), independent of the module.PlaybackState the harness
	// owns. Restore rewinds the engine to a previously captured Snapshot,
	// for implementing seek: the harness restores the PlaybackState it
	// recorded at the target order, then restores the engine state that
	// was current at that point so effect memory survives the jump exactly
	// as if playback had never skipped.
	Snapshot() Snapshot

	// Restore rewinds the engine's per-channel state to snap, which must
	// have come from a prior Snapshot call on this same FramePlayer
	// instance (or one built by the same factory for the same Module).
	Restore(snap Snapshot)
}

// Snapshot is an opaque deep copy of one FramePlayer's internal state.
// Callers only ever pass a Snapshot back into the FramePlayer that
// produced it.
type Snapshot any

// Factory builds a fresh FramePlayer instance; each Module gets its own so
// that replaying a second module never observes state left over from a
// previous one.
type Factory func() FramePlayer

var registry = map[string]Factory{}

// Register associates a PlayerID (as loaders set in Module.PlayerID) with
// a FramePlayer factory. Dialect packages call this from an init().
func Register(id string, f Factory) {
	registry[id] = f
}

// New builds the FramePlayer registered for id, or an error if no dialect
// package registered that id.
func New(id string) (FramePlayer, error) {
	f, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("player: no frame player registered for %q", id)
	}
	return f(), nil
}

// IDs returns every registered PlayerID, for diagnostics and tests.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}
