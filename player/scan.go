package player

import (
	"github.com/trackerplay/oxdz/mixer"
	"github.com/trackerplay/oxdz/module"
)

// maxScanTicks bounds ScanPositions against a malformed module whose
// frame player never sets Finished or advances LoopCount: without a
// cap a position that never reaches an end-marker or restart would scan
// forever. The bound is generous relative to any real song (64 rows per
// pattern, speed 6, a few hundred orders).
const maxScanTicks = 1 << 20

// OrderTiming records when order index i is first reached during a scan,
// plus enough state (State, Snap) to jump straight back there: Seek
// restores State into the harness's PlaybackState and Snap into the live
// FramePlayer rather than replaying the whole song from the top.
type OrderTiming struct {
	FirstMs float64
	Visited bool
	State   module.PlaybackState
	Snap    Snapshot
}

// ScanResult is the outcome of a silent pass through a module: the total
// duration up to the point playback wraps past the end of the order list
// (LoopCount advances) or reaches a real end, and per-order first-visit
// timestamps a seek UI can use to jump straight to an order. A backward
// position jump that never wraps the order list does not end the scan;
// it then stops at maxScanTicks.
type ScanResult struct {
	TotalTimeMs float64
	Orders      []OrderTiming
	Looped      bool
}

// ScanPositions fast-forwards fp through mod without ever touching a
// mixer's audio buffer, to precompute ModuleInfo.TotalTimeMs cheaply.
// fp must be a freshly constructed player (via player.New) that hasn't
// been Start-ed yet, since scanning runs the player's own tick logic
// against a throwaway PlaybackState and virtual-channel layer rather
// than the one a caller is actually listening through.
func ScanPositions(mod *module.Module, fp FramePlayer) ScanResult {
	// The sample rate is irrelevant here since a scan never calls Mix;
	// any value satisfies Mixer's constructor.
	const scanRate = 44100
	mx := mixer.New(mod.Channels, scanRate)
	mx.SetSamples(mod.Samples)
	vc := mixer.NewVirtualChannels(mx, mod.Channels)
	fp.Start(mod, vc)

	orders := mod.Data.Orders()
	res := ScanResult{Orders: make([]OrderTiming, len(orders))}

	st := module.PlaybackState{Speed: mod.InitialSpeed, Tempo: mod.InitialTempo}
	if st.Speed == 0 {
		st.Speed = 6
	}
	if st.Tempo == 0 {
		st.Tempo = 125
	}

	for i := 0; i < maxScanTicks && !st.Finished && st.LoopCount == 0; i++ {
		if st.Pos >= 0 && st.Pos < len(orders) && !res.Orders[st.Pos].Visited {
			res.Orders[st.Pos] = OrderTiming{FirstMs: st.TimeMs, Visited: true, State: st, Snap: fp.Snapshot()}
		}
		fp.PlayTick(mod, &st)
	}

	res.TotalTimeMs = st.TimeMs
	res.Looped = st.LoopCount > 0
	return res
}
