package mixer

// Voice is one mixer slot capable of playing one sample at a time. The
// pool is created once at mixer init and voices are reused for the life
// of the player (spec §3).
type Voice struct {
	rootChannel int // the logical channel this voice currently renders for, -1 if unbound
	mapped      bool

	sampleIdx int // index into the mixer's sample slice, -1 if none
	pos       float64
	end       float64 // current stop/loop boundary, in sample frames

	period float64 // target period driving playback step
	note   float64

	volume int // 0..1024
	pan    int // -128..127

	loopEnabled bool
	loopStart   float64
	loopEnd     float64
	bidi        bool
	dir         float64 // +1 or -1, for bidirectional loops

	muted bool
}

func newVoice() Voice {
	return Voice{rootChannel: -1, sampleIdx: -1, dir: 1}
}

// Reset unbinds and silences the voice.
func (v *Voice) Reset() {
	*v = newVoice()
}
