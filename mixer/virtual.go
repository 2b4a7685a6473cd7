package mixer

// VirtualChannels maps N logical channels onto a (possibly larger) pool of
// M physical voices in mx, per spec §4.4. Frame players address logical
// channels; VirtualChannels resolves each to a physical voice on demand
// and reclaims voices that fall silent.
type VirtualChannels struct {
	mx       *Mixer
	voiceFor []int // logical channel -> physical voice index, -1 if unallocated
	muted    []bool
	numTracks int
}

// NewVirtualChannels builds a mapping for numLogical logical channels onto
// mx's physical voice pool.
func NewVirtualChannels(mx *Mixer, numLogical int) *VirtualChannels {
	vc := &VirtualChannels{
		mx:        mx,
		voiceFor:  make([]int, numLogical),
		muted:     make([]bool, numLogical),
		numTracks: numLogical,
	}
	for i := range vc.voiceFor {
		vc.voiceFor[i] = -1
	}
	return vc
}

// AllocVoice resolves the physical voice backing logical channel chn,
// allocating one if necessary: first FindFreeVoice, falling back to
// stealing the lowest-volume background voice (LRU-by-volume).
func (vc *VirtualChannels) AllocVoice(chn int) int {
	if chn < 0 || chn >= len(vc.voiceFor) {
		return -1
	}
	if vc.voiceFor[chn] != -1 {
		return vc.voiceFor[chn]
	}

	v := vc.mx.FindFreeVoice()
	if v == -1 {
		v = vc.mx.FindLowestVoice(vc.numTracks)
	}
	if v == -1 {
		return -1
	}

	vc.mx.SetVoice(v, chn)
	vc.voiceFor[chn] = v
	vc.mx.SetMute(v, vc.muted[chn])
	return v
}

// Mixer exposes the underlying Mixer so frame players can reach the
// lower-level per-voice setters (SetPeriod, SetPatch, ...) that
// VirtualChannels itself has no opinion about.
func (vc *VirtualChannels) Mixer() *Mixer { return vc.mx }

// Voice returns the currently allocated physical voice for chn, or -1 if
// none is allocated.
func (vc *VirtualChannels) Voice(chn int) int {
	if chn < 0 || chn >= len(vc.voiceFor) {
		return -1
	}
	return vc.voiceFor[chn]
}

// Release frees chn's physical voice back to the pool.
func (vc *VirtualChannels) Release(chn int) {
	if chn < 0 || chn >= len(vc.voiceFor) {
		return
	}
	if v := vc.voiceFor[chn]; v != -1 {
		vc.mx.ResetVoice(v)
		vc.voiceFor[chn] = -1
	}
}

// SetMute forces volume to 0 at mix time for chn's voice without touching
// its playback position.
func (vc *VirtualChannels) SetMute(chn int, mute bool) {
	if chn < 0 || chn >= len(vc.voiceFor) {
		return
	}
	vc.muted[chn] = mute
	if v := vc.voiceFor[chn]; v != -1 {
		vc.mx.SetMute(v, mute)
	}
}

// ReclaimIfSilent auto-reclaims chn's voice when its volume has fallen to
// zero, per spec §4.4 ("a zero volume on a virtual channel auto-reclaims
// the voice").
func (vc *VirtualChannels) ReclaimIfSilent(chn int, volume int) {
	if volume == 0 {
		vc.Release(chn)
	}
}
