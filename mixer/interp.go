package mixer

// Interpolation selects the resampling method used when a voice's playback
// rate doesn't match the output rate.
type Interpolation int

const (
	Nearest Interpolation = iota
	Linear
)

// ParseInterpolation maps a config string ("nearest"/"linear") to an
// Interpolation, defaulting to Linear for anything else (spec §6 default).
func ParseInterpolation(s string) Interpolation {
	if s == "nearest" {
		return Nearest
	}
	return Linear
}

const interpShift = 16

// tap4 is a 4-tap window of sample values, already normalized into the
// 16-bit domain, centered so that tap[1] is the value at the integer part
// of the current position and tap[2] is the next frame. tap[0]/tap[3] are
// carried for interpolators with a wider kernel than linear/nearest need.
type tap4 [4]int32

// interpolate dispatches on kind. renderVoice calls it once per output
// sample, so the kind check runs per sample, not once per voice per frame.
func interpolate(kind Interpolation, t tap4, frac uint32) int32 {
	if kind == Nearest {
		return nearestInterp(t)
	}
	return linearInterp(t, frac)
}

// nearestInterp returns tap[1], already scaled to the 16-bit domain.
func nearestInterp(t tap4) int32 {
	return t[1]
}

// linearInterp implements l1 + ((frac>>1)*(i2-i1))>>(SHIFT-1), producing a
// monotonic interpolation between tap[1] and tap[2] across the 16-bit
// fraction frac.
func linearInterp(t tap4, frac uint32) int32 {
	l1, i2 := int64(t[1]), int64(t[2])
	f := int64(frac >> 1)
	return int32(l1 + (f*(i2-l1))>>(interpShift-1))
}
