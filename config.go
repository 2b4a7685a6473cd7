package oxdz

import "github.com/trackerplay/oxdz/mixer"

// Config holds the small set of string-keyed knobs spec §6 exposes to
// consumers: stereo pan separation and sample interpolation quality.
// Out-of-range values are clamped or normalized when applied (see apply);
// DefaultConfig returns the documented defaults.
type Config struct {
	// Pan is the stereo separation percentage, 0 (mono) to 100 (full hard
	// panning). Default 70, matching the classic tracker "not quite 100%"
	// feel most players ship with.
	Pan int

	// Interpolation selects the resampling method: "nearest" or "linear".
	// Default "linear".
	Interpolation string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{Pan: 70, Interpolation: "linear"}
}

// apply pushes c's values onto mx, clamping/normalizing anything out of
// range rather than erroring, since Config is meant to be cheaply
// adjustable at any time (spec §6 treats it as live knobs, not a one-shot
// load option).
func (c Config) apply(mx *mixer.Mixer) {
	pan := c.Pan
	if pan < 0 {
		pan = 0
	}
	if pan > 100 {
		pan = 100
	}
	mx.SetPanSeparation(pan)
	mx.SetInterpolation(mixer.ParseInterpolation(c.Interpolation))
}
