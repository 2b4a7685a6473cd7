package mk

import "testing"

func TestChannelsFromDigitMagicCHNForm(t *testing.T) {
	chn, ok := channelsFromDigitMagic("4CHN")
	if !ok || chn != 4 {
		t.Errorf("channelsFromDigitMagic(4CHN) = (%d, %v), want (4, true)", chn, ok)
	}
}

func TestChannelsFromDigitMagicCHForm(t *testing.T) {
	chn, ok := channelsFromDigitMagic("20CH")
	if !ok || chn != 20 {
		t.Errorf("channelsFromDigitMagic(20CH) = (%d, %v), want (20, true)", chn, ok)
	}
}

func TestChannelsFromDigitMagicRejectsNonDigitMagic(t *testing.T) {
	if _, ok := channelsFromDigitMagic("M.K."); ok {
		t.Error("channelsFromDigitMagic(M.K.) should not match the digit-channel forms")
	}
}

func TestGetTrackerIDOddDigitChannelsIsTakeTracker(t *testing.T) {
	d := fpData{magic: "21CH", numPatterns: 0}
	if got := getTrackerID(d); got != TakeTracker {
		t.Errorf("getTrackerID(21CH) = %v, want TakeTracker", got)
	}
}

func TestGetTrackerIDEvenDigitChannelsIsFastTracker2(t *testing.T) {
	d := fpData{magic: "4CHN", numPatterns: 0}
	if got := getTrackerID(d); got != FastTracker2 {
		t.Errorf("getTrackerID(4CHN) = %v, want FastTracker2", got)
	}
}

// emptyCells is a cells func with no pattern data at all, for fixtures that
// only exercise the instrument/restart heuristics.
func emptyCells(pat, row, chn int) rawEvent { return rawEvent{} }

func TestIdentifyPlainProtracker(t *testing.T) {
	d := fpData{
		magic:       "M.K.",
		restart:     2, // restart == numPatterns triggers the Soundtracker-then-refine path
		numPatterns: 2,
		channels:    4,
		instruments: []fpInstrument{
			{name: "Sample 1", volume: 64, size: 100, replen: 1},
		},
		cells: emptyCells,
	}
	if got := Identify(d); got != Protracker {
		t.Errorf("Identify(plain M.K. module) = %v, want Protracker", got)
	}
}

func TestIdentifyOutOfRangePeriodsWithST3RestartIsScreamtracker(t *testing.T) {
	d := fpData{
		magic:       "XXXX", // not in magicTable and not a digit-channel form
		restart:     0x7f,
		numPatterns: 1,
		channels:    4,
		instruments: nil,
		cells: func(pat, row, chn int) rawEvent {
			if row == 0 && chn == 0 {
				return rawEvent{period: 1000} // out of the 109..907 Amiga range
			}
			return rawEvent{}
		},
	}
	if got := Identify(d); got != Screamtracker3 {
		t.Errorf("Identify(out-of-range periods, restart=0x7f) = %v, want Screamtracker3", got)
	}
}

func TestTrackerIDPlayerIDMapping(t *testing.T) {
	cases := map[TrackerID]string{
		Protracker:     "pt2",
		Noisetracker:   "nt",
		Screamtracker3: "st3",
		FastTracker:    "ft",
		TakeTracker:    "ft2",
		ConvertedST:    "nt",
	}
	for id, want := range cases {
		if got := id.PlayerID(); got != want {
			t.Errorf("%v.PlayerID() = %q, want %q", id, got, want)
		}
	}
}

func TestTrackerIDStringKnownAndUnknown(t *testing.T) {
	if got := Protracker.String(); got != "Protracker" {
		t.Errorf("Protracker.String() = %q, want %q", got, "Protracker")
	}
	if got := TrackerID(999).String(); got != "unknown tracker" {
		t.Errorf("TrackerID(999).String() = %q, want %q", got, "unknown tracker")
	}
}
