package mk

// TrackerID is the result of fingerprinting an M.K.-family module: which
// tracker most likely produced it, which in turn selects the frame player
// and creator string. Ported from the magic-table fingerprint routine in
// libxmp (via the original oxdz implementation), per spec §4.6.
type TrackerID int

const (
	Unknown TrackerID = iota
	Protracker
	Noisetracker
	Soundtracker
	Screamtracker3
	FastTracker
	FastTracker2
	Octalyser
	TakeTracker
	DigitalTracker
	ModsGrave
	FlexTrax
	OpenMPT
	Converted
	ConvertedST
	UnknownOrConverted
	ProtrackerClone
)

func (t TrackerID) String() string {
	switch t {
	case Protracker:
		return "Protracker"
	case Noisetracker:
		return "Noisetracker"
	case Soundtracker:
		return "Soundtracker"
	case Screamtracker3:
		return "Scream Tracker 3"
	case FastTracker:
		return "Fast Tracker"
	case FastTracker2:
		return "Fast Tracker"
	case Octalyser:
		return "Octalyser"
	case TakeTracker:
		return "TakeTracker"
	case DigitalTracker:
		return "Digital Tracker"
	case ModsGrave:
		return "Mod's Grave"
	case FlexTrax:
		return "FlexTrax"
	case OpenMPT:
		return "OpenMPT"
	case Converted:
		return "Converted"
	case ConvertedST:
		return "Converted 15-ins"
	case UnknownOrConverted:
		return "Unknown tracker"
	case ProtrackerClone:
		return "Protracker clone"
	default:
		return "unknown tracker"
	}
}

// PlayerID returns the frame player name this tracker id should be
// dispatched to, before the chn>4/chn>8 sanity override applied by the
// loader.
func (t TrackerID) PlayerID() string {
	switch t {
	case Noisetracker:
		return "nt"
	case Screamtracker3:
		return "st3"
	case FastTracker, FastTracker2, Octalyser:
		return "ft"
	case TakeTracker:
		return "ft2"
	case ConvertedST:
		return "nt"
	default:
		return "pt2"
	}
}

// rawEvent is the un-decoded per-cell view the fingerprinter scans: a raw
// 12-bit Amiga period and an effect command/parameter, taken directly from
// the packed 4-byte pattern cell. This is intentionally distinct from
// module.Event (whose Note field is already mapped to a canonical note
// index) because the fingerprint's range checks (109..907) operate on
// period values, not note indices.
type rawEvent struct {
	period int
	ins    int
	cmd    int
	cmdlo  int
}

// fpInstrument is the subset of instrument fields the fingerprinter reads.
type fpInstrument struct {
	name   string
	volume int
	size   int
	replen int
}

// fpData bundles everything the fingerprinter needs: the magic, the raw
// pattern cells and the instrument table.
type fpData struct {
	magic       string
	restart     int
	numPatterns int
	channels    int
	instruments []fpInstrument
	cells       func(pat, row, chn int) rawEvent // pat in [0,numPatterns), row in [0,64), chn in [0,4)
}

type magicEntry struct {
	magic string
	flag  bool
	id    TrackerID
	ch    int
}

var magicTable = []magicEntry{
	{"M.K.", false, Protracker, 4},
	{"M!K!", true, Protracker, 4},
	{"M&K!", true, Noisetracker, 4},
	{"N.T.", true, Noisetracker, 4},
	{"6CHN", false, FastTracker, 6},
	{"8CHN", false, FastTracker, 8},
	{"CD61", true, Octalyser, 6},
	{"CD81", true, Octalyser, 8},
	{"TDZ4", true, TakeTracker, 4},
	{"FA04", true, DigitalTracker, 4},
	{"FA06", true, DigitalTracker, 6},
	{"FA08", true, DigitalTracker, 8},
	{"NSMS", true, Unknown, 4},
}

var standardPeriods = [36]int{
	856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
	428, 404, 381, 360, 339, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
}

// Identify runs the full deterministic fingerprint algorithm of spec §4.6
// against d and returns the tracker of origin.
func Identify(d fpData) TrackerID {
	id := getTrackerID(d)
	outOfRange := false

	for p := 0; p < d.numPatterns; p++ {
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				e := d.cells(p, r, c)
				period := e.period & 0xfff
				cmd := e.cmd & 0x0f

				if period != 0 && (period < 109 || period > 907) {
					outOfRange = true
				}

				if id == Noisetracker {
					if (cmd > 0x06 && cmd < 0x0a) || (cmd == 0x0e && e.cmdlo > 1) {
						id = Unknown
					}
				}
			}
		}

		switch id {
		case Noisetracker:
			if !onlyNTCmds(d) || !standardNotes(d) {
				id = Unknown
			}
		case Soundtracker:
			if !standardNotes(d) {
				id = Unknown
			}
		case Protracker:
			if !standardOctaves(d) {
				id = Unknown
			}
		}

		if outOfRange && id == Unknown && d.restart == 0x7f {
			id = Screamtracker3
		}
	}

	return id
}

func getTrackerID(d fpData) TrackerID {
	var id TrackerID = Unknown
	detected := false
	chn := 0

	for _, m := range magicTable {
		if d.magic == m.magic {
			id = m.id
			chn = m.ch
			detected = m.flag
			break
		}
	}
	if detected {
		return id
	}

	if chn == 0 {
		if n, ok := channelsFromDigitMagic(d.magic); ok {
			chn = n
			if chn&1 != 0 {
				return TakeTracker
			}
			return FastTracker2
		}
		return Unknown
	}

	if hasLargeInstruments(d) {
		return OpenMPT
	}

	hasReplen0 := hasReplen0(d)
	hasSTInstruments := hasSTInstruments(d)
	emptyInsHasVolume := emptyInsHasVolume(d)

	switch {
	case d.restart == d.numPatterns:
		if chn == 4 {
			id = Soundtracker
		} else {
			id = Unknown
		}
	case d.restart == 0x78:
		if chn == 4 {
			return Noisetracker
		}
		return Unknown
	case d.restart < 0x7f:
		if chn == 4 && !emptyInsHasVolume {
			id = Noisetracker
		} else {
			id = Unknown
		}
	case d.restart == 0x7f:
		if chn == 4 {
			if hasReplen0 {
				return ProtrackerClone
			}
			return Unknown
		}
		return Screamtracker3
	case d.restart > 0x7f:
		return Unknown
	}

	if !hasReplen0 {
		if size1AndVolume0(d) {
			return Converted
		}

		if !hasSTInstruments {
			for _, ins := range d.instruments {
				if ins.size != 0 || ins.replen != 1 {
					continue
				}
				switch chn {
				case 4:
					if emptyInsHasVolume {
						return OpenMPT
					}
					return Noisetracker
				case 6, 8:
					return Octalyser
				default:
					return Unknown
				}
			}

			switch chn {
			case 4:
				id = Protracker
			case 6, 8:
				id = FastTracker
			default:
				id = Unknown
			}
		}
	} else {
		if !hasIns15to31(d) {
			return ConvertedST
		}
		if hasSTInstruments {
			return UnknownOrConverted
		} else if chn == 6 || chn == 8 {
			return FastTracker
		}
	}

	return id
}

func channelsFromDigitMagic(magic string) (int, bool) {
	if len(magic) != 4 {
		return 0, false
	}
	c0, c1 := magic[0], magic[1]
	if isDigit(c0) && isDigit(c1) && magic[2:] == "CH" {
		return int(c0-'0')*10 + int(c1-'0'), true
	}
	if isDigit(c0) && magic[1:] == "CHN" {
		return int(c0 - '0'), true
	}
	return 0, false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func standardOctaves(d fpData) bool {
	for p := 0; p < d.numPatterns; p++ {
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				period := d.cells(p, r, c).period & 0xfff
				if period != 0 && (period < 109 || period > 907) {
					return false
				}
			}
		}
	}
	return true
}

func standardNotes(d fpData) bool {
	for p := 0; p < d.numPatterns; p++ {
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				period := d.cells(p, r, c).period & 0xfff
				if period == 0 {
					continue
				}
				found := false
				for _, sp := range standardPeriods {
					if period == sp {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
		}
	}
	return true
}

func onlyNTCmds(d fpData) bool {
	for p := 0; p < d.numPatterns; p++ {
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				e := d.cells(p, r, c)
				cmd := e.cmd & 0x0f
				if (cmd > 0x06 && cmd < 0x0a) || (cmd == 0x0e && e.cmdlo > 1) {
					return false
				}
			}
		}
	}
	return true
}

func hasLargeInstruments(d fpData) bool {
	for _, ins := range d.instruments {
		if ins.size > 0x8000 {
			return true
		}
	}
	return false
}

func hasReplen0(d fpData) bool {
	for _, ins := range d.instruments {
		if ins.replen == 0 {
			return true
		}
	}
	return false
}

func emptyInsHasVolume(d fpData) bool {
	for _, ins := range d.instruments {
		if ins.size == 0 && ins.volume > 0 {
			return true
		}
	}
	return false
}

func size1AndVolume0(d fpData) bool {
	for _, ins := range d.instruments {
		if ins.size == 1 && ins.volume == 0 {
			return true
		}
	}
	return false
}

func hasSTInstruments(d fpData) bool {
	for _, ins := range d.instruments {
		n := ins.name
		if len(n) < 6 {
			return false
		}
		if n[0] != 's' && n[0] != 'S' {
			return false
		}
		if n[1] != 't' && n[1] != 'T' {
			return false
		}
		if n[2] != '-' || n[5] != ':' {
			return false
		}
		if !isDigit(n[3]) || !isDigit(n[4]) {
			return false
		}
	}
	return true
}

func hasIns15to31(d fpData) bool {
	for i := 15; i < len(d.instruments); i++ {
		if d.instruments[i].name != "" || d.instruments[i].size > 0 {
			return true
		}
	}
	return false
}
