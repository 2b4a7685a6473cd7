// Package module defines the read-mostly data model every loader produces
// and every frame player consumes: Module, Sample, the pattern/orders
// grid, and the playback-state value type the harness threads through
// each tick.
package module

// FormatID is the stable tag identifying which on-disk format a Module
// was loaded from.
type FormatID string

const (
	FormatMOD FormatID = "mod"
	FormatFEST FormatID = "fest"
	FormatST  FormatID = "st"
	FormatSTM FormatID = "stm"
	FormatS3M FormatID = "s3m"
	FormatXM  FormatID = "xm"
)

// Module is produced once by a loader and owned exclusively by it: its
// Data block and Samples are never mutated by a frame player, which is
// passed the Module by reference on every call. Only the FastTracker 2
// player keeps a pointer into it between ticks (to each channel's current
// XM instrument, read-only).
type Module struct {
	Format      FormatID
	Description string
	Creator     string
	Channels    int
	PlayerID    string

	GlobalVolume int
	InitialSpeed int
	InitialTempo int
	LinearFreq   bool // XM header flag bit 0

	Samples []Sample
	Data    *GridData
}

// Title is a convenience accessor mirroring GridData.Title() for
// callers that only have a *Module.
func (m *Module) Title() string {
	if m.Data == nil {
		return ""
	}
	return m.Data.title
}

// GridData is the common on-memory shape every loader decodes its
// patterns into: a dense row*channel grid per pattern, with a variable
// row count per pattern (64 for every Amiga-family and S3M format, a
// per-pattern value for XM). A single shape serves every format; the
// Module.Format tag and the concrete Instrument values distinguish
// dialect-specific behavior, per the tagged-variant design in spec §9.
type GridData struct {
	title    string
	channels int

	orders     []byte
	restartPos int

	// patterns[p] is a flattened row-major grid of length
	// patternRows[p] * channels.
	patterns    [][]Event
	patternRows []int

	instruments []Instrument

	// defaultPan holds a per-channel default pan (-1 if the format does
	// not specify one and the player should fall back to its own
	// hard-left/hard-right convention).
	defaultPan []int
}

// NewGridData builds an empty GridData for channels logical channels.
func NewGridData(title string, channels int) *GridData {
	return &GridData{title: title, channels: channels, restartPos: -1}
}

func (g *GridData) Title() string      { return g.title }
func (g *GridData) NumChannels() int   { return g.channels }
func (g *GridData) Orders() []byte     { return g.orders }
func (g *GridData) SetOrders(o []byte) { g.orders = o }
func (g *GridData) RestartPos() int    { return g.restartPos }
func (g *GridData) SetRestartPos(p int) { g.restartPos = p }
func (g *GridData) NumPatterns() int   { return len(g.patterns) }
func (g *GridData) Instruments() []Instrument { return g.instruments }
func (g *GridData) SetInstruments(ins []Instrument) { g.instruments = ins }
func (g *GridData) DefaultPan() []int { return g.defaultPan }
func (g *GridData) SetDefaultPan(p []int) { g.defaultPan = p }

// PatternLen returns the number of rows in pattern pat, or 0 if pat is
// out of range.
func (g *GridData) PatternLen(pat int) int {
	if pat < 0 || pat >= len(g.patternRows) {
		return 0
	}
	return g.patternRows[pat]
}

// AddPattern appends a pattern of the given row count, pre-sized and
// zeroed, and returns its index.
func (g *GridData) AddPattern(rows int) int {
	g.patterns = append(g.patterns, make([]Event, rows*g.channels))
	g.patternRows = append(g.patternRows, rows)
	return len(g.patterns) - 1
}

// EventAt returns the event at (pattern, row, channel), or the zero Event
// if any index is out of range — frame players never need to bounds-check
// before reading a cell.
func (g *GridData) EventAt(pat, row, chn int) Event {
	if pat < 0 || pat >= len(g.patterns) {
		return Event{}
	}
	rows := g.patternRows[pat]
	if row < 0 || row >= rows || chn < 0 || chn >= g.channels {
		return Event{}
	}
	return g.patterns[pat][row*g.channels+chn]
}

// SetEventAt writes the event at (pattern, row, channel). Out-of-range
// indices are silently ignored (loaders are expected to size patterns
// correctly; this guards against malformed input rather than panicking).
func (g *GridData) SetEventAt(pat, row, chn int, e Event) {
	if pat < 0 || pat >= len(g.patterns) {
		return
	}
	rows := g.patternRows[pat]
	if row < 0 || row >= rows || chn < 0 || chn >= g.channels {
		return
	}
	g.patterns[pat][row*g.channels+chn] = e
}

// NormalizeOrders clamps orders to [0, NumPatterns) in place, per the
// invariant in spec §8 that reading orders[0..len] yields only valid
// pattern indices. Sentinel order values (255 = end, 254 = skip for S3M)
// are left untouched; callers interpreting orders must check for them
// before treating a byte as a pattern index.
func (g *GridData) NormalizeOrders() {
	np := len(g.patterns)
	for i, o := range g.orders {
		if o == 0xFF || o == 0xFE {
			continue
		}
		if int(o) >= np && np > 0 {
			g.orders[i] = byte(np - 1)
		}
	}
}

// PlaybackState is owned by the harness and mutated only by the active
// frame player (spec §3). It is a plain value type: consumers copy it
// under their own mutex rather than sharing a pointer across goroutines.
type PlaybackState struct {
	Pos       int // position in the order list
	Row       int
	Frame     int // frame (tick) within the row
	Speed     int // ticks per row
	Tempo     int // BPM
	TimeMs    float64
	LoopCount int
	Finished  bool
}
