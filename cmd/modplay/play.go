package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"

	"github.com/trackerplay/oxdz"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/period"
)

var (
	white   = color.New(color.FgWhite).SprintfFunc()
	cyan    = color.New(color.FgCyan).SprintfFunc()
	magenta = color.New(color.FgMagenta).SprintfFunc()
	yellow  = color.New(color.FgYellow).SprintfFunc()
	blue    = color.New(color.FgHiBlue).SprintFunc()
	green   = color.New(color.FgGreen).SprintfFunc()
)

const patternRowsBefore = 4
const patternRowsAfter = 4

// noteNames are the twelve semitone names used to render a pattern event's
// note column, indexed by (note-period.NoteMin)%12.
var noteNames = []string{
	"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-",
}

// AudioPlayer drives an *oxdz.Oxdz through a PortAudio output stream and
// renders a scrolling pattern display. mu serializes access to o between
// the PortAudio callback goroutine (which advances playback) and the main
// goroutine (which only reads position/module data for the display).
type AudioPlayer struct {
	o  *oxdz.Oxdz
	mu sync.Mutex

	stream *portaudio.Stream
	paused bool

	selectedChannel int
	soloChannel     int
	muted           []bool
	lastOrder       int
	lastRow         int
}

func play(o *oxdz.Oxdz) {
	ap := &AudioPlayer{
		o:           o,
		soloChannel: -1,
		muted:       make([]bool, o.ModuleInfo().Channels),
		lastOrder:   -1,
		lastRow:     -1,
	}

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "modplay:", err)
		return
	}
	defer portaudio.Terminate()

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(*flagHz), portaudio.FramesPerBufferUnspecified, ap.streamCallback)
	if err != nil {
		fmt.Fprintln(os.Stderr, "modplay:", err)
		return
	}
	ap.stream = stream
	defer stream.Close()

	if err := stream.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "modplay:", err)
		return
	}
	defer stream.Stop()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	done := make(chan struct{})
	doneOnce := sync.OnceFunc(func() { close(done) })
	go func() {
		<-sigch
		doneOnce()
	}()

	channels := o.ModuleInfo().Channels
	go func() {
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			switch key.Code {
			case keys.CtrlC, keys.Escape:
				doneOnce()
				return true, nil
			case keys.Left:
				ap.selectedChannel = max(ap.selectedChannel-1, 0)
			case keys.Right:
				ap.selectedChannel = min(ap.selectedChannel+1, channels-1)
			case keys.Space:
				ap.togglePause()
			case keys.RuneKey:
				if len(key.Runes) > 0 {
					switch key.Runes[0] {
					case 'q':
						ap.toggleMuteSelected()
					case 's':
						ap.toggleSolo()
					}
				}
			}
			return false, nil
		})
	}()

	if *flagNoUI {
		<-done
		return
	}

	info := o.ModuleInfo()
	fmt.Print(hideCursor)
	defer fmt.Print(showCursor)
	fmt.Println(info.Title)

	for {
		select {
		case <-done:
			return
		default:
		}

		fi := ap.frameInfo()
		if fi.Finished {
			return
		}
		if fi.Pos != ap.lastOrder || fi.Row != ap.lastRow {
			ap.render(fi)
			ap.lastOrder, ap.lastRow = fi.Pos, fi.Row
		}
	}
}

// streamCallback is invoked by PortAudio on its own realtime thread to
// pull the next block of interleaved stereo samples.
func (ap *AudioPlayer) streamCallback(out []int16) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.paused {
		clear(out)
		return
	}
	n := ap.o.FillBuffer(out, -1)
	clear(out[n:])
}

func (ap *AudioPlayer) frameInfo() oxdz.FrameInfo {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.o.FrameInfo()
}

func (ap *AudioPlayer) togglePause() {
	ap.mu.Lock()
	ap.paused = !ap.paused
	ap.mu.Unlock()
}

func (ap *AudioPlayer) toggleMuteSelected() {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	c := ap.selectedChannel
	ap.muted[c] = !ap.muted[c]
	ap.o.Mute(c, ap.muted[c])
}

func (ap *AudioPlayer) toggleSolo() {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.soloChannel == ap.selectedChannel {
		ap.soloChannel = -1
		for c := range ap.muted {
			ap.o.Mute(c, ap.muted[c])
		}
		return
	}
	ap.soloChannel = ap.selectedChannel
	for c := range ap.muted {
		ap.o.Mute(c, c != ap.selectedChannel)
	}
}

// render draws the preceding/current/upcoming pattern rows around fi's
// position, then moves the cursor back to the top of that block.
func (ap *AudioPlayer) render(fi oxdz.FrameInfo) {
	info := ap.o.ModuleInfo()
	fmt.Printf("%s %02X/%02X %s %02d %s %3d\n",
		blue("pos"), fi.Pos, info.NumOrders,
		blue("speed"), fi.Speed,
		blue("bpm"), fi.Bpm)

	ap.renderChannelHeaders()

	for i := -patternRowsBefore; i <= patternRowsAfter; i++ {
		ap.renderRow(fi.Pos, fi.Row+i, i == 0)
	}

	fmt.Print(escape + fmt.Sprintf("%dF", patternRowsBefore+patternRowsAfter+3))
}

// renderChannelHeaders marks the keyboard-selected channel and any muted
// channel above the scrolling pattern rows.
func (ap *AudioPlayer) renderChannelHeaders() {
	channels := ap.o.ModuleInfo().Channels
	if channels > 4 {
		channels = 4
	}
	for c := 0; c < channels; c++ {
		label := fmt.Sprintf("%2d", c+1)
		if ap.muted[c] {
			label += "x"
		} else {
			label += " "
		}
		if c == ap.selectedChannel {
			fmt.Print(green("%s", label), "   ")
		} else {
			fmt.Printf("%s   ", label)
		}
	}
	fmt.Println()
}

func (ap *AudioPlayer) renderRow(pos, row int, current bool) {
	mod := ap.o.Module()
	orders := mod.Data.Orders()
	if pos < 0 || pos >= len(orders) || row < 0 {
		fmt.Println()
		return
	}
	pat := int(orders[pos])
	if row >= mod.Data.PatternLen(pat) {
		fmt.Println()
		return
	}

	if current {
		fmt.Print(">>> ")
	} else {
		fmt.Print("    ")
	}

	channels := mod.Channels
	maxChannels := channels
	if maxChannels > 4 {
		maxChannels = 4
	}
	for c := 0; c < channels; c++ {
		if c >= maxChannels {
			fmt.Print(" ...")
			break
		}
		ev := mod.Data.EventAt(pat, row, c)
		fmt.Print(white("%s", noteString(ev.Note)), " ", cyan("%2X", ev.Instrument), " ", magenta("%X", ev.Effect), yellow("%02X", ev.Param))
		if c < maxChannels-1 {
			fmt.Print("|")
		}
	}

	if current {
		fmt.Print(" <<<")
	}
	fmt.Println()
}

func noteString(note int) string {
	switch {
	case note == 0:
		return "..."
	case note == module.NoteKeyOff:
		return "=="
	case note < period.NoteMin:
		return "???"
	default:
		n := note - period.NoteMin
		return fmt.Sprintf("%s%d", noteNames[n%12], n/12)
	}
}
