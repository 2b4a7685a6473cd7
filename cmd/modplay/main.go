package main

import (
	"flag"
	"log"
	"os"

	"github.com/trackerplay/oxdz"
)

var (
	flagHz       = flag.Int("hz", 44100, "output hz")
	flagStartOrd = flag.Int("start", 0, "starting order in the song, clamped to song max")
	flagNoUI     = flag.Bool("noui", false, "disable the pattern display, just play audio")
	flagPlayerID = flag.String("player", "", "force a specific frame player dialect (default: whatever the loader picks)")
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("modplay: ")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("Missing song filename")
	}

	modF, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	o, err := oxdz.New(modF, *flagHz, *flagPlayerID)
	if err != nil {
		log.Fatal(err)
	}

	if *flagStartOrd > 0 {
		start := *flagStartOrd
		if last := o.ModuleInfo().NumOrders - 1; start > last {
			start = last
		}
		o.Seek(start)
	}

	play(o)
}
