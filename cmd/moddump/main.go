// moddump loads a tracker module and prints its static structure: format,
// creator string, channel count, instrument list and pattern order list.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trackerplay/oxdz"
	"github.com/trackerplay/oxdz/module"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("moddump: ")

	if len(os.Args) <= 1 {
		log.Fatal("Missing song filename")
	}

	songF, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	o, err := oxdz.New(songF, 44100, "")
	if err != nil {
		log.Fatal(err)
	}

	info := o.ModuleInfo()
	fmt.Printf("Title:      %s\n", info.Title)
	fmt.Printf("Format:     %s\n", info.Format)
	fmt.Printf("Creator:    %s\n", info.Creator)
	fmt.Printf("Channels:   %d\n", info.Channels)
	fmt.Printf("Patterns:   %d\n", info.NumPatterns)
	fmt.Printf("Orders:     %d\n", info.NumOrders)
	fmt.Printf("Length:     %.1fs\n", info.TotalTimeMs/1000)

	dumpInstruments(o.Module())
	dumpOrders(o.Module())
}

func dumpInstruments(mod *module.Module) {
	fmt.Println("\nInstruments:")
	for i, s := range mod.Samples {
		loop := ""
		if s.HasLoop {
			loop = fmt.Sprintf(" loop=[%d,%d]", s.LoopStart, s.LoopEnd)
		}
		fmt.Printf("  %3d  %-22s %6d frames @ %dHz%s\n", i+1, s.Name, s.Frames, s.Rate, loop)
	}
}

func dumpOrders(mod *module.Module) {
	fmt.Println("\nOrders:")
	orders := mod.Data.Orders()
	for i, o := range orders {
		if i%16 == 0 {
			if i != 0 {
				fmt.Println()
			}
			fmt.Printf("  %3d:", i)
		}
		fmt.Printf(" %02X", o)
	}
	fmt.Println()
}
