// modwav renders a tracker module to a WAVE file, looping at most once
// before stopping.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trackerplay/oxdz"
	"github.com/trackerplay/oxdz/cmd/modwav/wav"
)

const outputHz = 44100

func main() {
	log.SetFlags(0)
	log.SetPrefix("modwav: ")

	wavOut := flag.String("wav", "", "output to a WAVE file")
	flag.Parse()
	if len(flag.Args()) == 0 {
		log.Fatal("Missing MOD filename")
	}
	if *wavOut == "" {
		log.Fatal("No -wav option provided")
	}

	modF, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		log.Fatal(err)
	}

	o, err := oxdz.New(modF, outputHz, "")
	if err != nil {
		log.Fatal(err)
	}

	wavF, err := os.Create(*wavOut)
	if err != nil {
		log.Fatal(err)
	}
	defer wavF.Close()

	wavW, err := wav.NewWriter(wavF, outputHz)
	if err != nil {
		log.Fatal(err)
	}
	defer wavW.Finish()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	stopped := make(chan struct{})
	go func() {
		<-sigch
		close(stopped)
	}()

	audioOut := make([]int16, 4096)
	lastOrder := -1

	for {
		select {
		case <-stopped:
			return
		default:
		}

		n := o.FillBuffer(audioOut, 0)
		if n == 0 {
			break
		}
		if err := wavW.WriteFrame(audioOut[:n]); err != nil {
			log.Fatal(err)
		}

		if pos := o.FrameInfo().Pos; pos != lastOrder {
			fmt.Printf("%d/%d\n", pos+1, o.ModuleInfo().NumOrders)
			lastOrder = pos
		}
	}
}
