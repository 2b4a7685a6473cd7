package player_test

import (
	"testing"

	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/player"
	_ "github.com/trackerplay/oxdz/player/protracker"
)

// twoPatternMOD builds a minimal 4-channel module whose two single-row
// patterns play back to back: pattern 0 triggers a note (so order 1 is
// only reachable by falling through, the way ScanPositions is expected to
// discover it), pattern 1 carries no events. Falling off the end of the
// two-order list wraps back to order 0 and advances LoopCount, which is
// what lets ScanPositions terminate.
func twoPatternMOD() *module.Module {
	g := module.NewGridData("scan fixture", 4)

	p0 := g.AddPattern(1)
	g.SetEventAt(p0, 0, 0, module.Event{Note: 60, Instrument: 1, Volume: module.NoNoteVolume})

	p1 := g.AddPattern(1)

	g.SetOrders([]byte{byte(p0), byte(p1)})
	g.NormalizeOrders()

	return &module.Module{
		Format:       module.FormatMOD,
		Channels:     4,
		InitialSpeed: 6,
		InitialTempo: 125,
		Samples: []module.Sample{{
			Number: 1, Frames: 64, Rate: 8363, Type: module.Sample8,
		}},
		Data: g,
	}
}

func TestScanPositionsVisitsBothOrders(t *testing.T) {
	mod := twoPatternMOD()

	fp, err := player.New("pt2")
	if err != nil {
		t.Fatalf("player.New(pt2): %v", err)
	}

	res := player.ScanPositions(mod, fp)

	if len(res.Orders) != 2 {
		t.Fatalf("got %d order slots, want 2", len(res.Orders))
	}
	if !res.Orders[0].Visited || !res.Orders[1].Visited {
		t.Fatalf("expected both orders visited, got %+v", res.Orders)
	}
	if res.Orders[0].FirstMs != 0 {
		t.Errorf("order 0 should be reached at t=0, got %v", res.Orders[0].FirstMs)
	}
	if res.Orders[1].FirstMs <= res.Orders[0].FirstMs {
		t.Errorf("order 1 should be reached strictly after order 0: %v vs %v",
			res.Orders[1].FirstMs, res.Orders[0].FirstMs)
	}
	if !res.Looped {
		t.Error("expected falling off the order list to register as a loop")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	mod := twoPatternMOD()

	fp, err := player.New("pt2")
	if err != nil {
		t.Fatalf("player.New(pt2): %v", err)
	}
	res := player.ScanPositions(mod, fp)
	snapAtOrder1 := res.Orders[1].Snap

	// A fresh engine instance must accept order 1's snapshot without
	// replaying order 0 itself, and still produce a snapshot of its own.
	fp2, err := player.New("pt2")
	if err != nil {
		t.Fatalf("player.New(pt2): %v", err)
	}
	fp2.Restore(snapAtOrder1)

	if fp2.Snapshot() == nil {
		t.Fatal("Snapshot() after Restore() should not be nil")
	}
}
