package player_test

import (
	"testing"

	"github.com/trackerplay/oxdz/player"
	_ "github.com/trackerplay/oxdz/player/fasttracker"
	_ "github.com/trackerplay/oxdz/player/noisetracker"
	_ "github.com/trackerplay/oxdz/player/soundtracker"
	_ "github.com/trackerplay/oxdz/player/st2"
	_ "github.com/trackerplay/oxdz/player/st3"
	_ "github.com/trackerplay/oxdz/player/ust"
)

func TestDialectsRegisterUnderExpectedIDs(t *testing.T) {
	names := map[string]string{
		"pt2":  "Protracker",
		"nt":   "Noisetracker",
		"dst2": "Soundtracker",
		"ust":  "Ultimate Soundtracker",
		"ft":   "FastTracker",
		"st2":  "Scream Tracker 2",
		"st3":  "Scream Tracker 3",
	}
	for id, wantName := range names {
		fp, err := player.New(id)
		if err != nil {
			t.Errorf("player.New(%q): %v", id, err)
			continue
		}
		if got := fp.Name(); got != wantName {
			t.Errorf("player.New(%q).Name() = %q, want %q", id, got, wantName)
		}
	}
}

func TestNewUnregisteredIDReturnsError(t *testing.T) {
	if _, err := player.New("no-such-dialect"); err == nil {
		t.Error("player.New of an unregistered id should return an error")
	}
}

func TestEachDialectFactoryProducesIndependentInstances(t *testing.T) {
	a, err := player.New("pt2")
	if err != nil {
		t.Fatalf("player.New(pt2): %v", err)
	}
	b, err := player.New("pt2")
	if err != nil {
		t.Fatalf("player.New(pt2): %v", err)
	}

	if a == b {
		t.Fatal("player.New should build a fresh engine per call, not share one instance")
	}
}
