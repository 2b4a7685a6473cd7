package period

import (
	"math"
	"testing"
)

func TestNoteToPeriodC2(t *testing.T) {
	// Finetune 0, note 60 (C-2 in the 3-octave MOD table) is C4Period.
	if p := NoteToPeriod(60, 0); p != C4Period {
		t.Errorf("NoteToPeriod(60, 0) = %d, want %d", p, C4Period)
	}
}

func TestNoteToPeriodClampsRange(t *testing.T) {
	lo := NoteToPeriod(NoteMin-10, 0)
	if lo != NoteToPeriod(NoteMin, 0) {
		t.Errorf("NoteToPeriod below NoteMin did not clamp: got %d", lo)
	}
	hi := NoteToPeriod(NoteMax+10, 0)
	if hi != NoteToPeriod(NoteMax, 0) {
		t.Errorf("NoteToPeriod above NoteMax did not clamp: got %d", hi)
	}
}

func TestPeriodToNoteRoundTrip(t *testing.T) {
	for note := NoteMin; note <= NoteMax; note++ {
		p := NoteToPeriod(note, 0)
		if got := PeriodToNote(p, 0); got != note {
			t.Errorf("PeriodToNote(NoteToPeriod(%d, 0), 0) = %d, want %d", note, got, note)
		}
	}
}

func TestPeriodToNoteAllZeroIsNoNote(t *testing.T) {
	if got := PeriodToNoteAll(0); got != 0 {
		t.Errorf("PeriodToNoteAll(0) = %d, want 0", got)
	}
}

func TestPeriodToNoteAllFindsAnyFinetune(t *testing.T) {
	p := NoteToPeriod(70, 12) // a non-zero finetune row, still an exact table entry
	if got := PeriodToNoteAll(p); got != 70 {
		t.Errorf("PeriodToNoteAll(%d) = %d, want 70", p, got)
	}
}

func TestNoteToMixPeriodNoBend(t *testing.T) {
	// A whole octave up (note += 12) should exactly halve the period.
	base := NoteToMixPeriod(0, 0)
	up := NoteToMixPeriod(12, 0)
	if math.Abs(up-base/2) > 1e-9 {
		t.Errorf("one octave up: got %v, want %v", up, base/2)
	}
}

func TestPeriodToLinearNoteInverse(t *testing.T) {
	for _, note := range []float64{0, 12, 24, -6, 6.5} {
		mp := NoteToMixPeriod(note, 0)
		got := PeriodToLinearNote(int(math.Round(mp)))
		if math.Abs(got-note) > 0.01 {
			t.Errorf("PeriodToLinearNote(NoteToMixPeriod(%v)) = %v, want ~%v", note, got, note)
		}
	}
}

func TestPeriodToLinearNoteZeroPeriod(t *testing.T) {
	if got := PeriodToLinearNote(0); got != 0 {
		t.Errorf("PeriodToLinearNote(0) = %v, want 0", got)
	}
}
