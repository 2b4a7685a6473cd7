package module

import "testing"

func TestEventEmptyZeroValue(t *testing.T) {
	if !(Event{}).Empty() {
		t.Error("zero-value Event should be Empty")
	}
}

func TestEventEmptyTreatsNoNoteVolumeAsUnset(t *testing.T) {
	e := Event{Volume: NoNoteVolume}
	if !e.Empty() {
		t.Error("an Event whose only set field is the NoNoteVolume sentinel should still be Empty")
	}
}

func TestEventNotEmptyWithNote(t *testing.T) {
	e := Event{Note: 60}
	if e.Empty() {
		t.Error("an Event carrying a note should not be Empty")
	}
}

func TestEventNotEmptyWithEffect(t *testing.T) {
	e := Event{Effect: 0xA, Param: 0x05}
	if e.Empty() {
		t.Error("an Event carrying an effect should not be Empty")
	}
}
