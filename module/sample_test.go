package module

import (
	"bytes"
	"testing"
)

func TestStoreNonLoop8BitAppendsTwoGuardBytes(t *testing.T) {
	s := Sample{Type: Sample8}
	raw := []byte{1, 2, 3, 4, 5}
	s.Store(raw)

	if got, want := len(s.Data), len(raw)+2; got != want {
		t.Fatalf("len(Data) = %d, want %d", got, want)
	}
	if !bytes.Equal(s.Data[:len(raw)], raw) {
		t.Fatalf("Data prefix = %v, want original raw bytes %v", s.Data[:len(raw)], raw)
	}
	lastReal := raw[len(raw)-1]
	for i, b := range s.Data[len(raw):] {
		if b != lastReal {
			t.Errorf("guard byte %d = %d, want %d (the last real sample byte)", i, b, lastReal)
		}
	}
}

func TestStoreLoop8BitAppendsFourGuardBytes(t *testing.T) {
	s := Sample{Type: Sample8, HasLoop: true}
	raw := []byte{10, 20, 30, 40}
	s.Store(raw)

	if got, want := len(s.Data), len(raw)+4; got != want {
		t.Fatalf("len(Data) = %d, want %d", got, want)
	}
	lastReal := raw[len(raw)-1]
	for i, b := range s.Data[len(raw):] {
		if b != lastReal {
			t.Errorf("guard byte %d = %d, want %d", i, b, lastReal)
		}
	}
}

func TestStore16BitAppendsTwoGuardFrames(t *testing.T) {
	s := Sample{Type: Sample16}
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06} // three 16-bit frames

	s.Store(raw)

	if got, want := len(s.Data), len(raw)+4; got != want {
		t.Fatalf("len(Data) = %d, want %d (2 guard frames of 2 bytes each)", got, want)
	}
	lastFrame := raw[len(raw)-2:]
	guard := s.Data[len(raw):]
	if !bytes.Equal(guard[0:2], lastFrame) || !bytes.Equal(guard[2:4], lastFrame) {
		t.Errorf("guard frames = %v, want both equal to the last real frame %v", guard, lastFrame)
	}
}

func TestStoreShorterThanOneFrameDoesNotPanic(t *testing.T) {
	s := Sample{Type: Sample16}
	raw := []byte{0x7F} // shorter than one 16-bit frame

	s.Store(raw)

	if got, want := len(s.Data), len(raw)+4; got != want {
		t.Fatalf("len(Data) = %d, want %d", got, want)
	}
}

func TestStoreEmptyRawDoesNotPanic(t *testing.T) {
	s := Sample{Type: Sample8}
	s.Store(nil)

	if got, want := len(s.Data), 2; got != want {
		t.Fatalf("len(Data) = %d, want %d", got, want)
	}
	for i, b := range s.Data {
		if b != 0 {
			t.Errorf("guard byte %d = %d, want 0 when there is no real data to copy", i, b)
		}
	}
}
