package oxdzerr

import (
	"errors"
	"testing"
)

func TestIsMatchesSameKind(t *testing.T) {
	err := Formatf("bad magic %q", "XYZ!")
	if !errors.Is(err, Formatf("")) {
		t.Error("errors.Is should match two *Error values of the same Kind regardless of message")
	}
	if errors.Is(err, Loadf("")) {
		t.Error("errors.Is should not match across different Kinds")
	}
}

func TestUnwrapExposesWrappedCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(IO, "reading sample data", cause)

	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the cause for errors.Is")
	}
}

func TestIsFormat(t *testing.T) {
	if !IsFormat(Formatf("short file")) {
		t.Error("IsFormat should recognize a Format-kind error")
	}
	if IsFormat(Loadf("truncated pattern")) {
		t.Error("IsFormat should reject a Load-kind error")
	}
	if IsFormat(errors.New("plain error")) {
		t.Error("IsFormat should reject a non-*Error value")
	}
}

func TestErrorStringIncludesKindAndCause(t *testing.T) {
	cause := errors.New("eof")
	err := Wrap(IO, "reading header", cause)
	got := err.Error()
	if got == "" {
		t.Fatal("Error() should not be empty")
	}
	// Spot check both the kind label and the wrapped cause surface in the
	// message, without pinning the exact format string.
	if !contains(got, "io") || !contains(got, "eof") {
		t.Errorf("Error() = %q, want it to mention both the kind and the cause", got)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
