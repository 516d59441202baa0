package uid_test

import (
	"testing"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/uid"
)

func TestExtract_ReaderLineWithPrefix(t *testing.T) {
	got, ok := uid.Extract("Card detected! UID: a1b2c3d4")
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "A1B2C3D4" {
		t.Errorf("expected A1B2C3D4, got %q", got)
	}
}

func TestExtract_BareIdentifier(t *testing.T) {
	got, ok := uid.Extract("12345678\r\n")
	if !ok || got != "12345678" {
		t.Errorf("expected 12345678, got %q ok=%v", got, ok)
	}
}

func TestExtract_NoiseLinesRejected(t *testing.T) {
	for _, line := range []string{
		"Scan your RFID card",
		"Card detected!",
		"",
		"   ",
		"UID: a1b2c3",
	} {
		if got, ok := uid.Extract(line); ok {
			t.Errorf("Extract(%q) = %q, expected no match", line, got)
		}
	}
}

func TestExtract_LongerRunIsNotAToken(t *testing.T) {
	for _, line := range []string{
		"A1B2C3D4E5",
		"xA1B2C3D4",
		"A1B2C3D4x",
		"_A1B2C3D4",
	} {
		if got, ok := uid.Extract(line); ok {
			t.Errorf("Extract(%q) = %q, expected no match", line, got)
		}
	}
}

func TestExtract_PunctuationBoundaries(t *testing.T) {
	got, ok := uid.Extract("[uid=DEADBEEF]")
	if !ok || got != "DEADBEEF" {
		t.Errorf("expected DEADBEEF, got %q ok=%v", got, ok)
	}
}

func TestExtract_FirstTokenWins(t *testing.T) {
	got, ok := uid.Extract("11111111 22222222")
	if !ok || got != "11111111" {
		t.Errorf("expected 11111111, got %q", got)
	}
}

func TestCanonical(t *testing.T) {
	if got, ok := uid.Canonical(" abcdef01 "); !ok || got != "ABCDEF01" {
		t.Errorf("expected ABCDEF01, got %q ok=%v", got, ok)
	}
	for _, in := range []string{"abcdef0", "abcdef012", "UID abcdef01", "ghijklmn", ""} {
		if _, ok := uid.Canonical(in); ok {
			t.Errorf("Canonical(%q) expected rejection", in)
		}
	}
}
