package lane_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/lane"
)

func readAll(t *testing.T, in string) []string {
	t.Helper()
	lr := lane.NewLineReader(strings.NewReader(in))
	var out []string
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, line)
	}
}

func TestLineReader_SplitsAndTrimsCRLF(t *testing.T) {
	got := readAll(t, "Scan card\r\n12345678\n\nlast")
	want := []string{"Scan card", "12345678", "", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLineReader_OverlongLine_SkippedWhole(t *testing.T) {
	in := strings.Repeat("A1B2C3D4 ", lane.MaxLineLen) + "\nDEADBEEF\n"
	got := readAll(t, in)
	if len(got) != 1 || got[0] != "DEADBEEF" {
		t.Errorf("expected only the line after the overlong one, got %d lines", len(got))
	}
}

func TestLineReader_LineAtLimitMinusOne_Kept(t *testing.T) {
	line := strings.Repeat("x", lane.MaxLineLen-1)
	got := readAll(t, line+"\n")
	if len(got) != 1 || got[0] != line {
		t.Errorf("expected the line kept, got %d lines", len(got))
	}
}

func TestLineReader_OverlongUnterminatedTail_EOF(t *testing.T) {
	got := readAll(t, "12345678\n"+strings.Repeat("z", 3*lane.MaxLineLen))
	if len(got) != 1 || got[0] != "12345678" {
		t.Errorf("unexpected lines %d", len(got))
	}
}
