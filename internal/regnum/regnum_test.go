package regnum

import (
	"testing"
	"time"
)

func TestNextFormat(t *testing.T) {
	g := Generator{
		Now:  func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) },
		Rand: func(n int) int { return 7 },
	}
	got := g.Next()
	if got != "REG-202603-0007" {
		t.Fatalf("unexpected registration number %s", got)
	}
}

func TestNextPadsRandomPart(t *testing.T) {
	g := Generator{
		Now:  func() time.Time { return time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC) },
		Rand: func(n int) int { return 9999 },
	}
	if got := g.Next(); got != "REG-202612-9999" {
		t.Fatalf("unexpected registration number %s", got)
	}
}

func TestNextDefaultsAreUsable(t *testing.T) {
	g := New()
	got := g.Next()
	if len(got) != len("REG-YYYYMM-NNNN") {
		t.Fatalf("unexpected length for %s", got)
	}
}
