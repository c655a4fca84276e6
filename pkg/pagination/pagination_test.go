package pagination

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
	encoded := EncodeCursor(Cursor{At: at, ID: 1234})

	got, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("ParseCursor returned error: %v", err)
	}
	if got == nil || !got.At.Equal(at) || got.ID != 1234 {
		t.Fatalf("unexpected cursor %+v", got)
	}
}

func TestParseCursorEmptyIsFirstPage(t *testing.T) {
	got, err := ParseCursor("  ")
	if err != nil || got != nil {
		t.Fatalf("expected nil cursor, got %+v err=%v", got, err)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"%%%", "bm9waXBl", EncodeCursor(Cursor{At: time.Now(), ID: 0})} {
		if _, err := ParseCursor(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d", got)
	}
}

func TestPage(t *testing.T) {
	rows := []int{1, 2, 3, 4}
	page, more := Page(rows, 3)
	if !more || len(page) != 3 || page[2] != 3 {
		t.Fatalf("unexpected page %v more=%v", page, more)
	}
	page, more = Page(rows[:2], 3)
	if more || len(page) != 2 {
		t.Fatalf("short result must be the last page, got %v more=%v", page, more)
	}
}
