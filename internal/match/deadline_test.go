package match

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestParseDeadline_Formats(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-10-01", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), true},
		{"2026-10-01T23:59:59Z", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), true},
		{"31.12.2099", time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"1.7.2026", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{"31.12.00", time.Date(2000, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"6/2026", time.Date(2026, 6, 28, 0, 0, 0, 0, time.UTC), true},
		{"2026", time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"31.02.2026", time.Time{}, false},
		{"32.01.2026", time.Time{}, false},
		{"next quarter sometime", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tc := range cases {
		got, ok := ParseDeadline(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseDeadline(%q): ok=%v, want %v", tc.in, ok, tc.ok)
		}
		if ok && !got.Equal(tc.want) {
			t.Fatalf("ParseDeadline(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestIsContinuousDeadline_Sentinels(t *testing.T) {
	for _, s := range []string{"laufend", "fortlaufend", "keine", "unbefristet", "offen", "", "  Laufend  "} {
		if !IsContinuousDeadline(s) {
			t.Fatalf("expected %q to be continuous", s)
		}
	}
	if IsContinuousDeadline("31.12.2026") {
		t.Fatal("dated deadline must not be continuous")
	}
}

func TestIsDeadlineOpen(t *testing.T) {
	cases := []struct {
		in   string
		open bool
	}{
		{"laufend", true},
		{"2099-01-01", true},
		{"2000-01-01", false},
		{"31.12.2099", true},
		{"31.12.00", false}, // short year reads as 2000
		{"2026-03-15", true}, // deadline day itself is still open
		{"2026-03-14", false},
		{"next quarter sometime", true}, // unparseable fails open
	}

	for _, tc := range cases {
		if got := IsDeadlineOpen(tc.in, testNow); got != tc.open {
			t.Fatalf("IsDeadlineOpen(%q) = %v, want %v", tc.in, got, tc.open)
		}
	}
}

func TestDaysUntilDeadline(t *testing.T) {
	days, ok := DaysUntilDeadline("2026-04-14", testNow)
	if !ok {
		t.Fatal("expected a day count for a parseable deadline")
	}
	if days != 29 {
		t.Fatalf("expected 29 days, got %d", days)
	}

	if _, ok := DaysUntilDeadline("laufend", testNow); ok {
		t.Fatal("continuous deadlines have no day count")
	}
	if _, ok := DaysUntilDeadline("irgendwann", testNow); ok {
		t.Fatal("unparseable deadlines have no day count")
	}
}
