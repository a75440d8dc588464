package dates

import (
	"testing"
	"time"
)

var now = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_MonthDay(t *testing.T) {
	r := New()

	got := r.Resolve("Jan 14", now)
	want := time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Resolve(\"Jan 14\") = %v, want %v", got, want)
	}
}

func TestResolve_WeekdayPrefix(t *testing.T) {
	r := New()

	got := r.Resolve("Thu, Jan 19", now)
	want := time.Date(2025, time.January, 19, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Resolve(\"Thu, Jan 19\") = %v, want %v", got, want)
	}
}

func TestResolve_RangeUsesFirstSegment(t *testing.T) {
	r := New()

	got := r.Resolve("Thu, Jan 19 – Thu, Jan 26", now)
	want := time.Date(2025, time.January, 19, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Resolve(range) = %v, want %v", got, want)
	}
}

func TestResolve_PastMonthRollsToNextYear(t *testing.T) {
	r := New()

	december := time.Date(2025, time.December, 20, 12, 0, 0, 0, time.UTC)
	got := r.Resolve("Jan 14", december)
	want := time.Date(2026, time.January, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Resolve(\"Jan 14\") in December = %v, want %v", got, want)
	}
}

func TestResolve_ExplicitYear(t *testing.T) {
	r := New()

	got := r.Resolve("Jan 14, 2027", now)
	if got.Year() != 2027 || got.Month() != time.January || got.Day() != 14 {
		t.Errorf("Resolve(\"Jan 14, 2027\") = %v", got)
	}
}

func TestResolve_FallbackIsStrictlyFuture(t *testing.T) {
	r := New()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "zzzz not a date zzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.raw, now)
			if !got.After(now) {
				t.Errorf("Resolve(%q) = %v, must be strictly after now %v", tt.raw, got, now)
			}
			delta := got.Sub(now)
			if delta < 24*time.Hour || delta > 25*time.Hour {
				t.Errorf("Resolve(%q) fallback delta = %v, want within [24h, 25h]", tt.raw, delta)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := New()

	inputs := []string{"Jan 14", "Thu, Jan 19 – Thu, Jan 26", "tomorrow", ""}
	for _, raw := range inputs {
		first := r.Resolve(raw, now)
		second := r.Resolve(raw, now)
		if !first.Equal(second) {
			t.Errorf("Resolve(%q) not deterministic: %v != %v", raw, first, second)
		}
	}
}
