package calendar

import (
	"testing"
	"time"
)

func TestNavigate(t *testing.T) {
	anchor := Date{2024, time.January, 31}
	tests := []struct {
		kind  ViewKind
		delta int
		want  Date
	}{
		{ViewDay, 1, Date{2024, time.February, 1}},
		{ViewWeek, -1, Date{2024, time.January, 24}},
		{ViewMonth, 1, Date{2024, time.February, 29}},
		{ViewYear, 1, Date{2025, time.January, 31}},
		{ViewKind("bogus"), 3, anchor},
	}
	for _, tt := range tests {
		if got := Navigate(tt.kind, anchor, tt.delta); got != tt.want {
			t.Fatalf("%s %+d: expected %s, got %s", tt.kind, tt.delta, tt.want, got)
		}
	}
}

func TestLabel(t *testing.T) {
	d := Date{2024, time.May, 2}
	tests := []struct {
		kind ViewKind
		want string
	}{
		{ViewDay, "2/5/2024"},
		// The week of May 2nd starts on Sunday April 28th.
		{ViewWeek, "4/2024"},
		{ViewMonth, "5/2024"},
		{ViewYear, "2024"},
	}
	for _, tt := range tests {
		if got := Label(tt.kind, d); got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.kind, tt.want, got)
		}
	}
}

func TestParseViewKind(t *testing.T) {
	k, err := ParseViewKind(" Week ")
	if err != nil || k != ViewWeek {
		t.Fatalf("expected week, got %q (%v)", k, err)
	}
	if _, err := ParseViewKind("fortnight"); err == nil {
		t.Fatal("expected error for unknown view")
	}
}
