package calendar

import (
	"testing"
	"time"
)

func TestBuildMonthGridAlwaysFortyTwoCells(t *testing.T) {
	for year := 1999; year <= 2030; year++ {
		for m := time.January; m <= time.December; m++ {
			g := BuildMonthGrid(year, m)
			if len(g.Cells) != GridCells {
				t.Fatalf("%d-%02d: expected %d cells, got %d", year, m, GridCells, len(g.Cells))
			}

			current := 0
			for _, c := range g.Cells {
				if c.CurrentPeriod {
					current++
				}
			}
			if want := DaysInMonth(year, m); current != want {
				t.Fatalf("%d-%02d: expected %d current cells, got %d", year, m, want, current)
			}
			if g.LeadingDays()+g.CurrentPeriodDays()+g.TrailingDays() != GridCells {
				t.Fatalf("%d-%02d: leading/current/trailing do not add up", year, m)
			}
		}
	}
}

func TestBuildMonthGridLayout(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		g := BuildMonthGrid(2023, m)
		lead := g.LeadingDays()
		for i, c := range g.Cells {
			if c.Date.Weekday() != time.Weekday(i%GridCols) {
				t.Fatalf("2023-%02d cell %d: expected weekday %d, got %s", m, i, i%GridCols, c.Date.Weekday())
			}
			inFocus := i >= lead && i < lead+g.CurrentPeriodDays()
			if c.CurrentPeriod != inFocus {
				t.Fatalf("2023-%02d cell %d (%s): expected current=%v", m, i, c.Date, inFocus)
			}
			if i > 0 && g.Cells[i-1].Date.AddDays(1) != c.Date {
				t.Fatalf("2023-%02d cell %d: dates are not consecutive", m, i)
			}
		}
	}
}

func TestBuildMonthGridApril2024(t *testing.T) {
	g := BuildMonthGrid(2024, time.April)

	if got := g.LeadingDays(); got != 1 {
		t.Fatalf("expected 1 leading cell, got %d", got)
	}
	if got := g.TrailingDays(); got != 11 {
		t.Fatalf("expected 11 trailing cells, got %d", got)
	}
	if got := g.First(); got != (Date{2024, time.March, 31}) {
		t.Fatalf("expected first cell 2024-03-31, got %s", got)
	}
	if got := g.Cells[1].Date; got != (Date{2024, time.April, 1}) {
		t.Fatalf("expected April 1st in column 1, got %s", got)
	}
	if got := g.Last(); got != (Date{2024, time.May, 11}) {
		t.Fatalf("expected last cell 2024-05-11, got %s", got)
	}
}

func TestBuildMonthGridRollover(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     time.Month
		wantYear  int
		wantMonth time.Month
		wantFirst Date
		wantLast  Date
	}{
		{
			name: "december spills into january", year: 2024, month: time.December,
			wantYear: 2024, wantMonth: time.December,
			wantFirst: Date{2024, time.December, 1}, wantLast: Date{2025, time.January, 11},
		},
		{
			name: "january reaches back into december", year: 2025, month: time.January,
			wantYear: 2025, wantMonth: time.January,
			wantFirst: Date{2024, time.December, 29}, wantLast: Date{2025, time.February, 8},
		},
		{
			name: "month 13 normalizes", year: 2024, month: 13,
			wantYear: 2025, wantMonth: time.January,
			wantFirst: Date{2024, time.December, 29}, wantLast: Date{2025, time.February, 8},
		},
		{
			name: "month 0 normalizes", year: 2024, month: 0,
			wantYear: 2023, wantMonth: time.December,
			wantFirst: Date{2023, time.November, 26}, wantLast: Date{2024, time.January, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildMonthGrid(tt.year, tt.month)
			if g.Year != tt.wantYear || g.Month != tt.wantMonth {
				t.Fatalf("expected focus %d-%02d, got %d-%02d", tt.wantYear, tt.wantMonth, g.Year, g.Month)
			}
			if g.First() != tt.wantFirst {
				t.Fatalf("expected first %s, got %s", tt.wantFirst, g.First())
			}
			if g.Last() != tt.wantLast {
				t.Fatalf("expected last %s, got %s", tt.wantLast, g.Last())
			}
		})
	}
}

func TestBuildMonthGridLeapFebruary(t *testing.T) {
	leap := BuildMonthGrid(2024, time.February)
	if got := leap.CurrentPeriodDays(); got != 29 {
		t.Fatalf("expected 29 days in Feb 2024, got %d", got)
	}
	plain := BuildMonthGrid(2023, time.February)
	if got := plain.CurrentPeriodDays(); got != 28 {
		t.Fatalf("expected 28 days in Feb 2023, got %d", got)
	}
	// Feb 2015 starts on a Sunday and fits in four rows; the rest is overflow.
	g := BuildMonthGrid(2015, time.February)
	if g.LeadingDays() != 0 || g.TrailingDays() != 14 {
		t.Fatalf("expected 0 leading / 14 trailing, got %d / %d", g.LeadingDays(), g.TrailingDays())
	}
}

func TestBuildMonthGridIdempotent(t *testing.T) {
	a := BuildMonthGrid(2026, time.October)
	b := BuildMonthGrid(2026, time.October)
	if a != b {
		t.Fatal("expected identical grids for identical inputs")
	}
}

func TestWithHighlight(t *testing.T) {
	g := BuildMonthGrid(2024, time.April)
	today := Date{2024, time.April, 15}
	selected := Date{2024, time.May, 2}

	h := g.WithHighlight(today, selected)

	var todays, selecteds int
	for _, c := range h.Cells {
		if c.Today {
			todays++
			if c.Date != today {
				t.Fatalf("unexpected today cell %s", c.Date)
			}
		}
		if c.Selected {
			selecteds++
			if c.Date != selected {
				t.Fatalf("unexpected selected cell %s", c.Date)
			}
		}
	}
	if todays != 1 || selecteds != 1 {
		t.Fatalf("expected one today and one selected cell, got %d and %d", todays, selecteds)
	}

	for _, c := range g.Cells {
		if c.Today || c.Selected {
			t.Fatal("expected the original grid to stay unhighlighted")
		}
	}

	none := g.WithHighlight(Date{}, Date{})
	if none != g {
		t.Fatal("expected zero dates to leave the grid unhighlighted")
	}
}

func TestWeeksAndIndex(t *testing.T) {
	g := BuildMonthGrid(2024, time.April)
	rows := g.Weeks()
	if rows[0][1].Date != (Date{2024, time.April, 1}) {
		t.Fatalf("expected April 1st at row 0 col 1, got %s", rows[0][1].Date)
	}
	if rows[5][6].Date != g.Last() {
		t.Fatalf("expected last row to end with %s, got %s", g.Last(), rows[5][6].Date)
	}

	idx, ok := g.Index(Date{2024, time.April, 30})
	if !ok || idx != 30 {
		t.Fatalf("expected index 30, got %d (ok=%v)", idx, ok)
	}
	if _, ok := g.Index(Date{2024, time.June, 1}); ok {
		t.Fatal("expected June 1st to be outside the April grid")
	}
}

func TestBuildYear(t *testing.T) {
	y := BuildYear(2024)
	for i, g := range y {
		if g.Year != 2024 || g.Month != time.Month(i+1) {
			t.Fatalf("expected 2024-%02d at index %d, got %d-%02d", i+1, i, g.Year, g.Month)
		}
	}
}
