package calendar

import "time"

// Month grid geometry: six week rows of seven day columns.
const (
	GridRows  = 6
	GridCols  = 7
	GridCells = GridRows * GridCols
)

// Cell is one day of a MonthGrid.
type Cell struct {
	Date Date `json:"date"`
	// CurrentPeriod is false for overflow days of the previous or next month.
	CurrentPeriod bool `json:"current_period"`
	Today         bool `json:"today"`
	Selected      bool `json:"selected"`
}

// MonthGrid is the 42-cell matrix shown by the month view, the year view, the
// mini calendar and the date picker. Column 0 is Sunday.
//
// Cells is a fixed-size array, so two grids built from the same inputs compare
// equal with ==.
type MonthGrid struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Cells [GridCells]Cell `json:"cells"`
}

// BuildMonthGrid returns the month matrix for (year, month). The month is
// 1-based and normalized, so BuildMonthGrid(2024, 13) is the grid of January
// 2025.
//
// The first LeadingDays() cells are the tail of the previous month, followed
// by every day of the focus month and then the head of the next month until
// all 42 cells are filled.
func BuildMonthGrid(year int, month time.Month) MonthGrid {
	first := NewDate(year, month, 1)
	g := MonthGrid{Year: first.Year, Month: first.Month}

	// Sunday-first columns make the weekday of the 1st the leading count.
	start := first.AddDays(-int(first.Weekday()))
	for i := range g.Cells {
		d := start.AddDays(i)
		g.Cells[i] = Cell{
			Date:          d,
			CurrentPeriod: d.Year == first.Year && d.Month == first.Month,
		}
	}
	return g
}

// BuildYear returns the twelve month grids of a year, January first.
func BuildYear(year int) [12]MonthGrid {
	var out [12]MonthGrid
	for i := range out {
		out[i] = BuildMonthGrid(year, time.Month(i+1))
	}
	return out
}

// WithHighlight returns a freshly built copy of g with the Today and Selected
// flags set. A zero Date disables the corresponding flag.
func (g MonthGrid) WithHighlight(today, selected Date) MonthGrid {
	out := BuildMonthGrid(g.Year, g.Month)
	for i := range out.Cells {
		d := out.Cells[i].Date
		out.Cells[i].Today = !today.IsZero() && d == today
		out.Cells[i].Selected = !selected.IsZero() && d == selected
	}
	return out
}

// Weeks returns the cells as six rows of seven.
func (g MonthGrid) Weeks() [GridRows][GridCols]Cell {
	var rows [GridRows][GridCols]Cell
	for i, c := range g.Cells {
		rows[i/GridCols][i%GridCols] = c
	}
	return rows
}

// LeadingDays is the number of overflow cells from the previous month.
func (g MonthGrid) LeadingDays() int {
	return int(Weekday(g.Year, g.Month, 1))
}

// CurrentPeriodDays is the number of cells that belong to the focus month.
func (g MonthGrid) CurrentPeriodDays() int {
	return DaysInMonth(g.Year, g.Month)
}

// TrailingDays is the number of overflow cells from the next month.
func (g MonthGrid) TrailingDays() int {
	return GridCells - g.LeadingDays() - g.CurrentPeriodDays()
}

// First returns the date in the top-left cell.
func (g MonthGrid) First() Date {
	return g.Cells[0].Date
}

// Last returns the date in the bottom-right cell.
func (g MonthGrid) Last() Date {
	return g.Cells[GridCells-1].Date
}

// Index returns the position of d in the grid.
func (g MonthGrid) Index(d Date) (int, bool) {
	if d.Before(g.First()) || d.After(g.Last()) {
		return 0, false
	}
	return g.First().DaysUntil(d), true
}
