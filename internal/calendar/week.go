package calendar

// DaysPerWeek is the number of columns of a WeekFrame.
const DaysPerWeek = 7

// WeekFrame holds the seven dates of a week, Sunday at index 0.
type WeekFrame [DaysPerWeek]Date

// BuildWeekFrame returns the Sunday-first week that contains anchor. Every
// anchor within the same calendar week yields the same frame.
func BuildWeekFrame(anchor Date) WeekFrame {
	var f WeekFrame
	sunday := anchor.AddDays(-int(anchor.Weekday()))
	for i := range f {
		f[i] = sunday.AddDays(i)
	}
	return f
}

// Start returns the Sunday of the week.
func (f WeekFrame) Start() Date { return f[0] }

// End returns the Saturday of the week.
func (f WeekFrame) End() Date { return f[DaysPerWeek-1] }

// Column returns the column index of d, or false when d is outside the week.
func (f WeekFrame) Column(d Date) (int, bool) {
	for i, fd := range f {
		if fd == d {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether d is one of the frame's dates.
func (f WeekFrame) Contains(d Date) bool {
	_, ok := f.Column(d)
	return ok
}
