package calendar

import (
	"fmt"
	"strings"
)

// ViewKind is the calendar view selected by navigation.
type ViewKind string

const (
	ViewDay   ViewKind = "day"
	ViewWeek  ViewKind = "week"
	ViewMonth ViewKind = "month"
	ViewYear  ViewKind = "year"
)

// ParseViewKind parses a view name case-insensitively.
func ParseViewKind(s string) (ViewKind, error) {
	switch k := ViewKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ViewDay, ViewWeek, ViewMonth, ViewYear:
		return k, nil
	default:
		return "", fmt.Errorf("unknown view kind %q", s)
	}
}

// Navigate moves anchor by delta steps of the given view: one day, one week,
// one month or one year per step. Month and year steps clamp the day to the
// target month.
func Navigate(kind ViewKind, anchor Date, delta int) Date {
	switch kind {
	case ViewDay:
		return anchor.AddDays(delta)
	case ViewWeek:
		return anchor.AddDays(delta * DaysPerWeek)
	case ViewMonth:
		return anchor.AddMonths(delta)
	case ViewYear:
		return anchor.AddYears(delta)
	default:
		return anchor
	}
}

// Label returns the header text shown for a view centered on anchor:
// "D/M/YYYY" for a day, "M/YYYY" for a week (month of its Sunday) or a month,
// and "YYYY" for a year.
func Label(kind ViewKind, anchor Date) string {
	switch kind {
	case ViewDay:
		return fmt.Sprintf("%d/%d/%d", anchor.Day, int(anchor.Month), anchor.Year)
	case ViewWeek:
		start := BuildWeekFrame(anchor).Start()
		return fmt.Sprintf("%d/%d", int(start.Month), anchor.Year)
	case ViewMonth:
		return fmt.Sprintf("%d/%d", int(anchor.Month), anchor.Year)
	case ViewYear:
		return fmt.Sprintf("%d", anchor.Year)
	default:
		return ""
	}
}

// WeekdayShort returns the three-letter English column header for a weekday
// column (0 = "Sun").
func WeekdayShort(col int) string {
	names := [DaysPerWeek]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if col < 0 || col >= DaysPerWeek {
		return ""
	}
	return names[col]
}
