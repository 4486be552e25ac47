// Package view assembles the data rendered by each calendar view: the day
// and week timelines, the month grid and the year overview.
package view

import (
	"fmt"
	"time"

	"plancal/internal/calendar"
	"plancal/internal/model"
	"plancal/internal/nowline"
	"plancal/internal/placement"
	"plancal/internal/timeaxis"
)

// DayHeader is the column header of a timeline day.
type DayHeader struct {
	Date    calendar.Date `json:"date"`
	Column  int           `json:"column"`
	Weekday string        `json:"weekday"`
	Today   bool          `json:"today"`
}

// HourLine is a labelled horizontal rule of the timeline. Labels sit on the
// bottom edge of their hour row, from "1 AM" to "12 AM".
type HourLine struct {
	Label string  `json:"label"`
	Top   float64 `json:"top"`
}

// Timeline is the shared shape of the day and week views.
type Timeline struct {
	Kind       calendar.ViewKind     `json:"kind"`
	Label      string                `json:"label"`
	Anchor     calendar.Date         `json:"anchor"`
	Days       []DayHeader           `json:"days"`
	Hours      []HourLine            `json:"hours"`
	DayHeight  float64               `json:"day_height"`
	Placements []placement.Placement `json:"placements"`
	// Now is set only when today is one of Days.
	Now  *nowline.Marker `json:"now,omitempty"`
	Prev calendar.Date   `json:"prev"`
	Next calendar.Date   `json:"next"`
}

type MonthView struct {
	Label    string             `json:"label"`
	Weekdays [7]string          `json:"weekdays"`
	Grid     calendar.MonthGrid `json:"grid"`
	Prev     calendar.Date      `json:"prev"`
	Next     calendar.Date      `json:"next"`
}

type YearView struct {
	Label  string                 `json:"label"`
	Year   int                    `json:"year"`
	Months [12]calendar.MonthGrid `json:"months"`
}

// MarkerSource provides the current-time marker; *nowline.Tracker
// satisfies it.
type MarkerSource interface {
	Marker() nowline.Marker
}

// Builder composes views from stored items. It holds no state besides its
// collaborators, so one Builder serves concurrent requests.
type Builder struct {
	Engine *placement.Engine
	Clock  calendar.Clock
	// Now supplies the marker drawn on timelines. Without it the marker is
	// computed from Clock on every build.
	Now MarkerSource
}

func NewBuilder(engine *placement.Engine, clock calendar.Clock) *Builder {
	return &Builder{Engine: engine, Clock: clock}
}

// WithMarkers makes timelines draw the marker kept by src.
func (b *Builder) WithMarkers(src MarkerSource) *Builder {
	b.Now = src
	return b
}

// Week builds the Sunday-first week containing anchor.
func (b *Builder) Week(anchor calendar.Date, events []model.Event, tasks []model.Task) Timeline {
	frame := calendar.BuildWeekFrame(anchor)
	today := calendar.Today(b.Clock)

	tl := b.timeline(calendar.ViewWeek, anchor)
	for col, d := range frame {
		tl.Days = append(tl.Days, header(d, col, today))
	}
	tl.Placements = b.Engine.PlaceRecords(events, tasks, frame)
	if m := b.Marker(); frame.Contains(m.Date) {
		tl.Now = &m
	}
	return tl
}

// Day builds a single-column timeline for anchor. Placements keep their
// week column so a renderer can share code with the week view.
func (b *Builder) Day(anchor calendar.Date, events []model.Event, tasks []model.Task) Timeline {
	frame := calendar.BuildWeekFrame(anchor)
	col, _ := frame.Column(anchor)
	today := calendar.Today(b.Clock)

	tl := b.timeline(calendar.ViewDay, anchor)
	tl.Days = []DayHeader{header(anchor, col, today)}
	for _, p := range b.Engine.PlaceRecords(events, tasks, frame) {
		if p.Date == anchor {
			tl.Placements = append(tl.Placements, p)
		}
	}
	if m := b.Marker(); m.Date == anchor {
		tl.Now = &m
	}
	return tl
}

// Month builds the month grid of (year, month) with today and selected
// highlighted. A zero selected disables that highlight.
func (b *Builder) Month(year int, month time.Month, selected calendar.Date) MonthView {
	grid := calendar.BuildMonthGrid(year, month).WithHighlight(calendar.Today(b.Clock), selected)
	first := grid.Cells[grid.LeadingDays()].Date

	v := MonthView{
		Label: calendar.Label(calendar.ViewMonth, first),
		Grid:  grid,
		Prev:  calendar.Navigate(calendar.ViewMonth, first, -1),
		Next:  calendar.Navigate(calendar.ViewMonth, first, 1),
	}
	for i := range v.Weekdays {
		v.Weekdays[i] = calendar.WeekdayShort(i)
	}
	return v
}

// Year builds the twelve month grids of year with today highlighted.
func (b *Builder) Year(year int) YearView {
	today := calendar.Today(b.Clock)
	v := YearView{
		Label: calendar.Label(calendar.ViewYear, calendar.NewDate(year, time.January, 1)),
		Year:  year,
	}
	for i, g := range calendar.BuildYear(year) {
		v.Months[i] = g.WithHighlight(today, calendar.Date{})
	}
	return v
}

func (b *Builder) timeline(kind calendar.ViewKind, anchor calendar.Date) Timeline {
	layout := b.Engine.Layout()
	return Timeline{
		Kind:      kind,
		Label:     calendar.Label(kind, anchor),
		Anchor:    anchor,
		Hours:     HourLines(layout.HourHeight),
		DayHeight: layout.DayHeight(),
		Prev:      calendar.Navigate(kind, anchor, -1),
		Next:      calendar.Navigate(kind, anchor, 1),
	}
}

// Marker returns the current-time marker used by Week and Day.
func (b *Builder) Marker() nowline.Marker {
	if b.Now != nil {
		return b.Now.Marker()
	}
	return nowline.Compute(b.Clock, b.Engine.Layout().HourHeight)
}

func header(d calendar.Date, col int, today calendar.Date) DayHeader {
	return DayHeader{
		Date:    d,
		Column:  col,
		Weekday: calendar.WeekdayShort(col),
		Today:   d == today,
	}
}

// HourLines returns the 24 hour rules of a timeline.
func HourLines(hourHeight float64) []HourLine {
	lines := make([]HourLine, 0, timeaxis.HoursPerDay)
	for h := 1; h <= timeaxis.HoursPerDay; h++ {
		lines = append(lines, HourLine{
			Label: HourLabel(h),
			Top:   timeaxis.IndexOf(h, 0).Offset(hourHeight),
		})
	}
	return lines
}

// HourLabel formats an hour of the day on a 12-hour clock. 0 and 24 are
// both "12 AM".
func HourLabel(hour int) string {
	h := hour % 24
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d %s", h, suffix)
}
