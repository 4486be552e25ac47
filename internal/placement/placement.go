// Package placement computes where timed items are drawn on the week
// timeline.
//
// Vertical geometry comes from the time axis. Horizontally an item is put in
// the column of its weekday and nothing more: items that overlap in time on the
// same day get the same offset and are drawn on top of each other. That is the
// established behavior of the week view; a lane-packing layout would be a
// separate feature.
package placement

import (
	"time"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/palette"
	"plancal/internal/timeaxis"
)

// Kind tells a renderer which variant a Placement was computed from.
type Kind string

const (
	KindEvent Kind = "event"
	KindTask  Kind = "task"
)

// Layout holds the geometry of the timeline.
type Layout struct {
	// HourHeight is the height of one hour row.
	HourHeight float64 `yaml:"hour_height" json:"hour_height"`
	// HeightFactor stretches event boxes slightly so they cover the row
	// borders they cross.
	HeightFactor float64 `yaml:"height_factor" json:"height_factor"`
	// MinHeight is the rendered height of events whose computed height is at
	// most MinHeightBelow.
	MinHeight      float64 `yaml:"min_height" json:"min_height"`
	MinHeightBelow float64 `yaml:"min_height_below" json:"min_height_below"`
	// ShortEventHeight: events whose computed height is below it show their
	// title only.
	ShortEventHeight float64 `yaml:"short_event_height" json:"short_event_height"`
	// ColumnWidthPercent is the horizontal step between day columns.
	ColumnWidthPercent float64 `yaml:"column_width_percent" json:"column_width_percent"`
}

// DefaultLayout returns the geometry of the standard week view.
func DefaultLayout() Layout {
	return Layout{
		HourHeight:         40,
		HeightFactor:       40.7 / 40,
		MinHeight:          20,
		MinHeightBelow:     40,
		ShortEventHeight:   60,
		ColumnWidthPercent: 14,
	}
}

// Normalize replaces non-positive fields with defaults.
func (l *Layout) Normalize() {
	d := DefaultLayout()
	if l.HourHeight <= 0 {
		l.HourHeight = d.HourHeight
	}
	if l.HeightFactor <= 0 {
		l.HeightFactor = d.HeightFactor
	}
	if l.MinHeight <= 0 {
		l.MinHeight = d.MinHeight
	}
	if l.MinHeightBelow <= 0 {
		l.MinHeightBelow = d.MinHeightBelow
	}
	if l.ShortEventHeight <= 0 {
		l.ShortEventHeight = d.ShortEventHeight
	}
	if l.ColumnWidthPercent <= 0 {
		l.ColumnWidthPercent = d.ColumnWidthPercent
	}
}

// DayHeight is the total height of the 24-hour axis.
func (l Layout) DayHeight() float64 {
	return timeaxis.HoursPerDay * l.HourHeight
}

// Placement is the computed geometry of one item. It is recomputed on every
// render and never stored.
type Placement struct {
	ItemID string        `json:"item_id"`
	Kind   Kind          `json:"kind"`
	Title  string        `json:"title"`
	Date   calendar.Date `json:"date"`
	Column int           `json:"column"`

	Top         float64 `json:"top"`
	Height      float64 `json:"height"`
	LanePercent float64 `json:"lane_percent"`

	// Short items render their title only; the others add TimeRange.
	Short     bool   `json:"short"`
	TimeRange string `json:"time_range,omitempty"`

	Color string `json:"color"`
	// Accent is the border colour of task markers.
	Accent    string `json:"accent,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	AI        bool   `json:"ai,omitempty"`
}

// Engine places items on a week frame.
type Engine struct {
	layout Layout
	colors *palette.Resolver
}

// NewEngine returns an engine for the given geometry. A nil resolver uses the
// built-in palette.
func NewEngine(layout Layout, colors *palette.Resolver) *Engine {
	layout.Normalize()
	if colors == nil {
		colors = palette.NewResolver(nil)
	}
	return &Engine{layout: layout, colors: colors}
}

// Layout returns the engine's geometry.
func (e *Engine) Layout() Layout {
	return e.layout
}

// Place computes placements for items that fall inside frame, in input order.
// Items with a missing or unparsable timestamp, and items dated outside the
// frame, are left out; one bad record never fails the whole render.
func (e *Engine) Place(items []model.TimedItem, frame calendar.WeekFrame) []Placement {
	out := make([]Placement, 0, len(items))
	for _, it := range items {
		var (
			p  Placement
			ok bool
		)
		switch v := it.(type) {
		case model.Event:
			p, ok = e.placeEvent(v, frame)
		case model.Task:
			p, ok = e.placeTask(v, frame)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// PlaceRecords is a convenience wrapper for the two record lists an API
// returns. Events come first, then tasks.
func (e *Engine) PlaceRecords(events []model.Event, tasks []model.Task, frame calendar.WeekFrame) []Placement {
	items := make([]model.TimedItem, 0, len(events)+len(tasks))
	for _, ev := range events {
		items = append(items, ev)
	}
	for _, t := range tasks {
		items = append(items, t)
	}
	return e.Place(items, frame)
}

func (e *Engine) placeEvent(ev model.Event, frame calendar.WeekFrame) (Placement, bool) {
	start, err := ev.StartAt()
	if err != nil {
		appLog.Debug("placement: skipping event with bad start", "id", ev.ID, "start", ev.StartTime)
		return Placement{}, false
	}
	end, err := ev.EndAt()
	if err != nil {
		appLog.Debug("placement: skipping event with bad end", "id", ev.ID, "end", ev.EndTime)
		return Placement{}, false
	}

	base, ok := e.anchor(start, frame)
	if !ok {
		return Placement{}, false
	}

	startIdx := timeaxis.FromTime(start)
	endIdx := timeaxis.FromTime(end)
	if calendar.FromTime(end).After(base.Date) {
		// Boxes never leave their column; clip at midnight.
		endIdx = timeaxis.HoursPerDay
	}

	raw := float64(endIdx-startIdx) * e.layout.HourHeight * e.layout.HeightFactor
	height := raw
	if height <= e.layout.MinHeightBelow {
		height = e.layout.MinHeight
	}

	base.ItemID = ev.ID
	base.Kind = KindEvent
	base.Title = ev.Title
	base.Top = timeaxis.ToPixelOffset(startIdx, e.layout.HourHeight)
	base.Height = height
	base.Short = raw < e.layout.ShortEventHeight
	base.TimeRange = formatRange(start, end)
	base.Color = e.colors.Resolve(ev.Color, string(ev.EventType))
	base.AI = ev.EventType == model.EventAIGenerated
	return base, true
}

func (e *Engine) placeTask(t model.Task, frame calendar.WeekFrame) (Placement, bool) {
	due, err := t.StartAt()
	if err != nil {
		appLog.Debug("placement: skipping task with bad due date", "id", t.ID, "due", t.DueDate)
		return Placement{}, false
	}

	base, ok := e.anchor(due, frame)
	if !ok {
		return Placement{}, false
	}

	accent := palette.PriorityAccent(string(t.Priority))

	base.ItemID = t.ID
	base.Kind = KindTask
	base.Title = t.Title
	base.Top = timeaxis.FromTime(due).Offset(e.layout.HourHeight)
	base.Short = true
	base.Color = palette.Tint(accent)
	base.Accent = accent
	base.Completed = t.IsCompleted
	return base, true
}

// anchor resolves the column of an instant within frame.
func (e *Engine) anchor(at time.Time, frame calendar.WeekFrame) (Placement, bool) {
	d := calendar.FromTime(at)
	col, ok := frame.Column(d)
	if !ok {
		return Placement{}, false
	}
	return Placement{
		Date:        d,
		Column:      col,
		LanePercent: float64(d.Weekday()) * e.layout.ColumnWidthPercent,
	}, true
}

func formatRange(start, end time.Time) string {
	return start.Format("15:04") + " ~ " + end.Format("15:04")
}
