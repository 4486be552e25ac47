// Package timeaxis maps wall-clock times onto the vertical axis of the day
// timeline at quarter-hour resolution.
//
// Two rounding conventions coexist on purpose. ToHourIndex truncates to the
// quarter that contains the minute and is used to position items on screen.
// Snap rounds up to the next quarter and is used when proposing a slot for a
// new item. Keep them apart: swapping one for the other shifts rendered boxes.
package timeaxis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// QuarterMinutes is the scheduling granularity.
	QuarterMinutes = 15
	// QuartersPerHour is the number of slots in an hour.
	QuartersPerHour = 60 / QuarterMinutes
	// HoursPerDay is the height of the axis in hours.
	HoursPerDay = 24
	// SlotsPerDay is the number of quarter slots in a day.
	SlotsPerDay = HoursPerDay * QuartersPerHour
)

// ErrMalformedTime is returned for strings that are not "HH:MM" clock times.
var ErrMalformedTime = errors.New("malformed time of day")

// HourIndex is a position on the day axis in hours: 9.25 is 09:15. It is
// always a multiple of 0.25 in [0, 24).
type HourIndex float64

// IndexOf returns the truncating index of hour:minute.
func IndexOf(hour, minute int) HourIndex {
	return HourIndex(hour) + HourIndex(minute/QuarterMinutes)*0.25
}

// ToHourIndex parses "HH:MM" (seconds are tolerated and ignored) and returns
// hour + floor(minute/15)*0.25.
func ToHourIndex(timeOfDay string) (HourIndex, error) {
	c, err := ParseClock(timeOfDay)
	if err != nil {
		return 0, err
	}
	return IndexOf(c.Hour, c.Minute), nil
}

// FromTime returns the truncating index of t's wall-clock time.
func FromTime(t time.Time) HourIndex {
	return IndexOf(t.Hour(), t.Minute())
}

// ToPixelOffset converts an index into a vertical offset for an axis whose
// hours are hourHeight units tall.
func ToPixelOffset(index HourIndex, hourHeight float64) float64 {
	return float64(index) * hourHeight
}

// Offset is the method form of ToPixelOffset.
func (h HourIndex) Offset(hourHeight float64) float64 {
	return ToPixelOffset(h, hourHeight)
}

// Hour returns the integer hour of the index.
func (h HourIndex) Hour() int {
	return int(h)
}

// Minute returns the quarter minute of the index (0, 15, 30 or 45).
func (h HourIndex) Minute() int {
	return int((float64(h) - float64(int(h))) * 60)
}

// Clock returns the index as a clock time.
func (h HourIndex) Clock() ClockTime {
	return ClockTime{Hour: h.Hour(), Minute: h.Minute()}
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// String formats the time as zero-padded "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Index returns the truncating hour index of c.
func (c ClockTime) Index() HourIndex {
	return IndexOf(c.Hour, c.Minute)
}

// ParseClock parses "H:MM", "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour >= HoursPerDay {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute >= 60 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// SnapToQuarter rounds minute up to the next quarter boundary. The result can
// be 60; Snap and SnapTime carry that into the hour.
func SnapToQuarter(minute int) int {
	q := minute / QuarterMinutes
	if minute%QuarterMinutes != 0 {
		q++
	}
	return q * QuarterMinutes
}

// Snap parses "HH:MM" and rounds it up to the next quarter slot. A minute of
// 60 after rounding becomes minute 0 of the next hour, and 24:00 wraps to
// 00:00, so the result is always a valid slot.
func Snap(timeOfDay string) (ClockTime, error) {
	c, err := ParseClock(timeOfDay)
	if err != nil {
		return ClockTime{}, err
	}
	return SnapClock(c), nil
}

// SnapClock is Snap for an already parsed time.
func SnapClock(c ClockTime) ClockTime {
	minute := SnapToQuarter(c.Minute)
	hour := c.Hour
	if minute == 60 {
		hour++
		minute = 0
	}
	return ClockTime{Hour: hour % HoursPerDay, Minute: minute}
}

// SnapTime rounds t up to the next quarter boundary. Unlike SnapClock it
// carries past midnight into the next day. Seconds are discarded.
func SnapTime(t time.Time) time.Time {
	base := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	return base.Add(time.Duration(SnapToQuarter(t.Minute())) * time.Minute)
}

// Quarters returns the 96 selectable slots of a day, 00:00 through 23:45.
func Quarters() []ClockTime {
	out := make([]ClockTime, 0, SlotsPerDay)
	for h := 0; h < HoursPerDay; h++ {
		for q := 0; q < QuartersPerHour; q++ {
			out = append(out, ClockTime{Hour: h, Minute: q * QuarterMinutes})
		}
	}
	return out
}
