package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// EventType classifies where an event came from. AI-generated events are
// painted differently and may be rescheduled by the assistant.
type EventType string

const (
	EventFixed       EventType = "FIXED"
	EventUserCreated EventType = "USER_CREATED"
	EventAIGenerated EventType = "AI_GENERATED"
)

// ParseEventType returns the EventType named by s, or false.
func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EventFixed, EventUserCreated, EventAIGenerated:
		return t, true
	default:
		return "", false
	}
}

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// TimedItem is anything the timeline can place: an Event or a Task deadline.
// The set is closed; callers switch on the concrete type.
type TimedItem interface {
	ItemID() string
	ItemTitle() string
	// StartAt is the instant the item is anchored on.
	StartAt() (time.Time, error)

	timedItem()
}

// Event is a calendar event as delivered by the events API (or imported from
// an ICS/CalDAV source). Timestamps are local date-time strings.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Color       string    `json:"color"`
	EventType   EventType `json:"eventType,omitempty"`

	// SourceID names the feed an imported event came from; empty for events
	// created through the API.
	SourceID string `json:"sourceId,omitempty"`
}

func (e Event) ItemID() string    { return e.ID }
func (e Event) ItemTitle() string { return e.Title }
func (Event) timedItem()          {}

// StartAt parses StartTime.
func (e Event) StartAt() (time.Time, error) {
	return ParseTimestamp(e.StartTime)
}

// EndAt parses EndTime.
func (e Event) EndAt() (time.Time, error) {
	return ParseTimestamp(e.EndTime)
}

// Task is a to-do with a deadline. It is placed on the timeline as a single
// marker at DueDate. The session counters are shown but never computed here.
type Task struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	DueDate           string   `json:"dueDate"`
	Priority          Priority `json:"priority,omitempty"`
	IsCompleted       bool     `json:"isCompleted"`
	ScheduledSessions int      `json:"scheduledSessions"`
	CompletedSessions int      `json:"completedSessions"`
	RequiredSessions  int      `json:"requiredSessions"`
}

func (t Task) ItemID() string    { return t.ID }
func (t Task) ItemTitle() string { return t.Title }
func (Task) timedItem()          {}

// StartAt parses DueDate.
func (t Task) StartAt() (time.Time, error) {
	return ParseTimestamp(t.DueDate)
}

// Progress returns completed sessions as a rounded percentage of the
// required sessions, or 0 when no sessions are required.
func (t Task) Progress() int {
	if t.RequiredSessions <= 0 {
		return 0
	}
	return int(math.Round(float64(t.CompletedSessions) / float64(t.RequiredSessions) * 100))
}

// TimestampLayout is the wire format of Event and Task timestamps.
const TimestampLayout = "2006-01-02T15:04"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ErrBadTimestamp is returned by ParseTimestamp.
var ErrBadTimestamp = errors.New("bad timestamp")

// ParseTimestamp parses a combined date-time string. The wall-clock fields are
// kept as written; an explicit offset (RFC 3339) is accepted but not converted,
// since plancal renders in a single display timezone.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// FormatTimestamp renders t's wall-clock time in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
