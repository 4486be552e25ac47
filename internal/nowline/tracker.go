// Package nowline keeps the position of the "current time" marker drawn on
// the week timeline.
package nowline

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/timeaxis"
)

// DefaultCadence fires at the start of every minute.
const DefaultCadence = "* * * * *"

// State of a Tracker.
type State int

const (
	Idle State = iota
	Ticking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ticking:
		return "ticking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Marker is the position of "now" on the timeline.
type Marker struct {
	At    time.Time          `json:"at"`
	Date  calendar.Date      `json:"date"`
	Index timeaxis.HourIndex `json:"index"`
	Top   float64            `json:"top"`
}

// Column is the weekday column the marker belongs to.
func (m Marker) Column() int {
	return int(m.Date.Weekday())
}

// VisibleIn reports whether the marker is drawn in the given column of frame:
// only today's column, and only when frame is the week that contains today.
func (m Marker) VisibleIn(frame calendar.WeekFrame, column int) bool {
	if m.Date.IsZero() {
		return false
	}
	col, ok := frame.Column(m.Date)
	return ok && col == column
}

// Compute derives the marker for the clock's current time. The marker snaps
// down to the quarter that contains now.
func Compute(clock calendar.Clock, hourHeight float64) Marker {
	now := clock.Now()
	idx := timeaxis.FromTime(now)
	return Marker{
		At:    now,
		Date:  calendar.FromTime(now),
		Index: idx,
		Top:   idx.Offset(hourHeight),
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCadence sets the cron spec used while ticking.
func WithCadence(spec string) Option {
	return func(t *Tracker) {
		if spec != "" {
			t.cadence = spec
		}
	}
}

// OnTick registers a callback invoked after every recomputation, including the
// immediate one done by Start. It runs on the ticking goroutine.
func OnTick(fn func(Marker)) Option {
	return func(t *Tracker) { t.onTick = fn }
}

// Tracker recomputes the marker on a fixed cadence between Start and Stop.
//
// Every tick recomputes from the clock instead of advancing the previous
// value, so a late or doubled tick only leaves a stale marker until the next
// one.
type Tracker struct {
	clock      calendar.Clock
	hourHeight float64
	cadence    string
	onTick     func(Marker)

	mu     sync.Mutex
	state  State
	cron   *cron.Cron
	marker Marker
}

// NewTracker returns an idle tracker.
func NewTracker(clock calendar.Clock, hourHeight float64, opts ...Option) *Tracker {
	t := &Tracker{
		clock:      clock,
		hourHeight: hourHeight,
		cadence:    DefaultCadence,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start computes the marker immediately and begins ticking. Starting a
// ticking tracker is a no-op.
func (t *Tracker) Start() error {
	t.mu.Lock()
	if t.state == Ticking {
		t.mu.Unlock()
		return nil
	}

	loc := t.clock.Now().Location()
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(t.cadence, t.Tick); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("nowline: bad cadence %q: %w", t.cadence, err)
	}
	// The cron starts under the lock so a concurrent Stop always sees a
	// running scheduler it can stop.
	c.Start()
	t.cron = c
	t.state = Ticking
	t.mu.Unlock()

	t.Tick()
	appLog.Debug("nowline tracker started", "cadence", t.cadence)
	return nil
}

// Stop cancels the cadence and waits for a running tick to finish. Stopping
// an idle tracker is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.state == Idle {
		t.mu.Unlock()
		return
	}
	c := t.cron
	t.cron = nil
	t.state = Idle
	t.mu.Unlock()

	<-c.Stop().Done()
	appLog.Debug("nowline tracker stopped")
}

// Tick recomputes the marker from the clock. It is what the cadence calls;
// calling it directly is harmless.
func (t *Tracker) Tick() {
	m := Compute(t.clock, t.hourHeight)

	t.mu.Lock()
	t.marker = m
	fn := t.onTick
	t.mu.Unlock()

	if fn != nil {
		fn(m)
	}
}

// Marker returns the last computed marker. Before the first tick it returns a
// freshly computed one.
func (t *Tracker) Marker() Marker {
	t.mu.Lock()
	m := t.marker
	t.mu.Unlock()
	if m.At.IsZero() {
		return Compute(t.clock, t.hourHeight)
	}
	return m
}

// State returns whether the tracker is ticking.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
