// Package refresh pulls the configured ICS feeds and CalDAV calendar into
// storage on a schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"plancal/internal/calendar"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// maxParallelFetches bounds concurrent source pulls.
const maxParallelFetches = 4

// Sink receives the events of one source, replacing what it held before.
type Sink interface {
	ReplaceSourceEvents(ctx context.Context, sourceID string, events []model.Event) error
}

// FeedFetcher is satisfied by *ics.Fetcher.
type FeedFetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// EventSource is satisfied by *caldav.Client.
type EventSource interface {
	Events(ctx context.Context, calendarPath string, from, to time.Time) ([]model.Event, error)
}

// Options configures a Refresher.
type Options struct {
	Sources []ics.Source
	Fetcher FeedFetcher

	// CalDAV is optional.
	CalDAV       EventSource
	CalDAVPath   string
	CalDAVSource string

	Sink        Sink
	Clock       calendar.Clock
	HorizonDays int
	// Schedule is a five-field cron spec.
	Schedule string

	// AfterRun, when set, is called at the end of every RunOnce with its
	// result.
	AfterRun func(err error)
}

// Refresher synchronizes remote calendars into a Sink.
type Refresher struct {
	opts Options

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

func New(opts Options) *Refresher {
	if opts.Fetcher == nil {
		opts.Fetcher = ics.NewFetcher("")
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 35
	}
	if opts.CalDAVSource == "" {
		opts.CalDAVSource = "caldav"
	}
	return &Refresher{opts: opts}
}

// Range returns the days pulled by RunOnce: yesterday through today plus the
// horizon.
func (r *Refresher) Range() (calendar.Date, calendar.Date) {
	today := calendar.Today(r.opts.Clock)
	return today.AddDays(-1), today.AddDays(r.opts.HorizonDays)
}

// RunOnce pulls every source concurrently. A failing source keeps its
// previously stored events; the others are still replaced. The returned
// error joins every source failure.
func (r *Refresher) RunOnce(ctx context.Context) error {
	from, to := r.Range()
	loc := r.opts.Clock.Now().Location()
	// Stored timestamps are wall-clock values; windowing compares in UTC.
	wallFrom, wallTo := from.Time(time.UTC), to.AddDays(1).Time(time.UTC)

	var (
		errMu sync.Mutex
		errs  []error
	)
	fail := func(err error) {
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	for _, src := range r.opts.Sources {
		g.Go(func() error {
			res, err := r.opts.Fetcher.FetchOne(gctx, src)
			if err != nil {
				fail(fmt.Errorf("fetch %s: %w", src.ID, err))
				return nil
			}
			events, err := ics.ParseFeed(src, res.Body, loc)
			if err != nil {
				fail(err)
				return nil
			}
			if err := r.opts.Sink.ReplaceSourceEvents(gctx, src.ID, ics.Window(events, wallFrom, wallTo)); err != nil {
				fail(fmt.Errorf("store %s: %w", src.ID, err))
			}
			return nil
		})
	}

	if r.opts.CalDAV != nil && r.opts.CalDAVPath != "" {
		g.Go(func() error {
			events, err := r.opts.CalDAV.Events(gctx, r.opts.CalDAVPath, from.Time(loc), to.AddDays(1).Time(loc))
			if err != nil {
				fail(fmt.Errorf("caldav: %w", err))
				return nil
			}
			if err := r.opts.Sink.ReplaceSourceEvents(gctx, r.opts.CalDAVSource, ics.Window(events, wallFrom, wallTo)); err != nil {
				fail(fmt.Errorf("store %s: %w", r.opts.CalDAVSource, err))
			}
			return nil
		})
	}

	_ = g.Wait()
	err := errors.Join(errs...)

	r.mu.Lock()
	r.lastRun = r.opts.Clock.Now()
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		appLog.Error("refresh finished with errors", err, "failed", len(errs), "from", from.String(), "to", to.String())
	} else {
		appLog.Info("refresh finished", "sources", len(r.opts.Sources), "from", from.String(), "to", to.String())
	}
	if r.opts.AfterRun != nil {
		r.opts.AfterRun(err)
	}
	return err
}

// Last returns the time and result of the most recent run.
func (r *Refresher) Last() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}

// Start runs RunOnce on the schedule until ctx is cancelled. The returned
// channel is closed once the scheduler has stopped.
func (r *Refresher) Start(ctx context.Context) (<-chan struct{}, error) {
	loc := r.opts.Clock.Now().Location()
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(r.opts.Schedule, func() {
		_ = r.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("refresh: bad schedule %q: %w", r.opts.Schedule, err)
	}
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", r.opts.Schedule)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return done, nil
}
