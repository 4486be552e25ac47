package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"plancal/internal/caldav"
	"plancal/internal/calendar"
	"plancal/internal/capture"
	"plancal/internal/config"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/nowline"
	"plancal/internal/palette"
	"plancal/internal/placement"
	"plancal/internal/refresh"
	"plancal/internal/storage"
	"plancal/internal/view"
	"plancal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   string
	date       string
	debug      bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("plancal failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		appLog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		appLog.Error("failed to set GOMAXPROCS", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.snapshot != "" {
		conf.Capture.OutputPath = flags.snapshot
		conf.Capture.Disabled = false
	}
	appLog.SetFormat(conf.LogFormat)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("plancal starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"ics_count", len(conf.ICS),
		"caldav", conf.CalDAV.Enabled(),
		"capture", !conf.Capture.Disabled,
		"once", flags.once,
	)

	loc := conf.Location()
	clock := calendar.SystemClock{Location: loc}

	store, err := storage.Open(conf.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var snapshots *capture.Runner
	if !conf.Capture.Disabled && !flags.once {
		if snapshots, err = newSnapshotRunner(conf, flags); err != nil {
			return err
		}
	}

	refresher := newRefresher(conf, store, clock, loc, snapshots)

	if flags.once {
		return refresher.RunOnce(context.Background())
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	engine := placement.NewEngine(conf.Layout, palette.NewResolver(conf.Palette))
	tracker := nowline.NewTracker(clock, engine.Layout().HourHeight, nowline.WithCadence(conf.NowCadence))
	if err := tracker.Start(); err != nil {
		return err
	}
	defer tracker.Stop()

	deps := web.Deps{
		Store:   store,
		Builder: view.NewBuilder(engine, clock).WithMarkers(tracker),
		Refresh: refresher,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.StartServer(gctx, conf, deps)
	})
	g.Go(func() error {
		if err := refresher.RunOnce(gctx); err != nil {
			// Partial failures are logged by the refresher; keep serving.
			appLog.Debug("initial refresh incomplete", "error", err.Error())
		}
		done, err := refresher.Start(gctx)
		if err != nil {
			return err
		}
		<-done
		return nil
	})
	if snapshots != nil {
		g.Go(func() error {
			// Captures need the week page, so wait for the server first.
			if err := waitHealthy(gctx, "http://"+localAddr(conf.Listen)+"/health"); err != nil {
				return err
			}
			return snapshots.Run(gctx)
		})
	}

	err = g.Wait()
	appLog.Info("plancal exiting")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newRefresher(conf *config.Config, store *storage.Storage, clock calendar.Clock, loc *time.Location, snapshots *capture.Runner) *refresh.Refresher {
	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL, Color: c.Color})
	}

	opts := refresh.Options{
		Sources:     sources,
		Fetcher:     ics.NewFetcher(filepath.Join(filepath.Dir(conf.DatabasePath), "ics-cache")),
		Sink:        store,
		Clock:       clock,
		HorizonDays: conf.HorizonDays,
		Schedule:    conf.RefreshCron,
	}
	if snapshots != nil {
		// Every run may change the week page; refresh its snapshot.
		opts.AfterRun = func(error) { snapshots.Trigger() }
	}
	if conf.CalDAV.Enabled() {
		opts.CalDAV = caldav.NewClient(conf.CalDAV.URL, conf.CalDAV.Username, conf.CalDAV.Password).
			WithColor(conf.CalDAV.Color).
			WithLocation(loc)
		opts.CalDAVPath = conf.CalDAV.Calendar
		opts.CalDAVSource = caldav.SourceID
	}
	return refresh.New(opts)
}

// newSnapshotRunner builds the runner that keeps conf.Capture.OutputPath,
// served as /week.png, in sync with the week page.
func newSnapshotRunner(conf *config.Config, flags flagConfig) (*capture.Runner, error) {
	opts := capture.Options{
		BaseURL:    "http://" + localAddr(conf.Listen),
		OutputPath: conf.Capture.OutputPath,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
		Timeout:    time.Duration(conf.Capture.TimeoutSec) * time.Second,
	}
	if flags.date != "" {
		d, err := calendar.ParseDate(flags.date)
		if err != nil {
			return nil, fmt.Errorf("-date: %w", err)
		}
		opts.Date = d
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return capture.NewRunner(opts), nil
}

// localAddr turns a listen address such as ":8080" into one a local client
// can dial.
func localAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	return strings.Replace(listen, "0.0.0.0", "127.0.0.1", 1)
}

func waitHealthy(ctx context.Context, url string) error {
	client := &http.Client{Timeout: time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/plancal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one feed refresh and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write week page snapshots to this path (overrides capture.output_path and enables capture)")
	flag.StringVar(&cfg.date, "date", "", "Week captured for snapshots (YYYY-MM-DD, default today)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
