// Package capture renders the week page in headless Chromium and saves it
// as a PNG snapshot.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
)

// Default capture parameters. The height fits a 40px hour row timeline plus
// its header.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 1100
	DefaultTimeoutSec = 30
)

// readySelector is exposed by the week page once it is fully rendered.
const readySelector = `[data-ready="true"]`

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// BaseURL of the running server, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Date selects the week; the zero Date means the server's today.
	Date calendar.Date

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport in pixels; zero means the defaults.
	Width  int
	Height int

	// Timeout bounds the entire capture. Zero means DefaultTimeoutSec.
	Timeout time.Duration

	// Username and Password are sent as Basic Auth when set.
	Username string
	Password string
}

func (o *Options) normalize() error {
	if o.BaseURL == "" {
		return errors.New("capture: BaseURL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeoutSec * time.Second
	}
	return nil
}

// WeekURL returns the page URL captured for o.
func (o Options) WeekURL() (string, error) {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return "", fmt.Errorf("capture: bad base URL: %w", err)
	}
	u = u.JoinPath("week")
	if !o.Date.IsZero() {
		u.RawQuery = url.Values{"date": {o.Date.String()}}.Encode()
	}
	return u.String(), nil
}

func (o Options) headers() network.Headers {
	if o.Username == "" && o.Password == "" {
		return nil
	}
	token := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
	return network.Headers{"Authorization": "Basic " + token}
}

// CaptureWeekPNG launches a headless Chromium via chromedp, opens the week
// page, waits for its data-ready marker and writes a full-page PNG to
// opts.OutputPath. The file is replaced atomically.
func CaptureWeekPNG(ctx context.Context, opts Options) error {
	return capture(ctx, opts, Screenshot)
}

func capture(ctx context.Context, opts Options, shoot Shooter) error {
	if err := opts.normalize(); err != nil {
		return err
	}
	start := time.Now()
	png, err := shoot(ctx, opts)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("week snapshot captured", "path", opts.OutputPath, "bytes", len(png), "took", time.Since(start).String())
	return nil
}

// Screenshot renders the week page in Chromium and returns the PNG bytes.
// opts must already carry its defaults.
func Screenshot(parentCtx context.Context, opts Options) ([]byte, error) {
	target, err := opts.WeekURL()
	if err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		network.Enable(),
	}
	if h := opts.headers(); h != nil {
		tasks = append(tasks, network.SetExtraHTTPHeaders(h))
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// Let the final paint land.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return png, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".plancal-capture-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
