package capture

import (
	"context"

	appLog "plancal/internal/log"
)

// Shooter renders the week page described by opts into PNG bytes.
type Shooter func(ctx context.Context, opts Options) ([]byte, error)

// Runner keeps the snapshot at Options.OutputPath current. It captures once
// when Run starts and again after every Trigger.
type Runner struct {
	opts    Options
	shoot   Shooter
	trigger chan struct{}
}

// NewRunner returns a Runner that captures with headless Chromium.
func NewRunner(opts Options) *Runner {
	return &Runner{
		opts:    opts,
		shoot:   Screenshot,
		trigger: make(chan struct{}, 1),
	}
}

// WithShooter replaces the Chromium renderer.
func (r *Runner) WithShooter(s Shooter) *Runner {
	if s != nil {
		r.shoot = s
	}
	return r
}

// Trigger requests a new capture. Requests made while one is already pending
// collapse into it; Trigger never blocks.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// CaptureOnce captures the week page and replaces the snapshot file.
func (r *Runner) CaptureOnce(ctx context.Context) error {
	return capture(ctx, r.opts, r.shoot)
}

// Run captures immediately and then on every Trigger until ctx is done.
// Failed captures are logged and leave the previous snapshot in place.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.CaptureOnce(ctx); err != nil && ctx.Err() == nil {
			appLog.Error("week snapshot failed", err, "path", r.opts.OutputPath)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-r.trigger:
		}
	}
}
