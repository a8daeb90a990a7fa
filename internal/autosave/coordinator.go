package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const defaultQuietPeriod = 5 * time.Second

// Saver is the persistence surface autosave needs.
type Saver interface {
	Busy() bool
	Autosave(ctx context.Context, state project.State, dest persistence.Destination) (persistence.SaveResult, error)
}

// Timer is the subset of *time.Timer the coordinator uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d.
type AfterFunc func(d time.Duration, fn func()) Timer

// Outcome describes one firing, for hosts that surface autosave status.
type Outcome struct {
	Saved    bool
	Skipped  string
	Result   persistence.SaveResult
	Err      error
	FiredAt  time.Time
	Duration time.Duration
}

// Coordinator owns the debounce timer.
type Coordinator struct {
	saver       Saver
	logger      *slog.Logger
	quiet       time.Duration
	afterFunc   AfterFunc
	needsTarget func(project.State)
	onOutcome   func(Outcome)

	mu          sync.Mutex
	enabled     bool
	destination persistence.Destination
	pending     *project.State
	timer       Timer
	seq         uint64
	stopped     bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithQuietPeriod sets the debounce delay.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.quiet = d
		}
	}
}

// WithAfterFunc replaces time.AfterFunc.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithDestinationRequest is called when a firing finds no destination and
// the project has content.
func WithDestinationRequest(fn func(project.State)) Option {
	return func(c *Coordinator) { c.needsTarget = fn }
}

// WithOutcome observes every firing.
func WithOutcome(fn func(Outcome)) Option {
	return func(c *Coordinator) { c.onOutcome = fn }
}

// WithDestination sets the initial destination.
func WithDestination(dest persistence.Destination) Option {
	return func(c *Coordinator) { c.destination = dest }
}

// New constructs an enabled coordinator.
func New(saver Saver, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		saver:   saver,
		logger:  logging.NewComponentLogger(logger, "autosave"),
		quiet:   defaultQuietPeriod,
		enabled: true,
		afterFunc: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify records a state change and restarts the quiet period.
func (c *Coordinator) Notify(state project.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.stopped {
		return
	}
	snapshot := state.Clone()
	c.pending = &snapshot
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.timer = c.afterFunc(c.quiet, func() { c.fire(seq) })
}

// SetEnabled turns autosave on or off. Disabling drops any pending change.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.cancelLocked()
	}
}

// Enabled reports whether autosave is on.
func (c *Coordinator) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetDestination chooses where autosave writes.
func (c *Coordinator) SetDestination(dest persistence.Destination) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destination = dest
}

// Destination returns the chosen destination.
func (c *Coordinator) Destination() persistence.Destination {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destination
}

// Flush fires immediately if a change is pending.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	seq := c.seq
	c.mu.Unlock()
	c.fire(seq)
}

// Stop cancels the timer. Later notifications are ignored.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.cancelLocked()
}

func (c *Coordinator) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
}

// fire saves the pending state. A timer superseded by a later Notify
// carries an old seq and does nothing.
func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}
	state := c.pending
	enabled := c.enabled
	dest := c.destination
	c.timer = nil
	if state == nil || !enabled {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	started := time.Now()
	outcome := Outcome{FiredAt: started}
	defer func() {
		outcome.Duration = time.Since(started)
		if c.onOutcome != nil {
			c.onOutcome(outcome)
		}
	}()

	if dest == persistence.DestinationNone {
		outcome.Skipped = "no destination"
		if state.HasContent() && c.needsTarget != nil {
			c.logger.Info("autosave needs a destination", logging.String(logging.FieldDecisionType, "autosave_destination_request"))
			c.needsTarget(*state)
		}
		return
	}
	if c.saver.Busy() {
		outcome.Skipped = "operation in progress"
		c.logger.Debug("autosave skipped, foreground action running")
		return
	}

	ctx := services.WithStage(context.Background(), "autosave")
	ctx = services.WithProject(ctx, state.ProjectName)
	result, err := c.saver.Autosave(ctx, *state, dest)
	if err != nil {
		outcome.Err = err
		switch {
		case errors.Is(err, services.ErrNoDestination), errors.Is(err, services.ErrLoginRequired), errors.Is(err, services.ErrBusy):
			outcome.Skipped = err.Error()
			c.logger.Debug("autosave skipped", logging.Error(err))
		default:
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "autosave failed", "autosave_failed",
				logging.Error(err),
				logging.String("destination", string(dest)),
				logging.String(logging.FieldImpact, "changes since the last save are not persisted"),
				logging.String(logging.FieldErrorHint, "save manually to surface the error"),
			)
		}
		return
	}
	outcome.Saved = true
	outcome.Result = result
	c.logger.Debug("autosaved",
		logging.String("destination", string(result.Destination)),
		logging.String("location", result.Location),
	)
}
