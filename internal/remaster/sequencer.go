package remaster

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const defaultDelay = 800 * time.Millisecond

// Remasterer enhances one panel.
type Remasterer interface {
	RemasterCell(ctx context.Context, req generation.RemasterRequest) (string, error)
}

// SavedBatch describes a persisted batch.
type SavedBatch struct {
	ID         string
	Project    string
	Folder     string
	SourcePath string
	PanelPaths []string
	CreatedAt  time.Time
}

// BatchSaver persists a source composite with its panels. Implementations
// return services.ErrNoDestination when no local destination is active.
type BatchSaver interface {
	SaveBatch(ctx context.Context, source string, panels []string) (SavedBatch, error)
}

// Batch is the input of one run.
type Batch struct {
	Source      string
	Cells       []string
	Shots       []string
	Resolution  project.Resolution
	AspectRatio project.AspectRatio
	Style       project.StylePreferences
}

// Result holds one panel per input cell.
type Result struct {
	Panels []string
	Failed []int
	Saved  *SavedBatch
}

// BatchID returns the persisted batch ID, or "".
func (r Result) BatchID() string {
	if r.Saved == nil {
		return ""
	}
	return r.Saved.ID
}

// Progress is reported after each cell.
type Progress struct {
	Index  int
	Total  int
	Failed bool
}

// Sequencer runs remaster batches.
type Sequencer struct {
	remasterer Remasterer
	saver      BatchSaver
	logger     *slog.Logger
	delay      time.Duration
	sleep      func(context.Context, time.Duration) error
	progress   func(Progress)
}

// Option customizes a Sequencer.
type Option func(*Sequencer)

// WithDelay sets the pause after each successful call.
func WithDelay(d time.Duration) Option {
	return func(s *Sequencer) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSleeper overrides how delays are performed.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Sequencer) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithBatchSaver persists completed batches.
func WithBatchSaver(saver BatchSaver) Option {
	return func(s *Sequencer) {
		s.saver = saver
	}
}

// WithProgress registers a per-cell callback.
func WithProgress(fn func(Progress)) Option {
	return func(s *Sequencer) {
		s.progress = fn
	}
}

// NewSequencer constructs a sequencer.
func NewSequencer(remasterer Remasterer, logger *slog.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		remasterer: remasterer,
		logger:     logging.NewComponentLogger(logger, "remaster"),
		delay:      defaultDelay,
		sleep:      generation.SleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run remasters every cell in order. The only error is an empty batch.
func (s *Sequencer) Run(ctx context.Context, batch Batch) (Result, error) {
	total := len(batch.Cells)
	if total == 0 {
		return Result{}, services.Wrap(services.ErrMissingInput, "remaster", "run", "no cells to remaster", nil)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("remaster batch started",
		logging.Int("cells", total),
		logging.String("resolution", string(batch.Resolution)),
		logging.String("style", string(batch.Style.Mode)),
	)

	result := Result{Panels: make([]string, total)}
	for i, cell := range batch.Cells {
		cellCtx := services.WithPanelIndex(ctx, i)
		panel, err := s.remasterer.RemasterCell(cellCtx, generation.RemasterRequest{
			Cell:            cell,
			ShotDescription: shotAt(batch.Shots, i),
			Resolution:      batch.Resolution,
			AspectRatio:     batch.AspectRatio,
			Style:           batch.Style,
		})
		failed := err != nil || panel == ""
		if failed {
			if err == nil {
				err = errors.New("empty panel")
			}
			logging.WarnWithContext(logging.WithContext(cellCtx, s.logger), "panel remaster failed", "panel_remaster_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "original crop kept"),
				logging.String(logging.FieldErrorHint, generation.ProviderMessage(err)),
			)
			result.Panels[i] = cell
			result.Failed = append(result.Failed, i)
		} else {
			result.Panels[i] = panel
			if i < total-1 {
				if err := s.sleep(ctx, s.delay); err != nil {
					logger.Debug("remaster delay interrupted", logging.Error(err))
				}
			}
		}
		if s.progress != nil {
			s.progress(Progress{Index: i, Total: total, Failed: failed})
		}
	}

	if s.saver != nil {
		s.persist(ctx, batch.Source, &result)
	}
	logger.Info("remaster batch complete",
		logging.Int("cells", total),
		logging.Int("failed", len(result.Failed)),
		logging.String(logging.FieldBatchID, result.BatchID()),
	)
	return result, nil
}

func (s *Sequencer) persist(ctx context.Context, source string, result *Result) {
	saved, err := s.saver.SaveBatch(ctx, source, result.Panels)
	switch {
	case errors.Is(err, services.ErrNoDestination):
		return
	case err != nil:
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "batch save failed", "batch_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "panels kept in memory only"),
			logging.String(logging.FieldErrorHint, "check the project folder permissions"),
		)
		return
	}
	result.Saved = &saved
}

func shotAt(shots []string, i int) string {
	if i < len(shots) && shots[i] != "" {
		return shots[i]
	}
	return project.FallbackShotDescription(i)
}
