package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/notifications"
)

// milestoneNotifier pushes completed and failed pipeline runs to the
// notification service. Sends run off the event path; wait drains them.
type milestoneNotifier struct {
	svc         notifications.Service
	logger      *slog.Logger
	timeout     time.Duration
	projectName func() string

	mu      sync.Mutex
	running string
	started time.Time
	wg      sync.WaitGroup
}

func newMilestoneNotifier(svc notifications.Service, timeout time.Duration, projectName func() string, logger *slog.Logger) *milestoneNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &milestoneNotifier{
		svc:         svc,
		logger:      logging.NewComponentLogger(logger, "notify"),
		timeout:     timeout,
		projectName: projectName,
	}
}

func (m *milestoneNotifier) observe(evt director.Event) {
	switch evt.Type {
	case director.EventStateChanged:
		m.mu.Lock()
		switch evt.Phase {
		case director.PhaseScripting:
			m.running = "generate"
		case director.PhaseRemastering:
			m.running, m.started = "remaster", time.Now()
		}
		m.mu.Unlock()
	case director.EventCompleted:
		name := m.projectName()
		switch evt.Phase {
		case director.PhaseCandidatesReady:
			m.dispatch("candidates_ready", func(ctx context.Context) error {
				return m.svc.NotifyCandidatesReady(ctx, name, evt.Total)
			})
		case director.PhasePanelsReady:
			m.mu.Lock()
			elapsed := time.Duration(0)
			if !m.started.IsZero() {
				elapsed = time.Since(m.started)
			}
			m.mu.Unlock()
			m.dispatch("panels_ready", func(ctx context.Context) error {
				return m.svc.NotifyPanelsReady(ctx, name, evt.Total, evt.Failed, elapsed)
			})
		}
	case director.EventFailed:
		m.mu.Lock()
		label := m.running
		m.mu.Unlock()
		m.dispatch("pipeline_failed", func(ctx context.Context) error {
			return m.svc.NotifyError(ctx, errors.New(evt.Message), label)
		})
	}
}

func (m *milestoneNotifier) dispatch(kind string, send func(context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logging.WarnWithContext(m.logger, "notification not delivered", "notify_failed",
				logging.String("kind", kind),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no push notification for this run"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}

// wait blocks until in-flight notifications finish or time out.
func (m *milestoneNotifier) wait() {
	m.wg.Wait()
}
