package promptcache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// Extractor produces a standalone prompt for one panel image.
type Extractor interface {
	ExtractPrompt(ctx context.Context, cell, globalContext, shotDescription string) (string, error)
}

// Request identifies one panel and the material used to describe it.
type Request struct {
	Index           int
	Image           string
	Context         string
	ShotDescription string
}

type flight struct {
	done chan struct{}
	text string
}

// Cache is safe for concurrent use.
type Cache struct {
	extractor Extractor
	logger    *slog.Logger

	mu         sync.Mutex
	entries    map[int]string
	pending    map[int]*flight
	generation uint64
	wg         sync.WaitGroup
}

// New constructs an empty cache.
func New(extractor Extractor, logger *slog.Logger) *Cache {
	return &Cache{
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "promptcache"),
		entries:   make(map[int]string),
		pending:   make(map[int]*flight),
	}
}

// Get returns the prompt for req.Index, extracting it at most once at a time.
func (c *Cache) Get(ctx context.Context, req Request) string {
	text, f := c.start(ctx, req)
	if f == nil {
		return text
	}
	select {
	case <-f.done:
		return f.text
	case <-ctx.Done():
		return req.ShotDescription
	}
}

// Prefetch starts extraction for every request without waiting. Failures
// are logged and otherwise ignored.
func (c *Cache) Prefetch(ctx context.Context, reqs []Request) {
	started := 0
	for _, req := range reqs {
		if _, f := c.start(ctx, req); f != nil {
			started++
		}
	}
	if started > 0 {
		logging.WithContext(ctx, c.logger).Debug("prompt prefetch started", logging.Int("panels", started))
	}
}

// Cached returns the cached prompt for index, if any.
func (c *Cache) Cached(index int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[index]
	return text, ok
}

// Pending reports how many extractions are in flight.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Reset drops every cached prompt and forgets in-flight extractions. Those
// extractions still complete but their results are not stored.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.generation++
	c.entries = make(map[int]string)
	c.pending = make(map[int]*flight)
	c.mu.Unlock()
}

// Wait blocks until every extraction started so far has finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// start returns the cached text, or the flight to wait on.
func (c *Cache) start(ctx context.Context, req Request) (string, *flight) {
	c.mu.Lock()
	if text, ok := c.entries[req.Index]; ok {
		c.mu.Unlock()
		return text, nil
	}
	if f, ok := c.pending[req.Index]; ok {
		c.mu.Unlock()
		return "", f
	}
	f := &flight{done: make(chan struct{})}
	c.pending[req.Index] = f
	gen := c.generation
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), gen, req, f)
	return "", f
}

func (c *Cache) run(ctx context.Context, gen uint64, req Request, f *flight) {
	defer c.wg.Done()
	ctx = services.WithPanelIndex(ctx, req.Index)
	text, err := c.extractor.ExtractPrompt(ctx, req.Image, req.Context, req.ShotDescription)

	c.mu.Lock()
	if c.pending[req.Index] == f {
		delete(c.pending, req.Index)
	}
	stale := gen != c.generation
	if err == nil && !stale {
		c.entries[req.Index] = text
	}
	c.mu.Unlock()

	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "prompt extraction failed", "prompt_extraction_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "shot description used instead"),
			logging.String(logging.FieldErrorHint, "retry when sending the panel"),
		)
		text = req.ShotDescription
	} else if stale {
		c.logger.Debug("discarding stale prompt extraction", logging.PanelIndex(req.Index))
	}
	f.text = text
	close(f.done)
}
