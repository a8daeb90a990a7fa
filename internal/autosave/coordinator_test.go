package autosave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/autosave"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
	delays []time.Duration
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) autosave.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &manualTimer{fn: fn}
	c.timers = append(c.timers, timer)
	c.delays = append(c.delays, d)
	return timer
}

// fireAll runs every scheduled callback, including stopped ones, the way a
// racing runtime timer could.
func (c *manualClock) fireAll() {
	c.mu.Lock()
	timers := append([]*manualTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, timer := range timers {
		timer.fn()
	}
}

type fakeSaver struct {
	mu    sync.Mutex
	busy  bool
	err   error
	saves []project.State
	dests []persistence.Destination
}

func (f *fakeSaver) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *fakeSaver) Autosave(_ context.Context, state project.State, dest persistence.Destination) (persistence.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return persistence.SaveResult{}, f.err
	}
	f.saves = append(f.saves, state)
	f.dests = append(f.dests, dest)
	return persistence.SaveResult{Destination: dest, Location: "somewhere"}, nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func withIdea(idea string) project.State {
	st := project.New()
	st.StoryIdea = idea
	return st
}

func TestDebounceSavesLatestStateOnce(t *testing.T) {
	clock := &manualClock{}
	saver := &fakeSaver{}
	c := autosave.New(saver, nil,
		autosave.WithAfterFunc(clock.AfterFunc),
		autosave.WithQuietPeriod(2*time.Second),
		autosave.WithDestination(persistence.DestinationLocal),
	)
	c.Notify(withIdea("a"))
	c.Notify(withIdea("b"))
	c.Notify(withIdea("c"))

	if len(clock.timers) != 3 || !clock.timers[0].stopped || !clock.timers[1].stopped || clock.timers[2].stopped {
		t.Fatal("each change should restart the single timer")
	}
	if clock.delays[2] != 2*time.Second {
		t.Fatalf("unexpected quiet period %v", clock.delays[2])
	}
	clock.fireAll()
	if saver.count() != 1 {
		t.Fatalf("expected exactly one save, got %d", saver.count())
	}
	if saver.saves[0].StoryIdea != "c" || saver.dests[0] != persistence.DestinationLocal {
		t.Fatalf("unexpected save %+v to %s", saver.saves[0], saver.dests[0])
	}
}

func TestNotifyClonesState(t *testing.T) {
	saver := &fakeSaver{}
	c := autosave.New(saver, nil, autosave.WithAfterFunc((&manualClock{}).AfterFunc), autosave.WithDestination(persistence.DestinationCloud))
	st := withIdea("a")
	st.FinalImages = []string{"p1"}
	c.Notify(st)
	st.FinalImages[0] = "mutated"
	c.Flush()
	if saver.saves[0].FinalImages[0] != "p1" {
		t.Fatal("pending state shares memory with caller")
	}
}

func TestDisabledIsSilent(t *testing.T) {
	clock := &manualClock{}
	saver := &fakeSaver{}
	c := autosave.New(saver, nil, autosave.WithAfterFunc(clock.AfterFunc), autosave.WithDestination(persistence.DestinationLocal))
	c.Notify(withIdea("a"))
	c.SetEnabled(false)
	if c.Enabled() {
		t.Fatal("expected disabled")
	}
	clock.fireAll()
	c.Notify(withIdea("b"))
	c.Flush()
	if saver.count() != 0 {
		t.Fatalf("disabled autosave wrote %d times", saver.count())
	}
}

func TestSkipsWhileOperationLockHeld(t *testing.T) {
	saver := &fakeSaver{busy: true}
	var outcomes []autosave.Outcome
	c := autosave.New(saver, nil,
		autosave.WithAfterFunc((&manualClock{}).AfterFunc),
		autosave.WithDestination(persistence.DestinationLocal),
		autosave.WithOutcome(func(o autosave.Outcome) { outcomes = append(outcomes, o) }),
	)
	c.Notify(withIdea("a"))
	c.Flush()
	if saver.count() != 0 {
		t.Fatal("autosave must not write while a foreground action runs")
	}
	if len(outcomes) != 1 || outcomes[0].Skipped == "" {
		t.Fatalf("expected skipped outcome, got %+v", outcomes)
	}
}

func TestNoDestinationRequestsOneOnlyWithContent(t *testing.T) {
	saver := &fakeSaver{}
	var requests []project.State
	c := autosave.New(saver, nil,
		autosave.WithAfterFunc((&manualClock{}).AfterFunc),
		autosave.WithDestinationRequest(func(st project.State) { requests = append(requests, st) }),
	)

	c.Notify(project.New())
	c.Flush()
	if len(requests) != 0 {
		t.Fatal("empty project should not ask for a destination")
	}

	c.Notify(withIdea("noir heist"))
	c.Flush()
	if len(requests) != 1 || requests[0].StoryIdea != "noir heist" {
		t.Fatalf("expected destination request, got %+v", requests)
	}
	if saver.count() != 0 {
		t.Fatal("no write without a destination")
	}

	scripted := project.New()
	scripted.Script = &project.Script{Title: "t"}
	c.Notify(scripted)
	c.Flush()
	if len(requests) != 2 {
		t.Fatal("a script alone counts as content")
	}

	c.SetDestination(persistence.DestinationCloud)
	c.Notify(withIdea("x"))
	c.Flush()
	if saver.count() != 1 || c.Destination() != persistence.DestinationCloud {
		t.Fatal("expected save once a destination is chosen")
	}
}

func TestErrorsAreSwallowed(t *testing.T) {
	for _, err := range []error{
		services.Wrap(services.ErrNoDestination, "t", "t", "none", nil),
		services.Wrap(services.ErrAccessDenied, "t", "t", "denied", nil),
		errors.New("disk full"),
	} {
		saver := &fakeSaver{err: err}
		var got autosave.Outcome
		c := autosave.New(saver, nil,
			autosave.WithAfterFunc((&manualClock{}).AfterFunc),
			autosave.WithDestination(persistence.DestinationLocal),
			autosave.WithOutcome(func(o autosave.Outcome) { got = o }),
		)
		c.Notify(withIdea("a"))
		c.Flush()
		if got.Saved || !errors.Is(got.Err, err) {
			t.Fatalf("unexpected outcome %+v for %v", got, err)
		}
	}
}

func TestStopIgnoresLaterChanges(t *testing.T) {
	clock := &manualClock{}
	saver := &fakeSaver{}
	c := autosave.New(saver, nil, autosave.WithAfterFunc(clock.AfterFunc), autosave.WithDestination(persistence.DestinationLocal))
	c.Notify(withIdea("a"))
	c.Stop()
	c.Notify(withIdea("b"))
	clock.fireAll()
	c.Flush()
	if saver.count() != 0 {
		t.Fatalf("stopped coordinator saved %d times", saver.count())
	}
}

func TestRealTimerFires(t *testing.T) {
	saver := &fakeSaver{}
	done := make(chan autosave.Outcome, 1)
	c := autosave.New(saver, nil,
		autosave.WithQuietPeriod(10*time.Millisecond),
		autosave.WithDestination(persistence.DestinationLocal),
		autosave.WithOutcome(func(o autosave.Outcome) { done <- o }),
	)
	defer c.Stop()
	c.Notify(withIdea("a"))
	select {
	case o := <-done:
		if !o.Saved {
			t.Fatalf("expected save, got %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}
