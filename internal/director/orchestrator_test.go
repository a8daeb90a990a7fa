package director_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/services"
	"github.com/bozzyboy/nano-director-5/internal/testsupport"
)

func noDelay(context.Context, time.Duration) error { return nil }

func newOrchestrator(t *testing.T, fake *testsupport.FakeCollaborator, opts ...remaster.Option) *director.Orchestrator {
	t.Helper()
	opts = append([]remaster.Option{remaster.WithSleeper(noDelay)}, opts...)
	return director.New(fake, director.Options{RemasterOptions: opts})
}

func TestEndToEndDetectiveInRain(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.SetIdea("detective in rain"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetGridSize(2); err != nil {
		t.Fatal(err)
	}
	if err := o.SetCandidateCount(2); err != nil {
		t.Fatal(err)
	}
	if err := o.Generate(ctx); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := len(o.Snapshot().GridCandidates); got != 2 {
		t.Fatalf("expected 2 candidates, got %d", got)
	}
	if o.Phase() != director.PhaseCandidatesReady || o.Display() != director.PromptSelect {
		t.Fatalf("unexpected phase/display %s/%s", o.Phase(), o.Display())
	}

	if err := o.Select(0); err != nil {
		t.Fatal(err)
	}
	if o.Display() != director.PromptDirect {
		t.Fatalf("expected direct prompt after select, got %s", o.Display())
	}
	before := len(o.History())
	res, err := o.Direct(ctx)
	if err != nil {
		t.Fatalf("Direct returned error: %v", err)
	}
	if len(res.Panels) != 4 {
		t.Fatalf("expected 4 panels, got %d", len(res.Panels))
	}
	if len(o.History()) != before+1 {
		t.Fatalf("history should grow by one, got %d", len(o.History()))
	}
	if o.Phase() != director.PhasePanelsReady || o.Display() != director.ShowPanels {
		t.Fatalf("unexpected phase/display %s/%s", o.Phase(), o.Display())
	}
	o.WaitPrefetch()
	if fake.Calls("extract") != 4 {
		t.Fatalf("expected prefetch of 4 prompts, got %d", fake.Calls("extract"))
	}
	if _, ok := o.CachedPrompt(3); !ok {
		t.Fatal("expected prefetched prompt for panel 3")
	}
	snap := o.Snapshot()
	if snap.SelectedGridIndex == nil || *snap.SelectedGridIndex != 0 || len(snap.History) != 1 {
		t.Fatalf("unexpected snapshot selection/history: %v %d", snap.SelectedGridIndex, len(snap.History))
	}
}

func TestGenerateRequiresIdea(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	if err := o.Generate(context.Background()); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
	if fake.Calls("script") != 0 {
		t.Fatal("no provider call expected")
	}
}

func TestGenerateRecompilesDirtyScriptOnly(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("heist")
	if err := o.Generate(ctx); err != nil {
		t.Fatal(err)
	}

	if err := o.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	if fake.Calls("script") != 1 || fake.Calls("recompile") != 0 {
		t.Fatalf("clean re-roll should skip script work: script=%d recompile=%d", fake.Calls("script"), fake.Calls("recompile"))
	}

	if err := o.EditShot(1, "the vault door opens"); err != nil {
		t.Fatal(err)
	}
	if !o.Status().ScriptDirty {
		t.Fatal("edit should mark the script dirty")
	}
	if err := o.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	if fake.Calls("recompile") != 1 {
		t.Fatalf("expected recompile, got %d", fake.Calls("recompile"))
	}
	snap := o.Snapshot()
	if snap.IsScriptDirty || snap.Script.Shots[1].Description != "the vault door opens" {
		t.Fatalf("unexpected script after recompile: %+v", snap.Script)
	}
	if got := fake.LastCandidateRequest().Prompt; got != snap.Script.GridPrompt || got == "" {
		t.Fatalf("candidates should use recompiled prompt, got %q", got)
	}
}

func TestGenerateFailureClearsCandidatesAndSurfaces(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	if err := o.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	_ = o.Select(1)

	fake.CandidateErr = services.Wrap(services.ErrRateLimited, "gemini", "image", "429", nil)
	var failures []director.Event
	unsubscribe := o.Subscribe(func(evt director.Event) {
		if evt.Type == director.EventFailed {
			failures = append(failures, evt)
		}
	})
	defer unsubscribe()

	err := o.Generate(ctx)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	st := o.Status()
	if st.Candidates != 0 || st.Selected != nil || st.Phase != director.PhaseIdle {
		t.Fatalf("optimistic clear expected, got %+v", st)
	}
	if !st.HasScript {
		t.Fatal("script should survive a candidate failure")
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure event, got %d", len(failures))
	}
}

func TestSelectValidatesIndex(t *testing.T) {
	o := newOrchestrator(t, &testsupport.FakeCollaborator{})
	if err := o.Select(0); !errors.Is(err, services.ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestDirectRequiresSelection(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	_ = o.SetIdea("x")
	_ = o.Generate(context.Background())
	if _, err := o.Direct(context.Background()); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
}

func TestDirectToleratesPanelFailures(t *testing.T) {
	fake := &testsupport.FakeCollaborator{RemasterFail: map[int]bool{0: true, 5: true}}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.SetGridSize(3)
	_ = o.SetCandidateCount(1)
	if err := o.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	_ = o.Select(0)
	res, err := o.Direct(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Panels) != 9 || len(res.Failed) != 2 {
		t.Fatalf("expected 9 panels with 2 failures, got %d/%v", len(res.Panels), res.Failed)
	}
	shots := fake.RemasterShots()
	if shots[4] != "shot 5 of x" {
		t.Fatalf("unexpected shot description %q", shots[4])
	}
}

func TestDirectFailureRevertsDirectedMarker(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.Generate(ctx)
	wc := o.WorkingCopy()
	wc.State.GridCandidates[0] = "not an image"
	o.Resume(wc)
	_ = o.Select(0)

	if _, err := o.Direct(ctx); err == nil {
		t.Fatal("expected split failure")
	}
	st := o.Status()
	if st.Directed != nil || st.Display != director.PromptDirect || st.Phase != director.PhaseSelecting {
		t.Fatalf("expected reverted direct marker, got %+v", st)
	}
}

func TestSelectingAnotherCandidateAsksToDirectAgain(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.Generate(ctx)
	_ = o.Select(0)
	if _, err := o.Direct(ctx); err != nil {
		t.Fatal(err)
	}
	_ = o.Select(1)
	if o.Display() != director.PromptDirect {
		t.Fatalf("expected direct prompt, got %s", o.Display())
	}
	_ = o.Select(0)
	if o.Display() != director.ShowPanels {
		t.Fatalf("expected panels again, got %s", o.Display())
	}
}

func TestStyleAppendAndOverrideAreExclusive(t *testing.T) {
	o := newOrchestrator(t, &testsupport.FakeCollaborator{})
	if err := o.SetStyleOverride("charcoal sketch"); err != nil {
		t.Fatal(err)
	}
	before := o.Snapshot().StylePrefs
	if err := o.SetStyleAppend("more rain"); !errors.Is(err, services.ErrStyleConflict) {
		t.Fatalf("expected style conflict, got %v", err)
	}
	if o.Snapshot().StylePrefs != before {
		t.Fatal("rejected mutation changed state")
	}
	if err := o.SetStyleOverride(""); err != nil {
		t.Fatal(err)
	}
	if err := o.SetStyleAppend("more rain"); err != nil {
		t.Fatalf("append should be allowed once override is cleared: %v", err)
	}
	if err := o.SetStyleOverride("oil"); !errors.Is(err, services.ErrStyleConflict) {
		t.Fatalf("expected style conflict, got %v", err)
	}
}

func TestSettersRejectInvalidValues(t *testing.T) {
	o := newOrchestrator(t, &testsupport.FakeCollaborator{})
	checks := []error{
		o.SetGridSize(5),
		o.SetCandidateCount(0),
		o.SetAspectRatio("2:1"),
		o.SetResolution("8K"),
		o.SetStyleMode("PASTEL"),
		o.SetCameraShots([]project.CameraShot{"SPINNING"}),
		o.EditShot(0, "no script yet"),
	}
	for i, err := range checks {
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("check %d: expected validation error, got %v", i, err)
		}
	}
	if snap := o.Snapshot(); snap.GridSize != 2 || snap.CandidateCount != 2 {
		t.Fatalf("defaults changed by rejected setters: %+v", snap)
	}
}

func TestRestoreReplacesLiveStateAndKeepsLedger(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.SetStyleMode(project.StyleNoir)
	_ = o.Generate(ctx)
	_ = o.Select(0)
	first, err := o.Direct(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_ = o.SetStyleMode(project.StyleAnime)
	_ = o.SetGridSize(3)
	_ = o.Generate(ctx)
	_ = o.Select(1)
	if _, err := o.Direct(ctx); err != nil {
		t.Fatal(err)
	}
	_ = o.EditShot(0, "edited")
	ledgerBefore := o.History()

	if err := o.Restore(first.HistoryID); err != nil {
		t.Fatal(err)
	}
	snap := o.Snapshot()
	if snap.GridSize != 2 || snap.StylePrefs.Mode != project.StyleNoir || len(snap.FinalImages) != 4 {
		t.Fatalf("restore mismatch: grid=%d style=%s panels=%d", snap.GridSize, snap.StylePrefs.Mode, len(snap.FinalImages))
	}
	if snap.IsScriptDirty || snap.SelectedGridIndex != nil {
		t.Fatal("restore should clear dirty flag and selection")
	}
	ledgerAfter := o.History()
	if len(ledgerAfter) != len(ledgerBefore) || ledgerAfter[0].ID != ledgerBefore[0].ID {
		t.Fatal("restore changed the ledger")
	}
	if _, ok := o.CachedPrompt(0); ok {
		t.Fatal("restore should clear the prompt cache")
	}
	if err := o.Restore("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendToEditorReusesPrefetchAndCapsRefs(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := director.New(fake, director.Options{
		RemasterOptions: []remaster.Option{remaster.WithSleeper(noDelay)},
		MaxEditorRefs:   3,
	})
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.SetRefImages([]string{"r1", "r2", "r3"})
	_ = o.Generate(ctx)
	_ = o.Select(0)
	res, err := o.Direct(ctx)
	if err != nil {
		t.Fatal(err)
	}
	o.WaitPrefetch()

	transfer, err := o.SendToEditor(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if transfer.Prompt != "extracted: shot 3 of x" {
		t.Fatalf("unexpected prompt %q", transfer.Prompt)
	}
	if len(transfer.RefImages) != 3 || transfer.RefImages[0] != res.Panels[2] || transfer.RefImages[2] != "r2" {
		t.Fatalf("unexpected refs %v", transfer.RefImages)
	}
	if fake.Calls("extract") != 4 {
		t.Fatalf("send should reuse the prefetched prompt, extract calls = %d", fake.Calls("extract"))
	}
	if _, err := o.SendToEditor(ctx, 4); !errors.Is(err, services.ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestLoadDiscardsInFlightGeneration(t *testing.T) {
	gate := make(chan struct{})
	fake := &testsupport.FakeCollaborator{Gate: gate}
	o := newOrchestrator(t, fake)
	_ = o.SetIdea("slow")

	var wg sync.WaitGroup
	var genErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		genErr = o.Generate(context.Background())
	}()
	deadline := time.Now().Add(2 * time.Second)
	for fake.Calls("script") == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := o.Generate(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy while scripting, got %v", err)
	}

	loaded := project.New()
	loaded.StoryIdea = "loaded project"
	o.Load(loaded)
	close(gate)
	wg.Wait()

	if !errors.Is(genErr, director.ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", genErr)
	}
	snap := o.Snapshot()
	if snap.StoryIdea != "loaded project" || snap.Script != nil {
		t.Fatalf("stale result leaked into loaded state: %+v", snap)
	}
}

func TestLoadUsesManifestSelectionForBothMarkers(t *testing.T) {
	o := newOrchestrator(t, &testsupport.FakeCollaborator{})
	st := project.State{
		StoryIdea:      "loaded",
		GridCandidates: []string{"a", "b"},
		FinalImages:    []string{"1", "2", "3", "4"},
		Script:         &project.Script{Title: "t"},
		History:        []project.HistoryItem{{ID: "h1"}},
	}
	idx := 1
	st.SelectedGridIndex = &idx
	o.Load(st)

	status := o.Status()
	if status.Display != director.ShowPanels || status.Phase != director.PhasePanelsReady {
		t.Fatalf("unexpected status after load: %+v", status)
	}
	if status.History != 1 {
		t.Fatalf("expected loaded history, got %d", status.History)
	}
	snap := o.Snapshot()
	if snap.GridSize != 2 || snap.Resolution != project.Resolution2K || snap.StylePrefs.Mode != project.StyleDefault {
		t.Fatalf("defaults not applied: %+v", snap)
	}
}

func TestSubscribersSeeStateChanges(t *testing.T) {
	o := newOrchestrator(t, &testsupport.FakeCollaborator{})
	var mu sync.Mutex
	count := 0
	unsubscribe := o.Subscribe(func(evt director.Event) {
		if evt.Type == director.EventStateChanged {
			mu.Lock()
			count++
			mu.Unlock()
		}
	})
	_ = o.SetIdea("a")
	_ = o.SetProjectName("b")
	unsubscribe()
	_ = o.SetIdea("c")

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("expected 2 change events, got %d", count)
	}
}

func TestCompletedEventsCarryCounts(t *testing.T) {
	fake := &testsupport.FakeCollaborator{RemasterFail: map[int]bool{1: true}}
	o := newOrchestrator(t, fake)
	ctx := context.Background()

	var mu sync.Mutex
	var completed []director.Event
	unsubscribe := o.Subscribe(func(evt director.Event) {
		if evt.Type == director.EventCompleted {
			mu.Lock()
			completed = append(completed, evt)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	_ = o.SetIdea("x")
	_ = o.SetGridSize(2)
	_ = o.SetCandidateCount(3)
	if err := o.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	_ = o.Select(1)
	if _, err := o.Direct(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed events, got %+v", completed)
	}
	if completed[0].Phase != director.PhaseCandidatesReady || completed[0].Total != 3 {
		t.Fatalf("unexpected generate event %+v", completed[0])
	}
	if completed[1].Phase != director.PhasePanelsReady || completed[1].Total != 4 || completed[1].Failed != 1 {
		t.Fatalf("unexpected direct event %+v", completed[1])
	}
}

func TestGridSizeChangeDropsMismatchedPanels(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.Generate(ctx)
	_ = o.Select(0)
	if _, err := o.Direct(ctx); err != nil {
		t.Fatal(err)
	}
	o.WaitPrefetch()

	if err := o.SetGridSize(2); err != nil {
		t.Fatal(err)
	}
	if got := len(o.Snapshot().FinalImages); got != 4 {
		t.Fatalf("same size should keep panels, got %d", got)
	}

	if err := o.SetGridSize(3); err != nil {
		t.Fatalf("SetGridSize(3) returned error: %v", err)
	}
	st := o.Status()
	if st.Panels != 0 || st.Directed != nil {
		t.Fatalf("panels for the old grid survived: panels=%d directed=%v", st.Panels, st.Directed)
	}
	if o.Display() != director.PromptDirect || o.Phase() != director.PhaseSelecting {
		t.Fatalf("unexpected display/phase %s/%s", o.Display(), o.Phase())
	}
	if _, ok := o.CachedPrompt(0); ok {
		t.Fatal("grid change should clear cached prompts")
	}

	res, err := o.Direct(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Panels) != 9 || len(o.Snapshot().FinalImages) != 9 {
		t.Fatalf("expected 9 panels after directing at 3x3, got %d", len(res.Panels))
	}
}

func TestRestoreDuringDirectDoesNotOverlapRemasters(t *testing.T) {
	gate := make(chan struct{})
	fake := &testsupport.FakeCollaborator{}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.Generate(ctx)
	_ = o.Select(0)
	first, err := o.Direct(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_ = o.Generate(ctx)
	_ = o.Select(1)

	fake.RemasterGate = gate
	var wg sync.WaitGroup
	var staleErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, staleErr = o.Direct(ctx)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for fake.Calls("remaster") < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := o.Restore(first.HistoryID); err != nil {
		t.Fatal(err)
	}
	if err := o.Select(0); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Direct(ctx); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy while the superseded batch is remastering, got %v", err)
	}
	if err := o.SetGridSize(3); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy grid change during a run, got %v", err)
	}

	close(gate)
	wg.Wait()
	if !errors.Is(staleErr, director.ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", staleErr)
	}
	if got := fake.MaxConcurrentRemaster(); got != 1 {
		t.Fatalf("remaster calls overlapped: %d in flight", got)
	}
	if got := len(o.Snapshot().FinalImages); got != 4 {
		t.Fatalf("restored panels replaced by stale batch: %d", got)
	}
	if _, err := o.Direct(ctx); err != nil {
		t.Fatalf("Direct after the stale batch finished: %v", err)
	}
}

func TestPromptExtractionUsesScriptTextWithoutFallback(t *testing.T) {
	fake := &testsupport.FakeCollaborator{Script: &project.Script{
		Title:      "short",
		GridPrompt: "grid",
		Shots:      []project.Shot{{ShotNumber: 1, Description: "opening"}},
	}}
	o := newOrchestrator(t, fake)
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.Generate(ctx)
	_ = o.Select(0)
	if _, err := o.Direct(ctx); err != nil {
		t.Fatal(err)
	}
	o.WaitPrefetch()

	shots := fake.RemasterShots()
	if shots[0] != "opening" || shots[3] != "Cinematic shot 4" {
		t.Fatalf("remaster shots = %v", shots)
	}
	if got, _ := o.CachedPrompt(0); got != "extracted: opening" {
		t.Fatalf("panel 1 prompt = %q", got)
	}
	if got, _ := o.CachedPrompt(3); got != "extracted: " {
		t.Fatalf("panel 4 prompt = %q, want extraction with an empty shot description", got)
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (s *recordingSaver) SaveUserImage(_ context.Context, image string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, image)
	return "user_generated/render.png", nil
}

func TestRenderEditFromPanelSavesUserImage(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	saver := &recordingSaver{}
	o := director.New(fake, director.Options{
		RemasterOptions: []remaster.Option{remaster.WithSleeper(noDelay)},
		MaxEditorRefs:   3,
		UserImages:      saver,
	})
	ctx := context.Background()
	_ = o.SetIdea("x")
	_ = o.SetRefImages([]string{"r1"})
	_ = o.Generate(ctx)
	_ = o.Select(0)
	res, err := o.Direct(ctx)
	if err != nil {
		t.Fatal(err)
	}
	o.WaitPrefetch()
	before := o.Snapshot()

	panel := 1
	result, err := o.RenderEdit(ctx, director.EditRequest{
		Panel:       &panel,
		RefImages:   []string{"extra1", "extra2"},
		CameraShots: []project.CameraShot{"DUTCH_ANGLE"},
	})
	if err != nil {
		t.Fatalf("RenderEdit returned error: %v", err)
	}
	if result.Prompt != "extracted: shot 2 of x" || result.Image == "" {
		t.Fatalf("unexpected result prompt %q", result.Prompt)
	}
	if result.Saved != "user_generated/render.png" || len(saver.saved) != 1 || saver.saved[0] != result.Image {
		t.Fatalf("render not saved: %q %d", result.Saved, len(saver.saved))
	}
	req := fake.LastReferenceRequest()
	if len(req.RefImages) != 3 || req.RefImages[0] != res.Panels[1] || req.RefImages[1] != "r1" || req.RefImages[2] != "extra1" {
		t.Fatalf("unexpected refs %v", req.RefImages)
	}
	if req.AspectRatio != project.AspectLandscape || req.Resolution != project.Resolution2K || len(req.CameraShots) != 1 {
		t.Fatalf("project defaults not applied: %+v", req)
	}
	after := o.Snapshot()
	if len(after.FinalImages) != len(before.FinalImages) || after.FinalImages[1] != before.FinalImages[1] || len(after.History) != len(before.History) {
		t.Fatal("editor render must not change the storyboard")
	}
}

func TestRenderEditValidationAndSaveFailures(t *testing.T) {
	fake := &testsupport.FakeCollaborator{}
	saver := &recordingSaver{err: services.Wrap(services.ErrNoDestination, "persistence", "save user image", "no local folder granted", nil)}
	o := director.New(fake, director.Options{UserImages: saver})
	ctx := context.Background()

	if _, err := o.RenderEdit(ctx, director.EditRequest{Prompt: "  "}); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input for blank prompt, got %v", err)
	}
	panel := 0
	if _, err := o.RenderEdit(ctx, director.EditRequest{Panel: &panel, Prompt: "p"}); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input without a script, got %v", err)
	}
	if _, err := o.RenderEdit(ctx, director.EditRequest{Prompt: "p", AspectRatio: "5:4"}); !errors.Is(err, services.ErrOutOfRange) {
		t.Fatalf("expected out of range aspect, got %v", err)
	}
	if _, err := o.RenderEdit(ctx, director.EditRequest{Prompt: "p", Resolution: "8K"}); !errors.Is(err, services.ErrOutOfRange) {
		t.Fatalf("expected out of range resolution, got %v", err)
	}
	if fake.Calls("render") != 0 {
		t.Fatalf("invalid requests must not reach the provider, render calls = %d", fake.Calls("render"))
	}

	result, err := o.RenderEdit(ctx, director.EditRequest{Prompt: "a lighthouse", AspectRatio: project.AspectCinematic, Resolution: project.Resolution4K})
	if err != nil {
		t.Fatalf("render without a folder should succeed, got %v", err)
	}
	if result.Saved != "" {
		t.Fatalf("nothing should be saved without a folder, got %q", result.Saved)
	}
	if req := fake.LastReferenceRequest(); req.AspectRatio != project.AspectCinematic || req.Resolution != project.Resolution4K || len(req.RefImages) != 0 {
		t.Fatalf("overrides not applied: %+v", req)
	}

	saver.err = errors.New("disk full")
	if _, err := o.RenderEdit(ctx, director.EditRequest{Prompt: "again"}); err != nil {
		t.Fatalf("a failed save should not fail the render, got %v", err)
	}

	fake.RenderErr = services.Wrap(services.ErrRateLimited, "render", "render", "quota", nil)
	if _, err := o.RenderEdit(ctx, director.EditRequest{Prompt: "again"}); !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
