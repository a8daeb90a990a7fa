package director

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/grid"
	"github.com/bozzyboy/nano-director-5/internal/history"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/promptcache"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const defaultMaxEditorRefs = 14

// ErrSuperseded is returned when a newer operation, a load, or a restore
// replaced the state an operation was started against. Its result was
// discarded.
var ErrSuperseded = errors.New("result superseded by a newer operation")

// Options configures an Orchestrator.
type Options struct {
	Logger          *slog.Logger
	RemasterOptions []remaster.Option
	MaxEditorRefs   int
	Initial         *WorkingCopy
	// UserImages keeps editor renders. Nil leaves them unsaved.
	UserImages UserImageSaver
}

// WorkingCopy is the live state plus the selection markers that the
// manifest form folds together.
type WorkingCopy struct {
	State    project.State `json:"state"`
	Selected *int          `json:"selected,omitempty"`
	Directed *int          `json:"directed,omitempty"`
}

// Status summarizes the orchestrator for display.
type Status struct {
	ProjectName string  `json:"projectName"`
	Phase       Phase   `json:"phase"`
	Display     Display `json:"display"`
	Selected    *int    `json:"selected,omitempty"`
	Directed    *int    `json:"directed,omitempty"`
	Candidates  int     `json:"candidates"`
	Panels      int     `json:"panels"`
	History     int     `json:"history"`
	HasScript   bool    `json:"hasScript"`
	ScriptDirty bool    `json:"scriptDirty"`
}

// DirectResult describes a completed remaster batch.
type DirectResult struct {
	Panels    []string `json:"panels"`
	Failed    []int    `json:"failed"`
	HistoryID string   `json:"historyId"`
	BatchID   string   `json:"batchId,omitempty"`
}

// EditorTransfer is what a panel hands to the downstream editor.
type EditorTransfer struct {
	Index     int      `json:"index"`
	Prompt    string   `json:"prompt"`
	RefImages []string `json:"refImages"`
}

// Orchestrator owns the project state and drives the pipeline. It is safe
// for concurrent use.
type Orchestrator struct {
	gen     generation.Collaborator
	seq     *remaster.Sequencer
	cache   *promptcache.Cache
	ledger  *history.Ledger
	logger  *slog.Logger
	maxRefs int
	saver   UserImageSaver

	mu       sync.Mutex
	state    project.State
	directed *int
	phase    Phase
	epoch    uint64
	// running names the Generate or Direct call in flight. It outlives the
	// epoch: a restore or load settles the phase but the superseded call
	// still holds the provider until it returns.
	running  string
	subs     map[int]func(Event)
	nextSub  int
}

// New constructs an orchestrator around a generation collaborator.
func New(gen generation.Collaborator, opts Options) *Orchestrator {
	o := &Orchestrator{
		gen:     gen,
		logger:  logging.NewComponentLogger(opts.Logger, "director"),
		maxRefs: opts.MaxEditorRefs,
		saver:   opts.UserImages,
		subs:    make(map[int]func(Event)),
		ledger:  history.NewLedger(nil),
	}
	if o.maxRefs <= 0 {
		o.maxRefs = defaultMaxEditorRefs
	}
	seqOpts := append(slices.Clone(opts.RemasterOptions), remaster.WithProgress(o.remasterProgress))
	o.seq = remaster.NewSequencer(gen, opts.Logger, seqOpts...)
	o.cache = promptcache.New(gen, opts.Logger)

	if opts.Initial != nil {
		o.resumeLocked(*opts.Initial)
	} else {
		o.state = project.New()
		o.phase = PhaseIdle
	}
	return o
}

// Generate writes or recompiles the script as needed, then requests
// candidate composites. Candidates, selection, and panels are cleared before
// any provider call, so a failure leaves them empty.
func (o *Orchestrator) Generate(ctx context.Context) error {
	o.mu.Lock()
	if o.running != "" {
		o.mu.Unlock()
		return services.Wrap(services.ErrBusy, "generate", "start", o.running+" is already running", nil)
	}
	if strings.TrimSpace(o.state.StoryIdea) == "" {
		o.mu.Unlock()
		return services.Wrap(services.ErrMissingInput, "generate", "validate", "story idea is required", nil)
	}
	o.epoch++
	epoch := o.epoch
	fresh := o.state.Script == nil
	dirty := o.state.IsScriptDirty
	o.state.GridCandidates = []string{}
	o.state.SelectedGridIndex = nil
	o.directed = nil
	o.state.FinalImages = []string{}
	if fresh {
		o.cache.Reset()
	}
	settings := o.state.Clone()
	o.phase = PhaseScripting
	o.running = "generate"
	o.mu.Unlock()
	defer o.finishRun()
	o.publish(o.changed()...)

	ctx = o.scope(ctx, "generate", settings.ProjectName)
	logger := logging.WithContext(ctx, o.logger)
	script := settings.Script
	logger.Debug("script decision", logging.Args(scriptDecision(fresh, dirty)...)...)

	switch {
	case fresh:
		o.status(PhaseScripting, fmt.Sprintf("Developing %d-Shot Script & Cinematic Prompt...", settings.GridSize*settings.GridSize))
		written, err := o.gen.ScriptAndPrompt(ctx, settings.StoryIdea, settings.RefImages, settings.GridSize)
		if err != nil {
			return o.fail(ctx, epoch, "script generation failed", err)
		}
		script = written
		if !o.commit(epoch, func() {
			o.state.Script = written.Clone()
			o.state.IsScriptDirty = false
		}) {
			return ErrSuperseded
		}
		logger.Info("script written", logging.String("title", written.Title), logging.Int("shots", len(written.Shots)))
	case dirty:
		o.status(PhaseScripting, "Compiling Manual Edits into New Prompt...")
		prompt, err := o.gen.RecompilePrompt(ctx, script, settings.GridSize)
		if err != nil {
			return o.fail(ctx, epoch, "prompt recompile failed", err)
		}
		script.GridPrompt = prompt
		if !o.commit(epoch, func() {
			if o.state.Script != nil {
				o.state.Script.GridPrompt = prompt
			}
			o.state.IsScriptDirty = false
		}) {
			return ErrSuperseded
		}
	}

	o.status(PhaseScripting, fmt.Sprintf("Shooting %d Options (%s)...", settings.CandidateCount, settings.StylePrefs.Mode))
	candidates, err := o.gen.CandidateGrids(ctx, generation.CandidateRequest{
		Prompt:      script.GridPrompt,
		AspectRatio: settings.AspectRatio,
		Count:       settings.CandidateCount,
		Resolution:  settings.GridResolution,
		Style:       settings.StylePrefs,
		GridSize:    settings.GridSize,
		CameraShots: settings.CameraShots,
	})
	if err != nil {
		return o.fail(ctx, epoch, "candidate generation failed", err)
	}
	if !o.commit(epoch, func() {
		o.state.GridCandidates = slices.Clone(candidates)
		o.phase = PhaseCandidatesReady
	}) {
		return ErrSuperseded
	}
	logger.Info("candidates ready", logging.Int("count", len(candidates)))
	o.publish(Event{Type: EventCompleted, Phase: PhaseCandidatesReady, Total: len(candidates)})
	return nil
}

// Select marks candidate index as active.
func (o *Orchestrator) Select(index int) error {
	o.mu.Lock()
	if index < 0 || index >= len(o.state.GridCandidates) {
		count := len(o.state.GridCandidates)
		o.mu.Unlock()
		return services.Wrap(services.ErrOutOfRange, "select", "validate", fmt.Sprintf("candidate %d not in [0,%d)", index, count), nil)
	}
	o.state.SelectedGridIndex = &index
	if !o.phase.Busy() {
		o.phase = o.settledLocked()
	}
	o.mu.Unlock()
	o.publish(o.changed()...)
	return nil
}

// Direct splits the selected candidate and remasters every panel. On
// failure the directed marker is cleared so the action can be offered again.
func (o *Orchestrator) Direct(ctx context.Context) (DirectResult, error) {
	o.mu.Lock()
	if o.running != "" {
		o.mu.Unlock()
		return DirectResult{}, services.Wrap(services.ErrBusy, "direct", "start", o.running+" is already running", nil)
	}
	if o.state.Script == nil {
		o.mu.Unlock()
		return DirectResult{}, services.Wrap(services.ErrMissingInput, "direct", "validate", "generate a script first", nil)
	}
	if o.state.SelectedGridIndex == nil {
		o.mu.Unlock()
		return DirectResult{}, services.Wrap(services.ErrMissingInput, "direct", "validate", "select a candidate first", nil)
	}
	index := *o.state.SelectedGridIndex
	if index >= len(o.state.GridCandidates) {
		o.mu.Unlock()
		return DirectResult{}, services.Wrap(services.ErrOutOfRange, "direct", "validate", fmt.Sprintf("candidate %d no longer exists", index), nil)
	}
	o.epoch++
	epoch := o.epoch
	o.directed = &index
	o.state.FinalImages = []string{}
	o.cache.Reset()
	snap := o.state.Clone()
	composite := snap.GridCandidates[index]
	o.phase = PhaseRemastering
	o.running = "direct"
	o.mu.Unlock()
	defer o.finishRun()
	o.publish(o.changed()...)

	ctx = o.scope(ctx, "direct", snap.ProjectName)
	n := snap.GridSize
	o.status(PhaseRemastering, fmt.Sprintf("Cutting %dx%d Grid into Individual Shots...", n, n))
	cells, err := grid.SplitEncoded(composite, n)
	if err != nil {
		return DirectResult{}, o.failDirect(ctx, epoch, err)
	}

	shots := make([]string, len(cells))
	for i := range shots {
		shots[i] = snap.ShotDescription(i)
	}
	result, err := o.seq.Run(ctx, remaster.Batch{
		Source:      composite,
		Cells:       cells,
		Shots:       shots,
		Resolution:  snap.Resolution,
		AspectRatio: snap.AspectRatio,
		Style:       snap.StylePrefs,
	})
	if err != nil {
		return DirectResult{}, o.failDirect(ctx, epoch, err)
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		logging.WithContext(ctx, o.logger).Info("discarding superseded remaster batch", logging.Int("candidate", index))
		return DirectResult{}, ErrSuperseded
	}
	o.state.FinalImages = slices.Clone(result.Panels)
	entry := o.ledger.Append(history.Snapshot(snap, composite, result.Panels, result.BatchID()))
	o.phase = PhasePanelsReady
	globalContext := o.state.GlobalContext()
	reqs := make([]promptcache.Request, len(result.Panels))
	for i, panel := range result.Panels {
		reqs[i] = promptcache.Request{Index: i, Image: panel, Context: globalContext, ShotDescription: o.state.ScriptShotText(i)}
	}
	o.mu.Unlock()

	o.cache.Prefetch(ctx, reqs)
	o.publish(o.changed()...)
	logging.WithContext(ctx, o.logger).Info("panels ready",
		logging.Int("panels", len(result.Panels)),
		logging.Int("failed", len(result.Failed)),
		logging.String("history_id", entry.ID),
	)
	o.publish(Event{Type: EventCompleted, Phase: PhasePanelsReady, Total: len(result.Panels), Failed: len(result.Failed)})
	return DirectResult{
		Panels:    result.Panels,
		Failed:    result.Failed,
		HistoryID: entry.ID,
		BatchID:   result.BatchID(),
	}, nil
}

// Restore applies a history entry to the live state. The ledger is not
// changed and in-flight results are discarded.
func (o *Orchestrator) Restore(id string) error {
	item, ok := o.ledger.Find(id)
	if !ok {
		return services.Wrap(services.ErrNotFound, "history", "restore", fmt.Sprintf("no history entry %q", id), nil)
	}
	o.mu.Lock()
	o.epoch++
	history.Apply(&o.state, item)
	o.directed = nil
	o.cache.Reset()
	o.phase = o.settledLocked()
	o.mu.Unlock()
	o.logger.Info("history entry restored", logging.String("history_id", id))
	o.publish(o.changed()...)
	return nil
}

// History returns the ledger, newest first.
func (o *Orchestrator) History() []project.HistoryItem {
	return o.ledger.Entries()
}

// Load replaces the project with a loaded manifest. The manifest's selected
// index becomes both the selection and the directed marker.
func (o *Orchestrator) Load(state project.State) {
	selected := cloneIndex(state.SelectedGridIndex)
	o.mu.Lock()
	o.epoch++
	o.resumeLocked(WorkingCopy{State: state, Selected: selected, Directed: selected})
	name := o.state.ProjectName
	o.mu.Unlock()
	o.logger.Info("project loaded", logging.String(logging.FieldProject, name))
	o.publish(o.changed()...)
}

// Snapshot returns the manifest form of the project: history included and
// the directed index recorded as the selected index.
func (o *Orchestrator) Snapshot() project.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state.Clone()
	st.History = o.ledger.Entries()
	st.SelectedGridIndex = cloneIndex(o.directed)
	return st
}

// WorkingCopy returns the state with both selection markers.
func (o *Orchestrator) WorkingCopy() WorkingCopy {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state.Clone()
	st.History = o.ledger.Entries()
	return WorkingCopy{
		State:    st,
		Selected: cloneIndex(o.state.SelectedGridIndex),
		Directed: cloneIndex(o.directed),
	}
}

// Resume restores a working copy, keeping both selection markers.
func (o *Orchestrator) Resume(wc WorkingCopy) {
	o.mu.Lock()
	o.epoch++
	o.resumeLocked(wc)
	o.mu.Unlock()
	o.publish(o.changed()...)
}

func (o *Orchestrator) resumeLocked(wc WorkingCopy) {
	st := wc.State.Clone()
	st.SelectedGridIndex = cloneIndex(wc.Selected)
	st.ApplyDefaults()
	o.ledger.Replace(st.History)
	st.History = nil
	o.state = st
	o.directed = cloneIndex(wc.Directed)
	if o.directed != nil && *o.directed >= len(st.GridCandidates) {
		o.directed = nil
	}
	o.cache.Reset()
	o.phase = o.settledLocked()
}

// Phase returns the current pipeline phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Display derives the panel area presentation from current state.
func (o *Orchestrator) Display() Display {
	o.mu.Lock()
	defer o.mu.Unlock()
	return DisplayFor(o.state.SelectedGridIndex, o.directed, len(o.state.FinalImages))
}

// Status summarizes the orchestrator.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		ProjectName: o.state.ProjectName,
		Phase:       o.phase,
		Display:     DisplayFor(o.state.SelectedGridIndex, o.directed, len(o.state.FinalImages)),
		Selected:    cloneIndex(o.state.SelectedGridIndex),
		Directed:    cloneIndex(o.directed),
		Candidates:  len(o.state.GridCandidates),
		Panels:      len(o.state.FinalImages),
		History:     o.ledger.Len(),
		HasScript:   o.state.Script != nil,
		ScriptDirty: o.state.IsScriptDirty,
	}
}

// CachedPrompt returns the extracted prompt for a panel if one is cached.
func (o *Orchestrator) CachedPrompt(index int) (string, bool) {
	return o.cache.Cached(index)
}

// WaitPrefetch blocks until background prompt extraction has finished.
func (o *Orchestrator) WaitPrefetch() {
	o.cache.Wait()
}

func (o *Orchestrator) remasterProgress(p remaster.Progress) {
	msg := fmt.Sprintf("Remastered Shot %d of %d", p.Index+1, p.Total)
	if p.Failed {
		msg += " (kept original crop)"
	}
	o.publish(Event{Type: EventStatus, Phase: PhaseRemastering, Message: msg, Panel: p.Index + 1, Total: p.Total})
}

func (o *Orchestrator) status(phase Phase, msg string) {
	o.logger.Debug("pipeline status", logging.String(logging.FieldStage, string(phase)), logging.String("status", msg))
	o.publish(Event{Type: EventStatus, Phase: phase, Message: msg})
}

// commit applies fn when epoch is still current.
func (o *Orchestrator) commit(epoch uint64, fn func()) bool {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.logger.Info("discarding superseded pipeline result")
		return false
	}
	fn()
	o.mu.Unlock()
	o.publish(o.changed()...)
	return true
}

func (o *Orchestrator) fail(ctx context.Context, epoch uint64, msg string, err error) error {
	o.mu.Lock()
	current := epoch == o.epoch
	if current {
		o.phase = o.settledLocked()
	}
	phase := o.phase
	o.mu.Unlock()

	logging.ErrorWithContext(logging.WithContext(ctx, o.logger), msg, "pipeline_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, generation.ProviderMessage(err)),
		logging.String(logging.FieldImpact, "phase aborted"),
	)
	if current {
		o.publish(Event{Type: EventFailed, Phase: phase, Message: err.Error()}, Event{Type: EventStateChanged, Phase: phase})
	}
	return err
}

func (o *Orchestrator) failDirect(ctx context.Context, epoch uint64, err error) error {
	o.mu.Lock()
	if epoch == o.epoch {
		o.directed = nil
	}
	o.mu.Unlock()
	return o.fail(ctx, epoch, "remaster failed", err)
}

func (o *Orchestrator) finishRun() {
	o.mu.Lock()
	o.running = ""
	o.mu.Unlock()
}

func (o *Orchestrator) changed() []Event {
	o.mu.Lock()
	phase := o.phase
	o.mu.Unlock()
	return []Event{{Type: EventStateChanged, Phase: phase}}
}

func (o *Orchestrator) settledLocked() Phase {
	return settledPhase(len(o.state.GridCandidates), o.state.SelectedGridIndex, o.directed, len(o.state.FinalImages))
}

func (o *Orchestrator) scope(ctx context.Context, stage, projectName string) context.Context {
	ctx = services.WithStage(ctx, stage)
	return services.WithProject(ctx, projectName)
}

func cloneIndex(idx *int) *int {
	if idx == nil {
		return nil
	}
	v := *idx
	return &v
}

func scriptDecision(fresh, dirty bool) []logging.Attr {
	switch {
	case fresh:
		return logging.DecisionAttrs("script", "write", "no script for the current idea")
	case dirty:
		return logging.DecisionAttrs("script", "recompile", "shots edited since the prompt was built")
	default:
		return logging.DecisionAttrs("script", "reuse", "script and prompt unchanged")
	}
}
