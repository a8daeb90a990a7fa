package testsupport

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/grid"
	"github.com/bozzyboy/nano-director-5/internal/project"
)

// FakeCollaborator is an in-memory generation.Collaborator. Zero values
// produce a script with one shot per panel, 64x64 composites, and solid
// remastered panels. Fields may be set before use; counters are read through
// Calls.
type FakeCollaborator struct {
	mu sync.Mutex

	Script           *project.Script
	ScriptErr        error
	RecompiledPrompt string
	RecompileErr     error
	CandidateErr     error
	CompositeSize    int
	// RemasterFail lists remaster call indices (zero-based, across the
	// collaborator's lifetime) that fail.
	RemasterFail map[int]bool
	ExtractErr   error
	RenderErr    error
	// ExtractGate, when set, blocks every extraction until it is closed.
	ExtractGate chan struct{}
	// Gate, when set, blocks script and candidate calls until it is closed.
	Gate chan struct{}
	// RemasterGate, when set, blocks every remaster call until it is closed.
	RemasterGate chan struct{}

	calls             map[string]int
	remasterCalls     int
	remastering       int
	maxRemastering    int
	lastCandidate     generation.CandidateRequest
	lastRemasterShots []string
	lastReference     generation.ReferenceRequest
}

var _ generation.Collaborator = (*FakeCollaborator)(nil)

func (f *FakeCollaborator) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *FakeCollaborator) wait(ctx context.Context, gate chan struct{}) {
	if gate == nil {
		return
	}
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

// Calls returns how many times op was invoked.
func (f *FakeCollaborator) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// LastCandidateRequest returns the most recent candidate request.
func (f *FakeCollaborator) LastCandidateRequest() generation.CandidateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCandidate
}

// MaxConcurrentRemaster reports the most RemasterCell calls seen in flight
// at once.
func (f *FakeCollaborator) MaxConcurrentRemaster() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRemastering
}

// LastReferenceRequest returns the most recent editor render request.
func (f *FakeCollaborator) LastReferenceRequest() generation.ReferenceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReference
}

// RemasterShots returns the shot descriptions passed to RemasterCell.
func (f *FakeCollaborator) RemasterShots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lastRemasterShots...)
}

func (f *FakeCollaborator) ScriptAndPrompt(ctx context.Context, idea string, refImages []string, gridSize int) (*project.Script, error) {
	f.record("script")
	f.wait(ctx, f.Gate)
	if f.ScriptErr != nil {
		return nil, f.ScriptErr
	}
	if f.Script != nil {
		return f.Script.Clone(), nil
	}
	script := &project.Script{
		Title:      "Storyboard: " + idea,
		Logline:    idea,
		GridPrompt: fmt.Sprintf("grid prompt for %s (%dx%d)", idea, gridSize, gridSize),
	}
	for i := 0; i < gridSize*gridSize; i++ {
		script.Shots = append(script.Shots, project.Shot{
			ShotNumber:  i + 1,
			Description: fmt.Sprintf("shot %d of %s", i+1, idea),
			CameraAngle: "wide",
			Lighting:    "low key",
		})
	}
	return script, nil
}

func (f *FakeCollaborator) RecompilePrompt(ctx context.Context, script *project.Script, gridSize int) (string, error) {
	f.record("recompile")
	if f.RecompileErr != nil {
		return "", f.RecompileErr
	}
	if f.RecompiledPrompt != "" {
		return f.RecompiledPrompt, nil
	}
	return script.GridPrompt + " (recompiled)", nil
}

func (f *FakeCollaborator) CandidateGrids(ctx context.Context, req generation.CandidateRequest) ([]string, error) {
	f.record("candidates")
	f.mu.Lock()
	f.lastCandidate = req
	f.mu.Unlock()
	f.wait(ctx, f.Gate)
	if f.CandidateErr != nil {
		return nil, f.CandidateErr
	}
	size := f.CompositeSize
	if size <= 0 {
		size = 64
	}
	out := make([]string, req.Count)
	for i := range out {
		encoded, err := grid.EncodePNGBase64(Composite(size+i, size, max(req.GridSize, 1)))
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}

func (f *FakeCollaborator) RemasterCell(ctx context.Context, req generation.RemasterRequest) (string, error) {
	f.record("remaster")
	f.mu.Lock()
	idx := f.remasterCalls
	f.remasterCalls++
	f.lastRemasterShots = append(f.lastRemasterShots, req.ShotDescription)
	fail := f.RemasterFail[idx]
	f.remastering++
	f.maxRemastering = max(f.maxRemastering, f.remastering)
	f.mu.Unlock()
	f.wait(ctx, f.RemasterGate)
	f.mu.Lock()
	f.remastering--
	f.mu.Unlock()
	if fail {
		return "", fmt.Errorf("remaster %d failed", idx)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for p := 0; p < len(img.Pix); p += 4 {
		img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = uint8(idx), 255, 0, 255
	}
	return grid.EncodePNGBase64(img)
}

func (f *FakeCollaborator) ExtractPrompt(ctx context.Context, cell, globalContext, shotDescription string) (string, error) {
	f.record("extract")
	f.wait(ctx, f.ExtractGate)
	if f.ExtractErr != nil {
		return "", f.ExtractErr
	}
	return "extracted: " + shotDescription, nil
}

func (f *FakeCollaborator) ImageFromReference(ctx context.Context, req generation.ReferenceRequest) (string, error) {
	f.record("render")
	f.mu.Lock()
	f.lastReference = req
	f.mu.Unlock()
	if f.RenderErr != nil {
		return "", f.RenderErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for p := 0; p < len(img.Pix); p += 4 {
		img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = 0, 0, 255, 255
	}
	return grid.EncodePNGBase64(img)
}
