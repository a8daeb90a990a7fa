package manifest_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/persistence/manifest"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

func sampleState() project.State {
	st := project.New()
	st.ProjectName = "Rain City"
	st.StoryIdea = "detective in rain"
	st.Script = &project.Script{Title: "Rain", GridPrompt: "grid", Shots: []project.Shot{{ShotNumber: 1, Description: "alley"}}}
	idx := 1
	st.SelectedGridIndex = &idx
	st.GridCandidates = []string{"a", "b"}
	st.FinalImages = []string{"p1", "p2", "p3", "p4"}
	st.History = []project.HistoryItem{{ID: "h1", Timestamp: 42, FinalImages: []string{"p1"}}}
	return st
}

func TestJSONManifestUsesCamelCaseFields(t *testing.T) {
	data, err := manifest.Encode(sampleState(), manifest.FormatJSON)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	for _, field := range []string{`"storyIdea"`, `"selectedGridIndex": 1`, `"gridCandidates"`, `"stylePrefs"`, `"finalImages"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("manifest missing %s:\n%s", field, data)
		}
	}
}

func TestWriteAndReadFileRoundTripBothFormats(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"p.json", "p.yaml"} {
		path := filepath.Join(dir, name)
		if err := manifest.WriteFile(path, sampleState()); err != nil {
			t.Fatalf("%s: WriteFile returned error: %v", name, err)
		}
		got, err := manifest.ReadFile(path)
		if err != nil {
			t.Fatalf("%s: ReadFile returned error: %v", name, err)
		}
		if got.StoryIdea != "detective in rain" || got.SelectedGridIndex == nil || *got.SelectedGridIndex != 1 {
			t.Fatalf("%s: unexpected state %+v", name, got)
		}
		if len(got.History) != 1 || got.History[0].ID != "h1" {
			t.Fatalf("%s: history lost: %+v", name, got.History)
		}
		if leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp")); len(leftovers) != 0 {
			t.Fatalf("%s: temp file left behind: %v", name, leftovers)
		}
	}
}

func TestDecodeAppliesDefaultsToSparseManifest(t *testing.T) {
	st, err := manifest.Decode([]byte(`{"storyIdea":"x","finalImages":[]}`), "")
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if st.GridSize != 2 || st.CandidateCount != 2 || st.AspectRatio != project.AspectLandscape {
		t.Fatalf("defaults not applied: %+v", st)
	}
	if st.Resolution != project.Resolution2K || st.GridResolution != project.Resolution2K {
		t.Fatalf("resolution defaults not applied: %+v", st)
	}
	if st.StylePrefs.Mode != project.StyleDefault || st.StylePrefs.CustomNegative != project.DefaultNegativePrompt {
		t.Fatalf("style defaults not applied: %+v", st.StylePrefs)
	}
}

func TestDecodeSniffsYAML(t *testing.T) {
	st, err := manifest.Decode([]byte("storyIdea: heist\ngridSize: 3\n"), "")
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if st.StoryIdea != "heist" || st.GridSize != 3 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := manifest.Decode([]byte("{not json"), ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := manifest.Decode([]byte("   "), ""); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := manifest.ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFileNames(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if got := manifest.FileName(project.State{}); got != "project.json" {
		t.Fatalf("unexpected default name %q", got)
	}
	if got := manifest.FileName(project.State{ProjectName: " a/b "}); got != "a-b.json" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := manifest.CloudFileName(project.State{}, now); got != "NanoProject - 2026-03-01T12:30:00Z.json" {
		t.Fatalf("unexpected cloud name %q", got)
	}
	if got := manifest.CloudFileName(project.State{ProjectName: "Rain"}, now); got != "Rain.json" {
		t.Fatalf("unexpected cloud name %q", got)
	}
}
