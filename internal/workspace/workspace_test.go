package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/workspace"
)

func TestLoadMissingWorkspace(t *testing.T) {
	store := workspace.New(filepath.Join(t.TempDir(), "workspace.json"), nil)
	_, ok, err := store.Load()
	if err != nil || ok {
		t.Fatalf("expected absent workspace, ok=%v err=%v", ok, err)
	}
}

func TestSaveLoadKeepsBothSelectionMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workspace.json")
	store := workspace.New(path, nil)
	st := project.New()
	st.StoryIdea = "rain"
	st.GridCandidates = []string{"a", "b"}
	selected, directed := 1, 0
	file := workspace.File{
		WorkingCopy: director.WorkingCopy{State: st, Selected: &selected, Directed: &directed},
		Destination: "local",
		LocalFolder: "/projects/rain",
	}
	if err := store.Save(file); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp")); len(leftovers) != 0 {
		t.Fatalf("temp file left behind: %v", leftovers)
	}

	got, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.State.StoryIdea != "rain" || *got.Selected != 1 || *got.Directed != 0 {
		t.Fatalf("unexpected working copy %+v", got.WorkingCopy)
	}
	if got.Destination != "local" || got.LocalFolder != "/projects/rain" {
		t.Fatalf("unexpected metadata %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatal("expected workspace cleared")
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := workspace.New(path, nil).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
