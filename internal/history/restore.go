package history

import (
	"slices"

	"github.com/bozzyboy/nano-director-5/internal/project"
)

// Apply restores item onto state: script, final images, grid size, and
// style preferences are replaced, selection is cleared, and the script is
// marked clean. Grid size and style are left alone when the entry lacks
// them. Candidates and the ledger are untouched.
func Apply(state *project.State, item project.HistoryItem) {
	state.Script = item.Script.Clone()
	state.FinalImages = slices.Clone(item.FinalImages)
	if state.FinalImages == nil {
		state.FinalImages = []string{}
	}
	if item.GridSize > 0 {
		state.GridSize = item.GridSize
	}
	if item.StylePrefs != nil {
		state.StylePrefs = *item.StylePrefs
	}
	state.SelectedGridIndex = nil
	state.IsScriptDirty = false
}

// Snapshot captures the fields of state recorded for one remaster batch.
func Snapshot(state project.State, sourceGrid string, panels []string, batchID string) project.HistoryItem {
	prefs := state.StylePrefs
	return project.HistoryItem{
		FinalImages: slices.Clone(panels),
		Script:      state.Script.Clone(),
		GridSize:    state.GridSize,
		SourceGrid:  sourceGrid,
		StylePrefs:  &prefs,
		CameraShots: slices.Clone(state.CameraShots),
		BatchID:     batchID,
	}
}
