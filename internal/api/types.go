package api

import (
	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/project"
)

// ProjectResponse is the working state plus its derived status.
type ProjectResponse struct {
	Status  director.Status `json:"status"`
	Project project.State   `json:"project"`
}

// IdeaRequest updates the story idea and optionally the project name.
type IdeaRequest struct {
	Idea        string  `json:"idea"`
	ProjectName *string `json:"projectName,omitempty"`
}

// SettingsRequest applies any subset of the generation settings. Absent
// fields are left unchanged.
type SettingsRequest struct {
	GridSize       *int      `json:"gridSize,omitempty"`
	CandidateCount *int      `json:"candidateCount,omitempty"`
	AspectRatio    *string   `json:"aspectRatio,omitempty"`
	Resolution     *string   `json:"resolution,omitempty"`
	GridResolution *string   `json:"gridResolution,omitempty"`
	RefImages      *[]string `json:"refImages,omitempty"`
	CameraShots    *[]string `json:"cameraShots,omitempty"`
}

// StyleRequest applies any subset of the style preferences.
type StyleRequest struct {
	Mode           *string `json:"mode,omitempty"`
	CustomPositive *string `json:"customPositive,omitempty"`
	CustomNegative *string `json:"customNegative,omitempty"`
	CustomAppend   *string `json:"customAppend,omitempty"`
	CustomOverride *string `json:"customOverride,omitempty"`
}

// ShotRequest replaces one shot description.
type ShotRequest struct {
	Description string `json:"description"`
}

// SaveRequest names the save destination: local, cloud, or download.
type SaveRequest struct {
	Destination string `json:"destination"`
}

// EditRequest asks for an editor render. Panel is zero-based; when set the
// panel's hand-off fills in the prompt and leading references.
type EditRequest struct {
	Panel       *int     `json:"panel,omitempty"`
	Prompt      string   `json:"prompt"`
	RefImages   []string `json:"refImages,omitempty"`
	CameraShots []string `json:"cameraShots,omitempty"`
	AspectRatio string   `json:"aspectRatio,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
}

// PathRequest carries a filesystem path for folder loads, imports, and
// exports.
type PathRequest struct {
	Path string `json:"path"`
}

// HistoryEntry summarizes one history item without its images.
type HistoryEntry struct {
	ID        string            `json:"id"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Panels    int               `json:"panels"`
	GridSize  int               `json:"gridSize,omitempty"`
	StyleMode project.StyleMode `json:"styleMode,omitempty"`
	BatchID   string            `json:"batchId,omitempty"`
}

// LogStreamResponse is one page of the log stream.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// StreamMessage is one websocket frame.
type StreamMessage struct {
	Type  string            `json:"type"`
	Event *director.Event   `json:"event,omitempty"`
	Log   *logging.LogEvent `json:"log,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Hint  string `json:"hint,omitempty"`
}

func historyEntries(items []project.HistoryItem) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(items))
	for _, item := range items {
		entry := HistoryEntry{
			ID:        item.ID,
			Timestamp: item.Timestamp,
			Panels:    len(item.FinalImages),
			GridSize:  item.GridSize,
			BatchID:   item.BatchID,
		}
		if item.Script != nil {
			entry.Title = item.Script.Title
		}
		if item.StylePrefs != nil {
			entry.StyleMode = item.StylePrefs.Mode
		}
		out = append(out, entry)
	}
	return out
}
