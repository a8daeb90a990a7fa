package project

import "slices"

// Shot is one entry of a storyboard script.
type Shot struct {
	ShotNumber  int    `json:"shotNumber" yaml:"shotNumber"`
	Description string `json:"description" yaml:"description"`
	CameraAngle string `json:"cameraAngle" yaml:"cameraAngle"`
	Lighting    string `json:"lighting" yaml:"lighting"`
}

// Script is the structured storyboard plus the composite prompt compiled from it.
type Script struct {
	Title      string `json:"title" yaml:"title"`
	Logline    string `json:"logline" yaml:"logline"`
	GridPrompt string `json:"gridPrompt" yaml:"gridPrompt"`
	Shots      []Shot `json:"shots" yaml:"shots"`
}

// Clone returns a deep copy of the script. A nil receiver yields nil.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	out := *s
	out.Shots = slices.Clone(s.Shots)
	return &out
}

// StylePreferences selects the visual treatment applied to generated images.
// Append and Override are mutually exclusive; see ValidateStyle.
type StylePreferences struct {
	Mode           StyleMode `json:"mode" yaml:"mode"`
	CustomPositive string    `json:"customPositive,omitempty" yaml:"customPositive,omitempty"`
	CustomNegative string    `json:"customNegative,omitempty" yaml:"customNegative,omitempty"`
	CustomAppend   string    `json:"customAppend,omitempty" yaml:"customAppend,omitempty"`
	CustomOverride string    `json:"customOverride,omitempty" yaml:"customOverride,omitempty"`
}

// HistoryItem is an immutable snapshot captured after each remaster batch.
type HistoryItem struct {
	ID          string            `json:"id" yaml:"id"`
	Timestamp   int64             `json:"timestamp" yaml:"timestamp"`
	FinalImages []string          `json:"finalImages" yaml:"finalImages"`
	Script      *Script           `json:"script" yaml:"script"`
	GridSize    int               `json:"gridSize,omitempty" yaml:"gridSize,omitempty"`
	SourceGrid  string            `json:"sourceGrid,omitempty" yaml:"sourceGrid,omitempty"`
	StylePrefs  *StylePreferences `json:"stylePrefs,omitempty" yaml:"stylePrefs,omitempty"`
	CameraShots []CameraShot      `json:"cameraShots,omitempty" yaml:"cameraShots,omitempty"`
	BatchID     string            `json:"batchId,omitempty" yaml:"batchId,omitempty"`
}

// Clone returns a deep copy of the history item.
func (h HistoryItem) Clone() HistoryItem {
	out := h
	out.FinalImages = slices.Clone(h.FinalImages)
	out.Script = h.Script.Clone()
	if h.StylePrefs != nil {
		prefs := *h.StylePrefs
		out.StylePrefs = &prefs
	}
	out.CameraShots = slices.Clone(h.CameraShots)
	return out
}

// State is the complete project document. It is the persisted manifest and
// the live working state owned by the orchestrator.
type State struct {
	ProjectName       string           `json:"projectName,omitempty" yaml:"projectName,omitempty"`
	StoryIdea         string           `json:"storyIdea" yaml:"storyIdea"`
	Resolution        Resolution       `json:"resolution" yaml:"resolution"`
	GridResolution    Resolution       `json:"gridResolution" yaml:"gridResolution"`
	AspectRatio       AspectRatio      `json:"aspectRatio,omitempty" yaml:"aspectRatio,omitempty"`
	GridSize          int              `json:"gridSize" yaml:"gridSize"`
	CandidateCount    int              `json:"candidateCount" yaml:"candidateCount"`
	RefImages         []string         `json:"refImages" yaml:"refImages"`
	History           []HistoryItem    `json:"history" yaml:"history"`
	Script            *Script          `json:"script" yaml:"script"`
	GridCandidates    []string         `json:"gridCandidates" yaml:"gridCandidates"`
	SelectedGridIndex *int             `json:"selectedGridIndex" yaml:"selectedGridIndex"`
	FinalImages       []string         `json:"finalImages" yaml:"finalImages"`
	StylePrefs        StylePreferences `json:"stylePrefs" yaml:"stylePrefs"`
	IsScriptDirty     bool             `json:"isScriptDirty,omitempty" yaml:"isScriptDirty,omitempty"`
	CameraShots       []CameraShot     `json:"cameraShots,omitempty" yaml:"cameraShots,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.RefImages = slices.Clone(s.RefImages)
	out.GridCandidates = slices.Clone(s.GridCandidates)
	out.FinalImages = slices.Clone(s.FinalImages)
	out.CameraShots = slices.Clone(s.CameraShots)
	out.Script = s.Script.Clone()
	if s.SelectedGridIndex != nil {
		idx := *s.SelectedGridIndex
		out.SelectedGridIndex = &idx
	}
	if s.History != nil {
		out.History = make([]HistoryItem, len(s.History))
		for i, item := range s.History {
			out.History[i] = item.Clone()
		}
	}
	return out
}

// HasContent reports whether the state holds anything worth saving.
func (s State) HasContent() bool {
	return trimmedLen(s.StoryIdea) > 0 || s.Script != nil
}

// ShotDescription returns the script description for panel index, or a
// generic fallback when the script has no such shot.
func (s State) ShotDescription(index int) string {
	if s.Script != nil && index >= 0 && index < len(s.Script.Shots) {
		if desc := s.Script.Shots[index].Description; trimmedLen(desc) > 0 {
			return desc
		}
	}
	return FallbackShotDescription(index)
}

// ScriptShotText is the script's description for a panel, or "" when the
// script has none. Prompt extraction uses it as-is.
func (s State) ScriptShotText(index int) string {
	if s.Script != nil && index >= 0 && index < len(s.Script.Shots) {
		return s.Script.Shots[index].Description
	}
	return ""
}

// GlobalContext is the grid prompt when a script exists, else the story idea.
func (s State) GlobalContext() string {
	if s.Script != nil && trimmedLen(s.Script.GridPrompt) > 0 {
		return s.Script.GridPrompt
	}
	return s.StoryIdea
}
