package project

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// AspectRatio is the requested frame shape.
type AspectRatio string

const (
	AspectSquare           AspectRatio = "1:1"
	AspectLandscape        AspectRatio = "16:9"
	AspectPortrait         AspectRatio = "9:16"
	AspectStandard         AspectRatio = "4:3"
	AspectVerticalStandard AspectRatio = "3:4"
	AspectCinematic        AspectRatio = "21:9"
)

// AspectRatios lists the supported aspect ratios.
func AspectRatios() []AspectRatio {
	return []AspectRatio{AspectSquare, AspectLandscape, AspectPortrait, AspectStandard, AspectVerticalStandard, AspectCinematic}
}

// Valid reports whether a is a supported ratio.
func (a AspectRatio) Valid() bool {
	for _, candidate := range AspectRatios() {
		if a == candidate {
			return true
		}
	}
	return false
}

// ProviderRatio is the ratio actually requested from the image model. The
// ultrawide ratio is not supported upstream and is approximated with 16:9 plus
// a prompt note.
func (a AspectRatio) ProviderRatio() AspectRatio {
	if a == AspectCinematic {
		return AspectLandscape
	}
	return a
}

// Resolution is the requested output size class.
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

// Valid reports whether r is a supported resolution.
func (r Resolution) Valid() bool {
	switch r {
	case Resolution1K, Resolution2K, Resolution4K:
		return true
	}
	return false
}

// ParseResolution accepts "1k", "2K", and so on.
func ParseResolution(value string) (Resolution, error) {
	r := Resolution(strings.ToUpper(strings.TrimSpace(value)))
	if !r.Valid() {
		return "", services.Wrap(services.ErrOutOfRange, "settings", "parse resolution", fmt.Sprintf("unsupported resolution %q", value), nil)
	}
	return r, nil
}

// ParseAspectRatio validates a ratio string.
func ParseAspectRatio(value string) (AspectRatio, error) {
	a := AspectRatio(strings.TrimSpace(value))
	if !a.Valid() {
		return "", services.Wrap(services.ErrOutOfRange, "settings", "parse aspect ratio", fmt.Sprintf("unsupported aspect ratio %q", value), nil)
	}
	return a, nil
}

const (
	MinGridSize       = 2
	MaxGridSize       = 4
	MinCandidateCount = 1
	MaxCandidateCount = 4
)

// ValidateGridSize accepts 2, 3, or 4.
func ValidateGridSize(n int) error {
	if n < MinGridSize || n > MaxGridSize {
		return services.Wrap(services.ErrOutOfRange, "settings", "grid size", fmt.Sprintf("grid size must be between %d and %d, got %d", MinGridSize, MaxGridSize, n), nil)
	}
	return nil
}

// ValidateCandidateCount accepts 1 through 4.
func ValidateCandidateCount(n int) error {
	if n < MinCandidateCount || n > MaxCandidateCount {
		return services.Wrap(services.ErrOutOfRange, "settings", "candidate count", fmt.Sprintf("candidate count must be between %d and %d, got %d", MinCandidateCount, MaxCandidateCount, n), nil)
	}
	return nil
}

// New returns an empty project with default settings.
func New() State {
	return State{
		Resolution:     Resolution2K,
		GridResolution: Resolution2K,
		AspectRatio:    AspectLandscape,
		GridSize:       2,
		CandidateCount: 2,
		RefImages:      []string{},
		History:        []HistoryItem{},
		GridCandidates: []string{},
		FinalImages:    []string{},
		StylePrefs: StylePreferences{
			Mode:           StyleDefault,
			CustomNegative: DefaultNegativePrompt,
		},
	}
}

// ApplyDefaults fills fields a loaded manifest left unset. Out-of-range
// values are replaced by defaults so a hand-edited manifest cannot wedge the
// pipeline.
func (s *State) ApplyDefaults() {
	defaults := New()
	if !s.Resolution.Valid() {
		s.Resolution = defaults.Resolution
	}
	if !s.GridResolution.Valid() {
		s.GridResolution = defaults.GridResolution
	}
	if !s.AspectRatio.Valid() {
		s.AspectRatio = defaults.AspectRatio
	}
	if ValidateGridSize(s.GridSize) != nil {
		s.GridSize = defaults.GridSize
	}
	if ValidateCandidateCount(s.CandidateCount) != nil {
		s.CandidateCount = defaults.CandidateCount
	}
	if s.StylePrefs.Mode == "" || !s.StylePrefs.Mode.Valid() {
		s.StylePrefs = defaults.StylePrefs
	}
	if s.RefImages == nil {
		s.RefImages = []string{}
	}
	if s.History == nil {
		s.History = []HistoryItem{}
	}
	if s.GridCandidates == nil {
		s.GridCandidates = []string{}
	}
	if s.FinalImages == nil {
		s.FinalImages = []string{}
	}
	if s.SelectedGridIndex != nil && (*s.SelectedGridIndex < 0 || *s.SelectedGridIndex >= len(s.GridCandidates)) {
		s.SelectedGridIndex = nil
	}
}

// FallbackShotDescription is used when the script has no description for a panel.
func FallbackShotDescription(index int) string {
	return "Cinematic shot " + strconv.Itoa(index+1)
}

// DefaultName derives a display name from the story idea, falling back to a
// timestamped name when the idea is blank.
func DefaultName(idea string, now time.Time) string {
	words := strings.Fields(idea)
	if len(words) == 0 {
		return "NanoProject - " + now.UTC().Format(time.RFC3339)
	}
	if len(words) > 6 {
		words = words[:6]
	}
	return cases.Title(language.Und).String(strings.ToLower(strings.Join(words, " ")))
}

func trimmedLen(value string) int {
	return len(strings.TrimSpace(value))
}
