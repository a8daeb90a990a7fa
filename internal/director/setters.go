package director

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// mutate runs fn under the state lock. fn validates before it mutates, so an
// error leaves state unchanged.
func (o *Orchestrator) mutate(fn func(st *project.State) error) error {
	o.mu.Lock()
	if err := fn(&o.state); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()
	o.publish(o.changed()...)
	return nil
}

// SetIdea replaces the story idea.
func (o *Orchestrator) SetIdea(idea string) error {
	return o.mutate(func(st *project.State) error {
		st.StoryIdea = idea
		return nil
	})
}

// SetProjectName sets the name used for manifests and cloud files.
func (o *Orchestrator) SetProjectName(name string) error {
	return o.mutate(func(st *project.State) error {
		st.ProjectName = strings.TrimSpace(name)
		return nil
	})
}

// SetGridSize sets the panel grid dimension. Panels cut at another size no
// longer match the grid and are dropped, which puts the selected candidate
// back up for directing. Changing the size during a run is refused.
func (o *Orchestrator) SetGridSize(n int) error {
	return o.mutate(func(st *project.State) error {
		if err := project.ValidateGridSize(n); err != nil {
			return err
		}
		if n == st.GridSize {
			return nil
		}
		if o.running != "" {
			return services.Wrap(services.ErrBusy, "settings", "grid size", o.running+" is running", nil)
		}
		st.GridSize = n
		if len(st.FinalImages) > 0 {
			st.FinalImages = []string{}
			o.directed = nil
			o.cache.Reset()
			o.phase = o.settledLocked()
		}
		return nil
	})
}

// SetCandidateCount sets how many composites Generate requests.
func (o *Orchestrator) SetCandidateCount(n int) error {
	return o.mutate(func(st *project.State) error {
		if err := project.ValidateCandidateCount(n); err != nil {
			return err
		}
		st.CandidateCount = n
		return nil
	})
}

// SetAspectRatio sets the output aspect ratio.
func (o *Orchestrator) SetAspectRatio(ratio project.AspectRatio) error {
	return o.mutate(func(st *project.State) error {
		if !ratio.Valid() {
			return outOfRange("aspect ratio", string(ratio))
		}
		st.AspectRatio = ratio
		return nil
	})
}

// SetResolution sets the remastered panel resolution.
func (o *Orchestrator) SetResolution(res project.Resolution) error {
	return o.mutate(func(st *project.State) error {
		if !res.Valid() {
			return outOfRange("resolution", string(res))
		}
		st.Resolution = res
		return nil
	})
}

// SetGridResolution sets the candidate composite resolution.
func (o *Orchestrator) SetGridResolution(res project.Resolution) error {
	return o.mutate(func(st *project.State) error {
		if !res.Valid() {
			return outOfRange("grid resolution", string(res))
		}
		st.GridResolution = res
		return nil
	})
}

// SetStyleMode selects a style preset.
func (o *Orchestrator) SetStyleMode(mode project.StyleMode) error {
	return o.mutate(func(st *project.State) error {
		if !mode.Valid() {
			return outOfRange("style mode", string(mode))
		}
		st.StylePrefs.Mode = mode
		return nil
	})
}

// SetStyleAppend sets extra style text. It is rejected while override text
// is set.
func (o *Orchestrator) SetStyleAppend(text string) error {
	return o.mutate(func(st *project.State) error {
		next := st.StylePrefs
		next.CustomAppend = text
		if err := project.ValidateStyle(next); err != nil {
			return err
		}
		st.StylePrefs = next
		return nil
	})
}

// SetStyleOverride sets text that replaces the style preset. It is rejected
// while append text is set.
func (o *Orchestrator) SetStyleOverride(text string) error {
	return o.mutate(func(st *project.State) error {
		next := st.StylePrefs
		next.CustomOverride = text
		if err := project.ValidateStyle(next); err != nil {
			return err
		}
		st.StylePrefs = next
		return nil
	})
}

// SetStyleNegative sets the negative prompt; blank restores the default.
func (o *Orchestrator) SetStyleNegative(text string) error {
	return o.mutate(func(st *project.State) error {
		st.StylePrefs.CustomNegative = text
		return nil
	})
}

// SetCustomPositive sets the style text used by the CUSTOM preset.
func (o *Orchestrator) SetCustomPositive(text string) error {
	return o.mutate(func(st *project.State) error {
		st.StylePrefs.CustomPositive = text
		return nil
	})
}

// SetRefImages replaces the reference images, base64 or data URIs.
func (o *Orchestrator) SetRefImages(images []string) error {
	return o.mutate(func(st *project.State) error {
		st.RefImages = slices.Clone(images)
		if st.RefImages == nil {
			st.RefImages = []string{}
		}
		return nil
	})
}

// SetCameraShots forces camera techniques onto generated composites.
func (o *Orchestrator) SetCameraShots(shots []project.CameraShot) error {
	return o.mutate(func(st *project.State) error {
		for _, shot := range shots {
			if shot.Description() == "" {
				return outOfRange("camera shot", string(shot))
			}
		}
		st.CameraShots = slices.Clone(shots)
		return nil
	})
}

// EditShot replaces one shot description and marks the script dirty so the
// next Generate recompiles the composite prompt.
func (o *Orchestrator) EditShot(index int, description string) error {
	return o.mutate(func(st *project.State) error {
		if st.Script == nil {
			return services.Wrap(services.ErrMissingInput, "script", "edit shot", "no script to edit", nil)
		}
		if index < 0 || index >= len(st.Script.Shots) {
			return services.Wrap(services.ErrOutOfRange, "script", "edit shot", fmt.Sprintf("shot %d not in [0,%d)", index, len(st.Script.Shots)), nil)
		}
		script := st.Script.Clone()
		script.Shots[index].Description = description
		st.Script = script
		st.IsScriptDirty = true
		return nil
	})
}

func outOfRange(field, value string) error {
	return services.Wrap(services.ErrOutOfRange, "settings", "validate", fmt.Sprintf("unknown %s %q", field, value), nil)
}
