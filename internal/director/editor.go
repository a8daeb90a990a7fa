package director

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/promptcache"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// UserImageSaver stores finished editor renders.
type UserImageSaver interface {
	SaveUserImage(ctx context.Context, image string) (string, error)
}

// EditRequest asks the editor for one render. With Panel set the panel's
// hand-off supplies the prompt (unless Prompt overrides it) and leads the
// reference list. Empty aspect and resolution fall back to the project's.
type EditRequest struct {
	Panel       *int                 `json:"panel,omitempty"`
	Prompt      string               `json:"prompt"`
	RefImages   []string             `json:"refImages,omitempty"`
	CameraShots []project.CameraShot `json:"cameraShots,omitempty"`
	AspectRatio project.AspectRatio  `json:"aspectRatio,omitempty"`
	Resolution  project.Resolution   `json:"resolution,omitempty"`
}

// EditResult is a finished editor render.
type EditResult struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
	Saved  string `json:"saved,omitempty"`
}

// SendToEditor prepares a panel for the downstream editor: its extracted
// prompt, reusing a prefetched one, and the reference images with the panel
// first, capped at the configured maximum.
func (o *Orchestrator) SendToEditor(ctx context.Context, index int) (EditorTransfer, error) {
	req, refs, err := o.panelRequest(index)
	if err != nil {
		return EditorTransfer{}, err
	}
	prompt := o.cache.Get(o.scope(ctx, "send", ""), req)

	images := append([]string{req.Image}, refs...)
	if len(images) > o.maxRefs {
		images = images[:o.maxRefs]
	}
	return EditorTransfer{Index: index, Prompt: prompt, RefImages: images}, nil
}

// ExtractPrompt returns the standalone prompt for one panel.
func (o *Orchestrator) ExtractPrompt(ctx context.Context, index int) (string, error) {
	req, _, err := o.panelRequest(index)
	if err != nil {
		return "", err
	}
	return o.cache.Get(o.scope(ctx, "extract", ""), req), nil
}

func (o *Orchestrator) panelRequest(index int) (promptcache.Request, []string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Script == nil {
		return promptcache.Request{}, nil, services.Wrap(services.ErrMissingInput, "send", "validate", "no script", nil)
	}
	if index < 0 || index >= len(o.state.FinalImages) {
		return promptcache.Request{}, nil, services.Wrap(services.ErrOutOfRange, "send", "validate", fmt.Sprintf("panel %d not in [0,%d)", index, len(o.state.FinalImages)), nil)
	}
	req := promptcache.Request{
		Index:           index,
		Image:           o.state.FinalImages[index],
		Context:         o.state.GlobalContext(),
		ShotDescription: o.state.ScriptShotText(index),
	}
	return req, append([]string(nil), o.state.RefImages...), nil
}

// RenderEdit runs the editor pass: a free render from a prompt and reference
// images. It does not touch the storyboard. The render is written to the
// user image store when one is configured; a failed save is logged and the
// render is still returned.
func (o *Orchestrator) RenderEdit(ctx context.Context, req EditRequest) (EditResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	var refs []string
	if req.Panel != nil {
		transfer, err := o.SendToEditor(ctx, *req.Panel)
		if err != nil {
			return EditResult{}, err
		}
		if prompt == "" {
			prompt = strings.TrimSpace(transfer.Prompt)
		}
		refs = transfer.RefImages
	}
	refs = append(refs, req.RefImages...)
	if len(refs) > o.maxRefs {
		refs = refs[:o.maxRefs]
	}
	if prompt == "" {
		return EditResult{}, services.Wrap(services.ErrMissingInput, "edit", "validate", "prompt is required", nil)
	}

	o.mu.Lock()
	aspect, resolution, name := o.state.AspectRatio, o.state.Resolution, o.state.ProjectName
	o.mu.Unlock()
	if req.AspectRatio != "" {
		aspect = req.AspectRatio
	}
	if req.Resolution != "" {
		resolution = req.Resolution
	}
	if aspect != "" && !aspect.Valid() {
		return EditResult{}, services.Wrap(services.ErrOutOfRange, "edit", "validate", fmt.Sprintf("unsupported aspect ratio %q", aspect), nil)
	}
	if !resolution.Valid() {
		return EditResult{}, services.Wrap(services.ErrOutOfRange, "edit", "validate", fmt.Sprintf("unsupported resolution %q", resolution), nil)
	}

	ctx = o.scope(ctx, "edit", name)
	logger := logging.WithContext(ctx, o.logger)
	image, err := o.gen.ImageFromReference(ctx, generation.ReferenceRequest{
		Prompt:      prompt,
		RefImages:   refs,
		AspectRatio: aspect,
		Resolution:  resolution,
		CameraShots: slices.Clone(req.CameraShots),
	})
	if err != nil {
		logging.ErrorWithContext(logger, "editor render failed", "editor_render_failed",
			logging.Error(err))
		return EditResult{}, err
	}
	result := EditResult{Image: image, Prompt: prompt}
	if o.saver != nil {
		path, err := o.saver.SaveUserImage(ctx, image)
		switch {
		case err == nil:
			result.Saved = path
		case errors.Is(err, services.ErrNoDestination):
		default:
			logging.WarnWithContext(logger, "editor render not saved", "user_image_save_failed",
				logging.Error(err))
		}
	}
	logger.Info("editor render complete", logging.Int("refs", len(refs)), logging.Bool("saved", result.Saved != ""))
	return result, nil
}
