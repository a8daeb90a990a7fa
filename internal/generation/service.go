package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/grid"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	defaultCandidateDelay      = time.Second
	defaultExtractMaxDimension = 512
)

// Service implements Collaborator over a text model and an image model.
type Service struct {
	text   TextModel
	image  ImageModel
	logger *slog.Logger

	candidateDelay time.Duration
	extractMaxDim  int
	sleep          func(context.Context, time.Duration) error
}

// Option customizes the service.
type Option func(*Service)

// WithCandidateDelay sets the pause between consecutive candidate requests.
func WithCandidateDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.candidateDelay = d
		}
	}
}

// WithExtractMaxDimension bounds the panel size sent for prompt extraction.
func WithExtractMaxDimension(px int) Option {
	return func(s *Service) {
		if px > 0 {
			s.extractMaxDim = px
		}
	}
}

// WithSleeper overrides how pacing delays are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewService wires the collaborator. Both models are required.
func NewService(text TextModel, image ImageModel, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		text:           text,
		image:          image,
		logger:         logging.NewComponentLogger(logger, "generation"),
		candidateDelay: defaultCandidateDelay,
		extractMaxDim:  defaultExtractMaxDimension,
		sleep:          SleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScriptAndPrompt synthesizes a storyboard script and its composite prompt.
func (s *Service) ScriptAndPrompt(ctx context.Context, idea string, refImages []string, gridSize int) (*project.Script, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, services.Wrap(services.ErrMissingInput, scriptStage, "generate", "story idea is required", nil)
	}
	parts := []Part{TextPart(ScriptPrompt(idea, len(refImages), gridSize))}
	for _, ref := range refImages {
		if ref = grid.StripDataURI(ref); ref != "" {
			parts = append(parts, ImagePart(ref))
		}
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("requesting script",
		logging.String("model", s.text.Model()),
		logging.Int("grid_size", gridSize),
		logging.Int("ref_images", len(refImages)),
	)

	content, err := s.text.GenerateText(ctx, TextRequest{Parts: parts, JSON: true})
	if err != nil {
		return nil, services.Wrap(markerOf(err), scriptStage, "generate", "Script Error: "+ProviderMessage(err), err)
	}
	script, err := ParseScript(content)
	if err != nil {
		logging.WarnWithContext(logger, "script response rejected", "script_parse_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no script produced"),
			logging.String(logging.FieldErrorHint, "retry or soften the story idea"),
		)
		return nil, err
	}
	logger.Info("script ready", logging.String("title", script.Title), logging.Int("shots", len(script.Shots)))
	return script, nil
}

// RecompilePrompt rebuilds the composite prompt from an edited script. An
// empty model response keeps the script's current grid prompt.
func (s *Service) RecompilePrompt(ctx context.Context, script *project.Script, gridSize int) (string, error) {
	if script == nil {
		return "", services.Wrap(services.ErrMissingInput, recompileStage, "compile", "script is required", nil)
	}
	content, err := s.text.GenerateText(ctx, TextRequest{Parts: []Part{TextPart(RecompilePrompt(script, gridSize))}})
	if err != nil {
		return "", services.Wrap(markerOf(err), recompileStage, "compile", ProviderMessage(err), err)
	}
	if strings.TrimSpace(content) == "" {
		logging.WithContext(ctx, s.logger).Info("recompile returned no text; keeping existing grid prompt")
		return script.GridPrompt, nil
	}
	return content, nil
}

// RemasterCell enhances one panel.
func (s *Service) RemasterCell(ctx context.Context, req RemasterRequest) (string, error) {
	cell := grid.StripDataURI(req.Cell)
	if cell == "" {
		return "", services.Wrap(services.ErrMissingInput, remasterStage, "remaster", "cell image is required", nil)
	}
	image, err := s.image.GenerateImage(ctx, ImageRequest{
		Parts:       []Part{ImagePart(cell), TextPart(RemasterPrompt(req))},
		AspectRatio: req.AspectRatio.ProviderRatio(),
		Resolution:  req.Resolution,
	})
	if err != nil {
		return "", services.Wrap(markerOf(err), remasterStage, "remaster", ProviderMessage(err), err)
	}
	return image, nil
}

// ImageFromReference renders one image from prompt text with the reference
// images sent ahead of it.
func (s *Service) ImageFromReference(ctx context.Context, req ReferenceRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", services.Wrap(services.ErrMissingInput, renderStage, "render", "prompt is required", nil)
	}
	parts := make([]Part, 0, len(req.RefImages)+1)
	for _, ref := range req.RefImages {
		if data := grid.StripDataURI(ref); data != "" {
			parts = append(parts, ImagePart(data))
		}
	}
	parts = append(parts, TextPart(ReferencePrompt(req)))
	image, err := s.image.GenerateImage(ctx, ImageRequest{
		Parts:       parts,
		AspectRatio: req.AspectRatio.ProviderRatio(),
		Resolution:  req.Resolution,
	})
	if err != nil {
		return "", services.Wrap(markerOf(err), renderStage, "render", ProviderMessage(err), err)
	}
	return image, nil
}

// ExtractPrompt describes a single panel as standalone prompt text. The panel
// is downscaled before upload. An empty response falls back to the shot
// description.
func (s *Service) ExtractPrompt(ctx context.Context, cell, globalContext, shotDescription string) (string, error) {
	analysis, mime := grid.StripDataURI(cell), "image/png"
	if analysis == "" {
		return "", services.Wrap(services.ErrMissingInput, extractStage, "extract", "panel image is required", nil)
	}
	if scaled, err := grid.AnalysisJPEG(analysis, s.extractMaxDim); err == nil {
		analysis, mime = scaled, "image/jpeg"
	} else {
		logging.WithContext(ctx, s.logger).Debug("panel downscale failed; sending original", logging.Error(err))
	}

	content, err := s.text.GenerateText(ctx, TextRequest{Parts: []Part{
		{Image: &InlineImage{MimeType: mime, Data: analysis}},
		TextPart(ExtractionPrompt(globalContext, shotDescription)),
	}})
	if err != nil {
		return "", services.Wrap(markerOf(err), extractStage, "extract", ProviderMessage(err), err)
	}
	if strings.TrimSpace(content) == "" {
		content = shotDescription
	}
	return CleanExtractedPrompt(content), nil
}

// ProviderMessage maps a provider failure to the short message shown to users.
func ProviderMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, services.ErrBadRequest):
		return "API Error 400: Bad Request (Check inputs or JSON Schema)"
	case errors.Is(err, services.ErrRateLimited):
		return "API Error 429: Rate Limit Exceeded"
	case errors.Is(err, services.ErrPermissionDenied):
		return "API Error 403: Permission Denied. Check API Key permissions."
	case errors.Is(err, services.ErrServer):
		return "API Error 500: Server Error"
	case errors.Is(err, services.ErrContentFiltered):
		return msgSafetyFilter
	case errors.Is(err, services.ErrNetwork):
		return "Network error reaching the model"
	default:
		return "Unknown error"
	}
}

// markerOf keeps the most specific provider marker of err, or the provider
// family when err carries none.
func markerOf(err error) error {
	for _, marker := range []error{
		services.ErrRateLimited,
		services.ErrPermissionDenied,
		services.ErrMalformedOutput,
		services.ErrContentFiltered,
		services.ErrNetwork,
		services.ErrBadRequest,
		services.ErrServer,
		services.ErrConfiguration,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return services.ErrProvider
}

// SleepContext waits for d or until ctx ends.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Collaborator = (*Service)(nil)

func modelLabel(m interface{ Model() string }) string {
	if m == nil {
		return "unknown"
	}
	return fmt.Sprintf("'%s'", m.Model())
}
