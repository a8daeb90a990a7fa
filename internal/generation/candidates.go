package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// CandidateGrids requests req.Count composites one at a time, pausing between
// requests. Individual failures are dropped; a permission failure aborts the
// loop because every later request would fail the same way. At least one
// success is required.
func (s *Service) CandidateGrids(ctx context.Context, req CandidateRequest) ([]string, error) {
	if req.Count < 1 {
		return nil, services.Wrap(services.ErrOutOfRange, candidatesStage, "generate", fmt.Sprintf("candidate count must be positive, got %d", req.Count), nil)
	}
	if req.Prompt == "" {
		return nil, services.Wrap(services.ErrMissingInput, candidatesStage, "generate", "composite prompt is required", nil)
	}

	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldStage, candidatesStage))
	imageReq := ImageRequest{
		Parts:       []Part{TextPart(CandidatePrompt(req))},
		AspectRatio: req.AspectRatio.ProviderRatio(),
		Resolution:  req.Resolution,
	}
	if imageReq.Resolution == "" {
		imageReq.Resolution = project.Resolution2K
	}

	model := modelLabel(s.image)
	results := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		image, err := s.image.GenerateImage(ctx, imageReq)
		switch {
		case err == nil && image != "":
			results = append(results, image)
		case errors.Is(err, services.ErrPermissionDenied):
			msg := fmt.Sprintf("Permission Denied for model %s. Ensure your API Key supports %s.", model, s.image.Model())
			return nil, services.Wrap(services.ErrPermissionDenied, candidatesStage, "generate", msg, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			attrs := []logging.Attr{
				logging.Int("candidate", i+1),
				logging.String(logging.FieldImpact, "candidate dropped"),
			}
			if err != nil {
				attrs = append(attrs, logging.Error(err))
				if errors.Is(err, services.ErrBadRequest) {
					attrs = append(attrs, logging.String(logging.FieldErrorHint, "prompt may be too long or the ratio invalid"))
				}
			}
			logging.WarnWithContext(logger, "candidate generation failed", "candidate_failed", attrs...)
		}
		if i < req.Count-1 {
			if err := s.sleep(ctx, s.candidateDelay); err != nil {
				return nil, err
			}
		}
	}

	if len(results) == 0 {
		msg := fmt.Sprintf("Failed to generate options using %s. Check API permissions and quota.", s.image.Model())
		return nil, services.Wrap(services.ErrProvider, candidatesStage, "generate", msg, nil)
	}
	logger.Info("candidates ready",
		logging.Int("requested", req.Count),
		logging.Int("received", len(results)),
		logging.String("style", string(req.Style.Mode)),
	)
	return results, nil
}
