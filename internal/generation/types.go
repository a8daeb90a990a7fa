package generation

import (
	"context"

	"github.com/bozzyboy/nano-director-5/internal/project"
)

// InlineImage is a base64 payload attached to a model request.
type InlineImage struct {
	MimeType string
	Data     string
}

// Part is one ordered element of a request: text or an inline image.
type Part struct {
	Text  string
	Image *InlineImage
}

// TextPart builds a text part.
func TextPart(text string) Part { return Part{Text: text} }

// ImagePart builds a PNG image part from base64 data.
func ImagePart(data string) Part {
	return Part{Image: &InlineImage{MimeType: "image/png", Data: data}}
}

// TextRequest asks a text model for a completion.
type TextRequest struct {
	Parts []Part
	// JSON requests an application/json response body.
	JSON bool
}

// ImageRequest asks an image model for a single image.
type ImageRequest struct {
	Parts       []Part
	AspectRatio project.AspectRatio
	Resolution  project.Resolution
}

// TextModel returns the concatenated text of the first candidate. A response
// with no text is returned as "" with a nil error; callers own the fallback.
type TextModel interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	Model() string
}

// ImageModel returns the first inline image of the response as base64.
type ImageModel interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
	Model() string
}

// CandidateRequest describes one candidate composite batch.
type CandidateRequest struct {
	Prompt      string
	AspectRatio project.AspectRatio
	Count       int
	Resolution  project.Resolution
	Style       project.StylePreferences
	GridSize    int
	CameraShots []project.CameraShot
}

// RemasterRequest describes a single panel enhancement pass.
type RemasterRequest struct {
	Cell            string
	ShotDescription string
	Resolution      project.Resolution
	AspectRatio     project.AspectRatio
	Style           project.StylePreferences
}

// ReferenceRequest describes a free render from a prompt and reference
// images, the pass a panel's editor hand-off feeds.
type ReferenceRequest struct {
	Prompt      string
	RefImages   []string
	AspectRatio project.AspectRatio
	Resolution  project.Resolution
	CameraShots []project.CameraShot
}

// Collaborator is the generation surface consumed by the pipeline.
type Collaborator interface {
	ScriptAndPrompt(ctx context.Context, idea string, refImages []string, gridSize int) (*project.Script, error)
	RecompilePrompt(ctx context.Context, script *project.Script, gridSize int) (string, error)
	CandidateGrids(ctx context.Context, req CandidateRequest) ([]string, error)
	RemasterCell(ctx context.Context, req RemasterRequest) (string, error)
	ExtractPrompt(ctx context.Context, cell, globalContext, shotDescription string) (string, error)
	ImageFromReference(ctx context.Context, req ReferenceRequest) (string, error)
}
