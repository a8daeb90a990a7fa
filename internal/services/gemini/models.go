package gemini

import (
	"context"

	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// TextModel binds a client to a text model.
type TextModel struct {
	client *Client
	model  string
}

// NewTextModel returns a generation.TextModel backed by client.
func NewTextModel(client *Client, model string) *TextModel {
	return &TextModel{client: client, model: model}
}

// Model returns the model name.
func (m *TextModel) Model() string { return m.model }

// GenerateText returns the text of the first candidate. An empty response
// is returned as "" with a nil error.
func (m *TextModel) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	payload := GenerateRequest{Contents: []Content{userContent(req.Parts)}}
	if req.JSON {
		payload.GenerationConfig = &GenerationConfig{ResponseMimeType: "application/json"}
	}
	resp, err := m.client.Generate(ctx, m.model, payload)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// ImageModel binds a client to an image model.
type ImageModel struct {
	client *Client
	model  string
}

// NewImageModel returns a generation.ImageModel backed by client.
func NewImageModel(client *Client, model string) *ImageModel {
	return &ImageModel{client: client, model: model}
}

// Model returns the model name.
func (m *ImageModel) Model() string { return m.model }

// GenerateImage returns the first inline image as base64.
func (m *ImageModel) GenerateImage(ctx context.Context, req generation.ImageRequest) (string, error) {
	payload := GenerateRequest{
		Contents: []Content{userContent(req.Parts)},
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &ImageConfig{
				AspectRatio: string(req.AspectRatio),
				ImageSize:   string(req.Resolution),
			},
		},
	}
	resp, err := m.client.Generate(ctx, m.model, payload)
	if err != nil {
		return "", err
	}
	image, ok := resp.FirstImage()
	if !ok {
		return "", services.Wrap(services.ErrMalformedOutput, stageName, m.model, "No image generated", nil)
	}
	return image.Data, nil
}

func userContent(parts []generation.Part) Content {
	content := Content{Role: "user", Parts: make([]Part, 0, len(parts))}
	for _, part := range parts {
		if part.Image != nil {
			content.Parts = append(content.Parts, Part{InlineData: &InlineData{MimeType: part.Image.MimeType, Data: part.Image.Data}})
			continue
		}
		content.Parts = append(content.Parts, Part{Text: part.Text})
	}
	return content
}

var (
	_ generation.TextModel  = (*TextModel)(nil)
	_ generation.ImageModel = (*ImageModel)(nil)
)
