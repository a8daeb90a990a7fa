// Package claude provides an Anthropic-backed text model for script writing
// and panel analysis, usable directly or through AWS Bedrock.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	defaultMaxTokens = 8192
	stageName        = "claude"
	jsonInstruction  = "Respond with a single JSON object and no surrounding prose."
)

// Config selects the endpoint and credentials.
type Config struct {
	Model      string
	APIKey     string
	UseBedrock bool
	AWSRegion  string
	AWSProfile string
}

// TextModel implements generation.TextModel over the Messages API.
type TextModel struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewTextModel builds the SDK client. Extra request options are appended
// after the credential options.
func NewTextModel(ctx context.Context, cfg Config, extra ...option.RequestOption) (*TextModel, error) {
	var opts []option.RequestOption
	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "anthropic api key required", nil)
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)

	model := anthropic.Model(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = anthropic.Model("claude-sonnet-4-5-20250929")
	}
	return &TextModel{inner: anthropic.NewClient(opts...), model: model}, nil
}

// Model returns the configured model name.
func (m *TextModel) Model() string { return string(m.model) }

// GenerateText concatenates the text blocks of the reply.
func (m *TextModel) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Parts)+1)
	for _, part := range req.Parts {
		if part.Image != nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(part.Image.MimeType, part.Image.Data))
			continue
		}
		if part.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		}
	}
	if req.JSON {
		blocks = append(blocks, anthropic.NewTextBlock(jsonInstruction))
	}

	resp, err := m.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: defaultMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", classify(string(m.model), err)
	}
	if resp.StopReason == "refusal" {
		return "", services.Wrap(services.ErrContentFiltered, stageName, string(m.model), "model refused the request", nil)
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}

func classify(model string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		marker := services.ErrProvider
		switch {
		case apiErr.StatusCode == http.StatusBadRequest:
			marker = services.ErrBadRequest
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			marker = services.ErrPermissionDenied
		case apiErr.StatusCode == http.StatusTooManyRequests:
			marker = services.ErrRateLimited
		case apiErr.StatusCode >= http.StatusInternalServerError:
			marker = services.ErrServer
		}
		return services.Wrap(marker, stageName, model, fmt.Sprintf("http %d", apiErr.StatusCode), err)
	}
	return services.Wrap(services.ErrNetwork, stageName, model, "request failed", err)
}

var _ generation.TextModel = (*TextModel)(nil)
