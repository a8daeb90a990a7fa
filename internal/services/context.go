package services

import "context"

type contextKey string

const (
	projectKey   contextKey = "project"
	stageKey     contextKey = "stage"
	panelKey     contextKey = "panel_index"
	requestIDKey contextKey = "request_id"
)

// WithProject annotates context with the project name.
func WithProject(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, name)
}

// ProjectFromContext returns the project name if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithPanelIndex annotates context with a zero-based panel index.
func WithPanelIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, panelKey, index)
}

// PanelIndexFromContext extracts the panel index if present.
func PanelIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(panelKey).(int)
	return v, ok
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
