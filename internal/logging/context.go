package logging

import (
	"context"
	"log/slog"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldProject is the structured logging key for the project name.
	FieldProject = "project"
	// FieldStage is the structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldPanelIndex is the structured logging key for zero-based panel positions.
	FieldPanelIndex = "panel_index"
	// FieldBatchID is the structured logging key for remaster batch identifiers.
	FieldBatchID = "batch_id"
	// FieldCorrelationID is the structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies WARN and ERROR lines.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the reader.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the kind of branch taken.
	FieldDecisionType = "decision_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if project, ok := services.ProjectFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProject, project))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if index, ok := services.PanelIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldPanelIndex, index))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
