package logging

import (
	"context"
	"log/slog"

	"shopflow/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for repair job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for detailed stage codes.
	FieldStage = "stage"
	// FieldFromStage and FieldToStage are the two ends of a stage move.
	FieldFromStage = "from_stage"
	FieldToStage   = "to_stage"
	// FieldShopID is the standardized structured logging key for shop identifiers.
	FieldShopID = "shop_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	scope := services.ScopeFromContext(ctx)
	fields := make([]slog.Attr, 0, 4)
	if scope.JobID > 0 {
		fields = append(fields, JobID(scope.JobID))
	}
	if scope.Stage != "" {
		fields = append(fields, Stage(scope.Stage))
	}
	if scope.ShopID != "" {
		fields = append(fields, Shop(scope.ShopID))
	}
	if scope.RequestID != "" {
		fields = append(fields, slog.String(FieldCorrelationID, scope.RequestID))
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
