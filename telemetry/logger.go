package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for governance operations

func (l *Logger) LogStorageError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("storage operation failed")
}

func (l *Logger) LogEvaluation(ctx context.Context, modelID, status, reason string, risk, disparity float64) {
	l.WithContext(ctx).Info().
		Str("model_id", modelID).
		Str("status", status).
		Str("reason", reason).
		Float64("risk_score", risk).
		Float64("disparity_score", disparity).
		Msg("governance evaluation complete")
}

func (l *Logger) LogDeployment(ctx context.Context, modelID string, allowed, overrideUsed bool, reason string) {
	event := l.WithContext(ctx).Info()
	if !allowed {
		event = l.WithContext(ctx).Warn()
	}
	event.
		Str("model_id", modelID).
		Bool("allowed", allowed).
		Bool("override_used", overrideUsed).
		Str("reason", reason).
		Msg("deployment decision")
}

func (l *Logger) LogAuditFailure(ctx context.Context, modelID, action string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("model_id", modelID).
		Str("action", action).
		Msg("audit write failed, decision stands")
}

func (l *Logger) LogPolicyFallback(ctx context.Context, modelID string, fallback float64) {
	l.WithContext(ctx).Warn().
		Str("model_id", modelID).
		Float64("fallback_threshold", fallback).
		Msg("no active policy for fairness threshold, using default")
}
