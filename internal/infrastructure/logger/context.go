package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// PassIDKey is the context key for the matching-pass ID
	PassIDKey contextKey = "pass_id"
	// EntityIDKey is the context key for the legal entity ID
	EntityIDKey contextKey = "entity_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithPassID adds the matching-pass ID to context and returns the enriched logger
func WithPassID(ctx context.Context, logger *zap.Logger, passID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, PassIDKey, passID)
	enriched := logger.With(zap.String("pass_id", passID))
	return WithContext(ctx, enriched), enriched
}

// WithEntityID adds the legal entity ID to context and returns the enriched logger
func WithEntityID(ctx context.Context, logger *zap.Logger, entityID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, EntityIDKey, entityID)
	enriched := logger.With(zap.String("entity_id", entityID))
	return WithContext(ctx, enriched), enriched
}

// GetPassID retrieves the matching-pass ID from context
func GetPassID(ctx context.Context) string {
	if passID, ok := ctx.Value(PassIDKey).(string); ok {
		return passID
	}
	return ""
}

// GetEntityID retrieves the legal entity ID from context
func GetEntityID(ctx context.Context) string {
	if entityID, ok := ctx.Value(EntityIDKey).(string); ok {
		return entityID
	}
	return ""
}
