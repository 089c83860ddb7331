package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. "cache_entry_evicted").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the consequence of a warning.
	FieldImpact = "impact"
	// FieldPassID identifies a single eviction pass.
	FieldPassID = "pass_id"
	// FieldCacheKey is the asset ID of the entry being operated on.
	FieldCacheKey = "cache_key"
	// FieldAssetType is the type tag accompanying a cache key.
	FieldAssetType = "asset_type"
	// FieldPath is the on-disk location of a cache file.
	FieldPath = "path"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type passIDKey struct{}

// WithPassID returns a context carrying the eviction pass identifier.
func WithPassID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, passIDKey{}, id)
}

// PassIDFromContext returns the eviction pass identifier, if any.
func PassIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(passIDKey{}).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := PassIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPassID, id))
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
	return logger.With(attrsToArgs(fields)...)
}
