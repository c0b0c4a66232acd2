package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyJobID      contextKey = "job_id"
	ContextKeySourceFile contextKey = "source_file"
)

// WithJobID adds a batch job ID to the context for log correlation.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ContextKeyJobID, jobID)
}

// JobIDFromContext extracts the batch job ID from context
func JobIDFromContext(ctx context.Context) string {
	if jobID, ok := ctx.Value(ContextKeyJobID).(string); ok {
		return jobID
	}
	return ""
}

// WithSourceFile records the document path being processed.
func WithSourceFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, ContextKeySourceFile, path)
}

// SourceFileFromContext extracts the document path from context
func SourceFileFromContext(ctx context.Context) string {
	if path, ok := ctx.Value(ContextKeySourceFile).(string); ok {
		return path
	}
	return ""
}
