// Package context carries per-run tracing values (run ID, correlation ID,
// current task path) through a task graph execution.
package context

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	unknownRunID         = "unknown-run"
	unknownCorrelationID = "unknown-correlation"
	taskPathSeparator    = " › "
)

// Using unexported struct pointers prevents key collisions.
var (
	runIDKey         = &struct{}{}
	correlationIDKey = &struct{}{}
	taskPathKey      = &struct{}{}
	startTimeKey     = &struct{}{}
)

// WithRunID adds a run ID to the context, generating one when empty.
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return unknownRunID
}

// HasRunID reports whether a run ID was attached to ctx.
func HasRunID(ctx context.Context) bool {
	return GetRunID(ctx) != unknownRunID
}

// WithCorrelationID adds a correlation ID shared by every run started from
// the same CLI invocation (watch mode reruns keep it).
func WithCorrelationID(parent context.Context, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = GenerateCorrelationID()
	}
	return context.WithValue(parent, correlationIDKey, correlationID)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id
	}
	return unknownCorrelationID
}

// WithTask appends a task name to the task path carried by ctx.
func WithTask(parent context.Context, task string) context.Context {
	path := append(append([]string(nil), GetTaskPath(parent)...), task)
	return context.WithValue(parent, taskPathKey, path)
}

// GetTaskPath returns the chain of task names from the root to the current task.
func GetTaskPath(ctx context.Context) []string {
	if path, ok := ctx.Value(taskPathKey).([]string); ok {
		return path
	}
	return nil
}

// FormatTaskPath renders the task path for humans.
func FormatTaskPath(ctx context.Context) string {
	return strings.Join(GetTaskPath(ctx), taskPathSeparator)
}

// WithStartTime adds the run start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the run start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey).(time.Time)
	return t, ok
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	startTime, ok := GetStartTime(ctx)
	if !ok {
		return 0
	}
	return time.Since(startTime)
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// GenerateCorrelationID creates a new unique correlation ID
func GenerateCorrelationID() string {
	return "cor_" + uuid.New().String()
}

// EnrichContext attaches a fresh run ID and start time, keeping an existing
// correlation ID.
func EnrichContext(parent context.Context) context.Context {
	ctx := parent
	if GetCorrelationID(ctx) == unknownCorrelationID {
		ctx = WithCorrelationID(ctx, "")
	}
	ctx = WithRunID(ctx, "")
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"run_id":         GetRunID(ctx),
		"correlation_id": GetCorrelationID(ctx),
		"task_path":      FormatTaskPath(ctx),
		"duration_ms":    GetDuration(ctx).Milliseconds(),
	}
}
