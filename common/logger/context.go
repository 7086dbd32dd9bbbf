package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// The webhook handler sets them once per delivery so everything downstream
// (resolver, dispatcher, GitHub and LLM calls) logs with the same correlation.
type LogFields struct {
	DeliveryID     *string // X-GitHub-Delivery, or a generated id
	Repo           *string // owner/name
	IssueNumber    *int64
	InstallationID *int64
	EventType      *string // X-GitHub-Event
	Component      string  // e.g. "bunsen.service.dispatcher"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.DeliveryID != nil {
		result.DeliveryID = new.DeliveryID
	}
	if new.Repo != nil {
		result.Repo = new.Repo
	}
	if new.IssueNumber != nil {
		result.IssueNumber = new.IssueNumber
	}
	if new.InstallationID != nil {
		result.InstallationID = new.InstallationID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{Repo: logger.Ptr(repo)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
