// Package jobtype labels generation calls with the dialogue pass they belong to.
//
// Usage:
//
//	// In the options pass:
//	ctx = jobtype.WithJobType(ctx, jobtype.Options)
//
//	// In metrics/logging code:
//	jt := jobtype.FromContext(ctx) // Returns Reply if not set
package jobtype

import "context"

// JobType classifies a generation call for observability purposes.
type JobType string

const (
	// Reply is the persona's in-character answer (pass 1).
	// This is the default when no job type is explicitly set.
	Reply JobType = "reply"

	// Options is the scriptwriter pass producing player reply options (pass 2).
	Options JobType = "options"
)

// String returns the string representation of the job type.
func (jt JobType) String() string {
	return string(jt)
}

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey struct{}

// WithJobType returns a new context with the specified job type.
func WithJobType(ctx context.Context, jt JobType) context.Context {
	return context.WithValue(ctx, contextKey{}, jt)
}

// FromContext extracts the job type from context.
// Returns Reply if no job type is set.
func FromContext(ctx context.Context) JobType {
	if jt, ok := ctx.Value(contextKey{}).(JobType); ok {
		return jt
	}
	return Reply
}
