package agent

import (
	"context"
	"time"

	"github.com/runixer/heirloom/internal/catalog"
)

// contextKey is the key type for storing SharedContext in context.Context.
type contextKey struct{}

// SharedContext holds the data every agent of one turn sees.
type SharedContext struct {
	SessionID string
	Persona   *catalog.Profile
	Language  string // "en" or "nl"
	LoadedAt  time.Time
}

// NewSharedContext creates the shared context of one turn.
func NewSharedContext(sessionID string, persona *catalog.Profile, language string) *SharedContext {
	return &SharedContext{
		SessionID: sessionID,
		Persona:   persona,
		Language:  language,
		LoadedAt:  time.Now(),
	}
}

// WithContext injects SharedContext into context.Context.
func WithContext(ctx context.Context, shared *SharedContext) context.Context {
	return context.WithValue(ctx, contextKey{}, shared)
}

// FromContext extracts SharedContext from context.Context.
// Returns nil if not found.
func FromContext(ctx context.Context) *SharedContext {
	if shared, ok := ctx.Value(contextKey{}).(*SharedContext); ok {
		return shared
	}
	return nil
}

// ResolveShared returns req.Shared, falling back to the context value.
func ResolveShared(ctx context.Context, req *Request) *SharedContext {
	if req != nil && req.Shared != nil {
		return req.Shared
	}
	return FromContext(ctx)
}
