package agent

import (
	"context"
	"testing"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestSharedContext_RoundTrip(t *testing.T) {
	persona := &catalog.Profile{Title: "Oak Cradle"}
	shared := NewSharedContext("s1", persona, "nl")

	ctx := WithContext(context.Background(), shared)
	got := FromContext(ctx)

	assert.Same(t, shared, got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Same(t, persona, got.Persona)
	assert.Equal(t, "nl", got.Language)
	assert.False(t, got.LoadedAt.IsZero())
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestResolveShared(t *testing.T) {
	fromCtx := NewSharedContext("ctx", nil, "en")
	fromReq := NewSharedContext("req", nil, "en")
	ctx := WithContext(context.Background(), fromCtx)

	assert.Same(t, fromReq, ResolveShared(ctx, &Request{Shared: fromReq}))
	assert.Same(t, fromCtx, ResolveShared(ctx, &Request{}))
	assert.Same(t, fromCtx, ResolveShared(ctx, nil))
	assert.Nil(t, ResolveShared(context.Background(), &Request{}))
}
