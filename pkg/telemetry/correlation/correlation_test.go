package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", cid)
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.NotEmpty(t, cid)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestForUpdate(t *testing.T) {
	_, cid := ForUpdate(context.Background(), 42)
	assert.Equal(t, "upd-42", cid)

	_, generated := ForUpdate(context.Background(), 0)
	assert.NotEqual(t, "upd-0", generated)
}

func TestContextWithRemoteSpanRejectsGarbage(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "nope", "nope")
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}
