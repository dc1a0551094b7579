package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "")
	_, err := uuid.Parse(root.TraceID)
	require.NoError(t, err)

	childCtx, parse := StartChildSpan(ctx, "parse")
	parse.SetAttr("terms", 2)
	parse.End()
	assert.Same(t, parse, SpanFromContext(childCtx))

	_, exec := StartChildSpan(ctx, "execute")
	exec.End()
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, root.TraceID, root.Children[0].TraceID)
	assert.Equal(t, 2, root.Children[0].Attrs["terms"])
}

func TestChildWithoutParentIsDetached(t *testing.T) {
	ctx := context.Background()
	got, span := StartChildSpan(ctx, "orphan")
	assert.Equal(t, ctx, got)
	assert.Nil(t, SpanFromContext(got))
	span.End()
}

func TestTracerLogsWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, finish := NewTracer(true, 1, log).Start(context.Background(), "search", "trace-1")
	_, child := StartChildSpan(ctx, "execute")
	child.End()
	finish()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "trace_id=trace-1")

	buf.Reset()
	ctx, finish = NewTracer(false, 1, log).Start(context.Background(), "search", "")
	finish()
	assert.Nil(t, SpanFromContext(ctx))
	assert.Empty(t, buf.String())
}
