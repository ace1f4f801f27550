package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	require.Same(t, &logger, FromContext(ctx))
	assert.Same(t, FromContext(ctx), Ctx(ctx))
}

func TestWithCycleIDTagsEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	ctx := WithLogger(context.Background(), &logger)
	ctx = WithCycleID(ctx, "cycle-123")

	assert.Equal(t, "cycle-123", CycleID(ctx))

	Ctx(ctx).Info().Msg("hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "cycle-123", event["cycle_id"])
}

func TestCycleIDAbsent(t *testing.T) {
	assert.Empty(t, CycleID(context.Background()))
}

func TestAccountAndOperationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	ctx := WithLogger(context.Background(), &logger)
	ctx = WithAccount(ctx, "account1")
	ctx = WithOperation(ctx, "create")

	Ctx(ctx).Info().Msg("applied")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "account1", event["account"])
	assert.Equal(t, "create", event["operation"])
}
