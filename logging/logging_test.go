package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := ContextWithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}

func TestService_PrefersContextLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	Service(ctx, baseLogger, "clock", "clock_in", "user_id", "u1").Info("done")

	assert.Empty(t, base.String())
	assert.Contains(t, scoped.String(), "service=clock")
	assert.Contains(t, scoped.String(), "operation=clock_in")
	assert.Contains(t, scoped.String(), "user_id=u1")
}

func TestNew_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "json")
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = New(&buf, "info", "xml")
	assert.Error(t, err)

	_, err = New(&buf, "loud", "text")
	assert.Error(t, err)
}
