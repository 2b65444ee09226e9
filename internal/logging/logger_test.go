package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	logger, err := New(DevelopmentConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil).Logger)

	l := NewNop()
	assert.Same(t, l, OrNop(l))
}

func TestEachLine(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Wrap(zap.New(core))

	logger.EachLine(zapcore.InfoLevel, "\n\nfirst\nsecond\n\n", zap.String("source", "chrome"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, "chrome", entries[1].ContextMap()["source"])
}

func TestEachLineSkipsBlankText(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Wrap(zap.New(core)).EachLine(zapcore.InfoLevel, "\n\n")
	assert.Zero(t, logs.Len())
}
