package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapterCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).With(map[string]interface{}{"component": "test"})

	log.WithError(errors.New("boom")).Warn("persist failed", map[string]interface{}{"templateId": "tpl-1"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "persist failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "tpl-1", fields["templateId"])
	assert.Equal(t, "boom", fields["error"])
}

func TestNewLevels(t *testing.T) {
	assert.True(t, New("debug", "console").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "json").Core().Enabled(zapcore.InfoLevel))
	assert.False(t, New("", "json").Core().Enabled(zapcore.DebugLevel))
}
