package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel(" warn "))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestShortcutsUseGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Infof("hello %s", "world")
	Warn("careful", zap.String("k", "v"))
	Debug("dropped")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "hello world", entries[0].Message)
		assert.Equal(t, "v", entries[1].ContextMap()["k"])
	}
}

func TestInit_JSON(t *testing.T) {
	restore := Replace(L())
	defer restore()

	l := Init(Config{Level: "error", Format: "json"})
	assert.Same(t, l, L())
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
}
