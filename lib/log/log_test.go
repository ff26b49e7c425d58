package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tarancss/addrprof/lib/config"
)

func TestLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	defer Use(nil)

	Debug("hidden")
	Info("subscribed", zap.String("address", "0xabc"))
	Warne("poll failed", errors.New("boom"))
	Errore("reconcile failed", errors.New("bad"))

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, "subscribed", entries[0].Message)
	assert.Equal(t, "0xabc", entries[0].ContextMap()["address"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("whatever"))
}

func TestBootstrap(t *testing.T) {
	defer Use(nil)

	require.NoError(t, Bootstrap(config.LoggerConfig{Level: "debug", File: "stderr", Debug: true}))
	Info("bootstrapped")
	Sync()
}
