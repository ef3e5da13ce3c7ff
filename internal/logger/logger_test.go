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

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, l)
	l.With(String("run_id", "x")).Debug("テスト")
}

func TestFromZap_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("run_id", "abc"))

	l.Warn("スクレイピング失敗", String("url", "http://example.com/b"), Error(errors.New("timeout")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "スクレイピング失敗", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["run_id"])
	assert.Equal(t, "http://example.com/b", fields["url"])
	assert.Equal(t, "timeout", fields["error"])
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	assert.Same(t, l, l.With(Int("n", 1)))
	assert.NoError(t, l.Sync())
}
