package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "nested", "goad_deployment.log")

	logger, closeFn, err := New(Options{Level: "info", File: file, Console: &console})
	require.NoError(t, err)

	logger.Info("[  1] Starting deployment on dc01 (10.1.1.5) - Attempt 1/3", zap.String("target", "dc01"))
	logger.Debug("hidden at info")
	require.NoError(t, closeFn())

	consoleOut := console.String()
	assert.Contains(t, consoleOut, " - INFO - [  1] Starting deployment on dc01 (10.1.1.5) - Attempt 1/3")
	assert.NotContains(t, consoleOut, `"target"`)
	assert.NotContains(t, consoleOut, "hidden at info")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	fileOut := string(data)
	assert.Contains(t, fileOut, "Starting deployment on dc01")
	assert.Contains(t, fileOut, `"target": "dc01"`)
	assert.Equal(t, 1, strings.Count(fileOut, "\n"))
}

func TestNew_DebugLevel(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Console: &console})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	logger.Debug("admitted")

	assert.Contains(t, console.String(), "DEBUG - admitted")
}

func TestNew_WithFieldsStillPlainOnConsole(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := New(Options{Console: &console})
	require.NoError(t, err)

	logger.With(zap.String("run", "abc")).Warn("stage failed")

	assert.Contains(t, console.String(), "WARN - stage failed")
	assert.NotContains(t, console.String(), "abc")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
