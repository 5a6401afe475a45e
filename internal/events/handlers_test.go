package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestLogHandler_AttemptStartedLine(t *testing.T) {
	logger, logs := observedLogger()
	handler := LogHandler(logger)

	handler(NewEvent(AttemptStarted, "dc01").WithAddress("10.3.1.5").WithGroup(3).WithAttempt(1, 3))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "[  3] Starting deployment on dc01 (10.3.1.5) - Attempt 1/3", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "dc01", entry.ContextMap()["target"])
	assert.Equal(t, int64(1), entry.ContextMap()["attempt"])
}

func TestLogHandler_TerminalLevels(t *testing.T) {
	tests := []struct {
		typ   EventType
		level zapcore.Level
	}{
		{TargetSucceeded, zapcore.InfoLevel},
		{TargetRetrying, zapcore.WarnLevel},
		{TargetFailed, zapcore.ErrorLevel},
		{TargetTimeout, zapcore.ErrorLevel},
		{TargetError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			logger, logs := observedLogger()
			LogHandler(logger)(NewEvent(tt.typ, "dc01").WithGroup(1).WithAttempt(3, 3))

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.level, logs.All()[0].Level)
			assert.Contains(t, logs.All()[0].Message, "dc01")
		})
	}
}

func TestLogHandler_TargetErrorIncludesCause(t *testing.T) {
	logger, logs := observedLogger()
	LogHandler(logger)(NewEvent(TargetError, "dc01").WithGroup(1).WithError(errors.New("sshpass: not found")))

	assert.Contains(t, logs.All()[0].Message, "sshpass: not found")
}

func TestLogHandler_CriticalStageFailureTail(t *testing.T) {
	logger, logs := observedLogger()
	e := NewEvent(StageFailed, "").
		WithStage("prepare-deployment-boxes").
		WithLogPath("logs/prepare-deployment-boxes.log").
		WithPayload(map[string]any{"critical": true, "tail": []string{"TASK [x]", "fatal: unreachable"}})

	LogHandler(logger)(e)

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "✗ Critical stage prepare-deployment-boxes failed", entries[0].Message)
	assert.Equal(t, "Last 2 lines of logs/prepare-deployment-boxes.log:", entries[1].Message)
	assert.Equal(t, "  fatal: unreachable", entries[3].Message)
	for _, entry := range entries {
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	}
	_, hasTail := entries[0].ContextMap()["tail"]
	assert.False(t, hasTail)
}

func TestLogHandler_BestEffortStageFailureWarns(t *testing.T) {
	logger, logs := observedLogger()
	e := NewEvent(StageFailed, "").WithStage("prepare-kali-boxes").WithPayload(map[string]any{"critical": false})

	LogHandler(logger)(e)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Contains(t, logs.All()[0].Message, "continuing")
}

func TestLogHandler_NilLogger(t *testing.T) {
	// Should not panic
	LogHandler(nil)(NewEvent(RunStarted, ""))
}

func TestCollector_ForTarget(t *testing.T) {
	var c Collector
	h := c.Handler()
	h(NewEvent(AttemptStarted, "a"))
	h(NewEvent(AttemptStarted, "b"))
	h(NewEvent(TargetSucceeded, "a"))

	got := c.ForTarget("a")
	require.Len(t, got, 2)
	assert.Equal(t, TargetSucceeded, got[1].Type)
}
