package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONEmitter_WritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONEmitter(&buf)

	require.NoError(t, emitter.Emit(NewEvent(RunStarted, "").WithPayload(map[string]any{"targets": 5})))
	require.NoError(t, emitter.Emit(NewEvent(TargetSucceeded, "dc01").WithGroup(1).WithDuration(1500*time.Millisecond)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var je JSONEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &je))
	assert.Equal(t, "target.succeeded", je.Type)
	assert.Equal(t, "dc01", je.Target)
	require.NotNil(t, je.Group)
	assert.Equal(t, 1, *je.Group)
	assert.Equal(t, int64(1500), je.DurationMS)
}

func TestToJSONEvent_WrapsScalarPayload(t *testing.T) {
	je := ToJSONEvent(NewEvent(RunCompleted, "").WithPayload("done"))
	assert.Equal(t, map[string]any{"value": "done"}, je.Payload)
}

func TestJSONEmitterHandler(t *testing.T) {
	var buf bytes.Buffer
	h := JSONEmitterHandler(NewJSONEmitter(&buf), nil)

	h(NewEvent(TargetError, "dc01"))

	assert.Contains(t, buf.String(), `"type":"target.error"`)
}
