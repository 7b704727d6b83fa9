package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturingLogger(service string) (*EventLogger, *bytes.Buffer) {
	el := NewEventLogger("", service, 10, 1)
	var buf bytes.Buffer
	el.log.SetOutput(&buf)
	return el, &buf
}

func decodeLastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestStageStartEmitsTypeAndServiceFields(t *testing.T) {
	el, buf := newCapturingLogger("querylens")
	el.StageStart("clarifier", map[string]any{"question": "입원 환자 수는?"})

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "stage_start", entry["type"])
	assert.Equal(t, "querylens", entry["service"])
	assert.Equal(t, "clarifier", entry["event"])
	assert.Equal(t, "입원 환자 수는?", entry["question"])
}

func TestStageEndEmitsStageEndType(t *testing.T) {
	el, buf := newCapturingLogger("querylens")
	el.StageEnd("policy", map[string]any{"allowed": true})

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "stage_end", entry["type"])
	assert.Equal(t, true, entry["allowed"])
}

func TestWarnEmitsWarningLevel(t *testing.T) {
	el, buf := newCapturingLogger("querylens")
	el.Warn("budget_near_limit", map[string]any{"used": 0.95})

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "warning", entry["type"])
	assert.Equal(t, "warning", entry["level"])
}

func TestErrorAttachesErrMessageAndSurvivesNilFields(t *testing.T) {
	el, buf := newCapturingLogger("querylens")
	el.Error("executor_failed", assertErr{}, nil)

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "error", entry["type"])
	assert.Equal(t, "executor failed", entry["error"])
}

func TestInfoEmitsInfoType(t *testing.T) {
	el, buf := newCapturingLogger("querylens")
	el.Info("cache_reloaded", map[string]any{"kind": "schema"})

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "info", entry["type"])
	assert.Equal(t, "schema", entry["kind"])
}

type assertErr struct{}

func (assertErr) Error() string { return "executor failed" }
