package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPhone(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"+33612345678", "****5678"},
		{"  +33612345678 ", "****5678"},
		{"123", "****"},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, MaskPhone(tc.in))
		})
	}
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", RedactEmail("jane@example.com"))
	assert.Equal(t, "***", RedactEmail("not-an-email"))
	assert.Equal(t, "***", RedactEmail("@example.com"))
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("dropped")
	l.Warn("kept", slog.String("component", "test"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}
