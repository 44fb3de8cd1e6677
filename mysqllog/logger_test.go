package mysqllog

import (
	"encoding/json"
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
	for s, want := range map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		lev, err := ParseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, want, lev)
	}

	_, err := ParseLevel("system")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestFileLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "binlogtail.log")
	l, err := New(Config{Level: "info", Format: FormatJSON, File: file, MaxSize: 1})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("streaming", zap.String("file", "mysql-bin.000001"))
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, l.Level())
	l.Debug("shown")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["L"])
	assert.Equal(t, "streaming", entry["M"])
	assert.Equal(t, "mysql-bin.000001", entry["file"])
	assert.Contains(t, lines[1], `"M":"shown"`)
}

func TestNewErrors(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorIs(t, err, ErrUnknownLevel)

	_, err = New(Config{Format: "xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	l, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l.Level())
	assert.ErrorIs(t, l.SetLevel("nope"), ErrUnknownLevel)
	assert.NoError(t, l.Close())
}
