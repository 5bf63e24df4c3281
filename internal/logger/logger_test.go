package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/gomigrate/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input).String())
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.LoggingConfig
	}{
		{name: "json info stdout", cfg: &config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "text debug stdout", cfg: &config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"}},
		{name: "text error stderr", cfg: &config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.log")

	logger, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Infow("chunk committed", "chunk", 3)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"chunk":3`), "log file content: %s", data)
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&config.LoggingConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestContextHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromCore(core)

	log.WithJob("employees").
		WithRun("run-1").
		WithTable("staff").
		WithChunk(2, "insert").
		WithFields(map[string]interface{}{"rows": 500}).
		Debugw("loading")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "employees", fields["job"])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "staff", fields["table"])
	assert.EqualValues(t, 2, fields["chunk"])
	assert.Equal(t, "insert", fields["kind"])
	assert.EqualValues(t, 500, fields["rows"])
}

func TestNewNopAndDefault(t *testing.T) {
	nop := NewNop()
	nop.Infow("discarded", "k", "v")
	assert.NoError(t, nop.Sync())

	assert.NotNil(t, NewDefault())
}
