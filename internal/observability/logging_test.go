package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/pong/internal/config"
)

func TestNewLogger(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, false},
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, false},
		{"json error", config.LoggingConfig{Level: "error", Format: "json"}, false},
		{"unknown level", config.LoggingConfig{Level: "trace", Format: "json"}, true},
		{"unknown format", config.LoggingConfig{Level: "info", Format: "logfmt"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewLogger(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLogger_LevelGatesOutput(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	core := logger.Core()
	assert.False(t, core.Enabled(zapcore.DebugLevel))
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
}
