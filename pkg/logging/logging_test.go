package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/jwynia/corticai/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.Config)
		wantLevel zapcore.Level
	}{
		{"default", func(*config.Config) {}, zapcore.InfoLevel},
		{"warn json", func(c *config.Config) { c.Logging.Level = "warn"; c.Logging.Format = "json" }, zapcore.WarnLevel},
		{"upper case level", func(c *config.Config) { c.Logging.Level = "ERROR" }, zapcore.ErrorLevel},
		{"debug flag", func(c *config.Config) { c.Debug = true; c.Logging.Level = "error" }, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			logger, err := New(cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)

			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			if tt.wantLevel > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "chatty"

	_, err := New(cfg)
	assert.Error(t, err)
}
