// Package logging builds the zap logger shared by corticai components.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jwynia/corticai/pkg/config"
)

// New returns a logger for cfg. Debug selects a development logger at
// debug level; otherwise Logging.Level and Logging.Format apply. Output
// goes to stderr so command output on stdout stays clean.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Logging.Level))); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	core := zapcore.NewCore(encoder(cfg.Logging.Format), zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddStacktrace(zap.ErrorLevel)).Named("corticai"), nil
}

func encoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(format) {
	case "console", "text":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
