package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a debug-level logger appending to <dataDir>/debug.log
// when TERMCHAT_DEBUG is set, and a no-op logger otherwise.
func NewLogger(dataDir string, getenv func(string) string) (*zap.Logger, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if !CheckDebug(getenv) {
		return zap.NewNop(), nil
	}

	logPath := filepath.Join(dataDir, DebugLogFile)
	// debug.log may contain message content: 0600 like the store
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not open debug log at %s: %w", logPath, err)
	}
	f.Close()

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zc.OutputPaths = []string{logPath}
	zc.ErrorOutputPaths = []string{logPath}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("debug logging started",
		zap.String("TERMCHAT_DEBUG", getenv("TERMCHAT_DEBUG")),
		zap.String("path", logPath))
	return logger, nil
}
