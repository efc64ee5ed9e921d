package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/sandeepkv93/calbill/internal/config"
)

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := NewLogger(config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("%s: debug level should be enabled", format)
		}
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(config.LogConfig{Level: "chatty", Format: "console"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
