package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/healthpulse/healthpulse/logger"
)

func TestLogger(t *testing.T) {
	log := logger.NewLogger("test-service", "debug", false)

	// Test 1, the service name is attached to log entries.
	logOutput := bytes.NewBufferString("")
	log.SetOutput(logOutput)
	log.Info("Testing")
	if !strings.Contains(logOutput.String(), "test-service") {
		t.Fatal("Test 1, expected service name in log output; got: ", logOutput.String())
	}

	// Test 2, the level is rendered for warnings.
	logOutput = bytes.NewBufferString("")
	log.SetOutput(logOutput)
	log.Warn("Testing")
	if !strings.Contains(logOutput.String(), "warn") {
		t.Fatal("Test 2, expected warning level in log output; got: ", logOutput.String())
	}

	// Test 3, debug entries are emitted at debug level.
	logOutput = bytes.NewBufferString("")
	log.SetOutput(logOutput)
	log.Debug("Testing debug")
	if !strings.Contains(logOutput.String(), "Testing debug") {
		t.Fatal("Test 3, expected debug message in log output; got: ", logOutput.String())
	}
}
