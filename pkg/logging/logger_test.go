package logging

import (
	"os"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temp log directory and restores
// the previous state on cleanup.
func setupTestDir(t *testing.T) {
	t.Helper()

	tempDir := t.TempDir()

	origLogDir := logDir
	origInitErr := initErr

	// Consume the init once so initLogDirectory keeps our temp dir.
	initOnce.Do(func() {})
	logDir = tempDir
	initErr = nil

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
	})
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test-component")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "test-component" {
		t.Errorf("Expected component 'test-component', got %q", logger.component)
	}
	if logger.ProcessID() == "" {
		t.Error("Expected non-empty process ID")
	}
	if logger.LogPath() == "" {
		t.Error("Expected non-empty log path")
	}
	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}
}

func TestLoggerFormatting(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("fmt-test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debugf("debug %d", 1)
	logger.Infof("info %s", "message")
	logger.Warnf("warn")
	logger.Errorf("error")
	logger.Close()

	data, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"[fmt-test] [DEBUG] debug 1",
		"[fmt-test] [INFO] info message",
		"[fmt-test] [WARN] warn",
		"[fmt-test] [ERROR] error",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Log file missing entry %q", want)
		}
	}
}

func TestLoggerSharedFile(t *testing.T) {
	setupTestDir(t)

	first, err := NewLogger("component-a")
	if err != nil {
		t.Fatalf("Failed to create first logger: %v", err)
	}
	defer first.Close()

	second, err := NewLogger("component-b")
	if err != nil {
		t.Fatalf("Failed to create second logger: %v", err)
	}
	defer second.Close()

	if first.LogPath() != second.LogPath() {
		t.Errorf("Expected shared log file, got %q and %q", first.LogPath(), second.LogPath())
	}
	if first.ProcessID() != second.ProcessID() {
		t.Error("Expected shared process ID across components")
	}
}

func TestLoggerConcurrentWrites(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("concurrent")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Infof("writer %d", n)
		}(i)
	}
	wg.Wait()
}

func TestLoggerCloseIsIdempotent(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("close-test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
