package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vtfpbatch/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize_WritesToFile(t *testing.T) {
	defer SetLogger(nil)

	logPath := filepath.Join(t.TempDir(), "batch.log")
	logger, err := Initialize(config.LoggingConfig{Level: "info", Format: "json", File: logPath}, false)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Get(CategoryBatch).Info("row processed", zap.String("sample", "1234_1#1"))
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"logger":"batch"`) {
		t.Errorf("expected category name in log line, got: %s", content)
	}
	if !strings.Contains(content, "1234_1#1") {
		t.Errorf("expected field value in log line, got: %s", content)
	}
}

func TestInitialize_VerboseForcesDebug(t *testing.T) {
	defer SetLogger(nil)

	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := Initialize(config.LoggingConfig{Level: "error", Format: "json", File: logPath}, true)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	TactileDebug("probe")
	_ = logger.Sync()

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "probe") {
		t.Errorf("expected debug line with verbose=true, got: %s", data)
	}
}

func TestInitialize_BadLevel(t *testing.T) {
	if _, err := Initialize(config.LoggingConfig{Level: "loud", Format: "json"}, false); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestGet_NamedAndCached(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	a := Get(CategoryPaths)
	b := Get(CategoryPaths)
	if a != b {
		t.Error("expected cached logger for same category")
	}

	a.Warn("output directory missing")
	TactileWarn("slow command")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "paths" {
		t.Errorf("expected logger name paths, got %s", entries[0].LoggerName)
	}
	if entries[1].LoggerName != "tactile" {
		t.Errorf("expected logger name tactile, got %s", entries[1].LoggerName)
	}
}

func TestGet_Concurrent(t *testing.T) {
	defer SetLogger(nil)
	SetLogger(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Get(CategoryMethod).Debug("concurrent")
		}()
	}
	wg.Wait()
}

func TestTimer_StopWithThreshold(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	timer := StartTimer(CategoryTactile, "vtfp invocation")
	time.Sleep(2 * time.Millisecond)
	if elapsed := timer.StopWithThreshold(time.Nanosecond); elapsed <= 0 {
		t.Errorf("expected positive elapsed, got %v", elapsed)
	}

	if logs.FilterMessage("vtfp invocation slow").Len() != 1 {
		t.Errorf("expected slow warning, got %v", logs.All())
	}

	StartTimer(CategoryTactile, "quick").Stop()
	if logs.FilterMessage("quick completed").Len() != 1 {
		t.Errorf("expected completion entry, got %v", logs.All())
	}
}
