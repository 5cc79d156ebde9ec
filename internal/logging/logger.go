// Package logging provides config-driven categorized logging for vtfpbatch.
// A single zap root logger is built at startup; each subsystem logs through a
// named child so lines can be filtered by category.
package logging

import (
	"fmt"
	"sync"
	"time"

	"vtfpbatch/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategoryTargets Category = "targets" // Targets file parsing
	CategoryPaths   Category = "paths"   // Directory resolution and checks
	CategoryMethod  Category = "method"  // vtfp argument assembly
	CategoryTactile Category = "tactile" // External command execution
	CategoryBatch   Category = "batch"   // Row loop and summary
)

var (
	root      = zap.NewNop()
	loggers   = make(map[Category]*zap.Logger)
	loggersMu sync.RWMutex
)

// Initialize builds the root logger from cfg. verbose forces debug level.
// Should be called once at startup.
func Initialize(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(logger)

	Get(CategoryBoot).Debug("logging initialized",
		zap.String("level", level.String()),
		zap.String("format", cfg.Format))
	return logger, nil
}

// SetLogger replaces the root logger and drops cached category loggers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggersMu.Lock()
	defer loggersMu.Unlock()
	root = l
	loggers = make(map[Category]*zap.Logger)
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *zap.Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category))
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	loggersMu.RLock()
	l := root
	loggersMu.RUnlock()
	_ = l.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Tactile logs to the tactile category
func Tactile(msg string, fields ...zap.Field) {
	Get(CategoryTactile).Info(msg, fields...)
}

// TactileDebug logs debug to the tactile category
func TactileDebug(msg string, fields ...zap.Field) {
	Get(CategoryTactile).Debug(msg, fields...)
}

// TactileWarn logs a warning to the tactile category
func TactileWarn(msg string, fields ...zap.Field) {
	Get(CategoryTactile).Warn(msg, fields...)
}

// TactileError logs an error to the tactile category
func TactileError(msg string, fields ...zap.Field) {
	Get(CategoryTactile).Error(msg, fields...)
}

// Timer tracks operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn(t.op+" slow",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		Get(t.category).Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
