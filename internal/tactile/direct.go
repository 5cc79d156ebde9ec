package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"vtfpbatch/internal/logging"

	"go.uber.org/zap"
)

// DirectExecutor executes commands directly on the host using os/exec.
type DirectExecutor struct {
	mu     sync.RWMutex
	config ExecutorConfig

	// auditCallback is called for execution events
	auditCallback func(AuditEvent)
}

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor() *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig())
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig) *DirectExecutor {
	logging.TactileDebug("creating DirectExecutor",
		zap.Duration("timeout", config.DefaultTimeout),
		zap.Int64("max_output", config.MaxOutputBytes))
	return &DirectExecutor{
		config: config,
	}
}

// SetAuditCallback sets the callback for audit events.
func (e *DirectExecutor) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

// emitAudit emits an audit event if a callback is registered.
func (e *DirectExecutor) emitAudit(typ AuditEventType, cmd Command, result *ExecutionResult) {
	e.mu.RLock()
	callback := e.auditCallback
	e.mu.RUnlock()

	if callback != nil {
		callback(AuditEvent{
			Type:         typ,
			Timestamp:    time.Now(),
			Command:      cmd,
			Result:       result,
			SessionID:    cmd.SessionID,
			ExecutorName: "direct",
		})
	}
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host and blocks until it exits.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "direct command execution")
	defer timer.Stop()

	if err := e.Validate(cmd); err != nil {
		logging.TactileWarn("command validation failed", zap.String("binary", cmd.Binary), zap.Error(err))
		return nil, err
	}

	logging.Tactile("executing command",
		zap.String("binary", cmd.Binary),
		zap.Int("args", len(cmd.Arguments)),
		zap.String("session", cmd.SessionID))

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	e.emitAudit(AuditEventStart, cmd, nil)

	execCtx := ctx
	if e.config.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.config.DefaultTimeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = e.buildEnvironment(cmd.Environment)

	// One buffer for both streams keeps their interleaving.
	var combined bytes.Buffer
	var out io.Writer = &combined
	limited := &limitedWriter{w: &combined, max: e.config.MaxOutputBytes}
	if e.config.MaxOutputBytes > 0 {
		out = limited
	}
	execCmd.Stdout = out
	execCmd.Stderr = out

	result.StartedAt = time.Now()
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Combined = combined.String()

	if limited.truncated {
		result.Truncated = true
		result.TruncatedBytes = limited.discarded
		logging.TactileWarn("command output truncated", zap.Int64("discarded", limited.discarded))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.ExitCode = 0
	case execCtx.Err() != nil:
		result.Killed = true
		result.KillReason = execCtx.Err().Error()
		result.Success = true
		logging.TactileWarn("command killed", zap.String("binary", cmd.Binary), zap.String("reason", result.KillReason))
		e.emitAudit(AuditEventKilled, cmd, result)
		return result, nil
	case errors.As(err, &exitErr):
		result.Success = true // Command ran, just returned non-zero
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Success = false
		result.Error = err.Error()
		logging.TactileError("command failed to start", zap.String("binary", cmd.Binary), zap.Error(err))
		e.emitAudit(AuditEventError, cmd, result)
		return result, nil
	}

	e.emitAudit(AuditEventComplete, cmd, result)

	logging.Tactile("command completed",
		zap.String("binary", cmd.Binary),
		zap.Int("exit", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Int("output_bytes", len(result.Combined)))

	return result, nil
}

// buildEnvironment creates the environment variable list.
func (e *DirectExecutor) buildEnvironment(cmdEnv []string) []string {
	var env []string
	if e.config.InheritEnvironment {
		env = os.Environ()
	}
	return append(env, cmdEnv...)
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
