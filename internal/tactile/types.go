// Package tactile runs external commands and reports what happened.
// It is the only place vtfpbatch touches os/exec.
package tactile

import (
	"strings"
	"time"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run.
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, the current process directory is used.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to add (in KEY=VALUE format).
	Environment []string `json:"environment,omitempty"`

	// SessionID links this execution to a batch (for audit).
	SessionID string `json:"session_id,omitempty"`

	// Tags are arbitrary key-value pairs for categorization and audit.
	Tags map[string]string `json:"tags,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ExecutionResult is the output of command execution.
type ExecutionResult struct {
	// Success indicates the execution infrastructure worked.
	// A command that runs but returns non-zero exit code has Success=true.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	// Combined is stdout and stderr as the process interleaved them.
	Combined string `json:"combined"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was terminated by context cancellation.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was truncated due to size limits.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`

	Command *Command `json:"command,omitempty"`
}

// Output returns whatever the command wrote, or the infrastructure error
// when it never ran.
func (r *ExecutionResult) Output() string {
	if r.Combined == "" && r.Error != "" {
		return r.Error
	}
	return r.Combined
}

// Silent reports whether the command exited zero without writing anything.
// vtfp.pl is quiet on success; any text at all is a failure signal.
func (r *ExecutionResult) Silent() bool {
	return r.Success && !r.Killed && r.ExitCode == 0 && r.Combined == ""
}

// AuditEventType classifies audit events.
type AuditEventType string

const (
	AuditEventStart    AuditEventType = "start"
	AuditEventComplete AuditEventType = "complete"
	AuditEventKilled   AuditEventType = "killed"
	AuditEventError    AuditEventType = "error"
)

// AuditEvent is emitted around every execution.
type AuditEvent struct {
	Type         AuditEventType   `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	Command      Command          `json:"command"`
	Result       *ExecutionResult `json:"result,omitempty"`
	SessionID    string           `json:"session_id,omitempty"`
	ExecutorName string           `json:"executor_name"`
}

// ExecutorConfig holds executor defaults.
type ExecutorConfig struct {
	// DefaultTimeout bounds each command. Zero means no timeout.
	DefaultTimeout time.Duration

	// MaxOutputBytes limits captured output. Zero means unlimited.
	MaxOutputBytes int64

	// InheritEnvironment passes the parent environment to the command.
	InheritEnvironment bool
}

// DefaultExecutorConfig returns the configuration used for vtfp: no
// timeout, 10MB of captured output, inherited environment.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:     0,
		MaxOutputBytes:     10 * 1024 * 1024,
		InheritEnvironment: true,
	}
}
