package tactile

import (
	"context"
)

// Executor is the interface for command execution.
type Executor interface {
	// Execute runs a command and returns its result. The error is reserved
	// for commands that fail validation; a command that cannot be started
	// yields a result with Success=false.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)

	// Validate checks if a command can be executed by this executor.
	Validate(cmd Command) error
}

// AuditedExecutorInterface wraps an executor to provide audit event generation.
type AuditedExecutorInterface interface {
	Executor

	// SetAuditCallback sets the callback for audit events.
	SetAuditCallback(callback func(AuditEvent))
}
