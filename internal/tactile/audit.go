package tactile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLogger fans execution events out to callbacks, an optional command
// log and running metrics.
type AuditLogger struct {
	mu sync.RWMutex

	// callbacks are functions to call for each event
	callbacks []func(AuditEvent)

	// commandLog records each started command line
	commandLog *CommandLog

	// metrics tracks execution statistics
	metrics *ExecutionMetrics
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		metrics: NewExecutionMetrics(),
	}
}

// AddCallback adds a callback function for audit events.
func (l *AuditLogger) AddCallback(callback func(AuditEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

// EnableCommandLog appends every started command to path.
func (l *AuditLogger) EnableCommandLog(path string) error {
	cl, err := NewCommandLog(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.commandLog != nil {
		_ = l.commandLog.Close()
	}
	l.commandLog = cl
	return nil
}

// Close closes the command log, if any.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.commandLog != nil {
		err := l.commandLog.Close()
		l.commandLog = nil
		return err
	}
	return nil
}

// Log records an audit event.
func (l *AuditLogger) Log(event AuditEvent) {
	l.mu.RLock()
	callbacks := l.callbacks
	commandLog := l.commandLog
	metrics := l.metrics
	l.mu.RUnlock()

	metrics.RecordEvent(event)

	for _, cb := range callbacks {
		cb(event)
	}

	if commandLog != nil && event.Type == AuditEventStart {
		if err := commandLog.Write(event.Command); err != nil {
			for _, cb := range callbacks {
				cb(AuditEvent{
					Type:      AuditEventError,
					Timestamp: time.Now(),
					Command:   event.Command,
					SessionID: event.SessionID,
					Result:    &ExecutionResult{Error: fmt.Sprintf("command log: %v", err)},
				})
			}
		}
	}
}

// Metrics returns the current execution metrics.
func (l *AuditLogger) Metrics() ExecutionMetricsSnapshot {
	return l.metrics.Snapshot()
}

// CommandLog appends one shell-style line per command.
type CommandLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewCommandLog opens path for append, creating its directory.
func NewCommandLog(path string) (*CommandLog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create command log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open command log: %w", err)
	}

	return &CommandLog{file: file}, nil
}

// Write appends cmd's command line.
func (l *CommandLog) Write(cmd Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("command log not open")
	}

	_, err := fmt.Fprintln(l.file, cmd.CommandString())
	return err
}

// Close closes the log file.
func (l *CommandLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// ExecutionMetrics tracks aggregate execution statistics.
type ExecutionMetrics struct {
	mu sync.RWMutex

	started  int64
	silent   int64
	noisy    int64
	nonZero  int64
	killed   int64
	errored  int64
	duration time.Duration

	lastEventTime time.Time
}

// NewExecutionMetrics creates a new metrics tracker.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

// RecordEvent updates metrics based on an audit event.
func (m *ExecutionMetrics) RecordEvent(event AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastEventTime = event.Timestamp

	switch event.Type {
	case AuditEventStart:
		m.started++

	case AuditEventComplete:
		if event.Result == nil {
			return
		}
		switch {
		case event.Result.Silent():
			m.silent++
		case event.Result.ExitCode == 0:
			m.noisy++
		default:
			m.nonZero++
		}
		m.duration += event.Result.Duration

	case AuditEventKilled:
		m.killed++
		if event.Result != nil {
			m.duration += event.Result.Duration
		}

	case AuditEventError:
		m.errored++
	}
}

// ExecutionMetricsSnapshot is a point-in-time snapshot of metrics.
type ExecutionMetricsSnapshot struct {
	Started       int64         `json:"started"`
	Silent        int64         `json:"silent"`
	Noisy         int64         `json:"noisy"`
	NonZero       int64         `json:"non_zero"`
	Killed        int64         `json:"killed"`
	Errored       int64         `json:"errored"`
	TotalDuration time.Duration `json:"total_duration"`
	LastEventTime time.Time     `json:"last_event_time"`
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *ExecutionMetrics) Snapshot() ExecutionMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ExecutionMetricsSnapshot{
		Started:       m.started,
		Silent:        m.silent,
		Noisy:         m.noisy,
		NonZero:       m.nonZero,
		Killed:        m.killed,
		Errored:       m.errored,
		TotalDuration: m.duration,
		LastEventTime: m.lastEventTime,
	}
}

// AuditedExecutorWrapper routes an executor's events to an AuditLogger.
// Executors without their own audit hook get start, complete and error
// events synthesized around each call.
type AuditedExecutorWrapper struct {
	executor Executor
	logger   *AuditLogger
	native   AuditedExecutorInterface
}

// NewAuditedExecutor wraps an executor with audit logging.
func NewAuditedExecutor(executor Executor, logger *AuditLogger) *AuditedExecutorWrapper {
	w := &AuditedExecutorWrapper{
		executor: executor,
		logger:   logger,
	}
	if audited, ok := executor.(AuditedExecutorInterface); ok {
		audited.SetAuditCallback(logger.Log)
		w.native = audited
	}
	return w
}

// Execute runs a command and logs the execution.
func (w *AuditedExecutorWrapper) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if w.native != nil {
		return w.executor.Execute(ctx, cmd)
	}

	w.logger.Log(AuditEvent{
		Type:         AuditEventStart,
		Timestamp:    time.Now(),
		Command:      cmd,
		SessionID:    cmd.SessionID,
		ExecutorName: "wrapped",
	})

	result, err := w.executor.Execute(ctx, cmd)

	ev := AuditEvent{
		Type:         AuditEventComplete,
		Timestamp:    time.Now(),
		Command:      cmd,
		Result:       result,
		SessionID:    cmd.SessionID,
		ExecutorName: "wrapped",
	}
	switch {
	case err != nil:
		ev.Type = AuditEventError
	case result != nil && result.Killed:
		ev.Type = AuditEventKilled
	}
	w.logger.Log(ev)

	return result, err
}

// Validate validates a command.
func (w *AuditedExecutorWrapper) Validate(cmd Command) error {
	return w.executor.Validate(cmd)
}

// Release detaches the logger from an executor with a native audit hook.
func (w *AuditedExecutorWrapper) Release() {
	if w.native != nil {
		w.native.SetAuditCallback(nil)
	}
}
