// Package batch drives a targets file through path resolution, argument
// assembly and vtfp execution, one row at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"vtfpbatch/internal/config"
	"vtfpbatch/internal/logging"
	"vtfpbatch/internal/method"
	"vtfpbatch/internal/paths"
	"vtfpbatch/internal/tactile"
	"vtfpbatch/internal/targets"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Exit codes.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitMissingDirectory = 2
)

// FatalError stops the batch immediately.
type FatalError struct {
	Code int
	Err  error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// fatal wraps err with the exit code its cause calls for.
func fatal(err error) *FatalError {
	code := ExitFailure
	if errors.Is(err, paths.ErrMissingDirectory) {
		code = ExitMissingDirectory
	}
	return &FatalError{Code: code, Err: err}
}

// ExitCode maps a Run outcome to the process exit status.
func ExitCode(sum *Summary, err error) int {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code
	}
	if err != nil {
		return ExitFailure
	}
	return sum.ExitCode()
}

// Options configures a batch.
type Options struct {
	Method    method.Method
	Mode      paths.Mode
	WorkDir   string
	Overrides paths.Overrides
	TmpNum    string

	// IDColumn selects a 1-based sample id column; zero derives the id.
	IDColumn int

	// Format is the user's source format. Detection does not consult it.
	Format string

	TemplateFile string
	TemplateDir  string
	Extra        string
	Quant        string

	// CommandLog receives one line per vtfp invocation; empty disables it.
	CommandLog string

	// Vtfp is the resolved vtfp.pl path.
	Vtfp string

	Config *config.Config
}

// Runner processes targets rows sequentially.
type Runner struct {
	opts     Options
	executor tactile.Executor
	stdout   io.Writer
	stderr   io.Writer
	logger   *zap.Logger
	batchID  string
}

// NewRunner creates a Runner. stdout and stderr receive the user-facing
// per-row reports and the summary line.
func NewRunner(opts Options, executor tactile.Executor, stdout, stderr io.Writer) *Runner {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	id := uuid.NewString()
	return &Runner{
		opts:     opts,
		executor: executor,
		stdout:   stdout,
		stderr:   stderr,
		logger:   logging.Get(logging.CategoryBatch).With(zap.String("batch", id)),
		batchID:  id,
	}
}

// BatchID identifies this run in logs and executed commands.
func (r *Runner) BatchID() string { return r.batchID }

// Run reads targets rows from in until EOF. A *FatalError aborts the batch;
// row-level failures are counted in the returned summary, which is
// reconciled for duplicate ids before return.
func (r *Runner) Run(ctx context.Context, in io.Reader) (*Summary, error) {
	sum := &Summary{}

	if r.opts.Method == nil {
		return sum, fatal(fmt.Errorf("%w: no method selected", method.ErrUnsupportedMethod))
	}
	if r.opts.Mode == paths.ModeRunfolder && r.opts.TmpNum == "" {
		return sum, fatal(paths.ErrTmpNumRequired)
	}
	if r.opts.Vtfp == "" {
		return sum, fatal(errors.New("vtfp executable not resolved"))
	}

	audit := tactile.NewAuditLogger()
	if r.opts.CommandLog != "" {
		if err := audit.EnableCommandLog(r.opts.CommandLog); err != nil {
			return sum, fatal(err)
		}
	}
	audit.AddCallback(r.auditEvent)
	defer func() { _ = audit.Close() }()

	exec := tactile.NewAuditedExecutor(r.executor, audit)
	defer exec.Release()

	r.logger.Info("batch started",
		zap.String("method", r.opts.Method.Name()),
		zap.String("mode", string(r.opts.Mode)),
		zap.String("workdir", r.opts.WorkDir))

	reader := targets.NewReader(in, targets.ParseOptions{IDColumn: r.opts.IDColumn})
	for {
		if err := ctx.Err(); err != nil {
			return sum, fatal(err)
		}
		row, ok := reader.Next()
		if !ok {
			break
		}
		if err := r.processRow(ctx, exec, row, sum); err != nil {
			r.logger.Error("batch aborted", zap.Int("line", row.Line), zap.Error(err))
			return sum, err
		}
	}
	if err := reader.Err(); err != nil {
		return sum, fatal(fmt.Errorf("reading targets: %w", err))
	}

	sum.Reconcile()
	r.report(sum, audit.Metrics())
	return sum, nil
}

// processRow handles one row. Only fatal conditions are returned.
func (r *Runner) processRow(ctx context.Context, exec tactile.Executor, row targets.Row, sum *Summary) error {
	rec := row.Record
	sum.recordRow(rec.SampleID)

	if row.Err != nil {
		fmt.Fprintf(r.stderr, "line %d: %v\n", row.Line, row.Err)
		r.logger.Warn("row rejected", zap.Int("line", row.Line), zap.Error(row.Err))
		sum.recordFailure()
		return nil
	}

	set, err := paths.Resolve(rec, paths.Options{
		Mode:       r.opts.Mode,
		Method:     r.opts.Method.Name(),
		WorkDir:    r.opts.WorkDir,
		Overrides:  r.opts.Overrides,
		TmpNum:     r.opts.TmpNum,
		Repository: r.opts.Config.References.Repository,
	})
	if err != nil {
		return fatal(err)
	}

	if err := paths.Validate(set, r.warnf); err != nil {
		return fatal(err)
	}

	format, err := paths.DetectSourceFormat(set.Input, rec.SampleID)
	if err != nil {
		return fatal(err)
	}
	if r.opts.Format != "" && r.opts.Format != format {
		r.warnf("%s: --format %s ignored, detected %s", rec.SampleID, r.opts.Format, format)
	}

	spec, err := method.Build(method.Input{
		Record:       rec,
		Paths:        set,
		Method:       r.opts.Method,
		SourceFormat: format,
		Extra:        r.opts.Extra,
		TemplateFile: r.opts.TemplateFile,
		TemplateDir:  r.opts.TemplateDir,
		Quant:        r.opts.Quant,
		Config:       r.opts.Config,
	})
	if errors.Is(err, targets.ErrMalformedRow) {
		fmt.Fprintf(r.stderr, "line %d: %v\n", row.Line, err)
		r.logger.Warn("row rejected", zap.Int("line", row.Line), zap.Error(err))
		sum.recordFailure()
		return nil
	}
	if err != nil {
		return fatal(err)
	}

	cmd := tactile.Command{
		Binary:           r.opts.Vtfp,
		Arguments:        spec.Args(),
		WorkingDirectory: r.opts.WorkDir,
		SessionID:        r.batchID,
		Tags: map[string]string{
			"sample": rec.SampleID,
			"method": r.opts.Method.Name(),
		},
	}

	result, err := exec.Execute(ctx, cmd)
	if err != nil {
		return fatal(err)
	}

	if result.Silent() {
		sum.recordOK(rec.SampleID)
		r.logger.Debug("row ok", zap.String("sample", rec.SampleID), zap.Duration("duration", result.Duration))
		return nil
	}

	fmt.Fprintf(r.stderr, "%s: vtfp exited %d\n", rec.SampleID, result.ExitCode)
	if out := result.Output(); out != "" {
		fmt.Fprintln(r.stderr, out)
	}
	r.logger.Warn("row failed",
		zap.String("sample", rec.SampleID),
		zap.Int("exit", result.ExitCode),
		zap.Bool("killed", result.Killed))
	sum.recordFailure()
	return nil
}

func (r *Runner) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(r.stderr, "Warning: "+msg)
	r.logger.Warn(msg)
}

func (r *Runner) report(sum *Summary, m tactile.ExecutionMetricsSnapshot) {
	r.logger.Info("batch finished",
		zap.Int("total", sum.Total),
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Failed),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int64("invocations", m.Started),
		zap.Int64("noisy", m.Noisy),
		zap.Int64("non_zero", m.NonZero),
		zap.Duration("vtfp_time", m.TotalDuration))

	if sum.Success() {
		fmt.Fprintln(r.stdout, sum.String())
		return
	}
	fmt.Fprintln(r.stderr, sum.String())
}

func (r *Runner) auditEvent(ev tactile.AuditEvent) {
	switch ev.Type {
	case tactile.AuditEventStart:
		r.logger.Debug("vtfp started", zap.String("command", ev.Command.CommandString()))
	case tactile.AuditEventKilled, tactile.AuditEventError:
		var msg string
		if ev.Result != nil {
			msg = ev.Result.Error
		}
		r.logger.Warn("vtfp did not complete",
			zap.String("event", string(ev.Type)),
			zap.String("sample", ev.Command.Tags["sample"]),
			zap.String("error", msg))
	}
}
