package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"vtfpbatch/internal/batch"
	"vtfpbatch/internal/config"
	"vtfpbatch/internal/logging"
	"vtfpbatch/internal/method"
	"vtfpbatch/internal/paths"
	"vtfpbatch/internal/tactile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the command-line flags.
type options struct {
	method     string
	hint       string
	idColumn   string
	format     string
	inputDir   string
	outputDir  string
	stagingDir string
	jsonDir    string
	template   string
	workDir    string
	tmpNum     string
	repository string
	extra      string
	quant      string
	commandLog string
	configPath string
	verbose    bool

	// commandLogSet is true when --command-log was given, even as "".
	commandLogSet bool
}

var numeric = regexp.MustCompile(`^[0-9]+$`)

// exitError carries a process exit status out of cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

// newRootCmd builds the command. Targets are read from stdin.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "vtfpbatch",
		Short: "Generate per-sample vtfp workflow JSON from a targets file",
		Long: `vtfpbatch reads a tab-separated targets file on standard input and, for each
row, resolves the sample's directories, assembles method-specific parameters
and runs vtfp.pl to write the sample's JSON workflow description.

Columns: run, position, tag, aligned, alignment reference, reference dict,
reference fasta, transcriptome, transcriptome annotation, library type,
library layout, reference-transcript fasta.

Exit status is 0 when every row produced a distinct, silent vtfp run, 1 on
any failure and 2 when a required directory is missing.

Example:
  vtfpbatch -m bwa_mem --hint reanalysis -w /lustre/work < targets.tsv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.commandLogSet = cmd.Flags().Changed("command-log")
			return runBatch(cmd.Context(), opts, stdin, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "m", "bwa_mem", "processing method: "+strings.Join(method.Names(), " | "))
	f.StringVar(&opts.hint, "hint", "", "directory layout: runfolder | reanalysis")
	f.StringVar(&opts.idColumn, "id-column", "", "take the sample id from this 1-based column")
	f.StringVar(&opts.format, "format", "", "source format (cram|bam|sam); detection still wins")
	f.StringVar(&opts.inputDir, "input-dir", "", "input directory override")
	f.StringVar(&opts.outputDir, "output-dir", "", "output directory override")
	f.StringVar(&opts.stagingDir, "staging-dir", "", "staging directory override")
	f.StringVar(&opts.jsonDir, "json-dir", "", "json directory override")
	f.StringVarP(&opts.template, "template", "t", "", "template file, or directory used as config root")
	f.StringVarP(&opts.workDir, "workdir", "w", "", "working directory (default: current)")
	f.StringVar(&opts.tmpNum, "tmp-num", "", "tmp directory number (required with --hint runfolder)")
	f.StringVar(&opts.repository, "repository", "", "reference repository root")
	f.StringVarP(&opts.extra, "extra", "e", "", "extra vtfp arguments, appended verbatim")
	f.StringVar(&opts.quant, "quant", "", "quantification on alignment methods: salmon")
	f.StringVar(&opts.commandLog, "command-log", "", "per-batch command log (default: <workdir>/vtfp_batch_commands.log; empty disables)")
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd
}

// runBatch validates flags, builds the runner and maps its outcome to an
// exit status.
func runBatch(ctx context.Context, opts *options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &exitError{code: batch.ExitFailure, err: err}
	}
	if opts.repository != "" {
		cfg.References.Repository = opts.repository
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: batch.ExitFailure, err: err}
	}

	logger, err := logging.Initialize(cfg.Logging, opts.verbose)
	if err != nil {
		return &exitError{code: batch.ExitFailure, err: err}
	}
	defer logging.Sync()

	bopts, err := batchOptions(opts, cfg)
	if err != nil {
		return &exitError{code: batch.ExitFailure, err: err}
	}

	logger.Debug("starting batch",
		zap.String("method", opts.method),
		zap.String("vtfp", bopts.Vtfp),
		zap.String("workdir", bopts.WorkDir))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(bopts, tactile.NewDirectExecutor(), stdout, stderr)
	sum, err := runner.Run(ctx, stdin)
	code := batch.ExitCode(sum, err)
	if code == batch.ExitOK {
		return nil
	}
	return &exitError{code: code, err: err}
}

// batchOptions turns flags into runner options. Every error here is a
// usage error.
func batchOptions(opts *options, cfg *config.Config) (batch.Options, error) {
	m, err := method.Parse(opts.method)
	if err != nil {
		return batch.Options{}, err
	}

	mode, err := paths.ParseMode(opts.hint)
	if err != nil {
		return batch.Options{}, err
	}
	if mode == paths.ModeRunfolder && opts.tmpNum == "" {
		return batch.Options{}, paths.ErrTmpNumRequired
	}
	if opts.tmpNum != "" && !numeric.MatchString(opts.tmpNum) {
		return batch.Options{}, fmt.Errorf("--tmp-num must be numeric, got %q", opts.tmpNum)
	}

	idColumn := 0
	if opts.idColumn != "" {
		if !numeric.MatchString(opts.idColumn) {
			return batch.Options{}, fmt.Errorf("--id-column must be numeric, got %q", opts.idColumn)
		}
		if idColumn, err = strconv.Atoi(opts.idColumn); err != nil || idColumn == 0 {
			return batch.Options{}, errors.New("--id-column is 1-based")
		}
	}

	switch opts.format {
	case "", "cram", "bam", "sam":
	default:
		return batch.Options{}, fmt.Errorf("invalid --format %q", opts.format)
	}

	switch opts.quant {
	case "", method.QuantSalmon:
	default:
		return batch.Options{}, fmt.Errorf("invalid --quant %q", opts.quant)
	}

	workDir := opts.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return batch.Options{}, err
		}
	}
	if workDir, err = filepath.Abs(workDir); err != nil {
		return batch.Options{}, err
	}

	var templateFile, templateDir string
	if opts.template != "" {
		t := opts.template
		if !filepath.IsAbs(t) {
			t = filepath.Join(workDir, t)
		}
		if info, err := os.Stat(t); err == nil && info.IsDir() {
			templateDir = t
		} else {
			templateFile = t
		}
	}

	vtfp, err := cfg.Vtfp.ResolveExecutable()
	if err != nil {
		return batch.Options{}, err
	}

	commandLog := opts.commandLog
	if commandLog == "" && !opts.commandLogSet {
		commandLog = filepath.Join(workDir, "vtfp_batch_commands.log")
	}

	return batch.Options{
		Method:  m,
		Mode:    mode,
		WorkDir: workDir,
		Overrides: paths.Overrides{
			Input:   opts.inputDir,
			Output:  opts.outputDir,
			Staging: opts.stagingDir,
			JSON:    opts.jsonDir,
		},
		TmpNum:       opts.tmpNum,
		IDColumn:     idColumn,
		Format:       opts.format,
		TemplateFile: templateFile,
		TemplateDir:  templateDir,
		Extra:        opts.extra,
		Quant:        opts.quant,
		CommandLog:   commandLog,
		Vtfp:         vtfp,
		Config:       cfg,
	}, nil
}

// execute runs the command and returns the process exit status.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return batch.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return batch.ExitFailure
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
