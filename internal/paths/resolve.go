// Package paths derives the per-sample directory layout and checks it exists.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vtfpbatch/internal/logging"
	"vtfpbatch/internal/targets"

	"go.uber.org/zap"
)

var (
	// ErrMissingDirectory is returned when the input or json directory is
	// not accessible.
	ErrMissingDirectory = errors.New("required directory missing")

	// ErrTmpNumRequired is returned for runfolder layouts without a tmp number.
	ErrTmpNumRequired = errors.New("runfolder hint requires a tmp directory number")

	// ErrNoSourceFile is returned when no cram, bam or sam exists for a sample.
	ErrNoSourceFile = errors.New("no source file found")

	// ErrInvalidMode is returned for an unknown method hint.
	ErrInvalidMode = errors.New("invalid method hint")
)

// Mode selects a directory layout convention.
type Mode string

const (
	ModeDefault    Mode = ""
	ModeRunfolder  Mode = "runfolder"
	ModeReanalysis Mode = "reanalysis"
)

// ParseMode validates a method hint.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDefault, ModeRunfolder, ModeReanalysis:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (expected runfolder or reanalysis)", ErrInvalidMode, s)
}

// Overrides are caller-supplied directories; empty fields are derived.
type Overrides struct {
	Input   string
	Output  string
	Staging string
	JSON    string
}

// Options holds everything the resolver needs besides the record.
type Options struct {
	Mode       Mode
	Method     string
	WorkDir    string // absolute
	Overrides  Overrides
	TmpNum     string
	Repository string
}

// Set is the resolved directory layout for one row.
type Set struct {
	Input      string
	Output     string
	Staging    string
	JSON       string
	Repository string
}

// Resolve derives the absolute directories for rec.
func Resolve(rec targets.Record, opts Options) (Set, error) {
	var input, output, staging, json string

	switch opts.Mode {
	case ModeReanalysis:
		input = filepath.Join("input", rec.RunID)
		output = filepath.Join("output", opts.Method, rec.RunID, rec.SampleID)
		staging = filepath.Join("staging", opts.Method, rec.RunID, rec.SampleID)
		json = "json"
	case ModeRunfolder:
		if opts.TmpNum == "" {
			return Set{}, ErrTmpNumRequired
		}
		input = filepath.Join("no_cal", "lane"+rec.Position)
		output = filepath.Join("no_cal", "archive", "lane"+rec.Position)
		staging = filepath.Join("no_cal", "archive", "tmp_"+opts.TmpNum, rec.SampleID)
		json = staging
	default:
		input = or(opts.Overrides.Input, "input")
		output = or(opts.Overrides.Output, filepath.Join("output", opts.Method, rec.RunID, rec.SampleID))
		staging = or(opts.Overrides.Staging, filepath.Join("staging", opts.Method, rec.RunID, rec.SampleID))
		json = or(opts.Overrides.JSON, "json")
	}

	set := Set{
		Input:      abs(opts.WorkDir, input),
		Output:     abs(opts.WorkDir, output),
		Staging:    abs(opts.WorkDir, staging),
		JSON:       abs(opts.WorkDir, json),
		Repository: opts.Repository,
	}

	logging.Get(logging.CategoryPaths).Debug("resolved directories",
		zap.String("sample", rec.SampleID),
		zap.String("mode", string(opts.Mode)),
		zap.String("input", set.Input),
		zap.String("output", set.Output),
		zap.String("staging", set.Staging),
		zap.String("json", set.JSON))

	return set, nil
}

// Validate checks the directories in order json, output, input, staging.
// Missing json or input is fatal; missing output or staging is reported
// through warn since vtfp's workflow may create them later.
func Validate(set Set, warn func(format string, args ...any)) error {
	if !isDir(set.JSON) {
		return fmt.Errorf("%w: json directory %s", ErrMissingDirectory, set.JSON)
	}
	if !isDir(set.Output) {
		warn("output directory %s does not exist", set.Output)
	}
	if !isDir(set.Input) {
		return fmt.Errorf("%w: input directory %s", ErrMissingDirectory, set.Input)
	}
	if !isDir(set.Staging) {
		warn("staging directory %s does not exist", set.Staging)
	}
	return nil
}

// SourceFormats lists source extensions in probe priority order.
var SourceFormats = []string{"cram", "bam", "sam"}

// DetectSourceFormat returns the extension of the first existing
// {inputDir}/{sampleID}.{cram,bam,sam}.
func DetectSourceFormat(inputDir, sampleID string) (string, error) {
	for _, ext := range SourceFormats {
		p := filepath.Join(inputDir, sampleID+"."+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNoSourceFile, sampleID, inputDir)
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func abs(workDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(workDir, p)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
