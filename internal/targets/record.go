// Package targets parses the tab-separated targets file that drives a batch.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vtfpbatch/internal/logging"

	"go.uber.org/zap"
)

// ErrMalformedRow reports a row too incomplete to process.
var ErrMalformedRow = errors.New("malformed targets row")

// Column positions in a targets row.
const (
	ColRun = iota
	ColPosition
	ColTag
	ColAligned
	ColReferenceGenome
	ColReferenceDict
	ColReferenceFasta
	ColTranscriptome
	ColTranscriptomeAnnotation
	ColLibraryType
	ColLibraryLayout
	ColTranscriptFasta
)

// NoTranscriptome marks a row without transcriptome resources.
const NoTranscriptome = "NoTranscriptome"

// Record is one row of the targets file.
type Record struct {
	RunID    string
	Position string
	Tag      string
	Aligned  bool

	ReferenceGenome string // alignment reference, relative to the repository
	ReferenceDict   string
	ReferenceFasta  string

	Transcriptome           string
	TranscriptomeAnnotation string
	TranscriptFasta         string

	LibraryType   string
	LibraryLayout string

	SampleID string
}

// HasTranscriptome reports whether the transcriptome column is usable.
func (r Record) HasTranscriptome() bool {
	return r.Transcriptome != "" && r.Transcriptome != NoTranscriptome
}

// HasAnnotation reports whether the annotation column is usable.
func (r Record) HasAnnotation() bool {
	return r.TranscriptomeAnnotation != "" && r.TranscriptomeAnnotation != NoTranscriptome
}

// SingleEnd reports a single-end library layout.
func (r Record) SingleEnd() bool {
	return r.LibraryLayout == "SINGLE"
}

// ParseOptions controls how a row is split.
type ParseOptions struct {
	// Delimiter separates columns; tab when empty.
	Delimiter string

	// IDColumn takes the sample id from this 1-based column when non-zero.
	IDColumn int
}

// Parse maps a raw line onto a Record. Missing trailing columns become empty
// strings; only an absent run id or position is an error.
func Parse(line string, opts ParseOptions) (Record, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = "\t"
	}
	fields := strings.Split(strings.TrimRight(line, "\r\n"), delim)

	col := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	rec := Record{
		RunID:                   col(ColRun),
		Position:                col(ColPosition),
		Tag:                     col(ColTag),
		Aligned:                 parseFlag(col(ColAligned)),
		ReferenceGenome:         col(ColReferenceGenome),
		ReferenceDict:           col(ColReferenceDict),
		ReferenceFasta:          col(ColReferenceFasta),
		Transcriptome:           col(ColTranscriptome),
		TranscriptomeAnnotation: col(ColTranscriptomeAnnotation),
		LibraryType:             col(ColLibraryType),
		LibraryLayout:           col(ColLibraryLayout),
		TranscriptFasta:         col(ColTranscriptFasta),
	}

	if rec.RunID == "" || rec.Position == "" {
		return rec, fmt.Errorf("%w: run id and position are required", ErrMalformedRow)
	}

	if opts.IDColumn > 0 {
		rec.SampleID = col(opts.IDColumn - 1)
		if rec.SampleID == "" {
			return rec, fmt.Errorf("%w: id column %d is empty", ErrMalformedRow, opts.IDColumn)
		}
	} else {
		rec.SampleID = DeriveSampleID(rec.RunID, rec.Position, rec.Tag)
	}

	return rec, nil
}

// DeriveSampleID builds run_position or run_position#tag.
func DeriveSampleID(run, position, tag string) string {
	id := run + "_" + position
	if tag != "" {
		id += "#" + tag
	}
	return id
}

func parseFlag(s string) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	switch strings.ToLower(s) {
	case "y", "yes":
		return true
	}
	return false
}

// Row is a parsed line with its position in the input.
type Row struct {
	Line   int
	Record Record
	Err    error
}

// Reader yields rows from a targets stream one at a time.
type Reader struct {
	scanner *bufio.Scanner
	opts    ParseOptions
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader, opts ParseOptions) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner, opts: opts}
}

// Next returns the next non-blank row. ok is false at end of input; the
// scanner error, if any, is available from Err.
func (r *Reader) Next() (row Row, ok bool) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := Parse(text, r.opts)
		logging.Get(logging.CategoryTargets).Debug("row parsed",
			zap.Int("line", r.line),
			zap.String("sample", rec.SampleID),
			zap.Error(err))
		return Row{Line: r.line, Record: rec, Err: err}, true
	}
	return Row{}, false
}

// Err returns the first non-EOF read error.
func (r *Reader) Err() error {
	return r.scanner.Err()
}
