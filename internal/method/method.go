// Package method assembles vtfp.pl invocations. Each supported processing
// method is a variant that adds its parameters to a Spec and names the
// template it needs.
package method

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"vtfpbatch/internal/targets"
)

var (
	// ErrUnsupportedMethod is returned for names outside the known set.
	ErrUnsupportedMethod = errors.New("unsupported method")

	// ErrMethodDisabled is returned for recognised methods with no template yet.
	ErrMethodDisabled = errors.New("method not supported")

	// ErrNoTranscriptome is returned when a transcriptome-based method has
	// no usable transcriptome resources.
	ErrNoTranscriptome = errors.New("no transcriptome available")

	// ErrEmptyField is returned when a column the method needs is blank.
	// It wraps targets.ErrMalformedRow: the row fails, the batch goes on.
	ErrEmptyField = fmt.Errorf("%w: required column empty", targets.ErrMalformedRow)
)

// Template file names.
const (
	TemplateRealignment   = "realignment_wtsi_template.json"
	TemplateRealignStage2 = "realignment_wtsi_stage2_template.json"
	TemplateHumanSplit    = "realignment_wtsi_stage2_humansplit_template.json"
	TemplateSalmon        = "salmon_alignment.json"
	TemplateBam2Salmon    = "bam2salmon_alignment.json"
)

const (
	// DefaultPruneNodes is passed unless the extra arguments prune already.
	DefaultPruneNodes = "fop.*_bmd_multiway:bam-"

	// QuantSalmon enables salmon quantification on an alignment method.
	QuantSalmon = "salmon"

	strandedLibraryMarker = "dUTP"
	singleEndFlag         = "bwa_mem_p_flag"
)

// Method is one processing mode.
type Method interface {
	// Name is the method as given on the command line.
	Name() string

	// Augment adds the method's parameters to s and chooses its default
	// template.
	Augment(s *Spec, in Input) error
}

var registry = map[string]Method{
	"bwa_mem":    bwaMethod{name: "bwa_mem"},
	"bwa_aln":    bwaMethod{name: "bwa_aln"},
	"tophat2":    tophatMethod{},
	"star":       starMethod{},
	"hs_split":   humanSplitMethod{},
	"y_split":    ySplitMethod{},
	"salmon":     salmonMethod{name: "salmon", template: TemplateSalmon},
	"bam2salmon": salmonMethod{name: "bam2salmon", template: TemplateBam2Salmon},
}

// bam2cram is recognised so it can be reported as disabled rather than unknown.
var disabled = map[string]bool{
	"bam2cram": true,
}

// Parse looks up a method by name.
func Parse(name string) (Method, error) {
	if disabled[name] {
		return nil, fmt.Errorf("%w: %s", ErrMethodDisabled, name)
	}
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnsupportedMethod, name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the supported methods.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// ALIGNMENT GROUP
// =============================================================================

// alignment describes how a member of the alignment group differs from the
// shared parameter set.
type alignment struct {
	method    string // effective alignment_method value
	reference string // alignment reference genome, repository relative
	filterJar string // empty selects the configured default
	template  string // empty selects realignment vs stage2 by input state
}

// augmentAlignment adds the parameters common to every aligner.
func augmentAlignment(s *Spec, in Input, a alignment) error {
	cfg := in.Config
	rec := in.Record

	s.Set("bwa_executable", cfg.Tools.Bwa)
	if rec.SingleEnd() {
		s.NullKey(singleEndFlag)
	}
	s.Set("samtools_executable", cfg.Tools.Samtools)
	s.Set("alignment_method", a.method)
	s.Set("alignment_metrics_filename", rec.SampleID+"_bam_alignment_filter_metrics.json")
	s.Set("reposdir", in.Paths.Repository)
	s.Set("reference_dict", repoPath(in, rec.ReferenceDict))
	s.Set("reference_genome_fasta", repoPath(in, rec.ReferenceFasta))
	s.Set("alignment_reference_genome", repoPath(in, a.reference))
	s.Set("phix_reference_genome_fasta", repoPath(in, cfg.References.PhixFasta))

	filterJar := a.filterJar
	if filterJar == "" {
		filterJar = cfg.References.FilterJar
	}
	s.Set("alignment_filter_jar", filterJar)

	s.SetInt("aligner_numthreads", cfg.Threads.Aligner)
	s.SetInt("br_numthreads_val", cfg.Threads.Bamsort)
	s.SetInt("b2c_mt_val", cfg.Threads.Bam2Cram)

	if in.Quant == QuantSalmon {
		if err := augmentSalmonIndex(s, in); err != nil {
			return err
		}
		s.Set("quant_method", QuantSalmon)
	}

	switch {
	case a.template != "":
		s.defaultTemplate = a.template
	case rec.Aligned:
		s.defaultTemplate = TemplateRealignment
	default:
		s.defaultTemplate = TemplateRealignStage2
	}

	if !strings.Contains(in.Extra, "prune") {
		s.PruneNodes = DefaultPruneNodes
	}
	s.ExportFile = exportPath(in)
	return nil
}

type bwaMethod struct{ name string }

func (m bwaMethod) Name() string { return m.name }

func (m bwaMethod) Augment(s *Spec, in Input) error {
	return augmentAlignment(s, in, alignment{method: m.name, reference: in.Record.ReferenceGenome})
}

type tophatMethod struct{}

func (tophatMethod) Name() string { return "tophat2" }

func (m tophatMethod) Augment(s *Spec, in Input) error {
	rec := in.Record
	if !rec.HasTranscriptome() && !rec.HasAnnotation() {
		if rec.Transcriptome == "" && rec.TranscriptomeAnnotation == "" {
			return fmt.Errorf("%w: %s needs a transcriptome or annotation for %s", ErrEmptyField, m.Name(), rec.SampleID)
		}
		return fmt.Errorf("%w: %s needs a transcriptome or annotation for %s", ErrNoTranscriptome, m.Name(), rec.SampleID)
	}
	if err := augmentAlignment(s, in, alignment{method: m.Name(), reference: rec.ReferenceGenome}); err != nil {
		return err
	}

	s.Set("tophat2_executable", in.Config.Tools.Tophat)
	if rec.HasTranscriptome() {
		s.Set("transcriptome_val", repoPath(in, rec.Transcriptome))
	}
	if rec.HasAnnotation() {
		s.Set("annotation_val", repoPath(in, rec.TranscriptomeAnnotation))
	}
	if strings.Contains(rec.LibraryType, strandedLibraryMarker) {
		s.Set("library_type", "fr-firststrand")
	} else {
		s.Set("library_type", "fr-unstranded")
	}
	return nil
}

type starMethod struct{}

func (starMethod) Name() string { return "star" }

func (m starMethod) Augment(s *Spec, in Input) error {
	rec := in.Record
	if err := augmentAlignment(s, in, alignment{method: m.Name(), reference: StarReference(rec.ReferenceGenome)}); err != nil {
		return err
	}
	if rec.HasAnnotation() {
		s.Set("annotation_val", repoPath(in, rec.TranscriptomeAnnotation))
	}
	s.SetInt("sjdb_overhang_val", in.Config.StarSjdbOverhang)
	s.Set("star_executable", in.Config.Tools.Star)
	return nil
}

// StarReference maps an aligner reference to its STAR index directory:
// the grandparent directory plus /star, unless it already ends in /star.
func StarReference(ref string) string {
	if strings.HasSuffix(ref, "/star") {
		return ref
	}
	return filepath.Join(filepath.Dir(filepath.Dir(ref)), "star")
}

type humanSplitMethod struct{}

func (humanSplitMethod) Name() string { return "hs_split" }

func (humanSplitMethod) Augment(s *Spec, in Input) error {
	refs := in.Config.References
	if err := augmentAlignment(s, in, alignment{
		method:    "bwa_mem",
		reference: in.Record.ReferenceGenome,
		filterJar: refs.HsFilterJar,
		template:  TemplateHumanSplit,
	}); err != nil {
		return err
	}
	s.Set("hs_reference_genome_fasta", repoPath(in, refs.HsReferenceFasta))
	s.Set("hs_reference_dict", repoPath(in, refs.HsReferenceDict))
	s.Set("hs_alignment_reference_genome", repoPath(in, refs.HsAlignmentGenome))
	return nil
}

type ySplitMethod struct{}

func (ySplitMethod) Name() string { return "y_split" }

func (ySplitMethod) Augment(s *Spec, in Input) error {
	if err := augmentAlignment(s, in, alignment{method: "bwa_mem", reference: in.Record.ReferenceGenome}); err != nil {
		return err
	}
	refs := in.Config.References
	s.Set("split_bam_by_chromosome_jar", refs.YSplitJar)
	for _, flag := range refs.YSplitFlags {
		s.Add("split_bam_by_chromosome_flags", flag)
	}
	return nil
}

// =============================================================================
// SALMON GROUP
// =============================================================================

type salmonMethod struct {
	name     string
	template string
}

func (m salmonMethod) Name() string { return m.name }

func (m salmonMethod) Augment(s *Spec, in Input) error {
	if err := augmentSalmonIndex(s, in); err != nil {
		return err
	}
	s.defaultTemplate = m.template
	s.ExportFile = exportPath(in)
	return nil
}

// augmentSalmonIndex adds the salmon transcriptome index. Both transcriptome
// and annotation are required.
func augmentSalmonIndex(s *Spec, in Input) error {
	rec := in.Record
	if rec.Transcriptome == "" || rec.TranscriptomeAnnotation == "" {
		return fmt.Errorf("%w: salmon needs transcriptome and annotation for %s", ErrEmptyField, rec.SampleID)
	}
	if !rec.HasTranscriptome() || !rec.HasAnnotation() {
		return fmt.Errorf("%w: salmon needs transcriptome and annotation for %s", ErrNoTranscriptome, rec.SampleID)
	}
	index := filepath.Join(filepath.Dir(filepath.Dir(rec.Transcriptome)), "salmon")
	s.Set("salmon_transcriptome_val", repoPath(in, index))
	s.Set("annotation_val", repoPath(in, rec.TranscriptomeAnnotation))
	if rec.TranscriptFasta != "" {
		s.Set("salmon_transcript_fasta", repoPath(in, rec.TranscriptFasta))
	}
	return nil
}

func repoPath(in Input, p string) string {
	return in.Config.ReferencePath(p)
}

func exportPath(in Input) string {
	return filepath.Join(in.Paths.JSON, fmt.Sprintf("%s_%s_p4s2_pv_out.json", in.Method.Name(), in.Record.SampleID))
}
