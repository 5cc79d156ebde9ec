package method

import (
	"fmt"
	"path/filepath"

	"vtfpbatch/internal/config"
	"vtfpbatch/internal/logging"
	"vtfpbatch/internal/paths"
	"vtfpbatch/internal/targets"

	"go.uber.org/zap"
)

// Input is everything needed to build one invocation.
type Input struct {
	Record targets.Record
	Paths  paths.Set
	Method Method

	// SourceFormat is the detected input format (cram, bam or sam).
	SourceFormat string

	// Extra is appended verbatim to the vtfp command line.
	Extra string

	// TemplateFile, when set, replaces the method's template.
	TemplateFile string

	// TemplateDir, when set, is the config root the method's template is
	// taken from.
	TemplateDir string

	// Quant enables a quantification sub-mode on alignment methods.
	Quant string

	Config *config.Config
}

// Build assembles the vtfp invocation for one sample.
func Build(in Input) (*Spec, error) {
	if in.Method == nil {
		return nil, fmt.Errorf("%w: no method", ErrUnsupportedMethod)
	}
	if in.Config == nil {
		in.Config = config.DefaultConfig()
	}

	name := in.Method.Name()
	id := in.Record.SampleID

	cfgDir := in.Config.Vtfp.Templates()
	if in.TemplateDir != "" {
		cfgDir = in.TemplateDir
	}

	s := &Spec{
		LogFile:        filepath.Join(in.Paths.JSON, fmt.Sprintf("%s_%s.vtfp.log", name, id)),
		OutputFile:     filepath.Join(in.Paths.JSON, fmt.Sprintf("%s_%s.json", name, id)),
		VerbosityLevel: in.Config.Vtfp.VerbosityLevel,
		Extra:          in.Extra,
	}
	s.Set("samplename", id)
	s.Set("src_format", in.SourceFormat)
	s.Set("s1_input_format", in.SourceFormat)
	s.Set("outdatadir", in.Paths.Output)
	s.Set("indatadir", in.Paths.Input)
	s.Set("cfgdatadir", cfgDir)

	if err := in.Method.Augment(s, in); err != nil {
		return nil, err
	}

	switch {
	case in.TemplateFile != "":
		s.Template = in.TemplateFile
	default:
		s.Template = filepath.Join(cfgDir, s.defaultTemplate)
	}

	logging.Get(logging.CategoryMethod).Debug("built vtfp spec",
		zap.String("method", name),
		zap.String("sample", id),
		zap.String("template", s.Template),
		zap.Int("keys", len(s.keyVals)))

	return s, nil
}
