package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all vtfpbatch configuration.
type Config struct {
	// vtfp.pl location and template library
	Vtfp VtfpConfig `yaml:"vtfp"`

	// Reference repository and fixed reference resources
	References ReferencesConfig `yaml:"references"`

	// Executable names injected into templates
	Tools ToolsConfig `yaml:"tools"`

	// Fixed thread counts injected into templates
	Threads ThreadsConfig `yaml:"threads"`

	// STAR splice junction overhang
	StarSjdbOverhang int `yaml:"star_sjdb_overhang"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ReferencesConfig locates reference data. Relative paths are resolved
// against Repository.
type ReferencesConfig struct {
	Repository        string   `yaml:"repository"`
	PhixFasta         string   `yaml:"phix_fasta"`
	FilterJar         string   `yaml:"filter_jar"`
	HsFilterJar       string   `yaml:"hs_filter_jar"`
	HsReferenceFasta  string   `yaml:"hs_reference_fasta"`
	HsReferenceDict   string   `yaml:"hs_reference_dict"`
	HsAlignmentGenome string   `yaml:"hs_alignment_genome"`
	YSplitJar         string   `yaml:"ysplit_jar"`
	YSplitFlags       []string `yaml:"ysplit_flags"`
}

// ToolsConfig names the executables the generated workflows call.
type ToolsConfig struct {
	Bwa      string `yaml:"bwa"`
	Tophat   string `yaml:"tophat"`
	Star     string `yaml:"star"`
	Samtools string `yaml:"samtools"`
}

// ThreadsConfig holds the fixed thread counts passed to vtfp.
type ThreadsConfig struct {
	Aligner  int `yaml:"aligner"`
	Bamsort  int `yaml:"bamsort"`
	Bam2Cram int `yaml:"bam2cram"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Vtfp: VtfpConfig{
			Executable:     "vtfp.pl",
			TemplateDir:    "/software/npg/p4/data/vtlib",
			VerbosityLevel: 0,
		},

		References: ReferencesConfig{
			Repository:        "/lustre/scratch110/srpipe/references",
			PhixFasta:         "PhiX/Illumina/all/fasta/phix-illumina.fa",
			FilterJar:         "/software/npg/java_jars/AlignmentFilter.jar",
			HsFilterJar:       "/software/npg/java_jars/AlignmentFilter-1.06.jar",
			HsReferenceFasta:  "Homo_sapiens/1000Genomes_hs37d5/all/fasta/hs37d5.fa",
			HsReferenceDict:   "Homo_sapiens/1000Genomes_hs37d5/all/picard/hs37d5.fa.dict",
			HsAlignmentGenome: "Homo_sapiens/1000Genomes_hs37d5/all/bwa0_6/hs37d5.fa",
			YSplitJar:         "/software/npg/java_jars/SplitBamByChromosomes.jar",
			YSplitFlags:       []string{"S=Y", "V=true"},
		},

		Tools: ToolsConfig{
			Bwa:      "bwa0_6",
			Tophat:   "tophat2",
			Star:     "star",
			Samtools: "samtools1",
		},

		Threads: ThreadsConfig{
			Aligner:  12,
			Bamsort:  2,
			Bam2Cram: 2,
		},

		StarSjdbOverhang: 74,

		// stderr carries the per-row report; keep zap quiet unless asked.
		Logging: LoggingConfig{
			Level:  "error",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. An empty path or a missing
// file yields the defaults; environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Alternate p4 installation
	if home := os.Getenv("P4_HOME"); home != "" {
		c.Vtfp.Home = home
	}

	if repos := os.Getenv("VTFP_BATCH_REPOSITORY"); repos != "" {
		c.References.Repository = repos
	}

	if level := os.Getenv("VTFP_BATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ReferencePath resolves p against the reference repository unless it is
// already absolute.
func (c *Config) ReferencePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.References.Repository, p)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Vtfp.Executable == "" && c.Vtfp.Home == "" {
		return fmt.Errorf("vtfp executable not configured (set vtfp.executable or P4_HOME)")
	}
	if c.References.Repository == "" {
		return fmt.Errorf("reference repository not configured")
	}
	if c.Tools.Samtools == "" || c.Tools.Bwa == "" {
		return fmt.Errorf("tool executables not configured")
	}
	if c.Threads.Aligner <= 0 || c.Threads.Bamsort <= 0 || c.Threads.Bam2Cram <= 0 {
		return fmt.Errorf("thread counts must be positive")
	}
	if c.StarSjdbOverhang <= 0 {
		return fmt.Errorf("star_sjdb_overhang must be positive, got %d", c.StarSjdbOverhang)
	}
	return c.Logging.Validate()
}
