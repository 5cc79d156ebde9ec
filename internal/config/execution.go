package config

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// VtfpConfig configures the template processor invocation.
type VtfpConfig struct {
	// Executable name or path (resolved via PATH when not absolute)
	Executable string `yaml:"executable"`

	// Home points at an alternate p4 installation; bin/vtfp.pl and
	// data/vtlib are taken from there when set.
	Home string `yaml:"home"`

	// TemplateDir holds the default workflow templates
	TemplateDir string `yaml:"template_dir"`

	// VerbosityLevel is passed as -verbosity_level
	VerbosityLevel int `yaml:"verbosity_level"`
}

// ResolveExecutable returns the absolute path of vtfp.pl.
func (v VtfpConfig) ResolveExecutable() (string, error) {
	if v.Home != "" {
		return filepath.Join(v.Home, "bin", "vtfp.pl"), nil
	}
	path, err := exec.LookPath(v.Executable)
	if err != nil {
		return "", fmt.Errorf("cannot locate %s: %w", v.Executable, err)
	}
	return path, nil
}

// Templates returns the default template directory, preferring the
// alternate installation.
func (v VtfpConfig) Templates() string {
	if v.Home != "" {
		return filepath.Join(v.Home, "data", "vtlib")
	}
	return v.TemplateDir
}
