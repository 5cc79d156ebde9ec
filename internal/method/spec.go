package method

import (
	"strconv"
	"strings"
)

// KeyVal is one -keys/-vals pair passed to vtfp.
type KeyVal struct {
	Key   string
	Value string
}

// Spec is the structured vtfp invocation for one sample. It is rendered
// to command-line syntax only by Args.
type Spec struct {
	LogFile        string
	OutputFile     string
	VerbosityLevel int
	Template       string
	ExportFile     string
	PruneNodes     string
	Extra          string

	keyVals  []KeyVal
	nullKeys []string

	// defaultTemplate is the template file name a method asks for when no
	// explicit template was supplied.
	defaultTemplate string
}

// Add appends a pair, keeping any earlier value for the same key.
func (s *Spec) Add(key, value string) {
	s.keyVals = append(s.keyVals, KeyVal{Key: key, Value: value})
}

// Set replaces the first pair with this key, or appends one.
func (s *Spec) Set(key, value string) {
	for i := range s.keyVals {
		if s.keyVals[i].Key == key {
			s.keyVals[i].Value = value
			return
		}
	}
	s.Add(key, value)
}

// SetInt is Set for integer values.
func (s *Spec) SetInt(key string, value int) {
	s.Set(key, strconv.Itoa(value))
}

// Get returns the first value stored under key.
func (s *Spec) Get(key string) (string, bool) {
	for _, kv := range s.keyVals {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// NullKey marks a template parameter to be suppressed.
func (s *Spec) NullKey(key string) {
	s.nullKeys = append(s.nullKeys, key)
}

// KeyVals returns the pairs in insertion order.
func (s *Spec) KeyVals() []KeyVal {
	out := make([]KeyVal, len(s.keyVals))
	copy(out, s.keyVals)
	return out
}

// NullKeys returns the suppressed parameters.
func (s *Spec) NullKeys() []string {
	out := make([]string, len(s.nullKeys))
	copy(out, s.nullKeys)
	return out
}

// Args renders the spec in vtfp.pl argument syntax. The template is the
// final positional argument.
func (s *Spec) Args() []string {
	args := []string{
		"-l", s.LogFile,
		"-o", s.OutputFile,
		"-verbosity_level", strconv.Itoa(s.VerbosityLevel),
	}
	for _, kv := range s.keyVals {
		args = append(args, "-keys", kv.Key, "-vals", kv.Value)
	}
	for _, k := range s.nullKeys {
		args = append(args, "-nullkeys", k)
	}
	if s.PruneNodes != "" {
		args = append(args, "-prune_nodes", s.PruneNodes)
	}
	if s.ExportFile != "" {
		args = append(args, "-export_param_vals", s.ExportFile)
	}
	args = append(args, strings.Fields(s.Extra)...)
	return append(args, s.Template)
}
