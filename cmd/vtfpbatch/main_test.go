package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vtfpbatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const targetRow = "26291\t1\t3\t0\tHs/GRCh38/all/bwa0_6/GRCh38.fa\tHs/GRCh38/all/picard/GRCh38.fa.dict\tHs/GRCh38/all/fasta/GRCh38.fa\tNoTranscriptome\tNoTranscriptome\tDNA\tPAIRED\n"

// installP4 creates a fake p4 installation whose vtfp.pl runs script.
func installP4(t *testing.T, script string) string {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "bin"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, "data", "vtlib"), 0755))
	vtfp := filepath.Join(home, "bin", "vtfp.pl")
	require.NoError(t, os.WriteFile(vtfp, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	t.Setenv("P4_HOME", home)
	t.Setenv("VTFP_BATCH_LOG_LEVEL", "error")
	return home
}

// reanalysisWorkdir lays out a reanalysis tree for one cram sample.
func reanalysisWorkdir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{
		filepath.Join("input", "26291"),
		"json",
		filepath.Join("output", "bwa_mem", "26291", "26291_1#3"),
		filepath.Join("staging", "bwa_mem", "26291", "26291_1#3"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "input", "26291", "26291_1#3.cram"), nil, 0644))
	return root
}

func TestExecute_SilentRunSucceeds(t *testing.T) {
	installP4(t, "exit 0")
	root := reanalysisWorkdir(t)
	cmdLog := filepath.Join(t.TempDir(), "commands.log")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"-m", "bwa_mem", "--hint", "reanalysis", "-w", root, "--command-log", cmdLog},
		strings.NewReader(targetRow), &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "1 rows: 1 OK, 0 failed")

	data, err := os.ReadFile(cmdLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vtfp.pl")
	assert.Contains(t, string(data), "-keys samplename -vals 26291_1#3")
}

func TestExecute_NoisyRunFails(t *testing.T) {
	installP4(t, "echo 'template not found' >&2")
	root := reanalysisWorkdir(t)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--hint", "reanalysis", "-w", root, "--command-log", filepath.Join(root, "c.log")},
		strings.NewReader(targetRow), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "template not found")
	assert.Contains(t, stderr.String(), "1 rows: 0 OK, 1 failed")
}

func TestExecute_MissingInputExits2(t *testing.T) {
	installP4(t, "exit 0")
	root := reanalysisWorkdir(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "input")))

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--hint", "reanalysis", "-w", root, "--command-log", ""},
		strings.NewReader(targetRow), &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "input directory")
	assert.NoFileExists(t, filepath.Join(root, "vtfp_batch_commands.log"))
}

func TestExecute_EmptyCommandLogDisablesIt(t *testing.T) {
	installP4(t, "exit 0")
	root := reanalysisWorkdir(t)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--hint", "reanalysis", "-w", root, "--command-log="},
		strings.NewReader(targetRow), &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.NoFileExists(t, filepath.Join(root, "vtfp_batch_commands.log"))

	bopts, err := batchOptions(&options{method: "bwa_mem", workDir: root, commandLogSet: true}, loadTestConfig(t))
	require.NoError(t, err)
	assert.Empty(t, bopts.CommandLog)

	bopts, err = batchOptions(&options{method: "bwa_mem", workDir: root}, loadTestConfig(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "vtfp_batch_commands.log"), bopts.CommandLog)
}

func TestExecute_UsageErrors(t *testing.T) {
	installP4(t, "exit 0")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown method", []string{"-m", "bowtie"}, "bowtie"},
		{"disabled method", []string{"-m", "bam2cram"}, "bam2cram"},
		{"runfolder without tmp", []string{"--hint", "runfolder"}, "tmp directory number"},
		{"non-numeric tmp", []string{"--hint", "runfolder", "--tmp-num", "x1"}, "--tmp-num must be numeric"},
		{"non-numeric id column", []string{"--id-column", "two"}, "--id-column must be numeric"},
		{"zero id column", []string{"--id-column", "0"}, "1-based"},
		{"bad hint", []string{"--hint", "archive"}, "invalid method hint"},
		{"bad format", []string{"--format", "fastq"}, "invalid --format"},
		{"bad quant", []string{"--quant", "kallisto"}, "invalid --quant"},
		{"positional args", []string{"extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := execute(append(tt.args, "-w", t.TempDir()), strings.NewReader(""), &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), tt.want)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestExecute_EmptyInputSucceeds(t *testing.T) {
	installP4(t, "exit 0")
	root := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := execute([]string{"-w", root}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "0 rows: 0 OK")
	assert.FileExists(t, filepath.Join(root, "vtfp_batch_commands.log"))
}

func TestBatchOptions_TemplateDirectory(t *testing.T) {
	home := installP4(t, "exit 0")
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cfg"), 0755))

	cfg := loadTestConfig(t)
	bopts, err := batchOptions(&options{method: "bwa_mem", workDir: root, template: "cfg"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "cfg"), bopts.TemplateDir)
	assert.Empty(t, bopts.TemplateFile)
	assert.Equal(t, filepath.Join(home, "bin", "vtfp.pl"), bopts.Vtfp)

	bopts, err = batchOptions(&options{method: "bwa_mem", workDir: root, template: "/t/custom.json"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "/t/custom.json", bopts.TemplateFile)
	assert.Empty(t, bopts.TemplateDir)
}

func TestBatchOptions_IDColumn(t *testing.T) {
	installP4(t, "exit 0")
	bopts, err := batchOptions(&options{method: "bwa_mem", workDir: t.TempDir(), idColumn: "13"}, loadTestConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 13, bopts.IDColumn)
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}
