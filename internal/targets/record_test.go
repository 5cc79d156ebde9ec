package targets

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullRow = "26291\t1\t3\t0\tHomo_sapiens/GRCh38/all/bwa0_6/GRCh38.fa\tHomo_sapiens/GRCh38/all/picard/GRCh38.fa.dict\tHomo_sapiens/GRCh38/all/fasta/GRCh38.fa\tHomo_sapiens/GRCh38/tophat2/gencode\tHomo_sapiens/GRCh38/gtf/gencode.gtf\tRNA PolyA dUTP\tPAIRED\tHomo_sapiens/GRCh38/fasta/gencode.fa"

func TestParse_FullRow(t *testing.T) {
	rec, err := Parse(fullRow, ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, "26291", rec.RunID)
	assert.Equal(t, "1", rec.Position)
	assert.Equal(t, "3", rec.Tag)
	assert.False(t, rec.Aligned)
	assert.Equal(t, "Homo_sapiens/GRCh38/all/bwa0_6/GRCh38.fa", rec.ReferenceGenome)
	assert.Equal(t, "Homo_sapiens/GRCh38/all/picard/GRCh38.fa.dict", rec.ReferenceDict)
	assert.Equal(t, "Homo_sapiens/GRCh38/all/fasta/GRCh38.fa", rec.ReferenceFasta)
	assert.Equal(t, "Homo_sapiens/GRCh38/tophat2/gencode", rec.Transcriptome)
	assert.Equal(t, "Homo_sapiens/GRCh38/gtf/gencode.gtf", rec.TranscriptomeAnnotation)
	assert.Equal(t, "RNA PolyA dUTP", rec.LibraryType)
	assert.Equal(t, "PAIRED", rec.LibraryLayout)
	assert.Equal(t, "Homo_sapiens/GRCh38/fasta/gencode.fa", rec.TranscriptFasta)
	assert.Equal(t, "26291_1#3", rec.SampleID)
	assert.True(t, rec.HasTranscriptome())
	assert.False(t, rec.SingleEnd())
}

func TestParse_SampleIDWithoutTag(t *testing.T) {
	rec, err := Parse("26291\t2\t\t1", ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, "26291_2", rec.SampleID)
	assert.True(t, rec.Aligned)
	assert.Empty(t, rec.ReferenceGenome, "missing trailing columns should be empty")
}

func TestParse_IDColumnOverride(t *testing.T) {
	line := "26291\t1\t3\t0\tref\tdict\tfa\tNoTranscriptome\tNoTranscriptome\tDNA\tSINGLE\t\tEGAN0001"

	rec, err := Parse(line, ParseOptions{IDColumn: 13})
	require.NoError(t, err)
	assert.Equal(t, "EGAN0001", rec.SampleID)
	assert.True(t, rec.SingleEnd())
	assert.False(t, rec.HasTranscriptome())
	assert.False(t, rec.HasAnnotation())

	_, err = Parse(line, ParseOptions{IDColumn: 20})
	assert.True(t, errors.Is(err, ErrMalformedRow))
}

func TestParse_MalformedRow(t *testing.T) {
	for _, line := range []string{"26291", "\t1\t3", "26291\t\t3"} {
		_, err := Parse(line, ParseOptions{})
		assert.ErrorIs(t, err, ErrMalformedRow, "line %q", line)
	}
}

func TestParse_CustomDelimiter(t *testing.T) {
	rec, err := Parse("100,4,7,yes", ParseOptions{Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, "100_4#7", rec.SampleID)
	assert.True(t, rec.Aligned)
}

func TestParse_TrailingCarriageReturn(t *testing.T) {
	rec, err := Parse("100\t4\t7\r\n", ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "100_4#7", rec.SampleID)
}

func TestReader_SkipsBlankLines(t *testing.T) {
	input := "100\t1\t1\n\n   \n100\t1\n100\t1\t1\n"
	r := NewReader(strings.NewReader(input), ParseOptions{})

	var rows []Row
	for {
		row, ok := r.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	require.NoError(t, r.Err())
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "100_1", rows[1].Record.SampleID)
	assert.Equal(t, "100_1#1", rows[2].Record.SampleID, "parser must not dedupe")
}

func TestRecord_SingleEndIsExact(t *testing.T) {
	assert.True(t, Record{LibraryLayout: "SINGLE"}.SingleEnd())
	assert.False(t, Record{LibraryLayout: "single"}.SingleEnd())
	assert.False(t, Record{LibraryLayout: "PAIRED"}.SingleEnd())
}
