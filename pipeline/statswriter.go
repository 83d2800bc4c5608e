package pipeline

import (
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/qualbin/alignstats"
	"github.com/grailbio/qualbin/encoding/alignio"
)

// statsColumns is the header line of the statistics TSV.
var statsColumns = []string{
	"#NAME", "REF", "POS",
	"MISMATCHES", "MISMATCH_QUAL_SUM",
	"GAP_COUNT", "GAP_LENGTH",
	"SOFTCLIP_LENGTH", "SOFTCLIP_QUAL_SUM",
}

type statsWriter struct {
	w *tsv.Writer
}

func newStatsWriter(w io.Writer) *statsWriter {
	return &statsWriter{w: tsv.NewWriter(w)}
}

func (sw *statsWriter) writeHeader() error {
	for _, col := range statsColumns {
		sw.w.WriteString(col)
	}
	return sw.w.EndLine()
}

// write emits one line for rec.  POS is 1-based, as in SAM text.
func (sw *statsWriter) write(rec *sam.Record, s alignstats.Stats) error {
	sw.w.WriteString(rec.Name)
	sw.w.WriteString(alignio.RefName(rec))
	sw.w.WriteInt64(int64(rec.Pos + 1))
	sw.w.WriteInt64(s.Mismatches)
	sw.w.WriteInt64(s.MismatchQualSum)
	sw.w.WriteInt64(s.GapCount)
	sw.w.WriteInt64(s.GapLength)
	sw.w.WriteInt64(s.SoftClipLength)
	sw.w.WriteInt64(s.SoftClipQualSum)
	return sw.w.EndLine()
}

func (sw *statsWriter) flush() error {
	return sw.w.Flush()
}
