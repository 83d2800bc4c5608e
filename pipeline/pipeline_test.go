package pipeline

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/qualbin/alignstats"
	"github.com/grailbio/qualbin/encoding/alignio"
	"github.com/grailbio/qualbin/encoding/fasta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSAM = `@HD	VN:1.5	SO:unsorted
@SQ	SN:chr1	LN:8
r1	0	chr1	3	60	4M	*	0	0	ACGT	IIII	MD:Z:3A0
r2	0	chr1	1	60	2S2M1I1M	*	0	0	GGTTCA	!&0?5I	MD:Z:1A1
r3	4	*	0	0	*	*	0	0	ACGT	!"#$
r4	0	chr1	5	60	4M	*	0	0	ACGT	*
`

const testFasta = ">chr1\nttacgaTT\n"

type recordingSink struct {
	recs []*sam.Record
}

func (s *recordingSink) Write(r *sam.Record) error {
	s.recs = append(s.recs, r)
	return nil
}

type failingSink struct{ t *testing.T }

func (s failingSink) Write(r *sam.Record) error {
	s.t.Errorf("unexpected write of %s", r.Name)
	return nil
}

type sliceSource struct {
	recs []*sam.Record
}

func (s *sliceSource) Read() (*sam.Record, error) {
	if len(s.recs) == 0 {
		return nil, io.EOF
	}
	r := s.recs[0]
	s.recs = s.recs[1:]
	return r, nil
}

func newSource(t *testing.T, data string) *alignio.Reader {
	r, err := alignio.NewReader(strings.NewReader(data))
	require.NoError(t, err)
	return r
}

func TestBinning(t *testing.T) {
	var sink recordingSink
	summary, err := Run(newSource(t, testSAM), &sink, Opts{})
	require.NoError(t, err)
	require.Len(t, sink.recs, 4)
	for i, name := range []string{"r1", "r2", "r3", "r4"} {
		assert.Equal(t, name, sink.recs[i].Name)
	}
	assert.Equal(t, []byte{40, 40, 40, 40}, sink.recs[0].Qual)
	// ! & 0 ? 5 I == 0 5 15 30 20 40
	assert.Equal(t, []byte{0, 6, 15, 33, 22, 40}, sink.recs[1].Qual)
	assert.Equal(t, []byte{0, 0, 6, 6}, sink.recs[2].Qual)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, sink.recs[3].Qual)
	assert.Equal(t, int64(4), summary.Records)
	assert.Equal(t, int64(4), summary.Written)
	assert.Equal(t, int64(3), summary.Binned)
	assert.Equal(t, int64(14), summary.Bases)
	assert.Equal(t, int64(0), summary.StatsRecords)
}

func TestEmptyInput(t *testing.T) {
	var sink recordingSink
	summary, err := Run(newSource(t, ""), &sink, Opts{})
	require.NoError(t, err)
	assert.Len(t, sink.recs, 0)
	assert.Equal(t, Summary{QualChecksum: summary.QualChecksum}, summary)
}

func TestSuppressOutput(t *testing.T) {
	summary, err := Run(newSource(t, testSAM), failingSink{t}, Opts{SuppressOutput: true})
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Records)
	assert.Equal(t, int64(0), summary.Written)

	// A nil sink is fine when output is suppressed.
	_, err = Run(newSource(t, testSAM), nil, Opts{SuppressOutput: true})
	require.NoError(t, err)
	_, err = Run(newSource(t, testSAM), nil, Opts{})
	require.Error(t, err)
}

func TestChecksumIgnoresSuppression(t *testing.T) {
	a, err := Run(newSource(t, testSAM), nil, Opts{SuppressOutput: true})
	require.NoError(t, err)
	b, err := Run(newSource(t, testSAM), &recordingSink{}, Opts{})
	require.NoError(t, err)
	assert.Equal(t, a.QualChecksum, b.QualChecksum)
	c, err := Run(newSource(t, strings.Replace(testSAM, "IIII", "III5", 1)), nil, Opts{SuppressOutput: true})
	require.NoError(t, err)
	assert.NotEqual(t, a.QualChecksum, c.QualChecksum)
}

func statsLines(t *testing.T, out string) []string {
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.True(t, len(lines) >= 1)
	assert.Equal(t, strings.Join(statsColumns, "\t"), lines[0])
	return lines[1:]
}

func TestStatsFromMD(t *testing.T) {
	var (
		sink recordingSink
		out  bytes.Buffer
	)
	summary, err := Run(newSource(t, testSAM), &sink, Opts{Stats: true, StatsOut: &out})
	require.NoError(t, err)
	assert.Len(t, sink.recs, 4)
	// r2: 2S2M1I1M over GGTTCA; MD 1A1 makes the reference TAA.
	//   soft clip GG, quals 0+6 after binning; T/T match; T/A mismatch at
	//   qual 33; insertion C; A/A match.
	assert.Equal(t, []string{
		"r1\tchr1\t3\t1\t40\t0\t0\t0\t0",
		"r2\tchr1\t1\t1\t33\t1\t1\t2\t6",
	}, statsLines(t, out.String()))
	assert.Equal(t, int64(2), summary.StatsRecords)
	assert.Equal(t, alignstats.Stats{
		Mismatches:      2,
		MismatchQualSum: 73,
		GapCount:        1,
		GapLength:       1,
		SoftClipLength:  2,
		SoftClipQualSum: 6,
	}, summary.Totals)
}

func TestStatsFromReference(t *testing.T) {
	ref, err := fasta.New(strings.NewReader(testFasta))
	require.NoError(t, err)
	var out bytes.Buffer
	// The MD tags are ignored when a reference is given.
	data := strings.Replace(testSAM, "MD:Z:3A0", "MD:Z:4", 1)
	_, err = Run(newSource(t, data), nil, Opts{
		SuppressOutput: true,
		Stats:          true,
		StatsOut:       &out,
		Reference:      ref,
	})
	require.NoError(t, err)
	// chr1 is TTACGATT.  r1 aligns ACGT to ACGA.  r2 aligns TT-A to TTA.
	assert.Equal(t, []string{
		"r1\tchr1\t3\t1\t40\t0\t0\t0\t0",
		"r2\tchr1\t1\t0\t0\t1\t1\t2\t6",
	}, statsLines(t, out.String()))
}

func TestStatsRequiresDestination(t *testing.T) {
	_, err := Run(newSource(t, testSAM), nil, Opts{SuppressOutput: true, Stats: true})
	assert.Error(t, err)
}

func newRecord(name string, ref *sam.Reference, pos int, cigar sam.Cigar, seq string, qual []byte) *sam.Record {
	return &sam.Record{
		Name:  name,
		Ref:   ref,
		Pos:   pos,
		Cigar: cigar,
		Seq:   sam.NewSeq([]byte(seq)),
		Qual:  qual,
	}
}

func TestIntegrityErrorStopsRun(t *testing.T) {
	chr1, err := sam.NewReference("chr1", "", "", 8, nil, nil)
	require.NoError(t, err)
	ref, err := fasta.New(strings.NewReader(testFasta))
	require.NoError(t, err)
	good := newRecord("good", chr1, 2, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)}, "ACGT", []byte{30, 30, 30, 30})
	overrun := newRecord("overrun", chr1, 2, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 6)}, "ACGT", []byte{30, 30, 30, 30})
	after := newRecord("after", chr1, 2, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)}, "ACGT", []byte{30, 30, 30, 30})

	var sink recordingSink
	summary, err := Run(&sliceSource{[]*sam.Record{good, overrun, after}}, &sink, Opts{
		Stats:     true,
		StatsOut:  &bytes.Buffer{},
		Reference: ref,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	assert.Contains(t, err.Error(), "overrun")
	require.Len(t, sink.recs, 1)
	assert.Equal(t, "good", sink.recs[0].Name)
	assert.Equal(t, int64(2), summary.Records)

	unknown := newRecord("unknown", chr1, 2, sam.Cigar{sam.NewCigarOp(sam.CigarBack, 4)}, "ACGT", []byte{30, 30, 30, 30})
	_, err = Run(&sliceSource{[]*sam.Record{unknown}}, nil, Opts{
		SuppressOutput: true,
		Stats:          true,
		StatsOut:       &bytes.Buffer{},
	})
	// Without a reference the record has no MD tag and is skipped.
	assert.NoError(t, err)
	_, err = Run(&sliceSource{[]*sam.Record{unknown}}, nil, Opts{
		SuppressOutput: true,
		Stats:          true,
		StatsOut:       &bytes.Buffer{},
		Reference:      ref,
	})
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
}

func TestMissingReferenceSequence(t *testing.T) {
	chr9, err := sam.NewReference("chr9", "", "", 8, nil, nil)
	require.NoError(t, err)
	ref, err := fasta.New(strings.NewReader(testFasta))
	require.NoError(t, err)
	rec := newRecord("r", chr9, 0, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)}, "ACGT", []byte{30, 30, 30, 30})
	_, err = Run(&sliceSource{[]*sam.Record{rec}}, nil, Opts{
		SuppressOutput: true,
		Stats:          true,
		StatsOut:       &bytes.Buffer{},
		Reference:      ref,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chr9")
}

func TestOutOfRangeQualityStopsRun(t *testing.T) {
	// ' ' and DEL decode to 255 and 94.
	data := "@SQ\tSN:chr1\tLN:8\n" +
		"r1\t0\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\tIIII\n" +
		"r2\t0\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\tI I\x7f\n"
	var sink recordingSink
	summary, err := Run(newSource(t, data), &sink, Opts{})
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	assert.Contains(t, err.Error(), "r2")
	require.Len(t, sink.recs, 1)
	assert.Equal(t, "r1", sink.recs[0].Name)
	assert.Equal(t, int64(1), summary.Binned)

	chr1, err := sam.NewReference("chr1", "", "", 8, nil, nil)
	require.NoError(t, err)
	qual := []byte{40, 0xff, 40, 94}
	rec := newRecord("raw", chr1, 0, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)}, "ACGT", qual)
	_, err = Run(&sliceSource{[]*sam.Record{rec}}, nil, Opts{SuppressOutput: true})
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	assert.Equal(t, []byte{40, 0xff, 40, 94}, rec.Qual)
}
