package alignio

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSAM = `@HD	VN:1.5	SO:unsorted
@SQ	SN:chr1	LN:1000
@SQ	SN:chr2	LN:2000
r1	0	chr1	10	60	4M	*	0	0	ACGT	IIII
r2	16	chr2	20	60	2S3M	*	0	0	ACGTA	#+5II
r3	4	*	0	0	*	*	0	0	ACGT	*
`

func readAll(t *testing.T, r *Reader) []*sam.Record {
	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return recs
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestReadSAM(t *testing.T) {
	r, err := NewReader(strings.NewReader(testSAM))
	require.NoError(t, err)
	assert.Equal(t, SAM, r.Format)
	assert.Equal(t, []string{"chr1", "chr2"}, r.RefNames())
	recs := readAll(t, r)
	require.Len(t, recs, 3)
	assert.Equal(t, "r1", recs[0].Name)
	assert.Equal(t, "chr1", RefName(recs[0]))
	assert.Equal(t, 9, recs[0].Pos)
	assert.Equal(t, []byte{40, 40, 40, 40}, recs[0].Qual)
	assert.Equal(t, "chr2", RefName(recs[1]))
	assert.Equal(t, "*", RefName(recs[2]))
	assert.NoError(t, r.Close())
}

func TestEmptyStream(t *testing.T) {
	r, err := NewReader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, SAM, r.Format)
	assert.Empty(t, r.RefNames())
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Close())
}

func roundTrip(t *testing.T, format FileType) {
	in, err := NewReader(strings.NewReader(testSAM))
	require.NoError(t, err)
	recs := readAll(t, in)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, in.Header(), format)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	out, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, format, out.Format)
	assert.Equal(t, in.RefNames(), out.RefNames())
	got := readAll(t, out)
	require.Len(t, got, len(recs))
	for i := range recs {
		assert.Equal(t, recs[i].Name, got[i].Name)
		assert.Equal(t, recs[i].Pos, got[i].Pos)
		assert.Equal(t, recs[i].Cigar.String(), got[i].Cigar.String())
		assert.Equal(t, string(recs[i].Seq.Expand()), string(got[i].Seq.Expand()))
		assert.Equal(t, recs[i].Qual, got[i].Qual)
	}
	assert.NoError(t, out.Close())
}

func TestRoundTripSAM(t *testing.T) { roundTrip(t, SAM) }
func TestRoundTripBAM(t *testing.T) { roundTrip(t, BAM) }

func TestUnsupportedFormat(t *testing.T) {
	h, err := sam.NewHeader(nil, nil)
	require.NoError(t, err)
	_, err = NewWriter(&bytes.Buffer{}, h, Unknown)
	assert.Error(t, err)
}

func TestOpenAndCreate(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	in, err := NewReader(strings.NewReader(testSAM))
	require.NoError(t, err)
	path := filepath.Join(dir, "out.bam")
	w, err := CreateWriter(ctx, path, in.Header(), GuessFileType(path))
	require.NoError(t, err)
	for _, rec := range readAll(t, in) {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	r, err := OpenReader(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, BAM, r.Format)
	assert.Len(t, readAll(t, r), 3)
	assert.NoError(t, r.Close())

	_, err = OpenReader(ctx, filepath.Join(dir, "missing.sam"))
	assert.Error(t, err)
}

func TestFileType(t *testing.T) {
	assert.Equal(t, BAM, ParseFileType("BAM"))
	assert.Equal(t, SAM, ParseFileType("sam"))
	assert.Equal(t, Unknown, ParseFileType("cram"))
	assert.Equal(t, BAM, GuessFileType("s3://bucket/x.bam"))
	assert.Equal(t, SAM, GuessFileType("x.sam"))
	assert.Equal(t, Unknown, GuessFileType("-"))
	assert.Equal(t, "bam", BAM.String())
}
