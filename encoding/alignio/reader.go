package alignio

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// recordReader is implemented by both hts sam.Reader and hts bam.Reader.
type recordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

// emptyReader stands in for a stream with no bytes at all.
type emptyReader struct{ header *sam.Header }

func (r emptyReader) Header() *sam.Header        { return r.header }
func (r emptyReader) Read() (*sam.Record, error) { return nil, io.EOF }

// Reader reads alignment records sequentially from a SAM or BAM stream.
type Reader struct {
	// Format is the detected container format.
	Format FileType

	in       recordReader
	refNames []string
	closers  []func() error
}

// gzip magic, which starts every BGZF block.
var bgzfMagic = []byte{0x1f, 0x8b}

// NewReader detects whether r holds SAM or BAM and reads its header.  An empty
// stream is treated as SAM with an empty header and no records.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	magic, err := br.Peek(len(bgzfMagic))
	if err != nil && err != io.EOF {
		return nil, errors.E(err, "read alignment stream")
	}
	rd := &Reader{}
	switch {
	case len(magic) == 0:
		h, err := sam.NewHeader(nil, nil)
		if err != nil {
			return nil, errors.E(err, "create empty header")
		}
		rd.Format, rd.in = SAM, emptyReader{h}
	case len(magic) == len(bgzfMagic) && magic[0] == bgzfMagic[0] && magic[1] == bgzfMagic[1]:
		bamr, err := bam.NewReader(br, 1)
		if err != nil {
			return nil, errors.E(errors.Invalid, "open BAM", err)
		}
		rd.Format, rd.in = BAM, bamr
		rd.closers = append(rd.closers, bamr.Close)
	default:
		sr, err := sam.NewReader(br)
		if err != nil {
			return nil, errors.E(errors.Invalid, "open SAM", err)
		}
		rd.Format, rd.in = SAM, sr
	}
	rd.refNames = RefNames(rd.in.Header())
	return rd, nil
}

// OpenReader opens path, which is "-" for stdin or any path understood by
// github.com/grailbio/base/file, and calls NewReader on its contents.
func OpenReader(ctx context.Context, path string) (*Reader, error) {
	if path == "-" {
		r, err := NewReader(os.Stdin)
		if err != nil {
			return nil, errors.E(err, "stdin")
		}
		return r, nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	r, err := NewReader(in.Reader(ctx))
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, path)
	}
	r.closers = append(r.closers, func() error { return in.Close(ctx) })
	return r, nil
}

// Header returns the stream's header.
func (r *Reader) Header() *sam.Header { return r.in.Header() }

// RefNames returns the header's reference names, indexed by reference ID.
func (r *Reader) RefNames() []string { return r.refNames }

// Read returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Read() (*sam.Record, error) { return r.in.Read() }

// Close releases the underlying stream.  Stdin is never closed.
func (r *Reader) Close() error {
	var e errors.Once
	for _, c := range r.closers {
		e.Set(c())
	}
	r.closers = nil
	return e.Err()
}

// RefNames enumerates the references of h in order, so that element i is the
// name of the reference with ID i.
func RefNames(h *sam.Header) []string {
	refs := h.Refs()
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
	}
	return names
}

// RefName returns the name of the record's reference, or "*" for unmapped
// records without one.
func RefName(r *sam.Record) string {
	if r.Ref == nil {
		return "*"
	}
	return r.Ref.Name()
}
