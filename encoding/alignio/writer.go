package alignio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// recordWriter is implemented by both hts sam.Writer and hts bam.Writer.
type recordWriter interface {
	Write(r *sam.Record) error
}

// Writer writes alignment records sequentially as SAM or BAM.
type Writer struct {
	// Format is the container format being written.
	Format FileType

	out     recordWriter
	closers []func() error
}

// NewWriter writes h to w in the given format and returns a Writer for the
// records that follow.
func NewWriter(w io.Writer, h *sam.Header, format FileType) (*Writer, error) {
	wr := &Writer{Format: format}
	switch format {
	case SAM:
		buf := bufio.NewWriterSize(w, 64<<10)
		sw, err := sam.NewWriter(buf, h, sam.FlagDecimal)
		if err != nil {
			return nil, errors.E(err, "write SAM header")
		}
		wr.out = sw
		wr.closers = append(wr.closers, buf.Flush)
	case BAM:
		bw, err := bam.NewWriter(w, h, 1)
		if err != nil {
			return nil, errors.E(err, "write BAM header")
		}
		wr.out = bw
		wr.closers = append(wr.closers, bw.Close)
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("unsupported output format %v", format))
	}
	return wr, nil
}

// CreateWriter creates path, which is "-" for stdout or any path understood
// by github.com/grailbio/base/file, and calls NewWriter on it.
func CreateWriter(ctx context.Context, path string, h *sam.Header, format FileType) (*Writer, error) {
	if path == "-" {
		w, err := NewWriter(os.Stdout, h, format)
		if err != nil {
			return nil, errors.E(err, "stdout")
		}
		return w, nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	w, err := NewWriter(out.Writer(ctx), h, format)
	if err != nil {
		_ = out.Close(ctx)
		return nil, errors.E(err, path)
	}
	w.closers = append(w.closers, func() error { return out.Close(ctx) })
	return w, nil
}

// Write writes one record.
func (w *Writer) Write(r *sam.Record) error {
	return w.out.Write(r)
}

// Close flushes buffered records and closes the underlying file.  Stdout is
// flushed but not closed.
func (w *Writer) Close() error {
	var e errors.Once
	for _, c := range w.closers {
		e.Set(c())
	}
	w.closers = nil
	return e.Err()
}
