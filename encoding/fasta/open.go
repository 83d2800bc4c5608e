package fasta

import (
	"context"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Open opens the FASTA file at path, which may be any path understood by
// github.com/grailbio/base/file.
//
// Paths ending in ".gz" are decompressed and loaded into memory.  Otherwise,
// if path+".fai" can be opened, the index is used to read sequences on
// demand and the file stays open until the returned close function is
// called; failing that, the whole file is loaded into memory.
func Open(ctx context.Context, path string) (Fasta, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open reference %s", path)
	}
	if strings.HasSuffix(path, ".gz") {
		defer in.Close(ctx) // nolint: errcheck
		gz, err := gzip.NewReader(in.Reader(ctx))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open reference %s", path)
		}
		defer gz.Close() // nolint: errcheck
		fa, err := New(gz)
		if err != nil {
			return nil, nil, errors.Wrap(err, path)
		}
		return fa, noop, nil
	}
	idx, err := file.Open(ctx, path+".fai")
	if err != nil {
		log.Debug.Printf("%s.fai: %v; loading %s into memory", path, err, path)
		defer in.Close(ctx) // nolint: errcheck
		fa, err := New(in.Reader(ctx))
		if err != nil {
			return nil, nil, errors.Wrap(err, path)
		}
		return fa, noop, nil
	}
	defer idx.Close(ctx) // nolint: errcheck
	fa, err := NewIndexed(in.Reader(ctx), idx.Reader(ctx))
	if err != nil {
		_ = in.Close(ctx)
		return nil, nil, errors.Wrap(err, path+".fai")
	}
	return fa, in.Close, nil
}
