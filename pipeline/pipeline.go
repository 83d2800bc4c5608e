// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/qualbin/alignstats"
	"github.com/grailbio/qualbin/encoding/fasta"
	"github.com/grailbio/qualbin/quality"
)

// Source yields records in order, and io.EOF after the last one.
// *alignio.Reader implements Source.
type Source interface {
	Read() (*sam.Record, error)
}

// Sink consumes records.  *alignio.Writer implements Sink.
type Sink interface {
	Write(r *sam.Record) error
}

// Opts controls Run.
type Opts struct {
	// Bins is the binning table.  If nil, quality.NewDefaultBinTable() is used.
	Bins *quality.BinTable
	// SuppressOutput causes records to be processed but never written.
	SuppressOutput bool
	// Stats enables per-record alignment statistics.
	Stats bool
	// StatsOut receives the statistics TSV.  Required if Stats is set.
	StatsOut io.Writer
	// Reference, if non-nil, supplies the reference bases for statistics.
	Reference fasta.Fasta
}

// Summary describes a run.
type Summary struct {
	// Records is the number of records read.
	Records int64
	// Binned is the number of records whose qualities were binned.
	Binned int64
	// Bases is the number of quality values binned.
	Bases int64
	// Written is the number of records written to the Sink.
	Written int64
	// StatsRecords is the number of records that got statistics.
	StatsRecords int64
	// Totals is the sum of the per-record statistics.
	Totals alignstats.Stats
	// QualChecksum is a seahash digest of the binned quality strings, in
	// record order.
	QualChecksum uint64
}

type runner struct {
	opts    Opts
	bins    *quality.BinTable
	stats   *statsWriter
	hash    hash.Hash64
	qualBuf []byte
	summary Summary
}

// Run processes every record of in.  out may be nil if opts.SuppressOutput is
// set.
func Run(in Source, out Sink, opts Opts) (Summary, error) {
	r := &runner{opts: opts, bins: opts.Bins, hash: seahash.New()}
	if r.bins == nil {
		r.bins = quality.NewDefaultBinTable()
	}
	if !opts.SuppressOutput && out == nil {
		return r.summary, errors.E(errors.Invalid, "pipeline: no output sink")
	}
	if opts.Stats {
		if opts.StatsOut == nil {
			return r.summary, errors.E(errors.Invalid, "pipeline: statistics requested without a destination")
		}
		r.stats = newStatsWriter(opts.StatsOut)
		if err := r.stats.writeHeader(); err != nil {
			return r.summary, errors.E(err, "write statistics header")
		}
	}
	err := r.loop(in, out)
	if r.stats != nil {
		if e := r.stats.flush(); e != nil && err == nil {
			err = errors.E(e, "write statistics")
		}
	}
	r.summary.QualChecksum = r.hash.Sum64()
	return r.summary, err
}

func (r *runner) loop(in Source, out Sink) error {
	for {
		rec, err := in.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.E(err, fmt.Sprintf("read record %d", r.summary.Records))
		}
		r.summary.Records++
		if err := r.process(rec); err != nil {
			return errors.E(err, fmt.Sprintf("record %s", rec.Name))
		}
		if r.opts.SuppressOutput {
			continue
		}
		if err := out.Write(rec); err != nil {
			return errors.E(err, fmt.Sprintf("write record %s", rec.Name))
		}
		r.summary.Written++
	}
}

// process bins rec in place, then computes its statistics if requested.
func (r *runner) process(rec *sam.Record) error {
	binned, err := r.bins.ApplyPhred(rec.Qual)
	if err != nil {
		return errors.E(errors.Integrity, "bin qualities", err)
	}
	if binned {
		r.summary.Binned++
		r.summary.Bases += int64(len(rec.Qual))
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(rec.Qual)))
		r.hash.Write(n[:])     // nolint: errcheck
		r.hash.Write(rec.Qual) // nolint: errcheck
	}
	if r.stats == nil {
		return nil
	}
	s, ok, err := r.recordStats(rec)
	if err != nil || !ok {
		return err
	}
	r.summary.StatsRecords++
	r.summary.Totals.Add(s)
	if log.At(log.Debug) {
		log.Debug.Printf("%s: %+v", rec.Name, s)
	}
	return r.stats.write(rec, s)
}

// recordStats returns the statistics of rec.  ok is false if rec does not
// qualify for statistics.
func (r *runner) recordStats(rec *sam.Record) (s alignstats.Stats, ok bool, err error) {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || len(rec.Cigar) == 0 {
		return s, false, nil
	}
	if len(rec.Qual) == 0 || rec.Qual[0] == quality.Missing {
		return s, false, nil
	}
	bases := rec.Seq.Expand()
	ref, ok, err := r.reference(rec, bases)
	if err != nil || !ok {
		if err == nil {
			log.Debug.Printf("%s: no reference context, skipping statistics", rec.Name)
		}
		return s, false, err
	}
	r.qualBuf = r.qualBuf[:0]
	for _, q := range rec.Qual {
		b, err := quality.Encode(int(q))
		if err != nil {
			return s, false, err
		}
		r.qualBuf = append(r.qualBuf, b)
	}
	s, err = alignstats.Walk(rec.Cigar, ref, bases, r.qualBuf)
	return s, err == nil, err
}

var mdTag = []byte("MD")

// reference returns the reference bases under rec's alignment.
func (r *runner) reference(rec *sam.Record, bases []byte) ([]byte, bool, error) {
	if r.opts.Reference != nil {
		span, err := alignstats.RefSpan(rec.Cigar)
		if err != nil {
			return nil, false, err
		}
		if span == 0 {
			return nil, true, nil
		}
		if rec.Pos < 0 {
			return nil, false, errors.E(errors.Integrity, fmt.Sprintf("mapped record at position %d", rec.Pos))
		}
		seq, err := r.opts.Reference.Get(rec.Ref.Name(), uint64(rec.Pos), uint64(rec.Pos+span))
		if err != nil {
			return nil, false, errors.E(errors.Integrity, "reference context", err)
		}
		return []byte(seq), true, nil
	}
	aux, ok := rec.Tag(mdTag)
	if !ok {
		return nil, false, nil
	}
	md, ok := aux.Value().(string)
	if !ok {
		return nil, false, errors.E(errors.Integrity, fmt.Sprintf("MD tag has type %T, want string", aux.Value()))
	}
	ref, err := alignstats.RefFromMD(rec.Cigar, bases, md)
	if err != nil {
		return nil, false, err
	}
	return ref, true, nil
}
