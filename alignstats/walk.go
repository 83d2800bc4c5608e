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

// Package alignstats computes per-alignment mismatch, gap and soft-clip
// statistics by walking a record's CIGAR against its reference sequence.
package alignstats

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/qualbin/quality"
)

// Stats holds the statistics of one alignment, or the sum over several.
// Counters are 64-bit so that sums over whole runs cannot overflow.
type Stats struct {
	// Mismatches is the number of aligned read bases that differ from the
	// reference.
	Mismatches int64
	// MismatchQualSum is the sum of phred values at mismatching bases.
	MismatchQualSum int64
	// GapCount is the number of insertion and deletion operations.
	GapCount int64
	// GapLength is the total length of insertion and deletion operations.
	GapLength int64
	// SoftClipLength is the number of soft-clipped read bases.
	SoftClipLength int64
	// SoftClipQualSum is the sum of phred values at soft-clipped bases.
	SoftClipQualSum int64
}

// Add adds o to s.
func (s *Stats) Add(o Stats) {
	s.Mismatches += o.Mismatches
	s.MismatchQualSum += o.MismatchQualSum
	s.GapCount += o.GapCount
	s.GapLength += o.GapLength
	s.SoftClipLength += o.SoftClipLength
	s.SoftClipQualSum += o.SoftClipQualSum
}

// Cursor is the state of a walk after consuming a prefix of a CIGAR.  ReadPos
// and RefPos are 0-based offsets into the read and the reference slice.
type Cursor struct {
	ReadPos, RefPos int
	Stats           Stats
}

func integrityError(op sam.CigarOp, format string, args ...interface{}) error {
	return errors.E(errors.Integrity, fmt.Sprintf("cigar op %v: ", op)+fmt.Sprintf(format, args...))
}

func (c Cursor) needRead(op sam.CigarOp, bases []byte) error {
	if c.ReadPos+op.Len() > len(bases) {
		return integrityError(op, "read position %d overruns read length %d", c.ReadPos+op.Len(), len(bases))
	}
	return nil
}

func (c Cursor) needRef(op sam.CigarOp, ref []byte) error {
	if c.RefPos+op.Len() > len(ref) {
		return integrityError(op, "reference position %d overruns reference length %d", c.RefPos+op.Len(), len(ref))
	}
	return nil
}

// Step applies one CIGAR operation and returns the advanced cursor.  bases
// and quals must have equal length; quals holds encoded (phred+33) bytes.
//
// =, X and M are all treated as match runs whose mismatches are found by
// comparing bases.  P moves neither cursor.  B, and any other type, is an
// error: skipping it would desynchronize the cursors for the rest of the
// walk.
func (c Cursor) Step(op sam.CigarOp, ref, bases, quals []byte) (Cursor, error) {
	n := op.Len()
	switch op.Type() {
	case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
		if err := c.needRead(op, bases); err != nil {
			return c, err
		}
		if err := c.needRef(op, ref); err != nil {
			return c, err
		}
		for i := 0; i < n; i++ {
			if bases[c.ReadPos] != ref[c.RefPos] {
				q, err := quality.Decode(quals[c.ReadPos])
				if err != nil {
					return c, errors.E(err, fmt.Sprintf("read position %d", c.ReadPos))
				}
				c.Stats.Mismatches++
				c.Stats.MismatchQualSum += int64(q)
			}
			c.ReadPos++
			c.RefPos++
		}
	case sam.CigarDeletion:
		if err := c.needRef(op, ref); err != nil {
			return c, err
		}
		c.RefPos += n
		c.Stats.GapCount++
		c.Stats.GapLength += int64(n)
	case sam.CigarInsertion:
		if err := c.needRead(op, bases); err != nil {
			return c, err
		}
		c.ReadPos += n
		c.Stats.GapCount++
		c.Stats.GapLength += int64(n)
	case sam.CigarSoftClipped:
		if err := c.needRead(op, bases); err != nil {
			return c, err
		}
		for i := 0; i < n; i++ {
			q, err := quality.Decode(quals[c.ReadPos])
			if err != nil {
				return c, errors.E(err, fmt.Sprintf("read position %d", c.ReadPos))
			}
			c.Stats.SoftClipQualSum += int64(q)
			c.ReadPos++
		}
		c.Stats.SoftClipLength += int64(n)
	case sam.CigarHardClipped, sam.CigarPadded:
	case sam.CigarSkipped:
		if err := c.needRef(op, ref); err != nil {
			return c, err
		}
		c.RefPos += n
	default:
		return c, integrityError(op, "unsupported operation type %d", op.Type())
	}
	return c, nil
}

// Fold walks ops in order, starting from the zero Cursor, and returns the
// final cursor.  On error the returned cursor reflects the operations
// consumed before the failing one.
func Fold(ops []sam.CigarOp, ref, bases, quals []byte) (Cursor, error) {
	var c Cursor
	if len(bases) != len(quals) {
		return c, errors.E(errors.Integrity,
			fmt.Sprintf("read has %d bases but %d quality values", len(bases), len(quals)))
	}
	for _, op := range ops {
		next, err := c.Step(op, ref, bases, quals)
		if err != nil {
			return c, err
		}
		c = next
	}
	return c, nil
}

// Walk computes the statistics of the alignment described by ops.  ref is the
// reference starting at the alignment's first reference-consuming position;
// bases and quals are the read's bases and encoded qualities.  The CIGAR must
// consume exactly len(bases) read positions.  Walk does not modify its
// arguments.
func Walk(ops []sam.CigarOp, ref, bases, quals []byte) (Stats, error) {
	c, err := Fold(ops, ref, bases, quals)
	if err != nil {
		return Stats{}, err
	}
	if c.ReadPos != len(bases) {
		return Stats{}, errors.E(errors.Integrity,
			fmt.Sprintf("cigar %v consumes %d read bases, read has %d", sam.Cigar(ops), c.ReadPos, len(bases)))
	}
	return c.Stats, nil
}

// RefSpan returns the number of reference positions covered by ops.
func RefSpan(ops []sam.CigarOp) (int, error) {
	span := 0
	for _, op := range ops {
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion, sam.CigarSkipped:
			span += op.Len()
		case sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarHardClipped, sam.CigarPadded:
		default:
			return 0, integrityError(op, "unsupported operation type %d", op.Type())
		}
	}
	return span, nil
}
