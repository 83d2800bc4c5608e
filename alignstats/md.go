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

package alignstats

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// SkippedBase fills reference positions under N operations in sequences
// built by RefFromMD.  MD does not describe those positions.
const SkippedBase = 'N'

func mdError(md string, format string, args ...interface{}) error {
	return errors.E(errors.Integrity, fmt.Sprintf("MD:Z:%s: ", md)+fmt.Sprintf(format, args...))
}

// RefFromMD reconstructs the reference covered by an alignment from its CIGAR,
// the read bases and the MD aux tag value.  The result has RefSpan(ops)
// bases and can be passed to Walk as its reference.
//
// Matching positions are copied from the read, mismatching positions and
// deleted bases come from md, and skipped regions are filled with
// SkippedBase.
func RefFromMD(ops []sam.CigarOp, bases []byte, md string) ([]byte, error) {
	span, err := RefSpan(ops)
	if err != nil {
		return nil, err
	}
	var (
		ref = make([]byte, 0, span)
		// Reference offsets described by MD, in order, and whether each one
		// lies in a deletion.
		mdPos   = make([]int, 0, span)
		deleted = make([]bool, 0, span)
		readPos int
	)
	for _, op := range ops {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if readPos+n > len(bases) {
				return nil, integrityError(op, "read position %d overruns read length %d", readPos+n, len(bases))
			}
			for i := 0; i < n; i++ {
				mdPos = append(mdPos, len(ref))
				deleted = append(deleted, false)
				ref = append(ref, bases[readPos])
				readPos++
			}
		case sam.CigarInsertion, sam.CigarSoftClipped:
			readPos += n
		case sam.CigarDeletion:
			for i := 0; i < n; i++ {
				mdPos = append(mdPos, len(ref))
				deleted = append(deleted, true)
				ref = append(ref, SkippedBase)
			}
		case sam.CigarSkipped:
			for i := 0; i < n; i++ {
				ref = append(ref, SkippedBase)
			}
		}
	}

	k := 0 // index into mdPos
	for i := 0; i < len(md); {
		switch c := md[i]; {
		case c >= '0' && c <= '9':
			n := 0
			for ; i < len(md) && md[i] >= '0' && md[i] <= '9'; i++ {
				n = n*10 + int(md[i]-'0')
			}
			for ; n > 0; n-- {
				if k >= len(mdPos) || deleted[k] {
					return nil, mdError(md, "match run disagrees with cigar %v", sam.Cigar(ops))
				}
				k++
			}
		case c == '^':
			i++
			start := i
			for ; i < len(md) && isBase(md[i]); i++ {
				if k >= len(mdPos) || !deleted[k] {
					return nil, mdError(md, "deletion disagrees with cigar %v", sam.Cigar(ops))
				}
				ref[mdPos[k]] = md[i]
				k++
			}
			if i == start {
				return nil, mdError(md, "empty deletion at offset %d", start)
			}
		case isBase(c):
			if k >= len(mdPos) || deleted[k] {
				return nil, mdError(md, "mismatch disagrees with cigar %v", sam.Cigar(ops))
			}
			ref[mdPos[k]] = c
			k++
			i++
		default:
			return nil, mdError(md, "unexpected character %q at offset %d", c, i)
		}
	}
	if k != len(mdPos) {
		return nil, mdError(md, "describes %d reference positions, cigar %v has %d", k, sam.Cigar(ops), len(mdPos))
	}
	return ref, nil
}

func isBase(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
