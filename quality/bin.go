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

package quality

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// NumValues is the size of the binning domain.  Phred values >= NumValues are
// treated as NumValues-1.
const NumValues = 90

// Bin maps the closed phred range [Lo, Hi] to Value.
type Bin struct {
	Lo, Hi int
	Value  int
}

// DefaultBins is the eight-level scheme applied by bio-qualbin.  Each bin's
// Value lies inside the bin, so binning twice is the same as binning once.
var DefaultBins = []Bin{
	{0, 1, 0},
	{2, 9, 6},
	{10, 19, 15},
	{20, 24, 22},
	{25, 29, 27},
	{30, 34, 33},
	{35, 39, 37},
	{40, 89, 40},
}

// BinTable maps every phred value in [0, NumValues) to the encoded byte of its
// bin's representative value.  A BinTable is never modified after
// construction and may be shared freely.
type BinTable struct {
	encoded [NumValues]byte
}

// NewBinTable builds a table from bins.  The bins must be sorted, contiguous,
// cover [0, NumValues) exactly, and each Value must lie inside its own bin.
func NewBinTable(bins []Bin) (*BinTable, error) {
	t := &BinTable{}
	next := 0
	for i, b := range bins {
		if b.Lo != next || b.Hi < b.Lo || b.Hi >= NumValues {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("bin %d [%d, %d]: bins must be contiguous and cover [0, %d)", i, b.Lo, b.Hi, NumValues))
		}
		if b.Value < b.Lo || b.Value > b.Hi {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("bin %d [%d, %d]: value %d lies outside the bin", i, b.Lo, b.Hi, b.Value))
		}
		enc := MustEncode(b.Value)
		for v := b.Lo; v <= b.Hi; v++ {
			t.encoded[v] = enc
		}
		next = b.Hi + 1
	}
	if next != NumValues {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("bins cover [0, %d), want [0, %d)", next, NumValues))
	}
	return t, nil
}

// NewDefaultBinTable builds the table for DefaultBins.
func NewDefaultBinTable() *BinTable {
	t, err := NewBinTable(DefaultBins)
	if err != nil {
		panic(err)
	}
	return t
}

func clamp(v int) int {
	if v >= NumValues {
		return NumValues - 1
	}
	return v
}

// Value returns the representative phred value for phred value v.  v must be
// non-negative.
func (t *BinTable) Value(v int) int {
	return int(t.encoded[clamp(v)]) - Offset
}

// Lookup returns the binned encoding of the encoded quality byte b.
func (t *BinTable) Lookup(b byte) (byte, error) {
	v, err := Decode(b)
	if err != nil {
		return 0, err
	}
	return t.encoded[clamp(v)], nil
}

// Apply bins a string of encoded quality bytes in place.  If any byte is not a
// valid encoding, Apply returns an error and leaves quals unmodified.
func (t *BinTable) Apply(quals []byte) error {
	for i, b := range quals {
		if _, err := Decode(b); err != nil {
			return errors.E(err, fmt.Sprintf("position %d", i))
		}
	}
	for i, b := range quals {
		quals[i] = t.encoded[clamp(int(b)-Offset)]
	}
	return nil
}

// ApplyPhred bins raw phred values, as stored in hts records, in place.  A
// quality string made entirely of Missing values is left alone; ApplyPhred
// reports whether it binned anything.  If any other value exceeds MaxValue,
// ApplyPhred returns an error and leaves quals unmodified.
func (t *BinTable) ApplyPhred(quals []byte) (bool, error) {
	if len(quals) == 0 || allMissing(quals) {
		return false, nil
	}
	for i, q := range quals {
		if q > MaxValue {
			return false, errors.E(errors.Invalid, fmt.Sprintf("quality value %d at position %d out of range [0, %d]", q, i, MaxValue))
		}
	}
	for i, q := range quals {
		quals[i] = t.encoded[clamp(int(q))] - Offset
	}
	return true, nil
}

func allMissing(quals []byte) bool {
	for _, q := range quals {
		if q != Missing {
			return false
		}
	}
	return true
}
