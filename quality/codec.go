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

const (
	// Offset is added to a phred value to obtain its printable encoding.
	Offset = 33
	// MaxValue is the largest phred value with a printable encoding ('~').
	MaxValue = 93
	// Missing is the raw qual value used by hts records whose quality string
	// is "*".
	Missing = 0xff
)

// Decode returns the phred value of the encoded quality byte b.  It fails
// with errors.Invalid if b is outside ['!', '~'].
func Decode(b byte) (int, error) {
	if b < Offset || b > Offset+MaxValue {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("quality byte %d out of range [%d, %d]", b, Offset, Offset+MaxValue))
	}
	return int(b) - Offset, nil
}

// Encode returns the printable encoding of phred value v.  It fails with
// errors.Invalid if v is outside [0, MaxValue].
func Encode(v int) (byte, error) {
	if v < 0 || v > MaxValue {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("quality value %d out of range [0, %d]", v, MaxValue))
	}
	return byte(v + Offset), nil
}

// MustDecode is like Decode, but panics on error.
func MustDecode(b byte) int {
	v, err := Decode(b)
	if err != nil {
		panic(err)
	}
	return v
}

// MustEncode is like Encode, but panics on error.
func MustEncode(v int) byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}
