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

// Package quality converts base-call quality scores between their printable
// (phred+33) encoding and numeric phred values, and rewrites quality strings
// into a small fixed set of coarse bins.
//
// Binning trades a negligible amount of information for much better
// compression of stored quality strings: after binning, a typical Illumina
// quality string uses at most eight distinct symbols.
//
// Two in-memory representations appear in practice.  SAM text and FASTQ carry
// encoded bytes ('!' == phred 0, 'I' == phred 40).  github.com/grailbio/hts
// records carry raw phred values, with 0xff marking an absent quality string.
// BinTable.Apply handles the former and BinTable.ApplyPhred the latter; both
// go through the same table.
package quality
