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

/*
Package pipeline implements the record loop of bio-qualbin.

Run pulls records one at a time from a Source until it reports io.EOF.  For
each record it

  1. bins the record's quality values in place (quality.BinTable.ApplyPhred),
  2. if Opts.Stats is set, computes alignstats.Stats for the record and
     writes them as one TSV line to Opts.StatsOut,
  3. unless Opts.SuppressOutput is set, writes the record to the Sink.

Records are independent and are written in the order they are read.  Nothing
is buffered across records.  Statistics are computed after binning, so their
quality sums reflect binned values.

Statistics need the reference bases under each alignment.  They come from
Opts.Reference when it is set, otherwise from the record's MD tag.  Records
that are unmapped, lack a quality string, or (without a reference) lack an MD
tag get no statistics.

The first malformed record (bad CIGAR, cursor overrun, bad quality) stops the
run; Run returns the error together with the summary of the records already
processed.
*/
package pipeline
