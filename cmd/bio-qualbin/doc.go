/*
bio-qualbin rewrites the base quality values of a SAM or BAM stream into eight
coarse bins, which makes quality strings compress much better at a negligible
cost to downstream analysis.

Usage:

  bio-qualbin [flags] [input]

input is "-" for stdin or any path understood by
github.com/grailbio/base/file, including s3:// URLs.  The format (SAM or BAM)
is detected from the content.  Records are written, in input order and under
the input's header, to --output (stdout by default) in the input's format
unless --format says otherwise.  When only flags are given, input is stdin;
running with no arguments at all prints usage.

Phred values are mapped as follows:

  0-1 -> 0, 2-9 -> 6, 10-19 -> 15, 20-24 -> 22, 25-29 -> 27,
  30-34 -> 33, 35-39 -> 37, 40 and above -> 40

Missing quality strings ("*") are passed through unchanged.  A quality
character outside '!'..'~' is an error.

With -d/--debug, one TSV line of alignment statistics per mapped record is
written to --stats (stderr by default):

  #NAME REF POS MISMATCHES MISMATCH_QUAL_SUM GAP_COUNT GAP_LENGTH SOFTCLIP_LENGTH SOFTCLIP_QUAL_SUM

The reference bases come from --reference if given, otherwise from each
record's MD tag.  Quality sums are computed on the binned values.

-log=debug logs records skipped by --debug and other diagnostics.

-s/--suppress-output processes every record but writes none; together with
-d it produces statistics only.

Exit status is 0 on success and for -h/--help, and 1 for usage errors, files
that cannot be opened, and malformed records.
*/
package main
