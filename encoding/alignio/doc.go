// Package alignio opens sequential SAM and BAM record streams.
//
// It is deliberately small: a Reader yields records in file order along with
// the header and reference-name table, and a Writer writes records in the
// order given under a header copied from the input.  There is no sorting,
// indexing or random access.  Record framing is delegated to
// github.com/grailbio/hts.
package alignio
