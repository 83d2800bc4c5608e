package fasta

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// A faidx line is "<name>\t<length>\t<byte offset>\t<bases per line>\t<bytes
// per line>", e.g. "chr3\t12345\t9000\t80\t81".
var indexRegExp = regexp.MustCompile(`^(\S+)\t(\d+)\t(\d+)\t(\d+)\t(\d+)`)

type indexEntry struct {
	length    uint64
	offset    uint64
	lineBase  uint64
	lineWidth uint64
}

type indexedFasta struct {
	seqs     map[string]indexEntry
	seqNames []string

	mu     sync.Mutex
	reader io.ReadSeeker
	buf    []byte // scratch for the raw bytes of the last Get, newlines included.
}

// NewIndexed creates a Fasta that reads sequences from fasta on demand using
// the faidx index, without loading the file into memory.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	f := &indexedFasta{seqs: make(map[string]indexEntry), reader: fasta}
	scanner := bufio.NewScanner(index)
	for scanner.Scan() {
		matches := indexRegExp.FindStringSubmatch(scanner.Text())
		if len(matches) != 6 {
			return nil, errors.Errorf("invalid index line: %s", scanner.Text())
		}
		var (
			ent  indexEntry
			errs [4]error
		)
		ent.length, errs[0] = strconv.ParseUint(matches[2], 10, 64)
		ent.offset, errs[1] = strconv.ParseUint(matches[3], 10, 64)
		ent.lineBase, errs[2] = strconv.ParseUint(matches[4], 10, 64)
		ent.lineWidth, errs[3] = strconv.ParseUint(matches[5], 10, 64)
		for _, err := range errs {
			if err != nil {
				return nil, errors.Wrapf(err, "invalid index line: %s", scanner.Text())
			}
		}
		if ent.lineBase == 0 || ent.lineWidth < ent.lineBase {
			return nil, errors.Errorf("invalid line geometry in index line: %s", scanner.Text())
		}
		f.seqs[matches[1]] = ent
		f.seqNames = append(f.seqNames, matches[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA index")
	}
	sort.SliceStable(f.seqNames, func(i, j int) bool {
		return f.seqs[f.seqNames[i]].offset < f.seqs[f.seqNames[j]].offset
	})
	return f, nil
}

// Get implements Fasta.Get().
func (f *indexedFasta) Get(seqName string, start, end uint64) (string, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if err := checkRange(seqName, start, end, ent.length); err != nil {
		return "", err
	}
	// Byte offsets of the first and last requested bases, allowing for the
	// line terminators in between.
	pad := ent.lineWidth - ent.lineBase
	first := ent.offset + start + pad*(start/ent.lineBase)
	last := ent.offset + (end - 1) + pad*((end-1)/ent.lineBase)

	f.mu.Lock()
	defer f.mu.Unlock()
	n := int(last - first + 1)
	if cap(f.buf) < n {
		f.buf = make([]byte, n)
	}
	f.buf = f.buf[:n]
	if _, err := f.reader.Seek(int64(first), io.SeekStart); err != nil {
		return "", errors.Wrapf(err, "seek to %d", first)
	}
	if _, err := io.ReadFull(f.reader, f.buf); err != nil {
		return "", errors.Wrapf(err, "read %s:%d-%d (bad index?)", seqName, start, end)
	}
	result := make([]byte, 0, end-start)
	linePos := (first - ent.offset) % ent.lineWidth
	for _, c := range f.buf {
		if linePos < ent.lineBase {
			result = append(result, c)
		}
		if linePos++; linePos == ent.lineWidth {
			linePos = 0
		}
	}
	return string(bytes.ToUpper(result)), nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return ent.length, nil
}

// SeqNames implements Fasta.SeqNames().
func (f *indexedFasta) SeqNames() []string {
	return f.seqNames
}
