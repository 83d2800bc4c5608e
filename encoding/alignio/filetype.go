package alignio

import "strings"

// FileType is the container format of an alignment stream.
type FileType int

const (
	// Unknown is a sentinel.
	Unknown FileType = iota
	// SAM is plain-text SAM.
	SAM
	// BAM is BGZF-compressed BAM.
	BAM
)

func (t FileType) String() string {
	switch t {
	case SAM:
		return "sam"
	case BAM:
		return "bam"
	default:
		return "unknown"
	}
}

// ParseFileType parses the file type string. "bam" returns BAM, for example.
// On error, it returns Unknown.
func ParseFileType(name string) FileType {
	switch strings.ToLower(name) {
	case "sam":
		return SAM
	case "bam":
		return BAM
	default:
		return Unknown
	}
}

// GuessFileType returns the file type implied by the pathname, or Unknown.
func GuessFileType(path string) FileType {
	switch {
	case strings.HasSuffix(path, ".bam"):
		return BAM
	case strings.HasSuffix(path, ".sam"):
		return SAM
	default:
		return Unknown
	}
}
