package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/qualbin/encoding/alignio"
	"github.com/grailbio/qualbin/encoding/fasta"
	"github.com/grailbio/qualbin/pipeline"
	"github.com/grailbio/qualbin/quality"
)

const usageHeader = `Usage: bio-qualbin [flags] [input]

Bins the base qualities of a SAM or BAM stream.  input is a path, or "-" for
stdin; it defaults to stdin when only flags are given.  See
"go doc github.com/grailbio/qualbin/cmd/bio-qualbin" for details.

`

// printBins writes the binning scheme, one "lo-hi -> value" line per bin.
func printBins(w io.Writer) {
	fmt.Fprintln(w, "Quality bins:")
	for _, b := range quality.DefaultBins {
		fmt.Fprintf(w, "  %2d-%-2d -> %d\n", b.Lo, b.Hi, b.Value)
	}
	fmt.Fprintln(w, "\nFlags:")
}

type cmdFlags struct {
	debug, suppress bool
	output          string
	format          string
	reference       string
	stats           string
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *cmdFlags) {
	fs := flag.NewFlagSet("bio-qualbin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageHeader)
		printBins(stderr)
		fs.PrintDefaults()
	}
	f := &cmdFlags{}
	fs.BoolVar(&f.debug, "d", false, "Shorthand for --debug")
	fs.BoolVar(&f.debug, "debug", false, "Write per-record alignment statistics to --stats")
	fs.BoolVar(&f.suppress, "s", false, "Shorthand for --suppress-output")
	fs.BoolVar(&f.suppress, "suppress-output", false, "Process records but do not write them")
	fs.StringVar(&f.output, "o", "-", "Shorthand for --output")
	fs.StringVar(&f.output, "output", "-", `Output path, or "-" for stdout`)
	fs.StringVar(&f.format, "format", "", `Output format, "sam" or "bam". Defaults to the input's format`)
	fs.StringVar(&f.reference, "r", "", "Shorthand for --reference")
	fs.StringVar(&f.reference, "reference", "", "Reference FASTA (optionally .gz, optionally with .fai) for --debug statistics. If empty, MD tags are used")
	fs.StringVar(&f.stats, "stats", "", "Destination of --debug statistics. Defaults to stderr")
	fs.Var(flag.Lookup("log").Value, "log", "set log level (off, error, info, debug)")
	return fs, f
}

func init() {
	log.AddFlags()
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	os.Exit(run(vcontext.Background(), os.Args[1:], os.Stderr))
}

// run executes bio-qualbin with the given command-line arguments and returns
// the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs, f := newFlagSet(stderr)
	if len(args) == 0 {
		fs.Usage()
		return 1
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	inPath := "-"
	switch fs.NArg() {
	case 0:
	case 1:
		inPath = fs.Arg(0)
	default:
		fmt.Fprintf(stderr, "bio-qualbin takes at most one input, but got %q\n", fs.Args())
		fs.Usage()
		return 1
	}
	var outFormat alignio.FileType
	if f.format != "" {
		if outFormat = alignio.ParseFileType(f.format); outFormat == alignio.Unknown {
			fmt.Fprintf(stderr, "unknown output format %q\n", f.format)
			fs.Usage()
			return 1
		}
	}
	if err := binStream(ctx, inPath, outFormat, f, stderr); err != nil {
		log.Error.Printf("bio-qualbin: %v", err)
		return 1
	}
	return 0
}

// binStream opens every stream before the first record is read, runs the
// pipeline, and closes every stream it opened.
func binStream(ctx context.Context, inPath string, outFormat alignio.FileType, f *cmdFlags, stderr io.Writer) (err error) {
	var e errors.Once
	defer func() {
		if err == nil {
			err = e.Err()
		}
	}()

	in, err := alignio.OpenReader(ctx, inPath)
	if err != nil {
		return err
	}
	defer func() { e.Set(in.Close()) }()

	opts := pipeline.Opts{
		Bins:           quality.NewDefaultBinTable(),
		SuppressOutput: f.suppress,
		Stats:          f.debug,
		StatsOut:       stderr,
	}
	var out *alignio.Writer
	if !f.suppress {
		if outFormat == alignio.Unknown {
			if outFormat = alignio.GuessFileType(f.output); outFormat == alignio.Unknown {
				outFormat = in.Format
			}
		}
		if out, err = alignio.CreateWriter(ctx, f.output, in.Header(), outFormat); err != nil {
			return err
		}
		defer func() { e.Set(out.Close()) }()
	}
	if f.debug {
		if f.reference != "" {
			ref, closeRef, err := fasta.Open(ctx, f.reference)
			if err != nil {
				return err
			}
			defer func() { e.Set(closeRef(ctx)) }()
			opts.Reference = ref
		}
		if f.stats != "" {
			statsOut, err := file.Create(ctx, f.stats)
			if err != nil {
				return errors.E(err, "create", f.stats)
			}
			defer func() { e.Set(statsOut.Close(ctx)) }()
			opts.StatsOut = statsOut.Writer(ctx)
		}
	}

	var sink pipeline.Sink
	if out != nil {
		sink = out
	}
	summary, err := pipeline.Run(in, sink, opts)
	log.Printf("%s: %d records, %d written, %d binned (%d bases), quality checksum %016x",
		inPath, summary.Records, summary.Written, summary.Binned, summary.Bases, summary.QualChecksum)
	if f.debug {
		log.Printf("%s: statistics for %d records: %+v", inPath, summary.StatsRecords, summary.Totals)
	}
	return err
}
