package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/cutsite"
	"github.com/grailbio/porec/digest"
	"github.com/grailbio/porec/encoding/fastq"
	"v.io/x/lib/cmdline"
)

type digestFlags struct {
	opts       digest.Opts
	markers    bool
	removeTags string
	glob       string
	recursive  bool
}

func newCmdDigest() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "digest",
		Short: "Split concatemer reads into monomers at restriction enzyme or marker sites",
		Long: `
Digest reads concatemers from <input> and writes one record per monomer to
<output>. The cut sites are given either as a comma-separated list of enzyme
names (see "bio-porec enzymes") or as a marker file holding one sequence per
line. A marker line may mark the cut position with '^'; by default the read
is cut where the marker starts.

<input> is FASTQ (optionally compressed), unaligned SAM, or unaligned BAM.
"-" reads FASTQ from stdin. If <input> is a directory, the FASTQ files in it
whose names match -glob are read one after the other in lexical order of
their paths; -recursive includes subdirectories.

<output> is .fastq, .fastq.gz, .sam or .bam, or "-" to write FASTQ to stdout.

Each monomer is named <read>:<ordinal> and carries the tags MI:Z (the read
name) and Xc:B:i (start,end,read length,ordinal,monomer count). FASTQ output
puts the tags on the header line, so that "minimap2 -y" copies them to the
alignments. Base modification tags (MM, ML, MN) of SAM input are cut down to
the calls inside each monomer.
`,
		ArgsName: "input enzymes-or-marker-file output",
	}
	flags := digestFlags{opts: digest.DefaultOpts}
	cmd.Flags.IntVar(&flags.opts.Parallelism, "parallelism", digest.DefaultOpts.Parallelism, "Number of reads digested in parallel")
	cmd.Flags.IntVar(&flags.opts.BatchSize, "batch-size", digest.DefaultOpts.BatchSize, "Number of reads handed to the workers at a time")
	cmd.Flags.IntVar(&flags.opts.MaxReads, "max-reads", 0, "If > 0, stop after reading this many reads")
	cmd.Flags.BoolVar(&flags.markers, "markers", false, "Always treat the second argument as a marker file")
	cmd.Flags.StringVar(&flags.removeTags, "remove-tags", "", "Comma-separated list of SAM tags not copied from the read to its monomers, e.g. MM,ML")
	cmd.Flags.StringVar(&flags.glob, "glob", "*.fastq", "If <input> is a directory, read the files whose base name matches this pattern")
	cmd.Flags.BoolVar(&flags.recursive, "recursive", true, "If <input> is a directory, also search its subdirectories")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return env.UsageErrorf("digest takes input, enzymes or marker file, and output, but got %v", argv)
		}
		ctx := vcontext.Background()
		return runDigest(ctx, flags, argv[0], argv[1], argv[2])
	})
	return cmd
}

// loadSpec interprets arg as enzyme names, or as a marker file path.
func loadSpec(ctx context.Context, arg string, markers bool) (*cutsite.Spec, error) {
	if markers {
		return cutsite.LoadMarkers(ctx, arg)
	}
	spec, err := cutsite.DefaultEnzymes().Spec(strings.Split(arg, ",")...)
	if err == nil || strings.Contains(arg, ",") {
		return spec, err
	}
	if _, statErr := file.Stat(ctx, arg); statErr != nil {
		return nil, err
	}
	return cutsite.LoadMarkers(ctx, arg)
}

func parseTags(s string) ([]sam.Tag, error) {
	var tags []sam.Tag
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) != 2 {
			return nil, fmt.Errorf("bad SAM tag %q", t)
		}
		tags = append(tags, sam.NewTag(t))
	}
	return tags, nil
}

func runDigest(ctx context.Context, flags digestFlags, inPath, specArg, outPath string) (err error) {
	spec, err := loadSpec(ctx, specArg, flags.markers)
	if err != nil {
		return err
	}
	removeTags, err := parseTags(flags.removeTags)
	if err != nil {
		return err
	}
	outType := guessFileType(outPath)
	if outType == unknownType {
		return errors.E(errors.Invalid, outPath, "unknown output format, expect .fastq[.gz], .fq[.gz], .sam or .bam")
	}
	inPaths, err := listInputs(ctx, inPath, flags.glob, flags.recursive)
	if err != nil {
		return err
	}
	inType := guessFileType(inPaths[0])
	if len(inPaths) > 1 {
		for _, p := range inPaths {
			if t := guessFileType(p); t != fastqType && t != fastqGzipType {
				return errors.E(errors.Invalid, p, "only FASTQ files can be read from a directory; narrow -glob")
			}
		}
		inType = fastqType
	}

	var (
		src    digest.Source
		header *sam.Header
	)
	switch inType {
	case fastqType, fastqGzipType:
		files := &fastqFiles{ctx: ctx, paths: inPaths}
		defer func() {
			if e := files.close(); e != nil && err == nil {
				err = e
			}
		}()
		src = files
	default:
		var in *input
		if in, err = openInput(ctx, inPaths[0]); err != nil {
			return err
		}
		defer func() {
			if e := in.close(ctx); e != nil && err == nil {
				err = errors.E(e, "close", in.path)
			}
		}()
		r, err := newRecordReader(in, flags.opts.Parallelism)
		if err != nil {
			return err
		}
		header = r.Header()
		src = digest.NewSAMSource(r)
	}

	out, err := createOutput(ctx, outPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var dst digest.Sink
	switch outType {
	case fastqType, fastqGzipType:
		if outType == fastqGzipType {
			out.gzip()
		}
		dst = digest.NewFASTQSink(fastq.NewWriter(out.w))
	default:
		h := withProgram(header, "digest", []string{inPath, specArg, outPath})
		w, err := out.recordWriter(h, flags.opts.Parallelism)
		if err != nil {
			return err
		}
		dst = digest.NewSAMSink(w, removeTags)
	}
	log.Printf("digesting %s (%d %s files) with %s into %s (%s)", inPath, len(inPaths), inType, spec, outPath, outType)
	_, err = digest.Run(ctx, src, dst, spec, flags.opts)
	return err
}
