package main

import (
	"context"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/porec/annotate"
	"github.com/grailbio/porec/walk"
	"v.io/x/lib/cmdline"
)

type annotateFlags struct {
	opts              annotate.Opts
	tieBreak          string
	parallelism       int
	failuresPath      string
	allowFailedGroups bool
}

func newCmdAnnotate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "annotate",
		Short: "Tag monomer alignments with the walk of their concatemer",
		Long: `
Annotate reads alignments of digested monomers from <input> (SAM or BAM) and
writes them to <output> (SAM or BAM) with three more tags:

  Xw:Z  the walk: one entry per monomer, in monomer order, joined by ','.
        An entry is ref:start-end:strand (0-based, half-open) for a monomer
        with a mapped primary alignment, and '.' otherwise.
  Xi:i  the index of the record's monomer in the walk
  Xl:i  the number of monomers

The records of a concatemer must be adjacent in the input, as they are in
aligner output, unless -unsorted is given. Concatemers whose records cannot
be annotated are left out of the output and reported in the log and in the
-failures file; the command then fails unless -allow-failed-groups is given.
`,
		ArgsName: "input output",
	}
	flags := annotateFlags{opts: annotate.DefaultOpts}
	cmd.Flags.StringVar(&flags.tieBreak, "tie-break", "first", `Policy when a monomer has several primary alignments: "first" or "mapq"`)
	cmd.Flags.BoolVar(&flags.opts.CheckSorted, "check-sorted", false, "Fail if the records of a concatemer are not adjacent")
	cmd.Flags.BoolVar(&flags.opts.Unsorted, "unsorted", false, "Accept records of a concatemer anywhere in the input. Holds the whole input in memory")
	cmd.Flags.IntVar(&flags.opts.NumShards, "num-shards", 0, "If > 1, only annotate the concatemers of shard -shard-index")
	cmd.Flags.IntVar(&flags.opts.ShardIndex, "shard-index", 0, "Shard to annotate, in [0, -num-shards)")
	cmd.Flags.IntVar(&flags.parallelism, "parallelism", 8, "Number of BAM compression threads")
	cmd.Flags.StringVar(&flags.failuresPath, "failures", "", "If set, write the concatemers that could not be annotated to this TSV file")
	cmd.Flags.BoolVar(&flags.allowFailedGroups, "allow-failed-groups", false, "Succeed even if some concatemers could not be annotated")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("annotate takes input and output, but got %v", argv)
		}
		return runAnnotate(vcontext.Background(), flags, argv[0], argv[1])
	})
	return cmd
}

func writeFailures(ctx context.Context, path string, s annotate.Summary) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	return s.WriteTSV(f.Writer(ctx))
}

func runAnnotate(ctx context.Context, flags annotateFlags, inPath, outPath string) (err error) {
	if flags.opts.Walk.TieBreak, err = walk.ParseTieBreak(flags.tieBreak); err != nil {
		return err
	}
	if err = flags.opts.Validate(); err != nil {
		return err
	}
	in, err := openInput(ctx, inPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := in.close(ctx); e != nil && err == nil {
			err = errors.E(e, "close", inPath)
		}
	}()
	r, err := newRecordReader(in, flags.parallelism)
	if err != nil {
		return err
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
	h := withProgram(r.Header(), "annotate", []string{inPath, outPath})
	w, err := out.recordWriter(h, flags.parallelism)
	if err != nil {
		return err
	}
	s, err := annotate.Annotate(ctx, r, w, flags.opts)
	if err != nil {
		return err
	}
	if flags.failuresPath != "" {
		if err := writeFailures(ctx, flags.failuresPath, s); err != nil {
			return err
		}
	}
	if s.FailedGroups > 0 && !flags.allowFailedGroups {
		return fmt.Errorf("%s: %d of %d concatemers could not be annotated", inPath, s.FailedGroups, s.Groups)
	}
	return nil
}
