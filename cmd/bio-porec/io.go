package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

type fileType int

const (
	unknownType fileType = iota
	fastqType
	fastqGzipType
	samType
	bamType
)

func (t fileType) String() string {
	switch t {
	case fastqType:
		return "FASTQ"
	case fastqGzipType:
		return "gzipped FASTQ"
	case samType:
		return "SAM"
	case bamType:
		return "BAM"
	}
	return "unknown"
}

// guessFileType determines the file format from the path suffix. "-" is
// FASTQ on stdin or stdout.
func guessFileType(path string) fileType {
	if path == "-" {
		return fastqType
	}
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".fastq.gz"), strings.HasSuffix(p, ".fq.gz"):
		return fastqGzipType
	case strings.HasSuffix(p, ".fastq"), strings.HasSuffix(p, ".fq"):
		return fastqType
	case strings.HasSuffix(p, ".sam"):
		return samType
	case strings.HasSuffix(p, ".bam"):
		return bamType
	}
	return unknownType
}

// input is an opened input file.
type input struct {
	path string
	f    file.File
	rc   io.ReadCloser
	r    io.Reader
}

// openInput opens path, or stdin if path is "-". Gzip and other compression
// formats are detected from the content, except for BAM files, which are
// BGZF-compressed and decoded by bam.Reader.
func openInput(ctx context.Context, path string) (*input, error) {
	in := &input{path: path}
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, errors.E(err, "open", path)
		}
		in.f = f
		r = f.Reader(ctx)
	}
	if guessFileType(path) == bamType {
		in.r = r
		return in, nil
	}
	in.rc, _ = compress.NewReader(r)
	in.r = in.rc
	return in, nil
}

func (in *input) close(ctx context.Context) error {
	var err error
	if in.rc != nil {
		err = in.rc.Close()
	}
	if in.f != nil {
		if e := in.f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// recordReader is implemented by both sam.Reader and bam.Reader.
type recordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

func newRecordReader(in *input, parallelism int) (recordReader, error) {
	switch t := guessFileType(in.path); t {
	case samType:
		r, err := sam.NewReader(in.r)
		if err != nil {
			return nil, errors.E(err, "read SAM header", in.path)
		}
		return r, nil
	case bamType:
		r, err := bam.NewReader(in.r, parallelism)
		if err != nil {
			return nil, errors.E(err, "read BAM header", in.path)
		}
		return r, nil
	default:
		return nil, errors.E(errors.Invalid, in.path, "is", t.String(), "expect .sam or .bam")
	}
}

// output is a file being written. Close must be called exactly once.
type output struct {
	path string
	f    file.File
	w    io.Writer
	// closers run in reverse order before f is closed.
	closers []func() error
}

func createOutput(ctx context.Context, path string) (*output, error) {
	out := &output{path: path}
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := file.Create(ctx, path)
		if err != nil {
			return nil, errors.E(err, "create", path)
		}
		out.f = f
		w = f.Writer(ctx)
	}
	bw := bufio.NewWriterSize(w, 1<<20)
	out.w = bw
	out.closers = append(out.closers, bw.Flush)
	return out, nil
}

// gzip compresses the rest of the output.
func (out *output) gzip() {
	gz := gzip.NewWriter(out.w)
	out.w = gz
	out.closers = append(out.closers, gz.Close)
}

func (out *output) close(ctx context.Context) error {
	var err error
	for i := len(out.closers) - 1; i >= 0; i-- {
		if e := out.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	if out.f != nil {
		if e := out.f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return errors.E(err, "close", out.path)
	}
	return nil
}

// recordWriter is implemented by both sam.Writer and bam.Writer.
type recordWriter interface {
	Write(r *sam.Record) error
}

func (out *output) recordWriter(h *sam.Header, parallelism int) (recordWriter, error) {
	switch t := guessFileType(out.path); t {
	case samType:
		w, err := sam.NewWriter(out.w, h, sam.FlagDecimal)
		if err != nil {
			return nil, errors.E(err, "write SAM header", out.path)
		}
		return w, nil
	case bamType:
		w, err := bam.NewWriter(out.w, h, parallelism)
		if err != nil {
			return nil, errors.E(err, "write BAM header", out.path)
		}
		out.closers = append(out.closers, w.Close)
		return w, nil
	default:
		return nil, errors.E(errors.Invalid, out.path, "is", t.String(), "expect .sam or .bam")
	}
}

const programName = "bio-porec"

// withProgram returns a copy of h recording this run as a @PG line.
func withProgram(h *sam.Header, subcommand string, args []string) *sam.Header {
	if h == nil {
		h, _ = sam.NewHeader(nil, nil)
	} else {
		h = h.Clone()
	}
	id := programName + "." + subcommand
	var prev string
	for _, p := range h.Progs() {
		if p.UID() == id {
			return h
		}
		prev = p.UID()
	}
	cmd := programName + " " + subcommand + " " + strings.Join(args, " ")
	if err := h.AddProgram(sam.NewProgram(id, programName, cmd, prev, "")); err != nil {
		panic(err)
	}
	return h
}
