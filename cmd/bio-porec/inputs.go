package main

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/porec/digest"
	"github.com/grailbio/porec/encoding/fastq"
)

// listInputs expands inPath into the files to digest. A path with a known
// suffix, or "-", is returned as is. Anything else is listed as a directory,
// keeping the files whose base name matches glob and whose format is known.
// An empty glob keeps every file of a known format. The result is sorted.
func listInputs(ctx context.Context, inPath, glob string, recursive bool) ([]string, error) {
	if guessFileType(inPath) != unknownType {
		return []string{inPath}, nil
	}
	if glob != "" {
		if _, err := path.Match(glob, ""); err != nil {
			return nil, errors.E(errors.Invalid, err, "glob", glob)
		}
	}
	var paths []string
	lister := file.List(ctx, inPath, recursive)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		p := lister.Path()
		if glob != "" {
			if ok, _ := path.Match(glob, path.Base(p)); !ok {
				continue
			}
		}
		if guessFileType(p) == unknownType {
			log.Debug.Printf("%s: skipping file of unknown format", p)
			continue
		}
		paths = append(paths, p)
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", inPath)
	}
	if len(paths) == 0 {
		return nil, errors.E(errors.NotExist, inPath,
			fmt.Sprintf("found no .fastq[.gz], .fq[.gz], .sam or .bam file matching %q", glob))
	}
	sort.Strings(paths)
	return paths, nil
}

// fastqFiles reads concatemers from a list of FASTQ files, one after the
// other. Each file is opened when the previous one is exhausted.
type fastqFiles struct {
	ctx   context.Context
	paths []string
	in    *input
	src   digest.Source
}

func (s *fastqFiles) Read() (digest.Concatemer, error) {
	for {
		if s.src != nil {
			c, err := s.src.Read()
			if err != io.EOF {
				if err != nil {
					err = errors.E(err, s.in.path)
				}
				return c, err
			}
			if err := s.close(); err != nil {
				return digest.Concatemer{}, err
			}
		}
		if len(s.paths) == 0 {
			return digest.Concatemer{}, io.EOF
		}
		in, err := openInput(s.ctx, s.paths[0])
		if err != nil {
			return digest.Concatemer{}, err
		}
		log.Debug.Printf("reading %s", in.path)
		s.paths = s.paths[1:]
		s.in = in
		s.src = digest.NewFASTQSource(fastq.NewScanner(in.r, fastq.All))
	}
}

// close closes the file being read, if any.
func (s *fastqFiles) close() error {
	if s.in == nil {
		return nil
	}
	in := s.in
	s.in, s.src = nil, nil
	if err := in.close(s.ctx); err != nil {
		return errors.E(err, "close", in.path)
	}
	return nil
}
