package digest

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/cutsite"
	"github.com/grailbio/porec/encoding/bam"
	"github.com/grailbio/porec/encoding/fastq"
)

// Opts controls Run.
type Opts struct {
	// Parallelism is the number of goroutines digesting reads.
	Parallelism int
	// BatchSize is the number of reads handed to the workers at a time.
	BatchSize int
	// MaxReads stops reading input after this many reads. 0 means no limit.
	MaxReads int
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{
	Parallelism: 8,
	BatchSize:   4096,
}

// Stats summarizes a digestion run.
type Stats struct {
	Reads    int
	Monomers int
	Bases    int
	// Uncut counts reads without any cut site.
	Uncut int
	// ShortReads counts reads shorter than the only cut-site pattern. They are
	// passed through as a single monomer.
	ShortReads int
	// EmptyReads counts zero-length reads. They produce no monomer.
	EmptyReads int
}

// Source yields concatemers. Read returns io.EOF after the last one.
type Source interface {
	Read() (Concatemer, error)
}

// Sink consumes monomers.
type Sink interface {
	Write(m Monomer) error
}

// RecordReader is implemented by both sam.Reader and bam.Reader.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// RecordWriter is implemented by both sam.Writer and bam.Writer.
type RecordWriter interface {
	Write(r *sam.Record) error
}

type fastqSource struct{ sc *fastq.Scanner }

// NewFASTQSource reads concatemers from a FASTQ scanner.
func NewFASTQSource(sc *fastq.Scanner) Source { return &fastqSource{sc: sc} }

func (s *fastqSource) Read() (Concatemer, error) {
	var r fastq.Read
	if !s.sc.Scan(&r) {
		if err := s.sc.Err(); err != nil {
			return Concatemer{}, err
		}
		return Concatemer{}, io.EOF
	}
	return FromFASTQ(&r), nil
}

type samSource struct{ r RecordReader }

// NewSAMSource reads concatemers from unaligned SAM or BAM records.
// Secondary and supplementary records are skipped.
func NewSAMSource(r RecordReader) Source { return &samSource{r: r} }

func (s *samSource) Read() (Concatemer, error) {
	for {
		rec, err := s.r.Read()
		if err != nil {
			return Concatemer{}, err
		}
		if !bam.IsPrimary(rec) {
			continue
		}
		return FromSAM(rec), nil
	}
}

type fastqSink struct{ w *fastq.Writer }

// NewFASTQSink writes monomers as FASTQ.
func NewFASTQSink(w *fastq.Writer) Sink { return &fastqSink{w: w} }

func (s *fastqSink) Write(m Monomer) error {
	r := m.FASTQ()
	return s.w.Write(&r)
}

type samSink struct {
	w          RecordWriter
	removeTags []sam.Tag
}

// NewSAMSink writes monomers as unaligned SAM or BAM records, dropping the
// listed tags inherited from the parent read.
func NewSAMSink(w RecordWriter, removeTags []sam.Tag) Sink {
	return &samSink{w: w, removeTags: removeTags}
}

func (s *samSink) Write(m Monomer) error {
	return s.w.Write(m.SAM(s.removeTags))
}

type result struct {
	monomers []Monomer
	short    bool
	empty    bool
}

func digestOne(c Concatemer, spec *cutsite.Spec) (result, error) {
	it, err := New(c, spec)
	if err != nil {
		if _, ok := err.(*SequenceTooShortError); !ok {
			return result{}, err
		}
		if len(c.Seq) == 0 {
			return result{empty: true}, nil
		}
		if log.At(log.Debug) {
			log.Debug.Printf("%v: passing through as a single monomer", err)
		}
		return result{monomers: collect(Whole(c)), short: true}, nil
	}
	return result{monomers: collect(it)}, nil
}

// Run digests every concatemer of src with spec and writes the monomers to
// dst. Monomers are written in input order. Run stops early, returning
// ctx.Err(), if ctx is canceled.
func Run(ctx context.Context, src Source, dst Sink, spec *cutsite.Spec, opts Opts) (Stats, error) {
	var stats Stats
	if spec == nil {
		return stats, &cutsite.InvalidSpecError{Reason: "nil spec"}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOpts.BatchSize
	}
	batch := make([]Concatemer, 0, opts.BatchSize)
	results := make([]result, opts.BatchSize)
	eof := false
	for !eof {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch = batch[:0]
		for len(batch) < opts.BatchSize {
			if opts.MaxReads > 0 && stats.Reads+len(batch) >= opts.MaxReads {
				eof = true
				break
			}
			c, err := src.Read()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return stats, errors.E(err, "read concatemer")
			}
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			break
		}
		nJobs := opts.Parallelism
		if nJobs > len(batch) {
			nJobs = len(batch)
		}
		err := traverse.Each(nJobs, func(jobIdx int) error {
			startIdx := (jobIdx * len(batch)) / nJobs
			endIdx := ((jobIdx + 1) * len(batch)) / nJobs
			for i := startIdx; i < endIdx; i++ {
				var err error
				if results[i], err = digestOne(batch[i], spec); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stats, errors.E(err, "digest")
		}
		for i := range batch {
			res := results[i]
			stats.Reads++
			switch {
			case res.empty:
				stats.EmptyReads++
			case res.short:
				stats.ShortReads++
			case len(res.monomers) == 1:
				stats.Uncut++
			}
			for _, m := range res.monomers {
				if err := dst.Write(m); err != nil {
					return stats, errors.E(err, "write monomer", m.ID)
				}
				stats.Monomers++
				stats.Bases += len(m.Seq)
			}
			results[i] = result{}
		}
	}
	log.Printf("digested %d reads into %d monomers (%d bases); %d without cut sites, %d short, %d empty",
		stats.Reads, stats.Monomers, stats.Bases, stats.Uncut, stats.ShortReads, stats.EmptyReads)
	return stats, nil
}
