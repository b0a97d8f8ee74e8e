// Package annotate attaches the walk of each concatemer to the alignments of
// its monomers.
//
// Annotate reads alignment records (typically produced by aligning the
// output of the digest package), groups them by concatemer, builds one
// walk.Walk per group, and writes every record of the group with three tags:
//
//	Xw:Z  the walk, see walk.Walk.String
//	Xi:i  the index of the record's monomer in the walk
//	Xl:i  the walk length
//
// A group that cannot be annotated is dropped from the output and reported
// in Summary.Failures. Other groups are unaffected.
package annotate

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/concatemer"
	"github.com/grailbio/porec/encoding/bam"
	"github.com/grailbio/porec/walk"
)

var (
	// WalkTag (Xw:Z) holds the encoded walk.
	WalkTag = sam.Tag{'X', 'w'}
	// WalkIndexTag (Xi:i) holds the index of the record's monomer in the walk.
	WalkIndexTag = sam.Tag{'X', 'i'}
	// WalkLenTag (Xl:i) holds the number of monomers in the walk.
	WalkLenTag = sam.Tag{'X', 'l'}

	walkTags = []sam.Tag{WalkTag, WalkIndexTag, WalkLenTag}
)

// Opts controls Annotate.
type Opts struct {
	// Walk controls the choice between competing primary alignments.
	Walk walk.Opts
	// CheckSorted makes the run fail if the records of a concatemer are not
	// adjacent in the input. It remembers a 64-bit fingerprint of every
	// concatemer seen, so memory grows with the number of concatemers.
	CheckSorted bool
	// Unsorted reads the whole input before annotating, so records of a
	// concatemer may appear anywhere. Memory use grows with the input.
	Unsorted bool
	// NumShards and ShardIndex restrict the run to the concatemers whose id
	// hashes to ShardIndex modulo NumShards. NumShards <= 1 disables
	// sharding.
	NumShards  int
	ShardIndex int
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{Walk: walk.DefaultOpts}

// Validate checks the option values.
func (o Opts) Validate() error {
	if o.NumShards > 1 && (o.ShardIndex < 0 || o.ShardIndex >= o.NumShards) {
		return fmt.Errorf("shard index %d outside [0, %d)", o.ShardIndex, o.NumShards)
	}
	if o.CheckSorted && o.Unsorted {
		return fmt.Errorf("CheckSorted and Unsorted are mutually exclusive")
	}
	return nil
}

// Record is an alignment record with its place in the walk of its
// concatemer. The walk is shared by all records of the concatemer and must
// not be modified.
type Record struct {
	Alignment *sam.Record
	Walk      *walk.Walk
	// Index is the monomer ordinal of the record.
	Index int
}

// Len is the length of the walk.
func (r Record) Len() int { return r.Walk.Len() }

func newAux(tag sam.Tag, value interface{}) sam.Aux {
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		panic(err)
	}
	return aux
}

// SAM returns a shallow copy of r.Alignment with the walk tags set. Walk tags
// already present on the alignment are replaced. r.Alignment is not
// modified.
func (r Record) SAM() *sam.Record {
	out := *r.Alignment
	aux := bam.WithoutAuxTags(r.Alignment.AuxFields, walkTags)
	out.AuxFields = append(aux,
		newAux(WalkTag, r.Walk.String()),
		newAux(WalkIndexTag, r.Index),
		newAux(WalkLenTag, r.Walk.Len()))
	return &out
}

// Failure describes a concatemer whose records were not annotated.
type Failure struct {
	Parent  string
	Records int
	Err     error
}

// Summary describes an annotation run.
type Summary struct {
	Groups       int
	FailedGroups int
	RecordsIn    int
	RecordsOut   int
	// Skipped counts the records of concatemers in other shards.
	Skipped  int
	Failures []Failure
}

type failureRow struct {
	Parent  string `tsv:"parent"`
	Records int    `tsv:"records"`
	Error   string `tsv:"error"`
}

// WriteTSV writes s.Failures as a TSV table with a header line.
func (s Summary) WriteTSV(w io.Writer) error {
	tw := tsv.NewRowWriter(w)
	for _, f := range s.Failures {
		row := failureRow{Parent: f.Parent, Records: f.Records, Error: f.Err.Error()}
		if err := tw.Write(&row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// monomerCount reads the monomer count of the group from the Xc tags and
// checks the MI tags and ordinals against the read names. An ordinal, from
// the read name or from Xc, outside [0, count) is reported as
// *walk.UnknownMonomerOrdinalError; other inconsistencies as
// *walk.MalformedAlignmentError.
func monomerCount(grp Group) (int, error) {
	count := -1
	for _, r := range grp.Records {
		v, ok := bam.AuxInts(r, concatemer.CoordsTag)
		switch {
		case !ok && r.AuxFields.Get(concatemer.CoordsTag) == nil:
			return 0, &walk.MalformedAlignmentError{Name: r.Name,
				Reason: fmt.Sprintf("missing %s tag", concatemer.CoordsTag)}
		case !ok || len(v) != 5:
			return 0, &walk.MalformedAlignmentError{Name: r.Name,
				Reason: fmt.Sprintf("%s tag is not 5 integers", concatemer.CoordsTag)}
		case v[4] <= 0:
			return 0, &walk.MalformedAlignmentError{Name: r.Name,
				Reason: fmt.Sprintf("monomer count %d", v[4])}
		case count >= 0 && v[4] != count:
			return 0, &walk.MalformedAlignmentError{Name: r.Name,
				Reason: fmt.Sprintf("monomer count %d, other records of %s have %d", v[4], grp.Parent, count)}
		}
		count = v[4]
	}
	for _, r := range grp.Records {
		if parent, ok := concatemer.Parent(r); ok && parent != grp.Parent {
			return 0, &walk.MalformedAlignmentError{Name: r.Name,
				Reason: fmt.Sprintf("%s tag %s does not match the read name", concatemer.ParentTag, parent)}
		}
		_, ordinal, err := concatemer.ParseMonomerID(r.Name)
		if err != nil {
			return 0, &walk.MalformedAlignmentError{Name: r.Name, Reason: err.Error()}
		}
		v, _ := bam.AuxInts(r, concatemer.CoordsTag)
		for _, o := range []int{ordinal, v[3]} {
			if o < 0 || o >= count {
				return 0, &walk.UnknownMonomerOrdinalError{Name: r.Name, Ordinal: o, Count: count}
			}
		}
		coords, _, err := concatemer.CoordsFromRecord(r)
		if err != nil {
			return 0, &walk.MalformedAlignmentError{Name: r.Name, Reason: err.Error()}
		}
		if ordinal != coords.Ordinal {
			return 0, &walk.MalformedAlignmentError{Name: r.Name,
				Reason: fmt.Sprintf("%s ordinal %d does not match the read name", concatemer.CoordsTag, coords.Ordinal)}
		}
	}
	return count, nil
}

// AnnotateGroup builds the walk of one concatemer and returns its records,
// in input order, ready to be written.
func AnnotateGroup(grp Group, opts walk.Opts) ([]Record, error) {
	count, err := monomerCount(grp)
	if err != nil {
		return nil, err
	}
	w, err := walk.Build(grp.Records, count, opts)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, len(grp.Records))
	for i, r := range grp.Records {
		// Build has validated the names.
		_, ordinal, _ := concatemer.ParseMonomerID(r.Name)
		recs[i] = Record{Alignment: r, Walk: w, Index: ordinal}
	}
	return recs, nil
}

// Annotate reads records from src, annotates them one concatemer at a time,
// and writes them to dst. Records of a concatemer are written together, in
// input order, after its walk is complete. Failed concatemers are logged and
// listed in the summary; they do not stop the run. Annotate returns an error
// only on I/O failure, unsorted input with opts.CheckSorted, or
// cancellation of ctx.
func Annotate(ctx context.Context, src RecordSource, dst RecordSink, opts Opts) (Summary, error) {
	var s Summary
	if err := opts.Validate(); err != nil {
		return s, err
	}
	g := NewGrouper(src, opts)
	for g.Scan() {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		grp := g.Group()
		s.Groups++
		recs, err := AnnotateGroup(grp, opts.Walk)
		if err != nil {
			log.Error.Printf("%s: skipping %d records: %v", grp.Parent, len(grp.Records), err)
			s.FailedGroups++
			s.Failures = append(s.Failures, Failure{Parent: grp.Parent, Records: len(grp.Records), Err: err})
			continue
		}
		if log.At(log.Debug) {
			log.Debug.Printf("%s: %s", grp.Parent, recs[0].Walk)
		}
		for _, r := range recs {
			if err := dst.Write(r.SAM()); err != nil {
				return s, errors.E(err, "write record", r.Alignment.Name)
			}
			s.RecordsOut++
		}
	}
	s.RecordsIn = g.RecordsIn()
	s.Skipped = g.Skipped()
	if err := g.Err(); err != nil {
		return s, errors.E(err, "read records")
	}
	log.Printf("annotated %d concatemers (%d records in, %d out, %d in other shards); %d failed",
		s.Groups, s.RecordsIn, s.RecordsOut, s.Skipped, s.FailedGroups)
	return s, nil
}
