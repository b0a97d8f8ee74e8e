// Package walk reconstructs the ordered series of genomic loci visited by a
// concatemer from the alignments of its monomers.
package walk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/concatemer"
	"github.com/grailbio/porec/encoding/bam"
)

// TieBreak picks between two primary alignments of the same monomer.
type TieBreak int

const (
	// FirstWins keeps the first primary record seen.
	FirstWins TieBreak = iota
	// HighestMapQ keeps the record with the highest mapping quality. Equal
	// qualities keep the earlier record.
	HighestMapQ
)

// ParseTieBreak parses the command-line form of a TieBreak, "first" or
// "mapq".
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "first", "":
		return FirstWins, nil
	case "mapq":
		return HighestMapQ, nil
	}
	return FirstWins, fmt.Errorf("unknown tie-break policy %q, expect first or mapq", s)
}

func (t TieBreak) String() string {
	if t == HighestMapQ {
		return "mapq"
	}
	return "first"
}

// Opts controls Build.
type Opts struct {
	TieBreak TieBreak
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{TieBreak: FirstWins}

// Unmapped is the encoding of an entry without an alignment.
const Unmapped = "."

// Entry is one step of a walk.
type Entry struct {
	// Ref is the reference name. It is empty for unmapped entries.
	Ref string
	// Start and End are the 0-based, half-open reference span.
	Start, End int
	// Strand is '+', '-', or '.' when unmapped.
	Strand byte
	MapQ   byte
	// Ordinal is the monomer ordinal, also the index of the entry in the walk.
	Ordinal int
}

// IsUnmapped returns true if no alignment fills the entry.
func (e Entry) IsUnmapped() bool { return e.Ref == "" }

// String encodes e as "ref:start-end:strand", or "." if unmapped.
func (e Entry) String() string {
	if e.IsUnmapped() {
		return Unmapped
	}
	return e.Ref + ":" + strconv.Itoa(e.Start) + "-" + strconv.Itoa(e.End) + ":" + string(e.Strand)
}

// Walk lists one entry per monomer, in monomer order.
type Walk struct {
	Entries []Entry
}

// Len is the number of monomers of the concatemer.
func (w *Walk) Len() int { return len(w.Entries) }

// NumMapped counts the entries with an alignment.
func (w *Walk) NumMapped() int {
	n := 0
	for _, e := range w.Entries {
		if !e.IsUnmapped() {
			n++
		}
	}
	return n
}

// String returns the canonical encoding of the walk: the entries joined by
// ','.
func (w *Walk) String() string {
	var b strings.Builder
	for i, e := range w.Entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.String())
	}
	return b.String()
}

// UnknownMonomerOrdinalError is returned for an alignment whose monomer
// ordinal does not fit the concatemer's monomer count.
type UnknownMonomerOrdinalError struct {
	Name    string
	Ordinal int
	Count   int
}

func (e *UnknownMonomerOrdinalError) Error() string {
	return fmt.Sprintf("%s: monomer ordinal %d outside [0, %d)", e.Name, e.Ordinal, e.Count)
}

// MalformedAlignmentError is returned for an alignment that cannot be placed
// in a walk.
type MalformedAlignmentError struct {
	Name   string
	Reason string
}

func (e *MalformedAlignmentError) Error() string {
	return fmt.Sprintf("%s: malformed alignment: %s", e.Name, e.Reason)
}

func unmappedEntry(ordinal int) Entry {
	return Entry{Strand: '.', Ordinal: ordinal}
}

// Build constructs the walk of one concatemer from the alignments of its
// monomers. Records are matched to monomers by the ordinal in their name.
// Secondary and supplementary records never fill a slot, and a monomer
// without a mapped primary record stays unmapped.
func Build(alignments []*sam.Record, monomerCount int, opts Opts) (*Walk, error) {
	if monomerCount <= 0 {
		return nil, fmt.Errorf("walk: monomer count %d must be positive", monomerCount)
	}
	w := &Walk{Entries: make([]Entry, monomerCount)}
	for i := range w.Entries {
		w.Entries[i] = unmappedEntry(i)
	}
	// chosen[i] is the primary record picked for monomer i.
	chosen := make([]*sam.Record, monomerCount)
	for _, r := range alignments {
		_, ordinal, err := concatemer.ParseMonomerID(r.Name)
		if err != nil {
			return nil, &MalformedAlignmentError{Name: r.Name, Reason: err.Error()}
		}
		if ordinal >= monomerCount {
			return nil, &UnknownMonomerOrdinalError{Name: r.Name, Ordinal: ordinal, Count: monomerCount}
		}
		switch bam.GetCategory(r) {
		case bam.Secondary, bam.Supplementary:
			continue
		}
		prev := chosen[ordinal]
		switch {
		case prev == nil:
		case opts.TieBreak == HighestMapQ && r.MapQ > prev.MapQ:
		default:
			continue
		}
		chosen[ordinal] = r
	}
	for i, r := range chosen {
		if r == nil || bam.GetCategory(r) == bam.Unmapped {
			continue
		}
		if r.Ref == nil || r.Pos < 0 {
			return nil, &MalformedAlignmentError{Name: r.Name, Reason: "mapped record without a reference position"}
		}
		w.Entries[i] = Entry{
			Ref:     r.Ref.Name(),
			Start:   r.Pos,
			End:     r.End(),
			Strand:  bam.StrandChar(r),
			MapQ:    r.MapQ,
			Ordinal: i,
		}
	}
	return w, nil
}

// Parse decodes the output of Walk.String. Mapping qualities are not part of
// the encoding and are left zero. Reference names may contain ':'.
func Parse(s string) (*Walk, error) {
	if s == "" {
		return nil, fmt.Errorf("walk: empty string")
	}
	fields := strings.Split(s, ",")
	w := &Walk{Entries: make([]Entry, len(fields))}
	for i, f := range fields {
		if f == Unmapped {
			w.Entries[i] = unmappedEntry(i)
			continue
		}
		e, err := parseEntry(f)
		if err != nil {
			return nil, fmt.Errorf("walk %q: entry %d: %v", s, i, err)
		}
		e.Ordinal = i
		w.Entries[i] = e
	}
	return w, nil
}

func parseEntry(f string) (Entry, error) {
	j := strings.LastIndexByte(f, ':')
	if j < 0 || j != len(f)-2 {
		return Entry{}, fmt.Errorf("%q: expect ref:start-end:strand", f)
	}
	strand := f[j+1]
	if strand != '+' && strand != '-' {
		return Entry{}, fmt.Errorf("%q: bad strand %q", f, strand)
	}
	rest := f[:j]
	k := strings.LastIndexByte(rest, ':')
	if k <= 0 {
		return Entry{}, fmt.Errorf("%q: expect ref:start-end:strand", f)
	}
	span := rest[k+1:]
	dash := strings.IndexByte(span, '-')
	if dash < 0 {
		return Entry{}, fmt.Errorf("%q: expect start-end", f)
	}
	start, err := strconv.Atoi(span[:dash])
	if err != nil {
		return Entry{}, fmt.Errorf("%q: bad start: %v", f, err)
	}
	end, err := strconv.Atoi(span[dash+1:])
	if err != nil {
		return Entry{}, fmt.Errorf("%q: bad end: %v", f, err)
	}
	if start < 0 || end < start {
		return Entry{}, fmt.Errorf("%q: bad span", f)
	}
	return Entry{Ref: rest[:k], Start: start, End: end, Strand: strand}, nil
}
