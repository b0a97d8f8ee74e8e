// Package digest splits concatemer reads into monomers at cut sites.
//
// Digestion of one read is independent of every other read, so Run fans
// batches of reads out to parallel workers. The result of digesting one read
// is fully determined by its sequence and the cutsite.Spec.
package digest

import (
	"fmt"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/concatemer"
	"github.com/grailbio/porec/cutsite"
)

// Concatemer is an undigested read.
type Concatemer struct {
	ID  string
	Seq []byte
	// Qual holds phred scores (not ASCII-offset). It is nil if the input has
	// no qualities; otherwise len(Qual) == len(Seq).
	Qual []byte
	// Aux holds SAM tags carried over to every monomer.
	Aux []sam.Aux
}

// Monomer is one fragment of a concatemer. Seq and Qual alias the parent's
// buffers.
type Monomer struct {
	ID     string
	Parent string
	Coords concatemer.Coords
	Seq    []byte
	Qual   []byte
	Aux    []sam.Aux

	// mods holds the parent's base modification calls, nil if it has none.
	mods *modBases
}

// Start is the 0-based offset of the monomer in the parent.
func (m Monomer) Start() int { return m.Coords.Start }

// End is the exclusive end offset of the monomer in the parent.
func (m Monomer) End() int { return m.Coords.End }

// Ordinal is the 0-based position of the monomer among its siblings.
func (m Monomer) Ordinal() int { return m.Coords.Ordinal }

// SequenceTooShortError is returned when a read cannot contain the cut-site spec's
// only pattern, or when the read is empty.
type SequenceTooShortError struct {
	ID     string
	Len    int
	MinLen int
}

func (e *SequenceTooShortError) Error() string {
	return fmt.Sprintf("concatemer %s: length %d is shorter than the cut site (%d)", e.ID, e.Len, e.MinLen)
}

// Iterator yields the monomers of one concatemer from left to right. It is
// not restartable.
type Iterator struct {
	c      Concatemer
	bounds []int // cut positions plus 0 and len(c.Seq)
	i      int
	cur    Monomer
	mods   *modBases
}

// New locates the cut sites of c and returns an iterator over its monomers.
// It returns *SequenceTooShortError if c is empty, or if spec has a single
// pattern that is longer than c.
func New(c Concatemer, spec *cutsite.Spec) (*Iterator, error) {
	if c.Qual != nil && len(c.Qual) != len(c.Seq) {
		return nil, fmt.Errorf("concatemer %s: %d qualities for %d bases", c.ID, len(c.Qual), len(c.Seq))
	}
	if len(c.Seq) == 0 || (spec.NumPatterns() == 1 && len(c.Seq) < spec.MinLen()) {
		return nil, &SequenceTooShortError{ID: c.ID, Len: len(c.Seq), MinLen: spec.MinLen()}
	}
	return newIterator(c, spec.CutPositions(c.Seq)), nil
}

// Whole returns an iterator yielding c as a single monomer. c must not be
// empty.
func Whole(c Concatemer) *Iterator {
	return newIterator(c, nil)
}

func newIterator(c Concatemer, cuts []int) *Iterator {
	bounds := make([]int, 0, len(cuts)+2)
	bounds = append(bounds, 0)
	bounds = append(bounds, cuts...)
	bounds = append(bounds, len(c.Seq))
	return &Iterator{c: c, bounds: bounds, mods: parseModBases(c.Aux, c.Seq)}
}

// Len is the number of monomers the iterator yields in total.
func (it *Iterator) Len() int { return len(it.bounds) - 1 }

// Scan advances to the next monomer. It returns false once all monomers
// have been produced.
func (it *Iterator) Scan() bool {
	if it.i >= it.Len() {
		return false
	}
	start, end := it.bounds[it.i], it.bounds[it.i+1]
	n := it.Len()
	m := Monomer{
		ID:     concatemer.MonomerID(it.c.ID, it.i, n),
		Parent: it.c.ID,
		Coords: concatemer.Coords{
			Start:         start,
			End:           end,
			ConcatemerLen: len(it.c.Seq),
			Ordinal:       it.i,
			Count:         n,
		},
		Seq:  it.c.Seq[start:end],
		Aux:  it.c.Aux,
		mods: it.mods,
	}
	if it.c.Qual != nil {
		m.Qual = it.c.Qual[start:end]
	}
	it.cur = m
	it.i++
	return true
}

// Monomer returns the monomer produced by the last successful Scan.
func (it *Iterator) Monomer() Monomer { return it.cur }

// Digest is the eager form of New: it returns all monomers of c.
func Digest(c Concatemer, spec *cutsite.Spec) ([]Monomer, error) {
	it, err := New(c, spec)
	if err != nil {
		return nil, err
	}
	return collect(it), nil
}

func collect(it *Iterator) []Monomer {
	ms := make([]Monomer, 0, it.Len())
	for it.Scan() {
		ms = append(ms, it.Monomer())
	}
	return ms
}
