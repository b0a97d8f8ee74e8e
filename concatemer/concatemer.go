// Package concatemer maps between concatemer and monomer coordinates. It
// defines the monomer read name and the SAM tags that digestion writes and
// annotation reads back.
package concatemer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/encoding/bam"
)

var (
	// ParentTag (MI:Z) holds the concatemer id of a monomer record.
	ParentTag = sam.Tag{'M', 'I'}
	// CoordsTag (Xc:B:i) holds start,end,concatemer length,ordinal,count.
	CoordsTag = sam.Tag{'X', 'c'}
)

// IDSeparator separates the parent id from the ordinal in a monomer id.
const IDSeparator = ':'

// MonomerID returns the read name of the ordinal'th of count monomers of
// parent. The ordinal is zero-padded to the width of count so that sorting
// the names of one parent lexically orders them by ordinal.
func MonomerID(parent string, ordinal, count int) string {
	width := len(strconv.Itoa(count))
	return fmt.Sprintf("%s%c%0*d", parent, IDSeparator, width, ordinal)
}

// ParseMonomerID splits a monomer id into parent id and ordinal. The parent
// may itself contain IDSeparator.
func ParseMonomerID(id string) (parent string, ordinal int, err error) {
	i := strings.LastIndexByte(id, IDSeparator)
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("monomer id %q: expect <parent>%c<ordinal>", id, IDSeparator)
	}
	ordinal, err = strconv.Atoi(id[i+1:])
	if err != nil || ordinal < 0 {
		return "", 0, fmt.Errorf("monomer id %q: bad ordinal %q", id, id[i+1:])
	}
	return id[:i], ordinal, nil
}

// Coords locates a monomer inside its concatemer. Start and End are 0-based,
// half-open offsets in concatemer coordinates.
type Coords struct {
	Start, End    int
	ConcatemerLen int
	Ordinal       int
	Count         int
}

// Len is the monomer length.
func (c Coords) Len() int { return c.End - c.Start }

// Validate checks the internal consistency of c.
func (c Coords) Validate() error {
	if c.Start < 0 || c.Start >= c.End || c.End > c.ConcatemerLen {
		return fmt.Errorf("monomer coords %v: bad range", c)
	}
	if c.Ordinal < 0 || c.Ordinal >= c.Count {
		return fmt.Errorf("monomer coords %v: ordinal out of range", c)
	}
	return nil
}

// ToConcatemer maps an offset within the monomer to concatemer coordinates.
func (c Coords) ToConcatemer(pos int) int { return c.Start + pos }

// ToMonomer maps a concatemer offset into the monomer. ok is false if pos is
// outside [Start, End).
func (c Coords) ToMonomer(pos int) (int, bool) {
	if pos < c.Start || pos >= c.End {
		return 0, false
	}
	return pos - c.Start, true
}

func (c Coords) values() []int32 {
	return []int32{int32(c.Start), int32(c.End), int32(c.ConcatemerLen), int32(c.Ordinal), int32(c.Count)}
}

// Aux encodes c as an Xc:B:i tag.
func (c Coords) Aux() sam.Aux {
	aux, err := sam.NewAux(CoordsTag, c.values())
	if err != nil {
		panic(err)
	}
	return aux
}

// Comment encodes c as SAM text, e.g. "Xc:B:i,0,6,20,0,3", the form used in
// FASTQ header comments.
func (c Coords) Comment() string {
	var b strings.Builder
	b.WriteString(CoordsTag.String())
	b.WriteString(":B:i")
	for _, v := range c.values() {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(v)))
	}
	return b.String()
}

// ParentAux encodes the parent id as an MI:Z tag.
func ParentAux(parent string) sam.Aux {
	aux, err := sam.NewAux(ParentTag, parent)
	if err != nil {
		panic(err)
	}
	return aux
}

// ParentComment encodes the parent id as SAM text.
func ParentComment(parent string) string {
	return ParentTag.String() + ":Z:" + parent
}

// CoordsFromRecord reads the Xc tag of r. found is false if the tag is
// absent; err is set if it is present but malformed.
func CoordsFromRecord(r *sam.Record) (c Coords, found bool, err error) {
	v, ok := bam.AuxInts(r, CoordsTag)
	if !ok {
		if r.AuxFields.Get(CoordsTag) != nil {
			return Coords{}, true, fmt.Errorf("%s: %s tag is not an integer array", r.Name, CoordsTag)
		}
		return Coords{}, false, nil
	}
	if len(v) != 5 {
		return Coords{}, true, fmt.Errorf("%s: %s tag has %d values, expect 5", r.Name, CoordsTag, len(v))
	}
	c = Coords{Start: v[0], End: v[1], ConcatemerLen: v[2], Ordinal: v[3], Count: v[4]}
	if err := c.Validate(); err != nil {
		return Coords{}, true, fmt.Errorf("%s: %v", r.Name, err)
	}
	return c, true, nil
}

// Parent reads the MI tag of r.
func Parent(r *sam.Record) (string, bool) {
	return bam.AuxString(r, ParentTag)
}
