package digest

import (
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/concatemer"
	"github.com/grailbio/porec/encoding/bam"
	"github.com/grailbio/porec/encoding/fastq"
)

const (
	phredOffset = 33
	// missingQual marks absent base qualities in sam.Record.Qual.
	missingQual = 0xff
)

// FromFASTQ converts a FASTQ read. The comment of the ID line is dropped.
func FromFASTQ(r *fastq.Read) Concatemer {
	c := Concatemer{ID: r.Name(), Seq: []byte(r.Seq)}
	if len(r.Qual) == len(r.Seq) && len(r.Seq) > 0 {
		c.Qual = make([]byte, len(r.Qual))
		for i := 0; i < len(r.Qual); i++ {
			c.Qual[i] = r.Qual[i] - phredOffset
		}
	}
	return c
}

// FromSAM converts an unaligned SAM/BAM record. Aux tags are carried over.
func FromSAM(r *sam.Record) Concatemer {
	c := Concatemer{ID: r.Name, Seq: r.Seq.Expand(), Aux: r.AuxFields}
	if len(r.Qual) == len(c.Seq) && len(c.Seq) > 0 && !allMissing(r.Qual) {
		c.Qual = r.Qual
	}
	return c
}

func allMissing(q []byte) bool {
	for _, b := range q {
		if b != missingQual {
			return false
		}
	}
	return true
}

// FASTQ converts m to a FASTQ read. The MI and Xc tags are written as
// tab-separated comments on the ID line. Reads without qualities get the
// lowest quality score for every base.
func (m Monomer) FASTQ() fastq.Read {
	var r fastq.Read
	r.SetID(m.ID, concatemer.ParentComment(m.Parent), m.Coords.Comment())
	r.Seq = string(m.Seq)
	r.Unk = "+"
	qual := make([]byte, len(m.Seq))
	for i := range qual {
		if m.Qual != nil {
			qual[i] = m.Qual[i] + phredOffset
		} else {
			qual[i] = phredOffset
		}
	}
	r.Qual = string(qual)
	return r
}

// SAM converts m to an unaligned record. Tags inherited from the parent are
// kept except those listed in removeTags. MI and Xc are always rewritten.
// Base modification tags (MM, ML, MN) are cut down to the calls that fall
// inside the monomer, or dropped if the parent's tags do not parse.
func (m Monomer) SAM(removeTags []sam.Tag) *sam.Record {
	drop := append([]sam.Tag{concatemer.ParentTag, concatemer.CoordsTag}, modBaseTags...)
	drop = append(drop, removeTags...)
	aux := bam.WithoutAuxTags(m.Aux, drop)
	if m.mods != nil && !hasTag(removeTags, m.mods.mmTag) {
		aux = append(aux, m.mods.slice(m.Start(), m.End(), m.Seq)...)
	}
	aux = append(aux, concatemer.ParentAux(m.Parent), m.Coords.Aux())

	qual := make([]byte, len(m.Seq))
	if m.Qual != nil {
		copy(qual, m.Qual)
	} else {
		for i := range qual {
			qual[i] = missingQual
		}
	}
	return &sam.Record{
		Name:      m.ID,
		Pos:       -1,
		MatePos:   -1,
		Flags:     sam.Unmapped,
		Seq:       sam.NewSeq(m.Seq),
		Qual:      qual,
		AuxFields: aux,
	}
}

func hasTag(tags []sam.Tag, tag sam.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
