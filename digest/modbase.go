package digest

import (
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/encoding/bam"
)

// Base modification tags. Mm and Ml are the names some basecallers wrote
// before the tags were standardized.
var (
	mmTags = [...]sam.Tag{{'M', 'M'}, {'M', 'm'}}
	mlTags = [...]sam.Tag{{'M', 'L'}, {'M', 'l'}}
	mnTag  = sam.Tag{'M', 'N'}

	modBaseTags = []sam.Tag{mmTags[0], mmTags[1], mlTags[0], mlTags[1], mnTag}
)

// modGroup is one ';'-terminated entry of an MM tag, e.g. "C+m?,3,0,1;".
type modGroup struct {
	// header is the text before the first delta, e.g. "C+m?".
	header string
	base   byte
	// codes is the number of modifications listed in the header. Each called
	// base has that many values in ML.
	codes int
	// pos holds the read offsets of the called bases, increasing.
	pos []int
}

// modBases holds the base modification calls of a read.
type modBases struct {
	mmTag, mlTag sam.Tag
	groups       []modGroup
	// probs is the ML array, nil if the read has none.
	probs []uint8
	hasMN bool
}

// modBaseMatches reports whether the read base b is counted by the MM deltas
// of a group on base.
func modBaseMatches(base, b byte) bool {
	b &^= 'a' - 'A'
	switch base {
	case 'N':
		return true
	case 'T', 'U':
		return b == 'T' || b == 'U'
	}
	return b == base
}

func parseModHeader(h string) (modGroup, bool) {
	if len(h) < 3 || strings.IndexByte("ACGTUN", h[0]) < 0 || (h[1] != '+' && h[1] != '-') {
		return modGroup{}, false
	}
	codes := h[2:]
	if n := len(codes); codes[n-1] == '.' || codes[n-1] == '?' {
		codes = codes[:n-1]
	}
	if codes == "" {
		return modGroup{}, false
	}
	g := modGroup{header: h, base: h[0]}
	if _, err := strconv.Atoi(codes); err == nil {
		// A ChEBI identifier names a single modification.
		g.codes = 1
		return g, true
	}
	for i := 0; i < len(codes); i++ {
		if codes[i] < 'a' || codes[i] > 'z' {
			return modGroup{}, false
		}
	}
	g.codes = len(codes)
	return g, true
}

// parseModBases decodes the MM, ML and MN tags in aux against seq. It returns
// nil if the read carries no MM tag or if the tags are inconsistent with each
// other or with seq.
func parseModBases(aux []sam.Aux, seq []byte) *modBases {
	r := &sam.Record{AuxFields: aux}
	var (
		mb modBases
		mm string
		ok bool
	)
	for i, tag := range mmTags {
		if mm, ok = bam.AuxString(r, tag); ok {
			mb.mmTag, mb.mlTag = tag, mlTags[i]
			break
		}
	}
	if !ok {
		return nil
	}
	if n, ok := bam.AuxInt(r, mnTag); ok {
		if n != len(seq) {
			return nil
		}
		mb.hasMN = true
	}
	nProbs := 0
	for _, text := range strings.Split(mm, ";") {
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		g, ok := parseModHeader(fields[0])
		if !ok {
			return nil
		}
		i := 0
		for _, f := range fields[1:] {
			skip, err := strconv.Atoi(f)
			if err != nil || skip < 0 {
				return nil
			}
			for ; i < len(seq); i++ {
				if !modBaseMatches(g.base, seq[i]) {
					continue
				}
				if skip == 0 {
					break
				}
				skip--
			}
			if i == len(seq) {
				return nil
			}
			g.pos = append(g.pos, i)
			i++
		}
		nProbs += len(g.pos) * g.codes
		mb.groups = append(mb.groups, g)
	}
	if ml, ok := bam.AuxInts(r, mb.mlTag); ok {
		if len(ml) != nProbs {
			return nil
		}
		mb.probs = make([]uint8, len(ml))
		for i, p := range ml {
			if p < 0 || p > 255 {
				return nil
			}
			mb.probs[i] = uint8(p)
		}
	} else if r.AuxFields.Get(mb.mlTag) != nil {
		return nil
	}
	return &mb
}

// slice returns the modification tags of the monomer spanning [start, end)
// of the read; seq is the monomer's sequence. Calls outside the monomer are
// dropped and the deltas of the rest are recounted from the monomer start.
// Groups left without calls keep their header. ML is omitted if no call
// remains.
func (mb *modBases) slice(start, end int, seq []byte) []sam.Aux {
	var (
		mm   strings.Builder
		ml   []uint8
		base int // offset of the current group in probs
	)
	for _, g := range mb.groups {
		mm.WriteString(g.header)
		prev := start
		for j, p := range g.pos {
			if p < start || p >= end {
				continue
			}
			skip := 0
			for _, b := range seq[prev-start : p-start] {
				if modBaseMatches(g.base, b) {
					skip++
				}
			}
			mm.WriteByte(',')
			mm.WriteString(strconv.Itoa(skip))
			prev = p + 1
			if mb.probs != nil {
				ml = append(ml, mb.probs[base+j*g.codes:base+(j+1)*g.codes]...)
			}
		}
		base += len(g.pos) * g.codes
		mm.WriteByte(';')
	}
	aux := []sam.Aux{newAux(mb.mmTag, mm.String())}
	if len(ml) > 0 {
		aux = append(aux, newAux(mb.mlTag, ml))
	}
	if mb.hasMN {
		aux = append(aux, newAux(mnTag, len(seq)))
	}
	return aux
}

func newAux(tag sam.Tag, value interface{}) sam.Aux {
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		panic(err)
	}
	return aux
}
