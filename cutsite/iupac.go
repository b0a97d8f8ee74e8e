package cutsite

// Bit assignments for the four literal bases.
const (
	baseA uint8 = 1 << iota
	baseC
	baseG
	baseT
)

// motifMask maps a motif symbol (either case) to the set of literal bases it
// accepts. Zero means the symbol is not a valid IUPAC code.
var motifMask [256]uint8

// seqMask maps a sequence byte to its literal base. U reads as T. Anything
// else, including N, maps to zero and therefore never matches.
var seqMask [256]uint8

func init() {
	set := func(c byte, m uint8) {
		motifMask[c] = m
		motifMask[c+'a'-'A'] = m
	}
	set('A', baseA)
	set('C', baseC)
	set('G', baseG)
	set('T', baseT)
	set('U', baseT)
	set('R', baseA|baseG)
	set('Y', baseC|baseT)
	set('S', baseC|baseG)
	set('W', baseA|baseT)
	set('K', baseG|baseT)
	set('M', baseA|baseC)
	set('B', baseC|baseG|baseT)
	set('D', baseA|baseG|baseT)
	set('H', baseA|baseC|baseT)
	set('V', baseA|baseC|baseG)
	set('N', baseA|baseC|baseG|baseT)

	for _, c := range []byte("ACGTU") {
		seqMask[c] = motifMask[c]
		seqMask[c+'a'-'A'] = motifMask[c]
	}
}

const anyBase = baseA | baseC | baseG | baseT

// compileMotif converts motif into per-position base sets. It reports false
// if motif contains a symbol that is not an IUPAC nucleotide code.
func compileMotif(motif string) ([]uint8, bool) {
	mask := make([]uint8, len(motif))
	for i := 0; i < len(motif); i++ {
		m := motifMask[motif[i]]
		if m == 0 {
			return nil, false
		}
		mask[i] = m
	}
	return mask, true
}

// matchAt reports whether mask matches seq starting at pos. The caller
// guarantees pos+len(mask) <= len(seq).
func matchAt(mask []uint8, seq []byte, pos int) bool {
	w := seq[pos : pos+len(mask)]
	for i, m := range mask {
		if seqMask[w[i]]&m == 0 {
			return false
		}
	}
	return true
}
