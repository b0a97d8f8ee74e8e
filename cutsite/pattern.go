package cutsite

import (
	"fmt"
	"strings"
)

// CutMarker separates the two halves of a site string, e.g. "G^AATTC".
const CutMarker = '^'

// InvalidSpecError is returned when a cut-site specification cannot be used.
type InvalidSpecError struct {
	// Site is the offending site string, enzyme name or file name. It may be
	// empty when the spec as a whole is invalid.
	Site   string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	if e.Site == "" {
		return "invalid cut-site spec: " + e.Reason
	}
	return fmt.Sprintf("invalid cut-site spec %q: %s", e.Site, e.Reason)
}

// Pattern is one compiled recognition motif.
type Pattern struct {
	// Name labels the pattern: an enzyme name, or the marker file and line.
	Name string
	// Motif is the upper-cased recognition sequence without the cut marker.
	Motif string
	// Offset is the cut position relative to the start of the motif, in
	// [0, len(Motif)].
	Offset int

	mask []uint8
}

// NewPattern compiles motif with an explicit cut offset.
func NewPattern(name, motif string, offset int) (Pattern, error) {
	motif = strings.ToUpper(strings.TrimSpace(motif))
	if len(motif) == 0 {
		return Pattern{}, &InvalidSpecError{Site: name, Reason: "empty motif"}
	}
	mask, ok := compileMotif(motif)
	if !ok {
		return Pattern{}, &InvalidSpecError{Site: motif, Reason: "motif contains a non-IUPAC symbol"}
	}
	specific := false
	for _, m := range mask {
		if m != anyBase {
			specific = true
			break
		}
	}
	if !specific {
		return Pattern{}, &InvalidSpecError{Site: motif, Reason: "motif has no matchable bases"}
	}
	if offset < 0 || offset > len(motif) {
		return Pattern{}, &InvalidSpecError{
			Site:   motif,
			Reason: fmt.Sprintf("cut offset %d outside motif of length %d", offset, len(motif)),
		}
	}
	return Pattern{Name: name, Motif: motif, Offset: offset, mask: mask}, nil
}

// ParseSite compiles a site string in which the cut position is marked with
// CutMarker. A site without a marker cuts at defaultOffset.
func ParseSite(name, site string, defaultOffset int) (Pattern, error) {
	site = strings.TrimSpace(site)
	idx := strings.IndexByte(site, CutMarker)
	if idx < 0 {
		return NewPattern(name, site, defaultOffset)
	}
	if strings.IndexByte(site[idx+1:], CutMarker) >= 0 {
		return Pattern{}, &InvalidSpecError{Site: site, Reason: "more than one cut marker"}
	}
	return NewPattern(name, site[:idx]+site[idx+1:], idx)
}

// Len is the motif length.
func (p Pattern) Len() int { return len(p.mask) }

// Site returns the motif with the cut marker inserted.
func (p Pattern) Site() string {
	return p.Motif[:p.Offset] + string(CutMarker) + p.Motif[p.Offset:]
}

// Matches reports whether the pattern matches seq at pos.
func (p Pattern) Matches(seq []byte, pos int) bool {
	if pos < 0 || pos+len(p.mask) > len(seq) {
		return false
	}
	return matchAt(p.mask, seq, pos)
}

func (p Pattern) String() string {
	if p.Name == "" {
		return p.Site()
	}
	return p.Name + "(" + p.Site() + ")"
}
