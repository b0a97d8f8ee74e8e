package cutsite

import (
	"sort"
	"strings"
)

// builtinEnzymes lists recognition sites with the top-strand cut marked.
// Enzymes that cut outside their recognition site (e.g. AloI) are absent.
var builtinEnzymes = map[string]string{
	"AluI":    "AG^CT",
	"ApoI":    "R^AATTY",
	"BamHI":   "G^GATCC",
	"BglII":   "A^GATCT",
	"BsaJI":   "C^CNNGG",
	"Csp6I":   "G^TAC",
	"CviQI":   "G^TAC",
	"DdeI":    "C^TNAG",
	"DpnII":   "^GATC",
	"EcoRI":   "G^AATTC",
	"HaeIII":  "GG^CC",
	"HindIII": "A^AGCTT",
	"HinfI":   "G^ANTC",
	"HpaII":   "C^CGG",
	"MboI":    "^GATC",
	"MluCI":   "^AATT",
	"MseI":    "T^TAA",
	"MspI":    "C^CGG",
	"NcoI":    "C^CATGG",
	"NlaIII":  "CATG^",
	"NotI":    "GC^GGCCGC",
	"Sau3AI":  "^GATC",
	"TaqI":    "T^CGA",
	"XhoI":    "C^TCGAG",
}

// EnzymeTable maps restriction enzyme names to compiled patterns. Lookups
// ignore case. A table is immutable after construction; build one at
// startup and pass it to whatever needs it.
type EnzymeTable struct {
	byKey map[string]Pattern
	names []string
}

// NewEnzymeTable compiles a table from name -> site string (see ParseSite).
// Every site must carry a cut marker.
func NewEnzymeTable(sites map[string]string) (*EnzymeTable, error) {
	t := &EnzymeTable{byKey: make(map[string]Pattern, len(sites))}
	for name, site := range sites {
		if strings.IndexByte(site, CutMarker) < 0 {
			return nil, &InvalidSpecError{Site: name, Reason: "enzyme site has no cut marker"}
		}
		p, err := ParseSite(name, site, 0)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(name)
		if _, ok := t.byKey[key]; ok {
			return nil, &InvalidSpecError{Site: name, Reason: "duplicate enzyme name"}
		}
		t.byKey[key] = p
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t, nil
}

// DefaultEnzymes returns a table holding the built-in enzymes.
func DefaultEnzymes() *EnzymeTable {
	t, err := NewEnzymeTable(builtinEnzymes)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup finds an enzyme by name.
func (t *EnzymeTable) Lookup(name string) (Pattern, bool) {
	p, ok := t.byKey[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists the enzyme names in sorted order.
func (t *EnzymeTable) Names() []string {
	return append([]string(nil), t.names...)
}

// Spec builds a spec cutting at the sites of all the named enzymes.
func (t *EnzymeTable) Spec(names ...string) (*Spec, error) {
	if len(names) == 0 {
		return nil, &InvalidSpecError{Reason: "no enzyme given"}
	}
	ps := make([]Pattern, 0, len(names))
	for _, name := range names {
		p, ok := t.Lookup(name)
		if !ok {
			return nil, &InvalidSpecError{Site: name, Reason: "unknown enzyme"}
		}
		ps = append(ps, p)
	}
	return NewSpec(ps...)
}
