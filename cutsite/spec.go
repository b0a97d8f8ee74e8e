package cutsite

import (
	"sort"
	"strings"
)

// Spec is an immutable set of patterns. It is safe for concurrent use.
type Spec struct {
	// patterns are ordered by preference: longer motifs first, then smaller
	// cut offsets, then motif text. The order makes overlap resolution
	// independent of the order patterns were supplied in.
	patterns []Pattern
	minLen   int
}

// NewSpec builds a spec from patterns. Duplicate (motif, offset) pairs are
// collapsed. It fails if no pattern is given.
func NewSpec(patterns ...Pattern) (*Spec, error) {
	if len(patterns) == 0 {
		return nil, &InvalidSpecError{Reason: "no patterns"}
	}
	ps := make([]Pattern, 0, len(patterns))
	seen := map[string]bool{}
	for _, p := range patterns {
		if p.mask == nil {
			return nil, &InvalidSpecError{Site: p.Motif, Reason: "pattern was not compiled"}
		}
		key := p.Site()
		if seen[key] {
			continue
		}
		seen[key] = true
		ps = append(ps, p)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.Motif < b.Motif
	})
	s := &Spec{patterns: ps, minLen: ps[0].Len()}
	for _, p := range ps {
		if p.Len() < s.minLen {
			s.minLen = p.Len()
		}
	}
	return s, nil
}

// ParseSpec builds a spec from site strings (see ParseSite). Sites without a
// cut marker cut at the start of the motif.
func ParseSpec(sites ...string) (*Spec, error) {
	var ps []Pattern
	for _, site := range sites {
		p, err := ParseSite("", site, 0)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return NewSpec(ps...)
}

// Patterns returns a copy of the spec's patterns in preference order.
func (s *Spec) Patterns() []Pattern {
	return append([]Pattern(nil), s.patterns...)
}

// MinLen is the length of the shortest motif.
func (s *Spec) MinLen() int { return s.minLen }

// NumPatterns is the number of distinct patterns.
func (s *Spec) NumPatterns() int { return len(s.patterns) }

func (s *Spec) String() string {
	names := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

// Match is one accepted pattern occurrence.
type Match struct {
	// Start is the offset of the first motif base in the sequence.
	Start int
	// Pattern indexes Spec.Patterns().
	Pattern int
}

// Matches returns the pattern occurrences in seq under the leftmost,
// non-overlapping greedy policy: once a match [s, s+len) is accepted the
// scan resumes at s+len. Among patterns matching at the same start the first
// in preference order wins.
func (s *Spec) Matches(seq []byte) []Match {
	var matches []Match
	n := len(seq)
	for pos := 0; pos+s.minLen <= n; {
		hit := -1
		for i := range s.patterns {
			if s.patterns[i].Matches(seq, pos) {
				hit = i
				break
			}
		}
		if hit < 0 {
			pos++
			continue
		}
		matches = append(matches, Match{Start: pos, Pattern: hit})
		pos += s.patterns[hit].Len()
	}
	return matches
}

// CutPositions returns the sorted, distinct cut positions in seq. Positions
// 0 and len(seq) are omitted since they do not split the sequence.
func (s *Spec) CutPositions(seq []byte) []int {
	var cuts []int
	for _, m := range s.Matches(seq) {
		c := m.Start + s.patterns[m.Pattern].Offset
		if c <= 0 || c >= len(seq) {
			continue
		}
		cuts = append(cuts, c)
	}
	if len(cuts) < 2 {
		return cuts
	}
	sort.Ints(cuts)
	out := cuts[:1]
	for _, c := range cuts[1:] {
		if c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	return out
}
