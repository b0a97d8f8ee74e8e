package bam

import "github.com/grailbio/hts/sam"

// Category classifies an alignment record by its flags.
type Category uint8

const (
	// Primary is the representative alignment of a read.
	Primary Category = iota
	// Unmapped is a primary record with the unmapped flag set.
	Unmapped
	// Supplementary is part of a chimeric alignment.
	Supplementary
	// Secondary is an alternative placement.
	Secondary
)

var categoryNames = [...]string{"primary", "unmapped", "supplementary", "secondary"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// GetCategory returns the category of r. Secondary takes precedence over
// supplementary, which takes precedence over unmapped.
func GetCategory(r *sam.Record) Category {
	switch {
	case r.Flags&sam.Secondary != 0:
		return Secondary
	case r.Flags&sam.Supplementary != 0:
		return Supplementary
	case r.Flags&sam.Unmapped != 0:
		return Unmapped
	}
	return Primary
}

// IsPrimary returns true if r is neither secondary nor supplementary. An
// unmapped record can be primary.
func IsPrimary(r *sam.Record) bool {
	return r.Flags&(sam.Secondary|sam.Supplementary) == 0
}

// IsUnmapped returns true if r has the unmapped flag.
func IsUnmapped(r *sam.Record) bool {
	return r.Flags&sam.Unmapped != 0
}

// StrandChar returns '+' or '-' for mapped records and '.' for unmapped ones.
func StrandChar(r *sam.Record) byte {
	if IsUnmapped(r) {
		return '.'
	}
	if r.Flags&sam.Reverse != 0 {
		return '-'
	}
	return '+'
}

// WithoutAuxTags returns a copy of aux with the listed tags removed. aux is
// not modified.
func WithoutAuxTags(aux []sam.Aux, tags []sam.Tag) []sam.Aux {
	out := make([]sam.Aux, 0, len(aux))
outer:
	for _, a := range aux {
		t := a.Tag()
		for _, tag := range tags {
			if t == tag {
				continue outer
			}
		}
		out = append(out, a)
	}
	return out
}

// AuxString returns the string value of tag in r.
func AuxString(r *sam.Record, tag sam.Tag) (string, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}

// AuxInt returns the integer value of tag in r, whatever its width.
func AuxInt(r *sam.Record, tag sam.Tag) (int, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// AuxInts returns the value of an integer array tag ("B" type) in r.
func AuxInts(r *sam.Record, tag sam.Tag) ([]int, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return nil, false
	}
	var out []int
	switch v := aux.Value().(type) {
	case []int8:
		for _, x := range v {
			out = append(out, int(x))
		}
	case []uint8:
		for _, x := range v {
			out = append(out, int(x))
		}
	case []int16:
		for _, x := range v {
			out = append(out, int(x))
		}
	case []uint16:
		for _, x := range v {
			out = append(out, int(x))
		}
	case []int32:
		for _, x := range v {
			out = append(out, int(x))
		}
	case []uint32:
		for _, x := range v {
			out = append(out, int(x))
		}
	default:
		return nil, false
	}
	return out, true
}
