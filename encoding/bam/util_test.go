package bam

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		flags    sam.Flags
		category Category
		primary  bool
		strand   byte
	}{
		{0, Primary, true, '+'},
		{sam.Reverse, Primary, true, '-'},
		{sam.Unmapped, Unmapped, true, '.'},
		{sam.Unmapped | sam.Reverse, Unmapped, true, '.'},
		{sam.Supplementary, Supplementary, false, '+'},
		{sam.Supplementary | sam.Reverse, Supplementary, false, '-'},
		{sam.Secondary, Secondary, false, '+'},
		{sam.Secondary | sam.Supplementary, Secondary, false, '+'},
	}
	for _, test := range tests {
		r := &sam.Record{Name: "r", Flags: test.flags}
		assert.Equal(t, test.category, GetCategory(r), "flags %v", test.flags)
		assert.Equal(t, test.primary, IsPrimary(r), "flags %v", test.flags)
		assert.Equal(t, test.strand, StrandChar(r), "flags %v", test.flags)
	}
	expect.EQ(t, Supplementary.String(), "supplementary")
	expect.EQ(t, Category(17).String(), "unknown")
}

func newAux(t *testing.T, tag string, v interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(tag), v)
	require.NoError(t, err)
	return aux
}

func TestAuxTags(t *testing.T) {
	aux := []sam.Aux{
		newAux(t, "RG", "rg1"),
		newAux(t, "NM", 3),
		newAux(t, "AS", 70000),
		newAux(t, "Xc", []int32{0, 6, 20, 0, 3}),
		newAux(t, "Xb", []uint8{1, 2}),
		newAux(t, "XZ", -5),
	}
	r := &sam.Record{Name: "r", AuxFields: aux}

	s, ok := AuxString(r, sam.NewTag("RG"))
	expect.True(t, ok)
	expect.EQ(t, s, "rg1")
	_, ok = AuxString(r, sam.NewTag("NM"))
	expect.False(t, ok)

	for tag, want := range map[string]int{"NM": 3, "AS": 70000, "XZ": -5} {
		v, ok := AuxInt(r, sam.NewTag(tag))
		expect.True(t, ok, tag)
		expect.EQ(t, v, want, tag)
	}
	_, ok = AuxInt(r, sam.NewTag("RG"))
	expect.False(t, ok)
	_, ok = AuxInt(r, sam.NewTag("zz"))
	expect.False(t, ok)

	v, ok := AuxInts(r, sam.NewTag("Xc"))
	expect.True(t, ok)
	expect.EQ(t, v, []int{0, 6, 20, 0, 3})
	v, ok = AuxInts(r, sam.NewTag("Xb"))
	expect.True(t, ok)
	expect.EQ(t, v, []int{1, 2})
	_, ok = AuxInts(r, sam.NewTag("NM"))
	expect.False(t, ok)

	drop := []sam.Tag{sam.NewTag("NM"), sam.NewTag("Xc")}
	kept := WithoutAuxTags(r.AuxFields, drop)
	expect.EQ(t, len(kept), 4)
	expect.EQ(t, len(r.AuxFields), 6)

	for i, a := range kept {
		expect.True(t, a.Tag() != sam.NewTag("NM") && a.Tag() != sam.NewTag("Xc"), i)
	}
}
