package concatemer

import (
	"sort"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestMonomerID(t *testing.T) {
	expect.EQ(t, MonomerID("read1", 3, 5), "read1:3")
	expect.EQ(t, MonomerID("read1", 3, 12), "read1:03")
	expect.EQ(t, MonomerID("run:7:read", 0, 100), "run:7:read:000")

	parent, ordinal, err := ParseMonomerID("run:7:read:012")
	assert.NoError(t, err)
	expect.EQ(t, parent, "run:7:read")
	expect.EQ(t, ordinal, 12)

	for _, bad := range []string{"", "read", ":1", "read:", "read:x", "read:-1"} {
		_, _, err := ParseMonomerID(bad)
		expect.NotNil(t, err, "id: %q", bad)
	}
}

func TestMonomerIDSortOrder(t *testing.T) {
	var ids []string
	for i := 11; i >= 0; i-- {
		ids = append(ids, MonomerID("r", i, 12))
	}
	sort.Strings(ids)
	for i, id := range ids {
		_, ordinal, err := ParseMonomerID(id)
		assert.NoError(t, err)
		expect.EQ(t, ordinal, i)
	}
}

func TestCoords(t *testing.T) {
	c := Coords{Start: 6, End: 15, ConcatemerLen: 20, Ordinal: 1, Count: 3}
	expect.NoError(t, c.Validate())
	expect.EQ(t, c.Len(), 9)
	expect.EQ(t, c.ToConcatemer(2), 8)
	pos, ok := c.ToMonomer(14)
	expect.True(t, ok)
	expect.EQ(t, pos, 8)
	_, ok = c.ToMonomer(15)
	expect.False(t, ok)
	expect.EQ(t, c.Comment(), "Xc:B:i,6,15,20,1,3")

	for _, bad := range []Coords{
		{Start: 5, End: 5, ConcatemerLen: 10, Ordinal: 0, Count: 1},
		{Start: 0, End: 11, ConcatemerLen: 10, Ordinal: 0, Count: 1},
		{Start: 0, End: 5, ConcatemerLen: 10, Ordinal: 1, Count: 1},
	} {
		expect.NotNil(t, bad.Validate())
	}
}

func TestCoordsRecordRoundTrip(t *testing.T) {
	c := Coords{Start: 0, End: 6, ConcatemerLen: 20, Ordinal: 0, Count: 3}
	r := &sam.Record{Name: "read1:0", AuxFields: []sam.Aux{ParentAux("read1"), c.Aux()}}
	got, found, err := CoordsFromRecord(r)
	assert.NoError(t, err)
	expect.True(t, found)
	expect.EQ(t, got, c)
	parent, ok := Parent(r)
	expect.True(t, ok)
	expect.EQ(t, parent, "read1")

	_, found, err = CoordsFromRecord(&sam.Record{Name: "x"})
	expect.NoError(t, err)
	expect.False(t, found)

	short, err := sam.NewAux(CoordsTag, []int32{1, 2})
	assert.NoError(t, err)
	_, found, err = CoordsFromRecord(&sam.Record{Name: "x", AuxFields: []sam.Aux{short}})
	expect.True(t, found)
	expect.NotNil(t, err)

	str, err := sam.NewAux(CoordsTag, "0,1")
	assert.NoError(t, err)
	_, found, err = CoordsFromRecord(&sam.Record{Name: "x", AuxFields: []sam.Aux{str}})
	expect.True(t, found)
	expect.NotNil(t, err)
}
