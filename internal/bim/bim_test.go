package bim

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelDefaultsSchema(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	assert.Equal(t, "IFC4", m.Schema())

	m2 := NewModel("IFC4X3")
	assert.Equal(t, "IFC4X3", m2.Schema())
}

func TestNewEntityAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	a := m.NewEntity("IfcWall", "Wall-A")
	b := m.NewEntity("IfcDoor", "Door-B")

	assert.Equal(t, 1, a.ID())
	assert.Equal(t, 2, b.ID())
	assert.Len(t, a.GlobalID(), 22)
	assert.NotEqual(t, a.GlobalID(), b.GlobalID())
}

func TestByTypeMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	w1 := m.NewEntity("IfcWall", "Wall-1")
	m.NewEntity("IfcDoor", "Door-1")
	w2 := m.NewEntity("IfcWall", "Wall-2")

	walls := m.ByType("ifcwall")
	require.Len(t, walls, 2)
	assert.Same(t, w1, walls[0])
	assert.Same(t, w2, walls[1])

	assert.Empty(t, m.ByType("IfcWindow"))
}

func TestByTypeDoesNotMatchSubstrings(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	m.NewEntity("IfcWallStandardCase", "Wall-1")

	assert.Empty(t, m.ByType("IfcWall"), "class match must be exact, not prefix")
}

func TestContainAndAggregateBuildHierarchy(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	project := m.NewEntity("IfcProject", "Project")
	site := m.NewEntity("IfcSite", "Site")
	storey := m.NewEntity("IfcBuildingStorey", "Ground Floor")
	wall := m.NewEntity("IfcWall", "Wall-1")
	space := m.NewEntity("IfcSpace", "Room 101")

	m.Aggregate(project, site)
	m.Aggregate(storey, space)
	m.Contain(storey, wall)

	assert.Same(t, project, site.Parent())
	assert.Same(t, storey, wall.Parent())
	require.Len(t, storey.Parts(), 1)
	assert.Same(t, space, storey.Parts()[0])
	require.Len(t, storey.Contained(), 1)
	assert.Same(t, wall, storey.Contained()[0])
}

func TestReassigningContainerMovesElement(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	ground := m.NewEntity("IfcBuildingStorey", "Ground Floor")
	first := m.NewEntity("IfcBuildingStorey", "First Floor")
	wall := m.NewEntity("IfcWall", "Wall-1")

	m.Contain(ground, wall)
	m.Contain(first, wall)

	assert.Empty(t, ground.Contained())
	require.Len(t, first.Contained(), 1)
	assert.Same(t, first, wall.Parent())
}

func TestOptionalAttributesStartUnset(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	e := m.NewEntity("IfcBuildingStorey", "Ground Floor")

	assert.Nil(t, e.LongName())
	assert.Nil(t, e.Elevation())
	assert.Nil(t, e.OverallWidth())
	assert.Nil(t, e.OverallHeight())

	e.SetLongName("Main Office Room 101")
	e.SetElevation(3000)
	require.NotNil(t, e.LongName())
	assert.Equal(t, "Main Office Room 101", *e.LongName())
	require.NotNil(t, e.Elevation())
	assert.Equal(t, 3000.0, *e.Elevation())
}

func TestSetPsetMergesExistingSet(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	wall := m.NewEntity("IfcWall", "Wall-1")

	wall.SetPset("Pset_WallCommon", map[string]any{"FireRating": "REI60", "IsExternal": true})
	wall.SetPset("Pset_WallCommon", map[string]any{"LoadBearing": true, "IsExternal": false})

	set, ok := wall.Pset("Pset_WallCommon")
	require.True(t, ok)
	assert.Equal(t, "REI60", set["FireRating"])
	assert.Equal(t, false, set["IsExternal"])
	assert.Equal(t, true, set["LoadBearing"])
	assert.Equal(t, []string{"Pset_WallCommon"}, wall.PsetNames())
}

func TestPsetsReturnsCopies(t *testing.T) {
	t.Parallel()

	m := NewModel("")
	wall := m.NewEntity("IfcWall", "Wall-1")
	wall.SetPset("Pset_WallCommon", map[string]any{"FireRating": "REI60"})

	psets := wall.Psets()
	psets["Pset_WallCommon"]["FireRating"] = "mutated"

	fresh, ok := wall.Pset("Pset_WallCommon")
	require.True(t, ok)
	assert.Equal(t, "REI60", fresh["FireRating"])
}

func TestCompressUUIDRoundTrips(t *testing.T) {
	t.Parallel()

	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	gid := CompressUUID(u)
	require.Len(t, gid, 22)

	back, err := ExpandGlobalID(gid)
	require.NoError(t, err)
	assert.Equal(t, u, back)
}

func TestCompressUUIDUsesGUIDAlphabet(t *testing.T) {
	t.Parallel()

	for i := 0; i < 32; i++ {
		gid := NewGlobalID()
		require.Len(t, gid, 22)
		for _, c := range gid {
			assert.True(t, strings.ContainsRune(guidChars, c), "unexpected character %q in %q", c, gid)
		}
	}
}

func TestExpandGlobalIDRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	_, err := ExpandGlobalID("too-short")
	require.Error(t, err)

	_, err = ExpandGlobalID(strings.Repeat("#", 22))
	require.Error(t, err)
}
