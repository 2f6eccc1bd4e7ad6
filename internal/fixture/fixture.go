// Package fixture builds the canonical building models checker functions are
// exercised against. Every build returns a fresh model so one checker can
// never observe another's side effects.
package fixture

import (
	"fmt"

	"github.com/modelcheck/bimcheck/internal/bim"
)

// ID names one of the canonical fixtures.
type ID string

const (
	// Empty is a model holding nothing but a project. Checkers must handle
	// it without raising.
	Empty ID = "empty"
	// Populated is a small building: a spatial hierarchy down to two
	// storeys, with walls, doors, windows and a space on the ground floor.
	Populated ID = "populated"
	// WithProperties is Populated plus property sets and door dimensions,
	// for checkers that read psets.
	WithProperties ID = "with_properties"
)

// Order lists all fixture IDs in build order.
var Order = []ID{Empty, Populated, WithProperties}

// PopulatedIDs lists the fixtures that contain building elements. Result
// contract checks run against these; Empty only has to be survived.
var PopulatedIDs = []ID{Populated, WithProperties}

var descriptions = map[ID]string{
	Empty:          "project shell with no building elements",
	Populated:      "two storeys holding 3 walls, 2 doors, 2 windows and a space",
	WithProperties: "populated model with wall, door and window property sets",
}

// Describe returns a one-line description of the fixture.
func Describe(id ID) string {
	return descriptions[id]
}

// Valid reports whether id names a known fixture.
func Valid(id ID) bool {
	_, ok := descriptions[id]
	return ok
}

// Build constructs a fresh copy of the named fixture.
func Build(id ID) (*bim.Model, error) {
	switch id {
	case Empty:
		return buildEmpty(), nil
	case Populated:
		return buildPopulated(), nil
	case WithProperties:
		return buildWithProperties(), nil
	default:
		return nil, fmt.Errorf("unknown fixture %q", id)
	}
}

func buildEmpty() *bim.Model {
	m := bim.NewModel("IFC4")
	m.NewEntity("IfcProject", "Empty Project")
	return m
}

func buildPopulated() *bim.Model {
	m := bim.NewModel("IFC4")

	project := m.NewEntity("IfcProject", "Test Project")
	site := m.NewEntity("IfcSite", "Test Site")
	building := m.NewEntity("IfcBuilding", "Test Building")
	m.Aggregate(project, site)
	m.Aggregate(site, building)

	ground := m.NewEntity("IfcBuildingStorey", "Ground Floor")
	ground.SetElevation(0)
	first := m.NewEntity("IfcBuildingStorey", "First Floor")
	first.SetElevation(3000)
	m.Aggregate(building, ground, first)

	for i := 0; i < 3; i++ {
		wall := m.NewEntity("IfcWall", fmt.Sprintf("Wall %d", i+1))
		m.Contain(ground, wall)
	}
	for i := 0; i < 2; i++ {
		door := m.NewEntity("IfcDoor", fmt.Sprintf("Door %d", i+1))
		m.Contain(ground, door)
	}
	for i := 0; i < 2; i++ {
		window := m.NewEntity("IfcWindow", fmt.Sprintf("Window %d", i+1))
		m.Contain(ground, window)
	}

	// Spaces are spatial elements, so they hang off the storey by
	// aggregation rather than containment.
	space := m.NewEntity("IfcSpace", "Office Room")
	space.SetLongName("Main Office Room 101")
	m.Aggregate(ground, space)

	return m
}

func buildWithProperties() *bim.Model {
	m := buildPopulated()

	for i, wall := range m.ByType("IfcWall") {
		wall.SetPset("Pset_WallCommon", map[string]any{
			"FireRating":  fmt.Sprintf("REI%d", 60+i*30),
			"IsExternal":  i == 0,
			"LoadBearing": true,
		})
	}

	for i, door := range m.ByType("IfcDoor") {
		door.SetPset("Pset_DoorCommon", map[string]any{
			"FireRating": "EI30",
			"IsExternal": i == 0,
		})
		// First door gets accessible width.
		if i == 0 {
			door.SetOverallWidth(900)
		} else {
			door.SetOverallWidth(800)
		}
		door.SetOverallHeight(2100)
	}

	for i, window := range m.ByType("IfcWindow") {
		window.SetPset("Pset_WindowCommon", map[string]any{
			"ThermalTransmittance": 1.2 + float64(i)*0.3,
			"IsExternal":           true,
		})
	}

	return m
}
