// Package bim provides the in-memory building model the harness feeds to
// compliance checkers. It mirrors the slice of an IFC model the checkers
// care about: typed entities with stable identifiers, a spatial containment
// hierarchy, aggregation links, and named property sets. It is not a file
// format; models are always constructed programmatically.
package bim

import "strings"

// DefaultSchema is the schema identifier stamped on new models.
const DefaultSchema = "IFC4"

// Model is an ordered collection of building entities. A model is owned by a
// single goroutine; the harness builds one per checker invocation and never
// shares instances.
type Model struct {
	schema   string
	elements []*Element
}

// NewModel returns an empty model with the given schema identifier.
// An empty schema falls back to DefaultSchema.
func NewModel(schema string) *Model {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Model{schema: schema}
}

// Schema returns the model's schema identifier, e.g. "IFC4".
func (m *Model) Schema() string {
	return m.schema
}

// NewEntity creates an entity of the given class, assigns it the next
// numeric id and a fresh GlobalId, and adds it to the model.
func (m *Model) NewEntity(class, name string) *Element {
	e := &Element{
		id:       len(m.elements) + 1,
		globalID: NewGlobalID(),
		class:    class,
		name:     name,
	}
	m.elements = append(m.elements, e)
	return e
}

// ByType returns all entities of the given class in creation order.
// Class matching is case-insensitive, mirroring how checker authors are used
// to querying IFC models.
func (m *Model) ByType(class string) []*Element {
	var out []*Element
	for _, e := range m.elements {
		if strings.EqualFold(e.class, class) {
			out = append(out, e)
		}
	}
	return out
}

// Elements returns every entity in creation order.
func (m *Model) Elements() []*Element {
	out := make([]*Element, len(m.elements))
	copy(out, m.elements)
	return out
}

// Aggregate records a decomposition relationship: each product becomes a
// part of parent. An entity has at most one parent; re-aggregating moves it.
func (m *Model) Aggregate(parent *Element, products ...*Element) {
	for _, p := range products {
		if p == nil || p == parent {
			continue
		}
		p.detach()
		p.parent = parent
		parent.parts = append(parent.parts, p)
	}
}

// Contain records spatial containment: each product is placed inside the
// given spatial structure (typically a storey).
func (m *Model) Contain(structure *Element, products ...*Element) {
	for _, p := range products {
		if p == nil || p == structure {
			continue
		}
		p.detach()
		p.parent = structure
		structure.contained = append(structure.contained, p)
	}
}

func (e *Element) detach() {
	if e.parent == nil {
		return
	}
	e.parent.parts = removeElement(e.parent.parts, e)
	e.parent.contained = removeElement(e.parent.contained, e)
	e.parent = nil
}

func removeElement(list []*Element, target *Element) []*Element {
	for i, el := range list {
		if el == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
