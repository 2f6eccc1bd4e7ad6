package bim

import "strings"

// Element is a single entity in a model. Fields that IFC leaves optional
// (long name, elevation, door dimensions) are pointers so checkers can tell
// "absent" from a zero value.
type Element struct {
	id       int
	globalID string
	class    string
	name     string

	longName      *string
	elevation     *float64
	overallWidth  *float64
	overallHeight *float64

	parent    *Element
	parts     []*Element
	contained []*Element

	psetNames []string
	psets     map[string]map[string]any
}

// ID returns the entity's numeric id, unique within its model.
func (e *Element) ID() int { return e.id }

// GlobalID returns the entity's 22-character compressed GlobalId.
func (e *Element) GlobalID() string { return e.globalID }

// Class returns the entity class, e.g. "IfcWall".
func (e *Element) Class() string { return e.class }

// Name returns the entity name. May be empty.
func (e *Element) Name() string { return e.name }

// SetName replaces the entity name.
func (e *Element) SetName(name string) { e.name = name }

// Is reports whether the entity is of the given class. Matching is
// case-insensitive, like Model.ByType.
func (e *Element) Is(class string) bool {
	return strings.EqualFold(e.class, class)
}

// LongName returns the entity's long name, or nil when unset.
func (e *Element) LongName() *string { return e.longName }

// SetLongName sets the entity's long name.
func (e *Element) SetLongName(v string) { e.longName = &v }

// Elevation returns the entity's elevation, or nil when unset. Only spatial
// storeys usually carry one.
func (e *Element) Elevation() *float64 { return e.elevation }

// SetElevation sets the entity's elevation.
func (e *Element) SetElevation(v float64) { e.elevation = &v }

// OverallWidth returns the overall width, or nil when unset.
func (e *Element) OverallWidth() *float64 { return e.overallWidth }

// SetOverallWidth sets the overall width.
func (e *Element) SetOverallWidth(v float64) { e.overallWidth = &v }

// OverallHeight returns the overall height, or nil when unset.
func (e *Element) OverallHeight() *float64 { return e.overallHeight }

// SetOverallHeight sets the overall height.
func (e *Element) SetOverallHeight(v float64) { e.overallHeight = &v }

// Parent returns the entity this one is aggregated into or contained in,
// or nil at the top of the hierarchy.
func (e *Element) Parent() *Element { return e.parent }

// Parts returns the entities aggregated under this one, in assignment order.
func (e *Element) Parts() []*Element {
	out := make([]*Element, len(e.parts))
	copy(out, e.parts)
	return out
}

// Contained returns the entities spatially contained in this one, in
// assignment order.
func (e *Element) Contained() []*Element {
	out := make([]*Element, len(e.contained))
	copy(out, e.contained)
	return out
}

// SetPset creates or merges a named property set. Existing properties with
// the same name are overwritten; the set's first-seen order is kept so
// repeated edits do not reshuffle Psets output. Values must be strings,
// bools, or float64s.
func (e *Element) SetPset(name string, props map[string]any) {
	if e.psets == nil {
		e.psets = make(map[string]map[string]any)
	}
	set, ok := e.psets[name]
	if !ok {
		set = make(map[string]any, len(props))
		e.psets[name] = set
		e.psetNames = append(e.psetNames, name)
	}
	for k, v := range props {
		set[k] = v
	}
}

// Pset returns a copy of the named property set.
func (e *Element) Pset(name string) (map[string]any, bool) {
	set, ok := e.psets[name]
	if !ok {
		return nil, false
	}
	return copyProps(set), true
}

// Psets returns copies of all property sets keyed by set name.
func (e *Element) Psets() map[string]map[string]any {
	out := make(map[string]map[string]any, len(e.psets))
	for name, set := range e.psets {
		out[name] = copyProps(set)
	}
	return out
}

// PsetNames returns property set names in first-assignment order.
func (e *Element) PsetNames() []string {
	out := make([]string, len(e.psetNames))
	copy(out, e.psetNames)
	return out
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
