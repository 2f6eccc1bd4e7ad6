// Package starbim exposes bim models to checker code as Starlark values.
// The surface mirrors what checker authors already know from IFC tooling:
// model.by_type("IfcWall"), model.schema, and per-element attributes such as
// GlobalId, Name, is_a(), id() and psets(). All bindings are read-only; a
// checker cannot mutate the model it is handed.
package starbim

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/modelcheck/bimcheck/internal/bim"
)

// ModelValue wraps a bim.Model as a Starlark value.
type ModelValue struct {
	model *bim.Model
}

// NewModel wraps m for use as a predeclared Starlark binding.
func NewModel(m *bim.Model) *ModelValue {
	return &ModelValue{model: m}
}

// Model returns the wrapped model.
func (mv *ModelValue) Model() *bim.Model { return mv.model }

func (mv *ModelValue) String() string {
	return fmt.Sprintf("<model %s, %d entities>", mv.model.Schema(), len(mv.model.Elements()))
}

// Type implements starlark.Value.
func (mv *ModelValue) Type() string { return "bim_model" }

// Freeze implements starlark.Value. Models are read-only from Starlark, so
// there is nothing to do.
func (mv *ModelValue) Freeze() {}

// Truth implements starlark.Value. A model is always truthy, even when empty.
func (mv *ModelValue) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (mv *ModelValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", mv.Type())
}

// Attr implements starlark.HasAttrs.
func (mv *ModelValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "schema":
		return starlark.String(mv.model.Schema()), nil
	case "by_type":
		return starlark.NewBuiltin("by_type", mv.byType), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (mv *ModelValue) AttrNames() []string {
	return []string{"by_type", "schema"}
}

func (mv *ModelValue) byType(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var class string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &class); err != nil {
		return nil, err
	}
	elements := mv.model.ByType(class)
	items := make([]starlark.Value, len(elements))
	for i, e := range elements {
		items[i] = NewElement(e)
	}
	return starlark.NewList(items), nil
}

// ElementValue wraps a bim.Element as a Starlark value.
type ElementValue struct {
	element *bim.Element
}

// NewElement wraps e for use from Starlark.
func NewElement(e *bim.Element) *ElementValue {
	return &ElementValue{element: e}
}

// Element returns the wrapped element.
func (ev *ElementValue) Element() *bim.Element { return ev.element }

func (ev *ElementValue) String() string {
	return fmt.Sprintf("<%s #%d %q>", ev.element.Class(), ev.element.ID(), ev.element.Name())
}

// Type implements starlark.Value.
func (ev *ElementValue) Type() string { return "bim_element" }

// Freeze implements starlark.Value.
func (ev *ElementValue) Freeze() {}

// Truth implements starlark.Value.
func (ev *ElementValue) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (ev *ElementValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", ev.Type())
}

// Attr implements starlark.HasAttrs. IFC attribute names keep their native
// capitalization (GlobalId, Name, LongName) while methods are lower-case.
func (ev *ElementValue) Attr(name string) (starlark.Value, error) {
	e := ev.element
	switch name {
	case "GlobalId":
		return starlark.String(e.GlobalID()), nil
	case "Name":
		return stringOrNone(e.Name()), nil
	case "LongName":
		return stringPtrOrNone(e.LongName()), nil
	case "Elevation":
		return floatPtrOrNone(e.Elevation()), nil
	case "OverallWidth":
		return floatPtrOrNone(e.OverallWidth()), nil
	case "OverallHeight":
		return floatPtrOrNone(e.OverallHeight()), nil
	case "is_a":
		return starlark.NewBuiltin("is_a", ev.isA), nil
	case "id":
		return starlark.NewBuiltin("id", ev.id), nil
	case "psets":
		return starlark.NewBuiltin("psets", ev.psets), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (ev *ElementValue) AttrNames() []string {
	names := []string{
		"Elevation", "GlobalId", "LongName", "Name",
		"OverallHeight", "OverallWidth",
		"id", "is_a", "psets",
	}
	sort.Strings(names)
	return names
}

// isA returns the element class when called without arguments, or reports
// whether the element matches the given class (case-insensitively).
func (ev *ElementValue) isA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var class string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &class); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return starlark.String(ev.element.Class()), nil
	}
	return starlark.Bool(ev.element.Is(class)), nil
}

func (ev *ElementValue) id(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(ev.element.ID()), nil
}

func (ev *ElementValue) psets(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	sets := ev.element.Psets()
	out := starlark.NewDict(len(sets))
	for _, name := range ev.element.PsetNames() {
		props := sets[name]
		inner := starlark.NewDict(len(props))
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := propValue(props[k])
			if err != nil {
				return nil, fmt.Errorf("pset %s.%s: %w", name, k, err)
			}
			if err := inner.SetKey(starlark.String(k), v); err != nil {
				return nil, err
			}
		}
		if err := out.SetKey(starlark.String(name), inner); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func propValue(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case float64:
		return starlark.Float(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case nil:
		return starlark.None, nil
	default:
		return nil, fmt.Errorf("unsupported property type %T", v)
	}
}

func stringOrNone(s string) starlark.Value {
	if s == "" {
		return starlark.None
	}
	return starlark.String(s)
}

func stringPtrOrNone(s *string) starlark.Value {
	if s == nil {
		return starlark.None
	}
	return starlark.String(*s)
}

func floatPtrOrNone(f *float64) starlark.Value {
	if f == nil {
		return starlark.None
	}
	return starlark.Float(*f)
}
