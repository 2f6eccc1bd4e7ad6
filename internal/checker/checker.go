// Package checker loads checker files as isolated Starlark units, discovers
// their check_ functions, and invokes them against a model value. Loading a
// file executes its top level once; nothing else runs until a function is
// invoked explicitly. Each file gets its own globals, so checkers cannot see
// or shadow one another.
package checker

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/modelcheck/bimcheck/internal/logger"
	pkgerrors "github.com/modelcheck/bimcheck/pkg/errors"
)

const (
	// Prefix marks a global binding as a check function.
	Prefix = "check_"
	// ParamModel is the required name of a check function's first parameter.
	ParamModel = "model"
	// DefaultMaxSteps bounds a single top-level execution or function call.
	// Generous for real checkers, small enough to stop runaway loops fast.
	DefaultMaxSteps = 10_000_000
)

// LoadOptions configures how units are loaded and invoked.
type LoadOptions struct {
	// Logger receives checker print output at debug level. May be nil.
	Logger *logger.Logger
	// MaxSteps overrides DefaultMaxSteps when non-zero.
	MaxSteps uint64
}

// Unit is one loaded checker file. A unit and its functions are confined to
// a single goroutine. Module globals are frozen once top-level execution
// finishes, so a check function cannot stash state between invocations; each
// call sees the module exactly as loading left it.
type Unit struct {
	// Path is the file the unit was loaded from.
	Path string
	// Name is the base name of Path.
	Name string

	globals   starlark.StringDict
	functions []*Function
	log       *logger.Logger
	maxSteps  uint64
}

// Function is one check_ binding discovered in a unit.
type Function struct {
	// Name is the global binding name, e.g. "check_wall_fire_rating".
	Name string
	// File is the path of the unit that defined the function.
	File string

	unit     *Unit
	callable starlark.Callable
	params   []string
}

// Load reads and executes path as an isolated Starlark unit. Execution
// failures of any kind come back as a LoadError carrying the position when
// one is known.
func Load(path string, opts LoadOptions) (*Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.NewLoadError(path, "", err)
	}

	u := &Unit{
		Path:     path,
		Name:     filepath.Base(path),
		log:      opts.Logger,
		maxSteps: opts.MaxSteps,
	}
	if u.maxSteps == 0 {
		u.maxSteps = DefaultMaxSteps
	}

	globals, err := starlark.ExecFileOptions(fileOptions(), u.newThread(), path, src, starlark.StringDict{})
	if err != nil {
		return nil, pkgerrors.NewLoadError(path, errorPosition(err), err)
	}
	u.globals = globals
	u.collectFunctions()
	return u, nil
}

// fileOptions is the dialect checker files are parsed with. It is the
// permissive end of Starlark: sets, while loops, top-level control flow,
// global reassignment and recursion are all allowed, which keeps the
// language close to the Python these checkers are usually drafted in.
func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

func (u *Unit) newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Name: u.Path,
		Print: func(_ *starlark.Thread, msg string) {
			u.log.WithFields(map[string]any{"file": u.Name}).Debug(msg)
		},
	}
	thread.SetMaxExecutionSteps(u.maxSteps)
	return thread
}

// collectFunctions walks the unit globals for check_ bindings. Keys come
// back sorted from the string dict, so function order is deterministic.
func (u *Unit) collectFunctions() {
	for _, name := range u.globals.Keys() {
		if !strings.HasPrefix(name, Prefix) {
			continue
		}
		callable, ok := u.globals[name].(starlark.Callable)
		if !ok {
			continue
		}
		fn := &Function{
			Name:     name,
			File:     u.Path,
			unit:     u,
			callable: callable,
		}
		if def, ok := callable.(*starlark.Function); ok {
			fn.params = make([]string, def.NumParams())
			for i := range fn.params {
				fn.params[i], _ = def.Param(i)
			}
		}
		u.functions = append(u.functions, fn)
	}
}

// Functions returns the unit's check functions in name order.
func (u *Unit) Functions() []*Function {
	out := make([]*Function, len(u.functions))
	copy(out, u.functions)
	return out
}

// Function returns the named check function, if the unit defines one.
func (u *Unit) Function(name string) (*Function, bool) {
	for _, fn := range u.functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// Params returns the function's parameter names in declaration order. It is
// empty for bindings whose parameters cannot be inspected, such as an
// aliased builtin.
func (f *Function) Params() []string {
	out := make([]string, len(f.params))
	copy(out, f.params)
	return out
}

// SignatureOK reports whether the function can receive a model: at least
// one parameter, and the first one named "model".
func (f *Function) SignatureOK() bool {
	return len(f.params) > 0 && f.params[0] == ParamModel
}

// Invoke calls the function with the given model value on a fresh thread.
// The error, if any, is the raw Starlark error; callers add fixture context.
func (f *Function) Invoke(model starlark.Value) (starlark.Value, error) {
	return starlark.Call(f.unit.newThread(), f.callable, starlark.Tuple{model}, nil)
}

// errorPosition extracts a file position from the error shapes the Starlark
// interpreter produces, or returns "" when there is none to give.
func errorPosition(err error) string {
	var evalErr *starlark.EvalError
	if stderrors.As(err, &evalErr) && len(evalErr.CallStack) > 0 {
		return evalErr.CallStack[len(evalErr.CallStack)-1].Pos.String()
	}
	var syntaxErr syntax.Error
	if stderrors.As(err, &syntaxErr) {
		return syntaxErr.Pos.String()
	}
	var resolveErrs resolve.ErrorList
	if stderrors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		return resolveErrs[0].Pos.String()
	}
	return ""
}
