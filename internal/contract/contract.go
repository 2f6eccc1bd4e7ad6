// Package contract runs the full validation sweep: discover checker files,
// load each one in isolation, introspect and invoke its check functions
// against the canonical fixtures, and validate every returned entry against
// the result schema. All findings are aggregated into a single report; a
// misbehaving checker can never stop the sweep.
package contract

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/modelcheck/bimcheck/internal/checker"
	"github.com/modelcheck/bimcheck/internal/discovery"
	"github.com/modelcheck/bimcheck/internal/fixture"
	"github.com/modelcheck/bimcheck/internal/logger"
	"github.com/modelcheck/bimcheck/internal/report"
	"github.com/modelcheck/bimcheck/internal/schema"
	"github.com/modelcheck/bimcheck/internal/starbim"
	pkgerrors "github.com/modelcheck/bimcheck/pkg/errors"
)

// Property ids, in report order. They are stable identifiers: history rows
// and downstream tooling key on them.
const (
	PropFileExists     = "checker_file_exists"
	PropFileNaming     = "checker_file_naming"
	PropModuleLoad     = "module_load"
	PropFunctionExists = "check_function_exists"
	PropSignature      = "check_function_signature"
	PropHandlesEmpty   = "handles_empty_model"
	PropInvocation     = "invocation_succeeds"
	PropReturnsList    = "returns_list"
	PropReturnsDicts   = "returns_dicts"
	PropRequiredKeys   = "required_keys_present"
	PropStatusValid    = "check_status_valid"
	PropElementID      = "element_id_type"
	PropStringFields   = "string_fields_are_strings"
	PropNullable       = "nullable_fields"
	PropProduces       = "produces_results"
)

var properties = []struct {
	id    string
	title string
}{
	{PropFileExists, "checker files exist"},
	{PropFileNaming, "file naming convention"},
	{PropModuleLoad, "modules load cleanly"},
	{PropFunctionExists, "check functions exist"},
	{PropSignature, "check function signatures"},
	{PropHandlesEmpty, "handles empty model"},
	{PropInvocation, "invocation succeeds"},
	{PropReturnsList, "returns a list"},
	{PropReturnsDicts, "list entries are dicts"},
	{PropRequiredKeys, "required keys present"},
	{PropStatusValid, "check_status vocabulary"},
	{PropElementID, "element_id type"},
	{PropStringFields, "string fields are strings"},
	{PropNullable, "nullable fields"},
	{PropProduces, "produces results"},
}

// downstreamOfDiscovery lists the properties that cannot be evaluated when
// no checker files exist.
var downstreamOfDiscovery = []string{
	PropModuleLoad, PropFunctionExists, PropSignature,
	PropHandlesEmpty, PropInvocation, PropReturnsList, PropReturnsDicts,
	PropRequiredKeys, PropStatusValid, PropElementID, PropStringFields,
	PropNullable, PropProduces,
}

// populatedProperties lists the properties evaluated against the populated
// fixtures only.
var populatedProperties = []string{
	PropInvocation, PropReturnsList, PropReturnsDicts,
	PropRequiredKeys, PropStatusValid, PropElementID, PropStringFields,
	PropNullable, PropProduces,
}

// Options configures a sweep.
type Options struct {
	// Discovery locates the checker files.
	Discovery discovery.Options
	// Fixtures selects which canonical models to invoke against.
	// Empty means all of them.
	Fixtures []fixture.ID
	// Loader configures unit loading and invocation.
	Loader checker.LoadOptions
	// Log may be nil.
	Log *logger.Logger
}

// Run executes the sweep. The returned error covers infrastructure problems
// only (unreadable directory, unknown fixture, cancellation); everything a
// checker does wrong is data in the report.
func Run(ctx context.Context, opts Options) (*report.Report, error) {
	log := opts.Log.WithComponent("contract")

	fixtures, err := normalizeFixtures(opts.Fixtures)
	if err != nil {
		return nil, err
	}

	disc, err := discovery.Discover(opts.Discovery)
	if err != nil {
		return nil, err
	}

	rep := report.New(opts.Discovery.Dir)
	rep.Files = disc.Files
	for _, id := range fixtures {
		rep.Fixtures = append(rep.Fixtures, string(id))
	}

	col := newCollector()
	skipped := map[string]string{}

	evaluateDiscovery(disc, opts.Discovery, col)

	if len(disc.Files) == 0 {
		for _, id := range downstreamOfDiscovery {
			skipped[id] = "no checker files found"
		}
		assemble(rep, col, skipped)
		log.Warn("no checker files found, downstream properties skipped")
		return rep, nil
	}

	units := loadUnits(disc.Files, opts.Loader, col, log)
	invocables := evaluateFunctions(units, col)

	if err := invokeSweep(ctx, invocables, fixtures, col, skipped, log); err != nil {
		return nil, err
	}

	assemble(rep, col, skipped)
	log.WithFields(map[string]any{
		"files":      len(disc.Files),
		"functions":  len(invocables),
		"violations": rep.Summary.Violations,
	}).Info("validation sweep complete")
	return rep, nil
}

func normalizeFixtures(ids []fixture.ID) ([]fixture.ID, error) {
	if len(ids) == 0 {
		return fixture.Order, nil
	}
	requested := map[fixture.ID]bool{}
	for _, id := range ids {
		if !fixture.Valid(id) {
			return nil, fmt.Errorf("unknown fixture %q (want empty, populated or with_properties)", id)
		}
		requested[id] = true
	}
	var out []fixture.ID
	for _, id := range fixture.Order {
		if requested[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func evaluateDiscovery(disc discovery.Result, opts discovery.Options, col *collector) {
	if len(disc.Files) == 0 {
		pattern := opts.Pattern
		if pattern == "" {
			pattern = discovery.DefaultPattern
		}
		msg := fmt.Sprintf("no %s files found in %s (the template does not count)", pattern, opts.Dir)
		if !disc.DirExists {
			msg = fmt.Sprintf("checkers directory %s does not exist", opts.Dir)
		}
		col.add(report.Violation{Property: PropFileExists, Message: msg})
	}

	for _, f := range disc.Misnamed {
		pattern := opts.Pattern
		if pattern == "" {
			pattern = discovery.DefaultPattern
		}
		col.add(report.Violation{
			Property: PropFileNaming,
			File:     f,
			Message:  fmt.Sprintf("does not follow the %s naming convention", pattern),
		})
	}
}

func loadUnits(files []string, loadOpts checker.LoadOptions, col *collector, log *logger.Logger) []*checker.Unit {
	var units []*checker.Unit
	for _, file := range files {
		unit, err := checker.Load(file, loadOpts)
		if err != nil {
			col.add(report.Violation{
				Property: PropModuleLoad,
				File:     file,
				Message:  loadFailureMessage(err),
			})
			log.WithFields(map[string]any{"file": file}).Error(err, "checker file failed to load")
			continue
		}
		log.WithFields(map[string]any{
			"file":      file,
			"functions": len(unit.Functions()),
		}).Debug("loaded checker file")
		units = append(units, unit)
	}
	return units
}

func loadFailureMessage(err error) string {
	var loadErr *pkgerrors.LoadError
	if stderrors.As(err, &loadErr) && loadErr.Err != nil {
		if loadErr.Position != "" {
			return fmt.Sprintf("%s (at %s)", loadErr.Err.Error(), loadErr.Position)
		}
		return loadErr.Err.Error()
	}
	return err.Error()
}

// evaluateFunctions records function-level findings and returns the
// functions eligible for invocation. A function with a bad signature is
// reported once and not invoked; its siblings still run.
func evaluateFunctions(units []*checker.Unit, col *collector) []*checker.Function {
	total := 0
	var invocables []*checker.Function
	for _, unit := range units {
		for _, fn := range unit.Functions() {
			total++
			if !fn.SignatureOK() {
				col.add(report.Violation{
					Property: PropSignature,
					File:     fn.File,
					Function: fn.Name,
					Message:  signatureMessage(fn),
				})
				continue
			}
			invocables = append(invocables, fn)
		}
	}
	if total == 0 {
		col.add(report.Violation{
			Property: PropFunctionExists,
			Message:  "no check_ functions found in any checker file (name them check_<something>)",
		})
	}
	return invocables
}

func signatureMessage(fn *checker.Function) string {
	params := fn.Params()
	if len(params) == 0 {
		return "must accept at least one parameter (the model)"
	}
	return fmt.Sprintf("first parameter must be %q, got %q", checker.ParamModel, params[0])
}

// invokeSweep runs every eligible function against the enabled fixtures and
// validates the returned values. Cancellation is honored between
// invocations, never mid-call.
func invokeSweep(ctx context.Context, invocables []*checker.Function, fixtures []fixture.ID, col *collector, skipped map[string]string, log *logger.Logger) error {
	hasEmpty := false
	var populated []fixture.ID
	for _, id := range fixtures {
		if id == fixture.Empty {
			hasEmpty = true
		} else {
			populated = append(populated, id)
		}
	}

	if hasEmpty {
		for _, fn := range invocables {
			if err := ctx.Err(); err != nil {
				return err
			}
			checkEmptyModel(fn, col, log)
		}
	} else {
		skipped[PropHandlesEmpty] = "empty fixture not enabled"
	}

	if len(populated) == 0 {
		for _, id := range populatedProperties {
			skipped[id] = "no populated fixture enabled"
		}
		return nil
	}

	produced := false
	for _, fn := range invocables {
		for _, id := range populated {
			if err := ctx.Err(); err != nil {
				return err
			}
			if checkPopulatedModel(fn, id, col, log) {
				produced = true
			}
		}
	}
	if !produced {
		col.add(report.Violation{
			Property: PropProduces,
			Message:  "no check function produced any results on the populated fixtures",
		})
	}
	return nil
}

func checkEmptyModel(fn *checker.Function, col *collector, log *logger.Logger) {
	model, err := fixture.Build(fixture.Empty)
	if err != nil {
		col.add(report.Violation{Property: PropHandlesEmpty, Message: err.Error()})
		return
	}
	value, err := fn.Invoke(starbim.NewModel(model))
	if err != nil {
		col.add(report.Violation{
			Property: PropHandlesEmpty,
			File:     fn.File,
			Function: fn.Name,
			Fixture:  string(fixture.Empty),
			Message:  fmt.Sprintf("raised an error on the empty model: %s", err.Error()),
		})
		ierr := pkgerrors.NewInvocationError(fn.Name, fn.File, string(fixture.Empty), err)
		log.Error(ierr, "checker raised on the empty model")
		return
	}
	if _, ok := value.(*starlark.List); !ok {
		col.add(report.Violation{
			Property: PropHandlesEmpty,
			File:     fn.File,
			Function: fn.Name,
			Fixture:  string(fixture.Empty),
			Message:  fmt.Sprintf("must return a list on the empty model, got %s", value.Type()),
		})
	}
}

// checkPopulatedModel invokes fn once against the named fixture, validates
// the returned value, and reports whether the invocation produced at least
// one entry.
func checkPopulatedModel(fn *checker.Function, id fixture.ID, col *collector, log *logger.Logger) bool {
	model, err := fixture.Build(id)
	if err != nil {
		col.add(report.Violation{Property: PropInvocation, Message: err.Error()})
		return false
	}

	value, err := fn.Invoke(starbim.NewModel(model))
	if err != nil {
		col.add(report.Violation{
			Property: PropInvocation,
			File:     fn.File,
			Function: fn.Name,
			Fixture:  string(id),
			Message:  fmt.Sprintf("raised an error: %s", err.Error()),
		})
		ierr := pkgerrors.NewInvocationError(fn.Name, fn.File, string(id), err)
		log.Error(ierr, "checker invocation failed")
		return false
	}

	list, ok := value.(*starlark.List)
	if !ok {
		col.add(report.Violation{
			Property: PropReturnsList,
			File:     fn.File,
			Function: fn.Name,
			Fixture:  string(id),
			Message:  fmt.Sprintf("must return a list, got %s", value.Type()),
		})
		return false
	}

	for i := 0; i < list.Len(); i++ {
		item := list.Index(i)
		idx := i
		dict, ok := item.(*starlark.Dict)
		if !ok {
			col.add(report.Violation{
				Property:   PropReturnsDicts,
				File:       fn.File,
				Function:   fn.Name,
				Fixture:    string(id),
				EntryIndex: &idx,
				Message:    fmt.Sprintf("list item [%d] is not a dict, got %s", i, item.Type()),
			})
			continue
		}
		recordSchemaIssues(fn, id, idx, schema.CheckDict(dict), col)
	}
	return list.Len() > 0
}

// recordSchemaIssues maps schema findings onto report properties. Missing
// keys are merged into a single violation naming the full set, the way the
// contract documentation presents them.
func recordSchemaIssues(fn *checker.Function, id fixture.ID, idx int, issues []schema.Issue, col *collector) {
	var missing []string
	for _, issue := range issues {
		var prop string
		switch issue.Kind {
		case schema.IssueMissingKey:
			missing = append(missing, issue.Field)
			continue
		case schema.IssueInvalidStatus:
			prop = PropStatusValid
		case schema.IssueElementIDType:
			prop = PropElementID
		case schema.IssueStringType:
			prop = PropStringFields
		case schema.IssueNullableType:
			prop = PropNullable
		default:
			continue
		}
		entry := idx
		col.add(report.Violation{
			Property:   prop,
			File:       fn.File,
			Function:   fn.Name,
			Fixture:    string(id),
			EntryIndex: &entry,
			Field:      issue.Field,
			Message:    issue.Message,
		})
	}
	if len(missing) > 0 {
		entry := idx
		col.add(report.Violation{
			Property:   PropRequiredKeys,
			File:       fn.File,
			Function:   fn.Name,
			Fixture:    string(id),
			EntryIndex: &entry,
			Message:    fmt.Sprintf("missing required keys: %s", strings.Join(missing, ", ")),
		})
	}
}

type collector struct {
	byProperty map[string][]report.Violation
}

func newCollector() *collector {
	return &collector{byProperty: map[string][]report.Violation{}}
}

func (c *collector) add(v report.Violation) {
	c.byProperty[v.Property] = append(c.byProperty[v.Property], v)
}

// assemble turns collected findings and skip reasons into the ordered
// property results and finalizes the report.
func assemble(rep *report.Report, col *collector, skipped map[string]string) {
	for _, p := range properties {
		res := report.PropertyResult{ID: p.id, Title: p.title}
		if reason, ok := skipped[p.id]; ok {
			res.Status = report.StatusSkip
			res.Reason = reason
		} else if violations := col.byProperty[p.id]; len(violations) > 0 {
			res.Status = report.StatusFail
			res.Violations = violations
		} else {
			res.Status = report.StatusPass
		}
		rep.Add(res)
	}
	rep.Finalize()
}
