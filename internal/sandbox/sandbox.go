// Package sandbox is the pipeline sandbox evaluator (C1): it loads a
// pipeline definition in a restricted Starlark interpreter, exposes the
// `pipeline` construction helpers, and extracts structural metadata plus
// (in execution mode) per-stage callable bodies.
//
// Starlark is the embeddable scripting engine chosen for this system: it
// is a restrictable, embeddable, table-valued language with first-class
// function values the host can store and re-invoke, and unlike a
// general-purpose embedded language it ships with no file, process,
// network, or module-load builtins to begin with — the sandbox only has
// to avoid adding any back in (this evaluator never registers `load()`).
package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/SolracHQ/rivet/internal/domain"
)

// Mode selects between the two use-modes the pipeline definition model
// requires.
type Mode int

const (
	// MetadataMode evaluates the script to produce a definition table and
	// extracts declared name, description, input schema, runner tags,
	// and stage names/images. No user-defined callables are invoked.
	MetadataMode Mode = iota
	// ExecutionMode performs the same evaluation, additionally retaining
	// stage script callables and stage condition callables for later
	// invocation by a job worker.
	ExecutionMode
)

// Parse evaluates source under the given mode and returns the extracted
// pipeline definition.
//
// In ExecutionMode, prims must be non-nil and supplies the live
// log/input/process/container primitives the stage callables will invoke
// when the worker later calls them. In MetadataMode, prims is ignored;
// inert stand-ins are installed so that scripts referencing these names
// inside (uncalled) stage bodies still compile.
func Parse(filename, source string, mode Mode, prims *Primitives) (*domain.Definition, error) {
	thread := &starlark.Thread{Name: filename}

	acc := &accumulator{}
	predeclared := buildPredeclared(acc, mode, prims)

	if _, err := starlark.ExecFile(thread, filename, source, predeclared); err != nil {
		return nil, classifyExecError(err)
	}

	if acc.table == nil {
		return nil, domain.NewError(domain.KindMissingField, "script did not call pipeline.define(...) or builder.build()")
	}

	def, err := acc.toDefinition(thread, mode)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// classifyExecError maps a Starlark failure (syntax or runtime) onto the
// evaluator's error-kind taxonomy. Starlark itself does not distinguish
// "compile" from "eval" errors in its returned error type uniformly, so
// both surface as ScriptSyntax here; structural problems discovered
// after a successful exec (missing name/stages) are classified more
// specifically in toDefinition.
func classifyExecError(err error) error {
	return domain.Wrap(domain.KindScriptSyntax, err, "failed to parse pipeline script")
}

// accumulator holds the single definition table captured by a call to
// pipeline.define(...) or builder.build(). Capturing it this way, rather
// than via a top-level `return` (which Starlark files do not have), is
// how this evaluator recovers the one value a Lua `return {...}` chunk
// would have produced directly.
type accumulator struct {
	table *starlark.Dict
}

func (a *accumulator) capture(t *starlark.Dict) *starlark.Dict {
	a.table = t
	return t
}

func fmtErr(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
