package sandbox

import (
	"go.starlark.net/starlark"

	"github.com/SolracHQ/rivet/internal/domain"
)

// stageCallable adapts a Starlark function value, plus the thread it was
// loaded on, to domain.StageCallable. Storing the thread alongside the
// function (rather than just the *starlark.Function) is what lets the
// worker invoke a stage's condition or script long after Parse has
// returned: a Starlark function's lexical bindings are fixed by its
// Funcode and the Globals captured at load time, not by which thread
// later calls it, so re-using (or even replacing) the thread for the
// actual call is safe as long as the function came from this same
// ExecutionMode parse.
type stageCallable struct {
	thread *starlark.Thread
	fn     *starlark.Function
}

var _ domain.StageCallable = (*stageCallable)(nil)

func (c *stageCallable) Call(asCondition bool) (bool, error) {
	result, err := starlark.Call(c.thread, c.fn, nil, nil)
	if err != nil {
		kind := domain.KindStageScriptThrew
		if asCondition {
			kind = domain.KindStageConditionThrew
		}
		return false, domain.Wrap(kind, err, "stage callable failed")
	}
	if asCondition {
		return bool(result.Truth()), nil
	}
	return false, nil
}
