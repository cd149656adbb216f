package domain

import "fmt"

// Kind classifies an Error so that a single place (the HTTP layer) can
// map it to a status code, instead of scattering status decisions across
// every handler.
type Kind string

const (
	// Definition errors: parse/validate time, create-pipeline and
	// launch-job. All map to 400.
	KindScriptSyntax          Kind = "ScriptSyntax"
	KindMissingField          Kind = "MissingField"
	KindBadFieldType          Kind = "BadFieldType"
	KindEmptyStages           Kind = "EmptyStages"
	KindUnknownInputType      Kind = "UnknownInputType"
	KindMissingRequiredInput  Kind = "MissingRequiredInput"
	KindBadInputType          Kind = "BadInputType"
	KindNotInOptions          Kind = "NotInOptions"

	// Lookup errors. Map to 404.
	KindPipelineNotFound Kind = "PipelineNotFound"
	KindJobNotFound      Kind = "JobNotFound"
	KindRunnerNotFound   Kind = "RunnerNotFound"

	// Lease errors. Map to 400; the runner worker silently ignores this
	// one kind.
	KindInvalidStateTransition Kind = "InvalidStateTransition"

	// Runtime errors: runner-side only, never sent to the orchestrator
	// as a distinct kind. Wrapped into a Failed JobResult message.
	KindContainerStartFailed Kind = "ContainerStartFailed"
	KindNoActiveContainer    Kind = "NoActiveContainer"
	KindCommandInvocationFailed Kind = "CommandInvocationFailed"
	KindStageConditionThrew  Kind = "StageConditionThrew"
	KindStageScriptThrew     Kind = "StageScriptThrew"
	KindEvaluatorCompileFailed Kind = "EvaluatorCompileFailed"

	// Store failures not otherwise classified. Maps to 500.
	KindInternal Kind = "Internal"
)

// Error is the structured error type threaded through the store, the
// validator, the evaluator, and the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// NewError builds a formatted *Error of the given kind.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an underlying error, preserving it
// for errors.Is/As.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and
// KindInternal otherwise.
func KindOf(err error) Kind {
	var de *Error
	if asError(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
