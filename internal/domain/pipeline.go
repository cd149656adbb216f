package domain

import "time"

// Tag is an unordered key/value pair used both as a runner capability and
// as a pipeline's runner-tag requirement.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pipeline is the persisted, immutable-by-convention record: the script
// source is retained verbatim and re-parsed on every launch and lease so
// that the store never has to agree with the evaluator about structure.
type Pipeline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Script      string    `json:"script"`
	Tags        []Tag     `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the trimmed projection returned by the list endpoint: it
// omits the (possibly large) script source.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []Tag     `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Pipeline) Summary() Summary {
	return Summary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// InputType enumerates the scalar kinds a pipeline input may declare.
type InputType string

const (
	InputString InputType = "string"
	InputNumber InputType = "number"
	InputBool   InputType = "bool"
)

// InputSchema is one declared input of a pipeline definition.
type InputSchema struct {
	Type        InputType     `json:"type"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Default     interface{}   `json:"default,omitempty"`
	Options     []interface{} `json:"options,omitempty"`
}

// StageDef is one step of a pipeline definition, as produced by the
// sandbox evaluator.
//
// Script and Condition are opaque callables owned by the evaluator that
// produced this definition; they are nil in a metadata-mode definition
// and populated in execution mode. The Definition's evaluator must
// outlive any invocation of them.
type StageDef struct {
	Name      string
	Container string // empty if the stage does not override the default image
	Condition StageCallable
	Script    StageCallable
}

// StageCallable is implemented by the sandbox package; kept as an
// interface here so the domain package stays evaluator-agnostic.
type StageCallable interface {
	// Call invokes the underlying script function with no arguments.
	// For a condition callable, BoolResult reports the returned truth
	// value. Condition callables must be invoked with asCondition=true.
	Call(asCondition bool) (boolResult bool, err error)
}

// Definition is the transient structure produced by parsing a pipeline's
// script. It is never persisted; the script source is the source of
// truth and is re-parsed on every launch and lease.
type Definition struct {
	Name        string
	Description string
	Inputs      map[string]InputSchema
	// InputOrder preserves the declaration order of Inputs: Go maps have
	// none, and the validator must apply defaults/requiredness checks in
	// the order the script declared them.
	InputOrder       []string
	RunnerTags       []Tag
	Plugins          []string
	DefaultContainer string
	Stages           []StageDef
}
