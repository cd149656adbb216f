package sandbox

import (
	"math/big"

	"go.starlark.net/starlark"

	"github.com/SolracHQ/rivet/internal/domain"
)

// toDefinition walks the dict captured by pipeline.define(...) or
// builder.build() and converts it into a domain.Definition. In
// ExecutionMode, stage "condition" and "script" function values are
// wrapped as stageCallables bound to thread; in MetadataMode they are
// left nil (the worker never invokes stages from a metadata-mode
// definition).
func (a *accumulator) toDefinition(thread *starlark.Thread, mode Mode) (*domain.Definition, error) {
	t := a.table

	name, err := reqString(t, "name")
	if err != nil {
		return nil, err
	}
	description, _ := optString(t, "description")
	defaultContainer, _ := optString(t, "container")

	inputs, order, err := extractInputs(t)
	if err != nil {
		return nil, err
	}

	runnerTags, err := extractTags(t, "runner_tags")
	if err != nil {
		return nil, err
	}

	plugins, err := extractStringList(t, "plugins")
	if err != nil {
		return nil, err
	}

	stages, err := extractStages(t, thread, mode)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, domain.NewError(domain.KindEmptyStages, "pipeline %q declares no stages", name)
	}

	return &domain.Definition{
		Name:             name,
		Description:      description,
		Inputs:           inputs,
		InputOrder:       order,
		RunnerTags:       runnerTags,
		Plugins:          plugins,
		DefaultContainer: defaultContainer,
		Stages:           stages,
	}, nil
}

func reqString(t *starlark.Dict, key string) (string, error) {
	v, _, err := t.Get(starlark.String(key))
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", domain.NewError(domain.KindMissingField, "pipeline definition is missing required field %q", key)
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", domain.NewError(domain.KindBadFieldType, "field %q must be a string, got %s", key, v.Type())
	}
	return s, nil
}

func optString(t *starlark.Dict, key string) (string, error) {
	v, found, err := t.Get(starlark.String(key))
	if err != nil || !found || v == nil || v == starlark.None {
		return "", nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", domain.NewError(domain.KindBadFieldType, "field %q must be a string, got %s", key, v.Type())
	}
	return s, nil
}

func extractInputs(t *starlark.Dict) (map[string]domain.InputSchema, []string, error) {
	out := map[string]domain.InputSchema{}
	var order []string

	v, found, err := t.Get(starlark.String("inputs"))
	if err != nil || !found || v == nil || v == starlark.None {
		return out, order, nil
	}
	inputsDict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, nil, domain.NewError(domain.KindBadFieldType, "field %q must be a dict, got %s", "inputs", v.Type())
	}

	for _, key := range inputsDict.Keys() {
		name, ok := starlark.AsString(key)
		if !ok {
			return nil, nil, domain.NewError(domain.KindBadFieldType, "input keys must be strings")
		}
		entryVal, _, _ := inputsDict.Get(key)
		entry, ok := entryVal.(*starlark.Dict)
		if !ok {
			return nil, nil, domain.NewError(domain.KindBadFieldType, "input %q definition must be a dict", name)
		}
		schema, err := toInputSchema(name, entry)
		if err != nil {
			return nil, nil, err
		}
		out[name] = schema
		order = append(order, name)
	}
	return out, order, nil
}

func toInputSchema(name string, entry *starlark.Dict) (domain.InputSchema, error) {
	typeStr, err := reqString(entry, "type")
	if err != nil {
		return domain.InputSchema{}, domain.Wrap(domain.KindMissingField, err, "input %q", name)
	}
	var typ domain.InputType
	switch typeStr {
	case string(domain.InputString), string(domain.InputNumber), string(domain.InputBool):
		typ = domain.InputType(typeStr)
	default:
		return domain.InputSchema{}, domain.NewError(domain.KindUnknownInputType, "input %q: unknown type %q", name, typeStr)
	}

	description, _ := optString(entry, "description")

	required := false
	if v, found, _ := entry.Get(starlark.String("required")); found && v != nil {
		if b, ok := v.(starlark.Bool); ok {
			required = bool(b)
		}
	}

	var def interface{}
	if v, found, _ := entry.Get(starlark.String("default")); found && v != nil && v != starlark.None {
		converted, err := fromStarlark(v)
		if err != nil {
			return domain.InputSchema{}, domain.Wrap(domain.KindBadFieldType, err, "input %q default", name)
		}
		def = converted
	}

	var options []interface{}
	if v, found, _ := entry.Get(starlark.String("options")); found && v != nil && v != starlark.None {
		list, ok := v.(*starlark.List)
		if !ok {
			return domain.InputSchema{}, domain.NewError(domain.KindBadFieldType, "input %q options must be a list", name)
		}
		iter := list.Iterate()
		defer iter.Done()
		var item starlark.Value
		for iter.Next(&item) {
			converted, err := fromStarlark(item)
			if err != nil {
				return domain.InputSchema{}, domain.Wrap(domain.KindBadFieldType, err, "input %q options", name)
			}
			options = append(options, converted)
		}
	}

	return domain.InputSchema{
		Type:        typ,
		Description: description,
		Required:    required,
		Default:     def,
		Options:     options,
	}, nil
}

func extractTags(t *starlark.Dict, key string) ([]domain.Tag, error) {
	v, found, err := t.Get(starlark.String(key))
	if err != nil || !found || v == nil || v == starlark.None {
		return nil, nil
	}
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, domain.NewError(domain.KindBadFieldType, "field %q must be a list", key)
	}
	var out []domain.Tag
	iter := list.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		d, ok := item.(*starlark.Dict)
		if !ok {
			return nil, domain.NewError(domain.KindBadFieldType, "%q entries must be tag dicts", key)
		}
		k, err := reqString(d, "key")
		if err != nil {
			return nil, err
		}
		val, err := reqString(d, "value")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Tag{Key: k, Value: val})
	}
	return out, nil
}

func extractStringList(t *starlark.Dict, key string) ([]string, error) {
	v, found, err := t.Get(starlark.String(key))
	if err != nil || !found || v == nil || v == starlark.None {
		return nil, nil
	}
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, domain.NewError(domain.KindBadFieldType, "field %q must be a list", key)
	}
	var out []string
	iter := list.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, domain.NewError(domain.KindBadFieldType, "%q entries must be strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func extractStages(t *starlark.Dict, thread *starlark.Thread, mode Mode) ([]domain.StageDef, error) {
	v, found, err := t.Get(starlark.String("stages"))
	if err != nil || !found || v == nil || v == starlark.None {
		return nil, nil
	}
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, domain.NewError(domain.KindBadFieldType, "field %q must be a list", "stages")
	}

	var out []domain.StageDef
	iter := list.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		d, ok := item.(*starlark.Dict)
		if !ok {
			return nil, domain.NewError(domain.KindBadFieldType, "stage entries must be dicts")
		}
		stage, err := toStageDef(d, thread, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, stage)
	}
	return out, nil
}

func toStageDef(d *starlark.Dict, thread *starlark.Thread, mode Mode) (domain.StageDef, error) {
	name, err := reqString(d, "name")
	if err != nil {
		return domain.StageDef{}, err
	}
	container, err := optString(d, "container")
	if err != nil {
		return domain.StageDef{}, err
	}
	if !hasField(d, "script") {
		return domain.StageDef{}, domain.NewError(domain.KindMissingField, "stage %q is missing required field %q", name, "script")
	}

	stage := domain.StageDef{Name: name, Container: container}

	if mode != ExecutionMode {
		return stage, nil
	}

	if fn, err := stageFuncField(d, "condition"); err != nil {
		return domain.StageDef{}, err
	} else if fn != nil {
		stage.Condition = &stageCallable{thread: thread, fn: fn}
	}
	fn, err := stageFuncField(d, "script")
	if err != nil {
		return domain.StageDef{}, err
	}
	if fn != nil {
		stage.Script = &stageCallable{thread: thread, fn: fn}
	}
	return stage, nil
}

// hasField reports whether d declares key with a non-None value,
// regardless of mode — used to reject a stage missing a required
// callable field at parse time rather than let it surface as a silent
// no-op when the worker walks it.
func hasField(d *starlark.Dict, key string) bool {
	v, found, err := d.Get(starlark.String(key))
	return err == nil && found && v != nil && v != starlark.None
}

func stageFuncField(d *starlark.Dict, key string) (*starlark.Function, error) {
	v, found, err := d.Get(starlark.String(key))
	if err != nil || !found || v == nil || v == starlark.None {
		return nil, nil
	}
	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, domain.NewError(domain.KindBadFieldType, "stage field %q must be a function", key)
	}
	return fn, nil
}

// fromStarlark converts a Starlark scalar into the native Go
// representation used across the validator and store (the same shape
// JSON parameters arrive in over the HTTP API).
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch x := v.(type) {
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return float64(i), nil
		}
		fv, _ := new(big.Float).SetInt(x.BigInt()).Float64()
		return fv, nil
	case starlark.Float:
		return float64(x), nil
	default:
		return nil, fmtErr("value of type %s has no native representation", v.Type())
	}
}
