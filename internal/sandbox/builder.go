package sandbox

import (
	"go.starlark.net/starlark"
)

// builderValue implements the fluent alternative to a single
// pipeline.define({...}) literal: pipeline.builder().name(...).input(...).
// stage(...).build(). Each chain method mutates the builder in place and
// returns it, except build(), which assembles the accumulated fields
// into the same table shape pipeline.define expects, captures it, and
// returns it.
type builderValue struct {
	acc *accumulator

	name        starlark.Value
	description starlark.Value
	inputs      *starlark.Dict
	runnerTags  *starlark.List
	plugins     *starlark.List
	container   starlark.Value
	stages      *starlark.List
}

func newBuilder(acc *accumulator) *builderValue {
	return &builderValue{
		acc:         acc,
		name:        starlark.None,
		description: starlark.None,
		inputs:      starlark.NewDict(0),
		runnerTags:  starlark.NewList(nil),
		plugins:     starlark.NewList(nil),
		container:   starlark.None,
		stages:      starlark.NewList(nil),
	}
}

var _ starlark.Value = (*builderValue)(nil)
var _ starlark.HasAttrs = (*builderValue)(nil)

func (b *builderValue) String() string        { return "pipeline.builder(...)" }
func (b *builderValue) Type() string           { return "pipeline.builder" }
func (b *builderValue) Freeze()                {}
func (b *builderValue) Truth() starlark.Bool   { return starlark.True }
func (b *builderValue) Hash() (uint32, error)  { return 0, fmtErr("pipeline.builder value is not hashable") }

func (b *builderValue) AttrNames() []string {
	return []string{"name", "description", "input", "tag", "plugin", "container", "stage", "build"}
}

func (b *builderValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.NewBuiltin("name", b.setName), nil
	case "description":
		return starlark.NewBuiltin("description", b.setDescription), nil
	case "input":
		return starlark.NewBuiltin("input", b.addInput), nil
	case "tag":
		return starlark.NewBuiltin("tag", b.addTag), nil
	case "plugin":
		return starlark.NewBuiltin("plugin", b.addPlugin), nil
	case "container":
		return starlark.NewBuiltin("container", b.setContainer), nil
	case "stage":
		return starlark.NewBuiltin("stage", b.addStage), nil
	case "build":
		return starlark.NewBuiltin("build", b.build), nil
	default:
		return nil, nil
	}
}

func (b *builderValue) setName(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.String
	if err := starlark.UnpackArgs("name", args, kwargs, "name", &v); err != nil {
		return nil, err
	}
	b.name = v
	return b, nil
}

func (b *builderValue) setDescription(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.String
	if err := starlark.UnpackArgs("description", args, kwargs, "description", &v); err != nil {
		return nil, err
	}
	b.description = v
	return b, nil
}

func (b *builderValue) addInput(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var def *starlark.Dict
	if err := starlark.UnpackArgs("input", args, kwargs, "name", &name, "schema", &def); err != nil {
		return nil, err
	}
	if err := b.inputs.SetKey(starlark.String(name), def); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *builderValue) addTag(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, value starlark.Value
	if err := starlark.UnpackArgs("tag", args, kwargs, "key", &key, "value", &value); err != nil {
		return nil, err
	}
	d := starlark.NewDict(2)
	_ = d.SetKey(starlark.String("key"), key)
	_ = d.SetKey(starlark.String("value"), value)
	if err := b.runnerTags.Append(d); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *builderValue) addPlugin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name starlark.String
	if err := starlark.UnpackArgs("plugin", args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	if err := b.plugins.Append(name); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *builderValue) setContainer(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.String
	if err := starlark.UnpackArgs("container", args, kwargs, "image", &v); err != nil {
		return nil, err
	}
	b.container = v
	return b, nil
}

func (b *builderValue) addStage(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var stage *starlark.Dict
	if err := starlark.UnpackArgs("stage", args, kwargs, "stage", &stage); err != nil {
		return nil, err
	}
	if err := b.stages.Append(stage); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *builderValue) build(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs("build", args, kwargs); err != nil {
		return nil, err
	}
	t := starlark.NewDict(7)
	_ = t.SetKey(starlark.String("name"), b.name)
	_ = t.SetKey(starlark.String("description"), b.description)
	_ = t.SetKey(starlark.String("inputs"), b.inputs)
	_ = t.SetKey(starlark.String("runner_tags"), b.runnerTags)
	_ = t.SetKey(starlark.String("plugins"), b.plugins)
	_ = t.SetKey(starlark.String("container"), b.container)
	_ = t.SetKey(starlark.String("stages"), b.stages)
	b.acc.capture(t)
	return t, nil
}
