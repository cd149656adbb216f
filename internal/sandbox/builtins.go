package sandbox

import (
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// buildPredeclared assembles the global names visible to a pipeline
// script: the pipeline.* construction helpers (always real), and
// log.*/input.*/process.*/container.* (real in ExecutionMode, inert
// stand-ins in MetadataMode). Starlark resolves every free name in a
// file at load time, including names referenced only inside an
// as-yet-uncalled stage function body, so all of these must be present
// in both modes or a perfectly valid pipeline script would fail to load
// during metadata-only parsing (e.g. when listing or validating a
// pipeline that is never actually run).
func buildPredeclared(acc *accumulator, mode Mode, prims *Primitives) starlark.StringDict {
	var log LogSink
	var proc ProcessRunner
	var cont ContainerRunner
	var inputs map[string]interface{}

	if mode == ExecutionMode && prims != nil {
		log, proc, cont, inputs = prims.Log, prims.Process, prims.Container, prims.Inputs
	} else {
		log, proc, cont = inertLog{}, inertProcess{}, inertContainer{}
	}

	return starlark.StringDict{
		"pipeline":  pipelineModule(acc),
		"log":       logModule(log),
		"input":     inputModule(inputs),
		"process":   processModule(proc, log),
		"container": containerModule(cont),
	}
}

func pipelineModule(acc *accumulator) *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "pipeline",
		Members: starlark.StringDict{
			"define":  starlark.NewBuiltin("pipeline.define", builtinDefine(acc)),
			"input":   starlark.NewBuiltin("pipeline.input", builtinInput),
			"stage":   starlark.NewBuiltin("pipeline.stage", builtinStage),
			"tag":     starlark.NewBuiltin("pipeline.tag", builtinTag),
			"builder": starlark.NewBuiltin("pipeline.builder", builtinBuilder(acc)),
		},
	}
}

// builtinDefine implements pipeline.define(t): it requires a dict
// argument shaped like a full pipeline definition, records it as the
// script's produced definition, and returns it unchanged — mirroring
// the no-side-effect identity signature `define(t) -> t`. Capturing the
// table here is the mechanical substitute for the top-level `return`
// that a Lua chunk would use; the script is expected to either call
// this once at module scope, or end with `pipeline.builder()....build()`
// (which calls the same capture).
func builtinDefine(acc *accumulator) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var t *starlark.Dict
		if err := starlark.UnpackArgs("define", args, kwargs, "t", &t); err != nil {
			return nil, err
		}
		acc.capture(t)
		return t, nil
	}
}

// builtinInput implements pipeline.input(t): a light structural check on
// one input-schema entry, returned unchanged.
func builtinInput(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t *starlark.Dict
	if err := starlark.UnpackArgs("input", args, kwargs, "t", &t); err != nil {
		return nil, err
	}
	typ, _, err := t.Get(starlark.String("type"))
	if err != nil {
		return nil, err
	}
	if typ == nil {
		return nil, fmtErr("pipeline.input: missing required field %q", "type")
	}
	return t, nil
}

// builtinStage implements pipeline.stage(t): requires a "name" field,
// returned unchanged.
func builtinStage(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t *starlark.Dict
	if err := starlark.UnpackArgs("stage", args, kwargs, "t", &t); err != nil {
		return nil, err
	}
	name, _, err := t.Get(starlark.String("name"))
	if err != nil {
		return nil, err
	}
	if name == nil {
		return nil, fmtErr("pipeline.stage: missing required field %q", "name")
	}
	return t, nil
}

// builtinTag implements pipeline.tag(key, value) -> {"key": key, "value": value}.
func builtinTag(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, value starlark.Value
	if err := starlark.UnpackArgs("tag", args, kwargs, "key", &key, "value", &value); err != nil {
		return nil, err
	}
	d := starlark.NewDict(2)
	_ = d.SetKey(starlark.String("key"), key)
	_ = d.SetKey(starlark.String("value"), value)
	return d, nil
}

func builtinBuilder(acc *accumulator) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return newBuilder(acc), nil
	}
}

func logModule(sink LogSink) *starlarkstruct.Module {
	level := func(f func(string)) *starlark.Builtin {
		return starlark.NewBuiltin("log", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var msg string
			if err := starlark.UnpackArgs("log", args, kwargs, "message", &msg); err != nil {
				return nil, err
			}
			f(msg)
			return starlark.None, nil
		})
	}
	return &starlarkstruct.Module{
		Name: "log",
		Members: starlark.StringDict{
			"debug":   level(sink.Debug),
			"info":    level(sink.Info),
			"warning": level(sink.Warning),
			"error":   level(sink.Error),
		},
	}
}

func inputModule(values map[string]interface{}) *starlarkstruct.Module {
	get := starlark.NewBuiltin("input.get", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackArgs("get", args, kwargs, "name", &name, "default?", &def); err != nil {
			return nil, err
		}
		if v, ok := values[name]; ok {
			return toStarlark(v)
		}
		return def, nil
	})
	require := starlark.NewBuiltin("input.require", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs("require", args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		v, ok := values[name]
		if !ok {
			return nil, fmtErr("input.require: %q was not supplied", name)
		}
		return toStarlark(v)
	})
	has := starlark.NewBuiltin("input.has", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs("has", args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		_, ok := values[name]
		return starlark.Bool(ok), nil
	})
	all := starlark.NewBuiltin("input.all", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("all", args, kwargs); err != nil {
			return nil, err
		}
		d := starlark.NewDict(len(values))
		for name, v := range values {
			sv, err := toStarlark(v)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(name), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	})
	keys := starlark.NewBuiltin("input.keys", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("keys", args, kwargs); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		elems := make([]starlark.Value, len(names))
		for i, name := range names {
			elems[i] = starlark.String(name)
		}
		return starlark.NewList(elems), nil
	})
	return &starlarkstruct.Module{
		Name:    "input",
		Members: starlark.StringDict{"get": get, "require": require, "has": has, "all": all, "keys": keys},
	}
}

// processModule implements process.run(cmd, args=[], cwd=None,
// capture_stdout=False, capture_stderr=False, stdout_level="info",
// stderr_level="error"): stdout/stderr are logged through sink at the
// given level unless captured, matching the captured-vs-logged default
// this is grounded on.
func processModule(runner ProcessRunner, sink LogSink) *starlarkstruct.Module {
	run := starlark.NewBuiltin("process.run", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var cmd string
		var argList *starlark.List
		var cwd string
		captureStdout := false
		captureStderr := false
		stdoutLevel := "info"
		stderrLevel := "error"
		if err := starlark.UnpackArgs("run", args, kwargs,
			"cmd", &cmd, "args?", &argList, "cwd?", &cwd,
			"capture_stdout?", &captureStdout, "capture_stderr?", &captureStderr,
			"stdout_level?", &stdoutLevel, "stderr_level?", &stderrLevel); err != nil {
			return nil, err
		}
		var argv []string
		if argList != nil {
			var err error
			argv, err = toStringSlice(argList)
			if err != nil {
				return nil, err
			}
		}
		res, err := runner.Run(ProcessOptions{Cmd: cmd, Args: argv, Cwd: cwd})
		if err != nil {
			return nil, err
		}

		if !captureStdout {
			logAtLevel(sink, stdoutLevel, res.Stdout)
		}
		if !captureStderr {
			logAtLevel(sink, stderrLevel, res.Stderr)
		}

		d := starlark.NewDict(3)
		_ = d.SetKey(starlark.String("exit_code"), starlark.MakeInt(res.ExitCode))
		if captureStdout {
			_ = d.SetKey(starlark.String("stdout"), starlark.String(res.Stdout))
		}
		if captureStderr {
			_ = d.SetKey(starlark.String("stderr"), starlark.String(res.Stderr))
		}
		return d, nil
	})
	return &starlarkstruct.Module{Name: "process", Members: starlark.StringDict{"run": run}}
}

func logAtLevel(sink LogSink, level, output string) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return
	}
	switch strings.ToLower(level) {
	case "debug":
		sink.Debug(trimmed)
	case "warning", "warn":
		sink.Warning(trimmed)
	case "error":
		sink.Error(trimmed)
	default:
		sink.Info(trimmed)
	}
}

func containerModule(runner ContainerRunner) *starlarkstruct.Module {
	run := starlark.NewBuiltin("container.run", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var image string
		var fn starlark.Callable
		if err := starlark.UnpackArgs("run", args, kwargs, "image", &image, "fn", &fn); err != nil {
			return nil, err
		}
		if err := runner.Push(image); err != nil {
			return nil, err
		}
		defer runner.Pop()
		return starlark.Call(thread, fn, nil, nil)
	})
	return &starlarkstruct.Module{Name: "container", Members: starlark.StringDict{"run": run}}
}

func toStringSlice(l *starlark.List) ([]string, error) {
	out := make([]string, 0, l.Len())
	iter := l.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, fmtErr("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// toStarlark converts a native Go value (as produced by the parameter
// validator) into the Starlark value a script observes via input.get/require.
func toStarlark(v interface{}) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case float32:
		return starlark.Float(x), nil
	default:
		return nil, fmtErr("input value of type %T has no Starlark representation", v)
	}
}
