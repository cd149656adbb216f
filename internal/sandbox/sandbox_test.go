package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/domain"
)

const simpleScript = `
def run_build():
    process.run(cmd = "go", args = ["build", "./..."])

def should_lint():
    return input.get("run_lint", False)

def run_lint():
    log.info("linting")

pipeline.define({
    "name": "build-and-test",
    "description": "builds then tests",
    "container": "golang:1.22",
    "inputs": {
        "version": pipeline.input({"type": "string", "required": True}),
        "run_lint": pipeline.input({"type": "bool", "default": False}),
    },
    "runner_tags": [pipeline.tag("arch", "amd64")],
    "plugins": ["cache"],
    "stages": [
        pipeline.stage({
            "name": "build",
            "script": run_build,
        }),
        pipeline.stage({
            "name": "lint",
            "condition": should_lint,
            "script": run_lint,
        }),
    ],
})
`

const builderScript = `
def only_stage():
    log.info("hi")

b = pipeline.builder()
b.name("chained")
b.description("built via the fluent form")
b.input("env", {"type": "string", "default": "staging"})
b.stage(pipeline.stage({"name": "only-stage", "script": only_stage}))
b.build()
`

func TestParseMetadataMode(t *testing.T) {
	def, err := Parse("p.star", simpleScript, MetadataMode, nil)
	require.NoError(t, err)
	require.Equal(t, "build-and-test", def.Name)
	require.Equal(t, "golang:1.22", def.DefaultContainer)
	require.Equal(t, []string{"version", "run_lint"}, def.InputOrder)
	require.True(t, def.Inputs["version"].Required)
	require.Equal(t, false, def.Inputs["run_lint"].Default)
	require.Equal(t, []domain.Tag{{Key: "arch", Value: "amd64"}}, def.RunnerTags)
	require.Equal(t, []string{"cache"}, def.Plugins)
	require.Len(t, def.Stages, 2)
	require.Equal(t, "build", def.Stages[0].Name)
	require.Nil(t, def.Stages[0].Script, "metadata mode must not retain callables")
}

func TestParseBuilderForm(t *testing.T) {
	def, err := Parse("b.star", builderScript, MetadataMode, nil)
	require.NoError(t, err)
	require.Equal(t, "chained", def.Name)
	require.Equal(t, []string{"env"}, def.InputOrder)
	require.Len(t, def.Stages, 1)
}

func TestParseEmptyStagesRejected(t *testing.T) {
	_, err := Parse("e.star", `pipeline.define({"name": "empty", "stages": []})`, MetadataMode, nil)
	require.Error(t, err)
	require.Equal(t, domain.KindEmptyStages, domain.KindOf(err))
}

func TestParseMissingNameRejected(t *testing.T) {
	_, err := Parse("e.star", "def noop():\n    return None\npipeline.define({\"stages\": [pipeline.stage({\"name\": \"a\", \"script\": noop})]})", MetadataMode, nil)
	require.Error(t, err)
	require.Equal(t, domain.KindMissingField, domain.KindOf(err))
}

func TestParseSyntaxErrorRejected(t *testing.T) {
	_, err := Parse("bad.star", `this is not starlark {{{`, MetadataMode, nil)
	require.Error(t, err)
	require.Equal(t, domain.KindScriptSyntax, domain.KindOf(err))
}

type fakeLog struct{ lines []string }

func (f *fakeLog) Debug(m string)   { f.lines = append(f.lines, "DEBUG:"+m) }
func (f *fakeLog) Info(m string)    { f.lines = append(f.lines, "INFO:"+m) }
func (f *fakeLog) Warning(m string) { f.lines = append(f.lines, "WARN:"+m) }
func (f *fakeLog) Error(m string)   { f.lines = append(f.lines, "ERROR:"+m) }

type fakeProcess struct{ ran []ProcessOptions }

func (f *fakeProcess) Run(opts ProcessOptions) (ProcessResult, error) {
	f.ran = append(f.ran, opts)
	return ProcessResult{ExitCode: 0, Stdout: "ok"}, nil
}

type fakeContainer struct{ pushed []string }

func (f *fakeContainer) Push(image string) error { f.pushed = append(f.pushed, image); return nil }
func (f *fakeContainer) Pop() error               { return nil }

func TestParseExecutionModeInvokesStageCallables(t *testing.T) {
	log := &fakeLog{}
	proc := &fakeProcess{}
	cont := &fakeContainer{}

	def, err := Parse("p.star", simpleScript, ExecutionMode, &Primitives{
		Log:       log,
		Process:   proc,
		Container: cont,
		Inputs:    map[string]interface{}{"version": "1.2.3", "run_lint": true},
	})
	require.NoError(t, err)
	require.Len(t, def.Stages, 2)

	build := def.Stages[0]
	require.NotNil(t, build.Script)
	_, err = build.Script.Call(false)
	require.NoError(t, err)
	require.Len(t, proc.ran, 1)
	require.Equal(t, "go", proc.ran[0].Cmd)
	require.Equal(t, []string{"build", "./..."}, proc.ran[0].Args)

	lint := def.Stages[1]
	require.NotNil(t, lint.Condition)
	should, err := lint.Condition.Call(true)
	require.NoError(t, err)
	require.True(t, should)

	_, err = lint.Script.Call(false)
	require.NoError(t, err)
	require.Contains(t, log.lines, "INFO:linting")
}
