package script

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dop251/goja"

	"github.com/scenariokit/harness/internal/domain/harness"
)

var (
	commentPattern = regexp.MustCompile(`//.*|/\*[\s\S]+?\*/`)
	defPattern     = regexp.MustCompile(`\b(getScenarioName|runScenario)\s*[:=(]|["'](getScenarioName|runScenario)["']\s*:|function\s+(getScenarioName|runScenario)\b`)
)

// looksLikeScenario reports whether src defines both getScenarioName and
// runScenario. Comments are ignored; the check is textual.
func looksLikeScenario(src string) bool {
	clean := commentPattern.ReplaceAllString(src, "")
	var name, run bool
	for _, m := range defPattern.FindAllStringSubmatch(clean, -1) {
		id := m[1]
		if id == "" {
			id = m[2]
		}
		if id == "" {
			id = m[3]
		}
		switch id {
		case "getScenarioName":
			name = true
		case "runScenario":
			run = true
		}
	}
	return name && run
}

// Script is a compiled JS file. A scenario script evaluates to an object with
// getScenarioName and runScenario; anything else runs top to bottom.
type Script struct {
	file     string
	program  *goja.Program
	scenario bool
	name     string
}

// Compile parses src. Scenario-shaped sources are evaluated once in a bare
// runtime to read their name; if that fails the script is treated as raw.
func Compile(file, src string) (*Script, error) {
	prog, err := goja.Compile(file, src, false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", file, err)
	}
	s := &Script{file: file, program: prog}
	if looksLikeScenario(src) {
		s.name, s.scenario = detectName(prog)
	}
	return s, nil
}

const detectTimeout = 2 * time.Second

func detectName(prog *goja.Program) (name string, ok bool) {
	vm := goja.New()
	timer := time.AfterFunc(detectTimeout, func() { vm.Interrupt("load timeout") })
	defer timer.Stop()

	defer func() {
		if recover() != nil {
			name, ok = "", false
		}
	}()

	res, err := vm.RunProgram(prog)
	if err != nil {
		return "", false
	}
	obj := scenarioObject(vm, res)
	if obj == nil {
		return "", false
	}
	getName, _ := goja.AssertFunction(obj.Get("getScenarioName"))
	v, err := getName(obj)
	if err != nil {
		return "", false
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return "", true
	}
	return v.String(), true
}

// scenarioObject finds the scenario object: the completion value of the
// program, or a global named scenario.
func scenarioObject(vm *goja.Runtime, completion goja.Value) *goja.Object {
	for _, v := range []goja.Value{completion, vm.Get("scenario")} {
		obj, ok := v.(*goja.Object)
		if !ok {
			continue
		}
		_, hasName := goja.AssertFunction(obj.Get("getScenarioName"))
		_, hasRun := goja.AssertFunction(obj.Get("runScenario"))
		if hasName && hasRun {
			return obj
		}
	}
	return nil
}

func (s *Script) Name() string { return s.name }

// IsScenario reports whether the script follows the scenario contract.
func (s *Script) IsScenario() bool { return s.scenario }

// Run executes the script in a fresh runtime bound to h. Cancelling ctx
// interrupts the runtime.
func (s *Script) Run(ctx context.Context, h *harness.Harness) error {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	b, err := newBinder(ctx, vm, h)
	if err != nil {
		return err
	}
	if err := b.install(); err != nil {
		return fmt.Errorf("bind %s: %w", s.file, err)
	}

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	res, err := vm.RunProgram(s.program)
	if err != nil {
		return s.wrap(ctx, err)
	}
	if !s.scenario {
		return nil
	}

	obj := scenarioObject(vm, res)
	if obj == nil {
		return fmt.Errorf("%s: scenario object with getScenarioName and runScenario not found", s.file)
	}
	run, _ := goja.AssertFunction(obj.Get("runScenario"))
	if _, err := run(obj); err != nil {
		return s.wrap(ctx, err)
	}
	return nil
}

func (s *Script) wrap(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", s.file, ctx.Err())
	}
	return fmt.Errorf("%s: %w", s.file, err)
}
