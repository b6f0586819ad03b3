package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/core"
)

type call struct {
	action core.Action
	args   actions.Args
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	inputs []actions.Args
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, a core.Action, args actions.Args) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{a, args})
	return "OK", f.err
}

func (f *fakeRunner) ApplyInputs(args actions.Args) (core.Inputs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, args)
	return core.DefaultInputs(), nil
}

func writeScript(t *testing.T, dir, name, code string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
}

// waitScript waits until the engine reports the given running script.
func waitScript(t *testing.T, sub core.Subscriber, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Payload == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for script status %q", want)
		}
	}
}

func TestRunScriptCallsActions(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "show.lua", `
vibration(true, 3)
preset("red")
dual("#ff0000", "#0000ff")
rainbow("#ffcc00", "#ff0000", "#00ff00", "#0000ff", "#ff00ff")
circle()
ping()
local ok, err = manual("action=circle&vib=0")
if not ok then error(err) end
`)

	runner := &fakeRunner{}
	bus := core.NewEventBus()
	sub := bus.Subscribe(core.ScriptChangedEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEngine(ctx, runner, dir, bus)

	if err := e.Run("show"); err != nil {
		t.Fatal(err)
	}
	waitScript(t, sub, "show.lua")
	waitScript(t, sub, "")

	runner.mu.Lock()
	defer runner.mu.Unlock()
	want := []call{
		{core.ActionPreset, actions.Args{"color": "red"}},
		{core.ActionDual, actions.Args{"inner": "#ff0000", "outer": "#0000ff"}},
		{core.ActionRainbow, actions.Args{"r1": "#ffcc00", "r2": "#ff0000", "r3": "#00ff00", "r4": "#0000ff", "r5": "#ff00ff"}},
		{core.ActionCircle, actions.Args{}},
		{core.ActionPing, actions.Args{}},
		{core.ActionManual, actions.Args{"text": "action=circle&vib=0"}},
	}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Errorf("unexpected calls:\n got %v\nwant %v", runner.calls, want)
	}
	if len(runner.inputs) != 1 || runner.inputs[0]["vibrate"] != "true" || runner.inputs[0]["pattern"] != "3" {
		t.Errorf("unexpected vibration inputs %v", runner.inputs)
	}
}

func TestActionErrorsReachScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "err.lua", `
local ok, err = circle()
if ok or err ~= "request in progress" then error("unexpected result") end
preset("blue")
`)

	runner := &fakeRunner{err: errors.New("request in progress")}
	bus := core.NewEventBus()
	sub := bus.Subscribe(core.ScriptChangedEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEngine(ctx, runner, dir, bus)

	if err := e.Run("err.lua"); err != nil {
		t.Fatal(err)
	}
	waitScript(t, sub, "")

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 2 {
		t.Errorf("script should have carried on after the error check, got %v", runner.calls)
	}
}

func TestStopScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "loop.lua", `
while not should_stop() do
  circle()
  sleep(20)
end
`)

	bus := core.NewEventBus()
	sub := bus.Subscribe(core.ScriptChangedEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEngine(ctx, &fakeRunner{}, dir, bus)

	if err := e.Run("loop"); err != nil {
		t.Fatal(err)
	}
	waitScript(t, sub, "loop.lua")
	if got := e.Running(); got != "loop.lua" {
		t.Errorf("expected loop.lua running, got %q", got)
	}

	e.Stop()
	waitScript(t, sub, "")
	if got := e.Running(); got != "" {
		t.Errorf("expected no running script, got %q", got)
	}
}

func TestListAndCode(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.lua", "circle()")
	writeScript(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.lua"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEngine(ctx, &fakeRunner{}, dir, nil)

	list, err := e.List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(list, []string{"a.lua"}) {
		t.Errorf("unexpected list %v", list)
	}

	code, err := e.Code("a")
	if err != nil || code != "circle()" {
		t.Errorf("unexpected code %q, %v", code, err)
	}

	for _, name := range []string{"../a.lua", "x/../../a", ".lua", ""} {
		if _, err := e.Code(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Code(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
	if err := e.Run("missing"); err == nil {
		t.Error("expected an error for a missing script")
	}
}

func TestListMissingDir(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEngine(ctx, &fakeRunner{}, filepath.Join(t.TempDir(), "none"), nil)
	list, err := e.List()
	if err != nil || len(list) != 0 {
		t.Errorf("expected an empty list, got %v, %v", list, err)
	}
}
