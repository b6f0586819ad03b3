package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"magicband-controller/internal/core"
	"magicband-controller/internal/dispatch"
	"magicband-controller/internal/palette"
)

var (
	// ErrUnknownAction is returned by Run for an action nobody registered.
	ErrUnknownAction = errors.New("unknown action")
	// ErrMissingArg is returned when a required argument is absent.
	ErrMissingArg = errors.New("missing argument")
)

// Args are string arguments from an entry point. Any panel input they name
// is stored before the action runs, so every client sees the same values.
type Args map[string]string

// Handler runs one action.
type Handler func(ctx context.Context, args Args) (string, error)

// Registry maps action names to handlers.
type Registry struct {
	controller *Controller
	handlers   map[core.Action]Handler
	onInputs   func(core.Inputs)
}

// NewRegistry creates a registry with a handler for every panel action.
func NewRegistry(c *Controller) *Registry {
	r := &Registry{
		controller: c,
		handlers:   make(map[core.Action]Handler),
	}
	r.Register(core.ActionPreset, r.preset)
	r.Register(core.ActionDual, r.dual)
	r.Register(core.ActionCrossfade, r.crossfade)
	r.Register(core.ActionRainbow, r.rainbow)
	r.Register(core.ActionCircle, r.circle)
	r.Register(core.ActionPing, r.ping)
	r.Register(core.ActionManual, r.manual)
	return r
}

// Register installs or replaces the handler for an action.
func (r *Registry) Register(action core.Action, h Handler) {
	r.handlers[action] = h
}

// Actions returns the registered action names, sorted.
func (r *Registry) Actions() []core.Action {
	out := make([]core.Action, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OnInputs registers a callback fired after args changed the panel inputs.
func (r *Registry) OnInputs(fn func(core.Inputs)) {
	r.onInputs = fn
}

// Controller returns the controller handlers act on.
func (r *Registry) Controller() *Controller {
	return r.controller
}

// Run executes the handler registered for action.
func (r *Registry) Run(ctx context.Context, action core.Action, args Args) (string, error) {
	h, ok := r.handlers[action]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return h(ctx, args)
}

// Dispatch runs a command envelope.
func (r *Registry) Dispatch(ctx context.Context, cmd core.Command) (string, error) {
	return r.Run(ctx, cmd.Action, cmd.Args)
}

// ApplyInputs stores the panel inputs named in args. Nothing is stored when
// any color is malformed.
func (r *Registry) ApplyInputs(args Args) (core.Inputs, error) {
	in := r.controller.state.Clone()
	if _, err := mergeInputs(&in, args); err != nil {
		return r.controller.state.Clone(), err
	}
	return r.store(args), nil
}

// store commits already validated args to the shared state and reports the
// new inputs when something changed.
func (r *Registry) store(args Args) core.Inputs {
	var changed bool
	in := r.controller.state.Update(func(in *core.Inputs) {
		changed, _ = mergeInputs(in, args)
	})
	if changed && r.onInputs != nil {
		r.onInputs(in)
	}
	return in
}

var colorKeys = []string{"inner", "outer", "a", "b", "r1", "r2", "r3", "r4", "r5"}

func colorField(in *core.Inputs, key string) *string {
	switch key {
	case "inner":
		return &in.DualInner
	case "outer":
		return &in.DualOuter
	case "a":
		return &in.CrossA
	case "b":
		return &in.CrossB
	}
	i, _ := strconv.Atoi(strings.TrimPrefix(key, "r"))
	return &in.Rainbow[i-1]
}

// mergeInputs writes the input fields named in args into in. Every color is
// checked before anything is written.
func mergeInputs(in *core.Inputs, args Args) (bool, error) {
	for _, key := range colorKeys {
		if v, ok := args[key]; ok {
			if _, _, _, err := palette.Parse(v); err != nil {
				return false, fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	before := *in
	for _, key := range colorKeys {
		if v, ok := args[key]; ok {
			*colorField(in, key) = strings.ToLower(v)
		}
	}
	if v, ok := args["vibrate"]; ok {
		in.Vibrate = parseBool(v)
	}
	if v, ok := args["pattern"]; ok && v != "" {
		in.VibPattern = v
	}
	if v, ok := args["text"]; ok {
		in.Manual = v
	}
	return *in != before, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// send runs fn with the current inputs overlaid by args. The args become
// the panel's inputs only once the dispatcher has taken the command: a busy
// rejection or a blank manual leaves the state as it was.
func (r *Registry) send(args Args, fn func(core.Inputs) (string, error)) (string, error) {
	in := r.controller.state.Clone()
	if _, err := mergeInputs(&in, args); err != nil {
		return "", err
	}
	text, err := fn(in)
	if errors.Is(err, dispatch.ErrBusy) || errors.Is(err, ErrEmptyManual) {
		return text, err
	}
	r.store(args)
	return text, err
}

func (r *Registry) preset(ctx context.Context, args Args) (string, error) {
	color := strings.TrimSpace(args["color"])
	if color == "" {
		return "", fmt.Errorf("%w: color", ErrMissingArg)
	}
	return r.send(args, func(in core.Inputs) (string, error) {
		return r.controller.SendPreset(ctx, color, in)
	})
}

func (r *Registry) dual(ctx context.Context, args Args) (string, error) {
	return r.send(args, func(in core.Inputs) (string, error) {
		return r.controller.SendDual(ctx, in)
	})
}

func (r *Registry) crossfade(ctx context.Context, args Args) (string, error) {
	return r.send(args, func(in core.Inputs) (string, error) {
		return r.controller.SendCrossfade(ctx, in)
	})
}

func (r *Registry) rainbow(ctx context.Context, args Args) (string, error) {
	return r.send(args, func(in core.Inputs) (string, error) {
		return r.controller.SendRainbow(ctx, in)
	})
}

func (r *Registry) circle(ctx context.Context, args Args) (string, error) {
	return r.send(args, func(in core.Inputs) (string, error) {
		return r.controller.SendCircle(ctx, in)
	})
}

func (r *Registry) ping(ctx context.Context, _ Args) (string, error) {
	if err := r.controller.SendPing(ctx); err != nil {
		return "", err
	}
	return "", nil
}

func (r *Registry) manual(ctx context.Context, args Args) (string, error) {
	return r.send(args, func(in core.Inputs) (string, error) {
		return r.controller.SendManual(ctx, in)
	})
}
