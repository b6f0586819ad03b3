package actions

import (
	"context"

	"magicband-controller/internal/core"
	"magicband-controller/internal/dispatch"
	"magicband-controller/internal/palette"
)

// MsgEnterCommand is shown when a manual send has nothing to send.
const MsgEnterCommand = "Enter command"

// Sender is the part of the dispatcher the controller needs.
type Sender interface {
	Send(ctx context.Context, body string) (string, error)
	Wake(ctx context.Context) error
	Pending() bool
}

// Controller is the panel's UI controller. It reads the shared panel inputs
// and hands the resulting bodies to the dispatcher.
type Controller struct {
	state    *core.PanelState
	sender   Sender
	notifier dispatch.Notifier
}

// NewController creates a controller over the given state and sender.
func NewController(state *core.PanelState, sender Sender, notifier dispatch.Notifier) *Controller {
	return &Controller{state: state, sender: sender, notifier: notifier}
}

// State returns the panel state the controller reads from.
func (c *Controller) State() *core.PanelState {
	return c.state
}

// Pending reports whether a command is in flight.
func (c *Controller) Pending() bool {
	return c.sender.Pending()
}

func vibration(in core.Inputs) Vibration {
	return Vibration{On: in.Vibrate, Pattern: in.VibPattern}
}

// The Send methods build their body from in rather than the shared state, so
// a caller can send a candidate set of inputs before committing it.

// SendPreset sends a solid preset color by name.
func (c *Controller) SendPreset(ctx context.Context, color string, in core.Inputs) (string, error) {
	return c.sender.Send(ctx, Preset(color, vibration(in)))
}

// SendDual sends the dual-zone inputs.
func (c *Controller) SendDual(ctx context.Context, in core.Inputs) (string, error) {
	return c.sender.Send(ctx, Dual(palette.Closest(in.DualInner), palette.Closest(in.DualOuter), vibration(in)))
}

// SendCrossfade sends the crossfade inputs.
func (c *Controller) SendCrossfade(ctx context.Context, in core.Inputs) (string, error) {
	return c.sender.Send(ctx, Crossfade(palette.Closest(in.CrossA), palette.Closest(in.CrossB), vibration(in)))
}

// SendRainbow sends the five rainbow inputs.
func (c *Controller) SendRainbow(ctx context.Context, in core.Inputs) (string, error) {
	var codes [5]palette.Code
	for i, hex := range in.Rainbow {
		codes[i] = palette.Closest(hex)
	}
	return c.sender.Send(ctx, Rainbow(codes, vibration(in)))
}

// SendCircle sends the circle animation.
func (c *Controller) SendCircle(ctx context.Context, in core.Inputs) (string, error) {
	return c.sender.Send(ctx, Circle(vibration(in)))
}

// SendPing wakes the device without a follow-up command.
func (c *Controller) SendPing(ctx context.Context) error {
	return c.sender.Wake(ctx)
}

// SendManual sends the manual text verbatim. Blank input never reaches the
// dispatcher.
func (c *Controller) SendManual(ctx context.Context, in core.Inputs) (string, error) {
	text, err := Manual(in.Manual)
	if err != nil {
		c.notifier.Notify(MsgEnterCommand, false)
		return "", err
	}
	return c.sender.Send(ctx, text)
}
