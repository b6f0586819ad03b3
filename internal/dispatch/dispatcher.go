// Package dispatch sends form-encoded commands to the band broadcaster,
// waking it first and letting only one command sequence run at a time.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultWakeDelay is how long the device gets to leave low-power mode
// between the probe and the real command.
const DefaultWakeDelay = 420 * time.Millisecond

// ErrBusy is returned when a sequence is already in flight.
var ErrBusy = errors.New("request in progress")

// Notification texts shown to the user.
const (
	MsgBusy       = "Request in progress..."
	MsgSent       = "Sent"
	MsgWakeSent   = "Wake sent"
	MsgWakeFailed = "Wake failed"
)

// Notifier surfaces dispatch feedback to whatever UI is attached.
type Notifier interface {
	Notify(message string, ok bool)
	SetControlsDisabled(disabled bool)
}

// Dispatcher runs command sequences behind a Gate.
type Dispatcher struct {
	transport Transport
	notifier  Notifier
	gate      *Gate
	wakeDelay time.Duration
}

// NewDispatcher creates a dispatcher. A nil gate gets a private one.
func NewDispatcher(t Transport, n Notifier, gate *Gate, wakeDelay time.Duration) *Dispatcher {
	if gate == nil {
		gate = &Gate{}
	}
	return &Dispatcher{
		transport: t,
		notifier:  n,
		gate:      gate,
		wakeDelay: wakeDelay,
	}
}

// Pending reports whether a sequence is in flight.
func (d *Dispatcher) Pending() bool {
	return d.gate.Pending()
}

// Send wakes the device, waits, then posts body. The busy case returns
// ErrBusy without touching the network. Every other failure is shown to the
// user and returned.
func (d *Dispatcher) Send(ctx context.Context, body string) (string, error) {
	if !d.acquire() {
		return "", ErrBusy
	}
	defer d.release()

	seq := uuid.NewString()
	logger := log.With().Str("component", "dispatch").Str("seq", seq).Logger()

	if _, err := d.transport.Post(ctx, PingBody); err != nil {
		logger.Debug().Err(err).Msg("Wake probe failed, continuing")
	}

	if err := sleepContext(ctx, d.wakeDelay); err != nil {
		d.notifier.Notify("Error "+err.Error(), false)
		return "", err
	}

	logger.Info().Str("body", body).Msg("Sending command")
	text, err := d.transport.Post(ctx, body)
	if err != nil {
		logger.Warn().Err(err).Msg("Command failed")
		d.notifier.Notify("Error "+err.Error(), false)
		return "", err
	}

	d.notifier.Notify(MsgSent, true)
	return text, nil
}

// Wake sends a lone ping under the same gate.
func (d *Dispatcher) Wake(ctx context.Context) error {
	if !d.acquire() {
		return ErrBusy
	}
	defer d.release()

	if _, err := d.transport.Post(ctx, PingBody); err != nil {
		log.Warn().Str("component", "dispatch").Err(err).Msg("Wake failed")
		d.notifier.Notify(MsgWakeFailed, false)
		return err
	}
	d.notifier.Notify(MsgWakeSent, true)
	return nil
}

func (d *Dispatcher) acquire() bool {
	if !d.gate.TryAcquire() {
		d.notifier.Notify(MsgBusy, false)
		return false
	}
	d.notifier.SetControlsDisabled(true)
	return true
}

func (d *Dispatcher) release() {
	d.gate.Release()
	d.notifier.SetControlsDisabled(false)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
