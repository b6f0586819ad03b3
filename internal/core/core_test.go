package core

import (
	"testing"
	"time"
)

func TestEventBusNotify(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(NotificationEvent, ControlsChangedEvent)

	eb.Notify("Sent", true)
	eb.SetControlsDisabled(true)

	select {
	case ev := <-sub:
		n, ok := ev.Payload.(Notification)
		if !ok || n.Message != "Sent" || !n.OK {
			t.Errorf("unexpected notification %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}
	select {
	case ev := <-sub:
		if ev.Type != ControlsChangedEvent || ev.Payload != true {
			t.Errorf("unexpected controls event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no controls event delivered")
	}

	eb.Unsubscribe(sub)
	eb.Notify("dropped", false)
	if ev, ok := <-sub; ok {
		t.Errorf("unsubscribed channel received %+v", ev)
	}
	eb.Unsubscribe(sub)
}

func TestEventBusFilters(t *testing.T) {
	eb := NewEventBus()
	all := eb.Subscribe()
	scripts := eb.Subscribe(ScriptChangedEvent)

	eb.Notify("Sent", true)
	eb.Publish(Event{Type: ScriptChangedEvent, Payload: "party"})

	if len(all) != 2 {
		t.Errorf("expected the catch-all subscriber to get 2 events, got %d", len(all))
	}
	if len(scripts) != 1 {
		t.Fatalf("expected 1 script event, got %d", len(scripts))
	}
	if ev := <-scripts; ev.Payload != "party" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestEventBusFullSubscriberDoesNotBlock(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(NotificationEvent)
	for i := 0; i < subscriberBuffer+10; i++ {
		eb.Notify("spam", true)
	}
	if len(sub) != subscriberBuffer {
		t.Errorf("expected a full buffer of %d, got %d", subscriberBuffer, len(sub))
	}
}

func TestPanelState(t *testing.T) {
	s := NewPanelState()
	if in := s.Clone(); in.Vibrate || in.VibPattern != "1" || in.DualInner != "#ff0000" {
		t.Errorf("unexpected defaults %+v", in)
	}

	s.SetVibration(true, "3")
	s.SetVibration(true, "")
	s.SetManual("action=circle&vib=0")

	in := s.Clone()
	if !in.Vibrate || in.VibPattern != "3" {
		t.Errorf("vibration not stored: %+v", in)
	}
	if in.Manual != "action=circle&vib=0" {
		t.Errorf("manual not stored: %q", in.Manual)
	}

	in.Rainbow[0] = "#000000"
	if s.Clone().Rainbow[0] == "#000000" {
		t.Errorf("Clone must not share the rainbow array")
	}
}
