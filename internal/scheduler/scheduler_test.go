package scheduler

import (
	"errors"
	"reflect"
	"testing"

	"magicband-controller/internal/core"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line   string
		action core.Action
		args   map[string]string
	}{
		{"preset Red", core.ActionPreset, map[string]string{"color": "red"}},
		{"preset blue vib=3", core.ActionPreset, map[string]string{"color": "blue", "vibrate": "true", "pattern": "3"}},
		{"preset blue vib=0", core.ActionPreset, map[string]string{"color": "blue", "vibrate": "false"}},
		{"dual #ff0000 #0000ff", core.ActionDual, map[string]string{"inner": "#ff0000", "outer": "#0000ff"}},
		{"crossfade #00ff00 #ffffff", core.ActionCrossfade, map[string]string{"a": "#00ff00", "b": "#ffffff"}},
		{
			"rainbow #ffcc00 #ff0000 #00ff00 #0000ff #ff00ff",
			core.ActionRainbow,
			map[string]string{"r1": "#ffcc00", "r2": "#ff0000", "r3": "#00ff00", "r4": "#0000ff", "r5": "#ff00ff"},
		},
		{"circle", core.ActionCircle, map[string]string{}},
		{"ping", core.ActionPing, map[string]string{}},
		{"wake", core.ActionPing, map[string]string{}},
		{"manual action=preset&color=red&vib=0", core.ActionManual, map[string]string{"text": "action=preset&color=red&vib=0"}},
		{"manual   action=circle vib=2 ", core.ActionManual, map[string]string{"text": "action=circle vib=2"}},
		{"script sunset", core.ActionRunScript, map[string]string{"name": "sunset"}},
		{"stop", core.ActionStopScript, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := ParseCommand(tt.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Action != tt.action {
				t.Errorf("expected action %q, got %q", tt.action, cmd.Action)
			}
			if !reflect.DeepEqual(cmd.Args, tt.args) {
				t.Errorf("expected args %v, got %v", tt.args, cmd.Args)
			}
			if cmd.Source != "scheduler" {
				t.Errorf("unexpected source %q", cmd.Source)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"", "  ", "preset", "dual #ff0000", "rainbow #ff0000", "circle extra", "manual", "strobe", "script"} {
		if _, err := ParseCommand(line); !errors.Is(err, ErrBadCommand) {
			t.Errorf("ParseCommand(%q): expected ErrBadCommand, got %v", line, err)
		}
	}
}

func TestAddRemove(t *testing.T) {
	s := NewScheduler(make(core.CommandChannel, 1))

	if _, err := s.Add("not a spec", "circle"); err == nil {
		t.Error("expected an invalid spec to be rejected")
	}
	if _, err := s.Add("0 20 * * *", "strobe"); !errors.Is(err, ErrBadCommand) {
		t.Errorf("expected ErrBadCommand, got %v", err)
	}

	first, err := s.Add("0 20 * * *", "preset blue")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Add("*/5 * * * *", "circle")
	if err != nil {
		t.Fatal(err)
	}

	all := s.GetAll()
	if len(all) != 2 || all[0].ID != first || all[1].ID != second {
		t.Fatalf("unexpected entries %+v", all)
	}
	if all[0].Command != "preset blue" || all[0].Spec != "0 20 * * *" {
		t.Errorf("unexpected entry %+v", all[0])
	}

	if !s.Remove(first) {
		t.Error("expected remove to succeed")
	}
	if s.Remove(first) {
		t.Error("second remove should report a missing id")
	}
	if got := s.GetAll(); len(got) != 1 || got[0].ID != second {
		t.Errorf("unexpected entries after remove %+v", got)
	}
}

func TestExecuteQueuesCommand(t *testing.T) {
	ch := make(core.CommandChannel, 1)
	s := NewScheduler(ch)

	s.execute("dual #ff0000 #0000ff")

	select {
	case cmd := <-ch:
		if cmd.Action != core.ActionDual || cmd.Args["outer"] != "#0000ff" {
			t.Errorf("unexpected command %+v", cmd)
		}
	default:
		t.Fatal("expected a command on the channel")
	}
}
