package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type device struct {
	mu     sync.Mutex
	bodies []string
}

func (d *device) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.bodies = append(d.bodies, string(body))
	d.mu.Unlock()
	_, _ = w.Write([]byte("OK"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"preset", "red"}, "action=preset&color=red&vib=0"},
		{[]string{"--vib", "3", "preset", "cyan"}, "action=preset&color=cyan&vib=3"},
		{[]string{"dual", "#ff0000", "#0000ff"}, "action=dual&c1=21&c2=2&vib=0"},
		{[]string{"circle"}, "action=circle&vib=0"},
		{[]string{"manual", " action=circle&vib=1 "}, "action=circle&vib=1"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			d := &device{}
			ts := httptest.NewServer(d)
			defer ts.Close()

			out, err := execute(t, append([]string{"--url", ts.URL, "--wake-delay", "0s"}, tt.args...)...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.TrimSpace(out) != "OK" {
				t.Errorf("unexpected output %q", out)
			}
			d.mu.Lock()
			defer d.mu.Unlock()
			if len(d.bodies) != 2 || d.bodies[0] != "action=ping" || d.bodies[1] != tt.want {
				t.Errorf("device got %q, want ping then %q", d.bodies, tt.want)
			}
		})
	}
}

func TestPing(t *testing.T) {
	d := &device{}
	ts := httptest.NewServer(d)
	defer ts.Close()

	if _, err := execute(t, "--url", ts.URL, "ping"); err != nil {
		t.Fatal(err)
	}
	if len(d.bodies) != 1 || d.bodies[0] != "action=ping" {
		t.Errorf("expected a lone ping, got %q", d.bodies)
	}
}

func TestCommandErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Missing action", http.StatusBadRequest)
	}))
	defer ts.Close()

	if _, err := execute(t, "--url", ts.URL, "--wake-delay", "0s", "circle"); err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected a status error, got %v", err)
	}
	if _, err := execute(t, "dual", "#ff0000"); err == nil {
		t.Error("expected an argument count error")
	}
	if _, err := execute(t, "--url", ts.URL, "manual", "   "); err == nil {
		t.Error("expected an empty manual command to fail")
	}
}

func TestClosest(t *testing.T) {
	out, err := execute(t, "closest", "#ff0000", "#0000ff")
	if err != nil {
		t.Fatal(err)
	}
	if out != "#ff0000\t21\n#0000ff\t2\n" {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := execute(t, "closest", "red"); err == nil {
		t.Error("expected malformed hex to be rejected")
	}
}

func TestRunCLIReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	saved := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = saved }()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"closest", "red"}, "invalid hex color"},
		{[]string{"dual", "#ff0000"}, "accepts 2 arg(s)"},
	}
	for _, tt := range tests {
		buf.Reset()
		if code := runCLI(context.Background(), tt.args); code != 1 {
			t.Errorf("%v: expected exit code 1, got %d", tt.args, code)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("%v: expected %q in the log, got %q", tt.args, tt.want, buf.String())
		}
	}

	buf.Reset()
	if code := runCLI(context.Background(), []string{"closest", "#00ff00"}); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output %q", buf.String())
	}
}
