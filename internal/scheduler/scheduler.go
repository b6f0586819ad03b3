// Package scheduler triggers panel actions on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"magicband-controller/internal/core"
)

// ErrBadCommand is returned for schedule command lines that cannot be parsed.
var ErrBadCommand = errors.New("bad schedule command")

// Entry is one registered schedule.
type Entry struct {
	ID      int    `json:"id"`
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler manages all cron-related tasks. Schedules live in memory only.
type Scheduler struct {
	cron           *cron.Cron
	store          map[cron.EntryID]Entry
	commandChannel core.CommandChannel
	mu             sync.RWMutex
}

// NewScheduler creates a scheduler that feeds parsed commands into cmdChan.
func NewScheduler(cmdChan core.CommandChannel) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		store:          make(map[cron.EntryID]Entry),
		commandChannel: cmdChan,
	}
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Str("component", "scheduler").Int("schedules", len(s.GetAll())).Msg("Cron scheduler started")
}

// Stop halts the cron job ticker.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Str("component", "scheduler").Msg("Cron scheduler stopped")
}

// Add creates a new cron job. The command line is checked up front so a bad
// schedule is rejected now rather than when it fires.
func (s *Scheduler) Add(spec, command string) (int, error) {
	spec = strings.TrimSpace(spec)
	command = strings.TrimSpace(command)
	if _, err := ParseCommand(command); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule spec %q: %w", spec, err)
	}
	s.store[id] = Entry{ID: int(id), Spec: spec, Command: command}
	log.Info().
		Str("component", "scheduler").
		Int("id", int(id)).
		Str("spec", spec).
		Str("command", command).
		Msg("Added schedule")
	return int(id), nil
}

// Remove deletes a cron job. It reports whether the id existed.
func (s *Scheduler) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	if _, ok := s.store[entryID]; !ok {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	log.Info().Str("component", "scheduler").Int("id", id).Msg("Removed schedule")
	return true
}

// GetAll returns the current schedules ordered by id.
func (s *Scheduler) GetAll() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.store))
	for _, e := range s.store {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Scheduler) execute(command string) {
	cmd, err := ParseCommand(command)
	if err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("Skipping scheduled command")
		return
	}
	log.Info().Str("component", "scheduler").Str("command", command).Msg("Executing scheduled command")
	s.commandChannel <- cmd
}

// ParseCommand turns a schedule command line into a command envelope.
//
//	preset <color> [vib=N]
//	dual <inner> <outer> [vib=N]
//	crossfade <a> <b> [vib=N]
//	rainbow <c1> <c2> <c3> <c4> <c5> [vib=N]
//	circle [vib=N]
//	ping | wake
//	manual <raw form body>
//	script <name> | stop
//
// Colors other than preset names are #RRGGBB. vib=0 turns vibration off.
func ParseCommand(line string) (core.Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return core.Command{}, fmt.Errorf("%w: empty", ErrBadCommand)
	}
	cmd := core.Command{Args: map[string]string{}, Source: "scheduler"}
	verb := strings.ToLower(parts[0])

	if verb == "manual" {
		body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), parts[0]))
		if body == "" {
			return core.Command{}, fmt.Errorf("%w: manual needs a body", ErrBadCommand)
		}
		cmd.Action = core.ActionManual
		cmd.Args["text"] = body
		return cmd, nil
	}

	var positional []string
	for _, p := range parts[1:] {
		if v, ok := strings.CutPrefix(p, "vib="); ok {
			if v == "0" || v == "off" {
				cmd.Args["vibrate"] = "false"
			} else {
				cmd.Args["vibrate"] = "true"
				cmd.Args["pattern"] = v
			}
			continue
		}
		positional = append(positional, p)
	}

	want := func(n int) error {
		if len(positional) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrBadCommand, verb, n, len(positional))
		}
		return nil
	}

	switch verb {
	case "preset":
		if err := want(1); err != nil {
			return core.Command{}, err
		}
		cmd.Action = core.ActionPreset
		cmd.Args["color"] = strings.ToLower(positional[0])
	case "dual":
		if err := want(2); err != nil {
			return core.Command{}, err
		}
		cmd.Action = core.ActionDual
		cmd.Args["inner"], cmd.Args["outer"] = positional[0], positional[1]
	case "crossfade":
		if err := want(2); err != nil {
			return core.Command{}, err
		}
		cmd.Action = core.ActionCrossfade
		cmd.Args["a"], cmd.Args["b"] = positional[0], positional[1]
	case "rainbow":
		if err := want(5); err != nil {
			return core.Command{}, err
		}
		cmd.Action = core.ActionRainbow
		for i, c := range positional {
			cmd.Args[fmt.Sprintf("r%d", i+1)] = c
		}
	case "circle":
		if err := want(0); err != nil {
			return core.Command{}, err
		}
		cmd.Action = core.ActionCircle
	case "ping", "wake":
		cmd.Action = core.ActionPing
	case "script":
		if err := want(1); err != nil {
			return core.Command{}, err
		}
		cmd.Action = core.ActionRunScript
		cmd.Args["name"] = positional[0]
	case "stop":
		cmd.Action = core.ActionStopScript
	default:
		return core.Command{}, fmt.Errorf("%w: unknown verb %q", ErrBadCommand, parts[0])
	}
	return cmd, nil
}
