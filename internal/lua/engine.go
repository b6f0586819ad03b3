// Package lua runs show scripts that drive the band through the panel actions.
package lua

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/core"
)

// ErrInvalidName is returned for script names that are not plain .lua files.
var ErrInvalidName = errors.New("invalid script name")

// Runner is what scripts act on. actions.Registry implements it.
type Runner interface {
	Run(ctx context.Context, action core.Action, args actions.Args) (string, error)
	ApplyInputs(args actions.Args) (core.Inputs, error)
}

type cmdType int

const (
	cmdRun cmdType = iota
	cmdStop
)

type engineCmd struct {
	kind cmdType
	name string
	path string
}

// Engine runs one script at a time on a background worker. Starting a script
// stops the one before it.
type Engine struct {
	runner     Runner
	scriptsDir string
	eventBus   *core.EventBus
	logger     zerolog.Logger

	cmdChan chan engineCmd

	mu      sync.Mutex
	running string
}

// NewEngine creates an engine and starts its worker. The worker exits when
// ctx is done.
func NewEngine(ctx context.Context, runner Runner, scriptsDir string, eb *core.EventBus) *Engine {
	e := &Engine{
		runner:     runner,
		scriptsDir: scriptsDir,
		eventBus:   eb,
		logger:     log.With().Str("component", "lua").Logger(),
		cmdChan:    make(chan engineCmd, 10),
	}
	go e.runLoop(ctx)
	return e
}

func (e *Engine) runLoop(ctx context.Context) {
	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if currentCancel == nil {
			return
		}
		currentCancel()
		select {
		case <-scriptDone:
		case <-time.After(2 * time.Second):
			e.logger.Warn().Msg("Timeout waiting for script to stop")
		}
		currentCancel = nil
		scriptDone = nil
	}

	for {
		select {
		case <-ctx.Done():
			stopCurrent()
			return
		case cmd := <-e.cmdChan:
			stopCurrent()
			if cmd.kind == cmdStop {
				continue
			}

			scriptCtx, cancel := context.WithCancel(ctx)
			currentCancel = cancel
			scriptDone = make(chan struct{})
			go e.executeFile(scriptCtx, cmd.name, cmd.path, scriptDone)
		}
	}
}

// Stop stops the running script, if any.
func (e *Engine) Stop() {
	select {
	case e.cmdChan <- engineCmd{kind: cmdStop}:
	default:
		e.logger.Warn().Msg("Command channel full, could not send stop command")
	}
}

// Run starts the named script.
func (e *Engine) Run(name string) error {
	path, err := e.scriptPath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("script %q: %w", name, err)
	}
	select {
	case e.cmdChan <- engineCmd{kind: cmdRun, name: filepath.Base(path), path: path}:
		return nil
	default:
		return fmt.Errorf("script %q: engine busy", name)
	}
}

// Running returns the name of the running script, or "".
func (e *Engine) Running() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// List returns the .lua files in the scripts directory.
func (e *Engine) List() ([]string, error) {
	scripts := []string{}
	files, err := os.ReadDir(e.scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return scripts, nil
		}
		return nil, err
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".lua" {
			scripts = append(scripts, file.Name())
		}
	}
	return scripts, nil
}

// Code returns the source of the named script.
func (e *Engine) Code(name string) (string, error) {
	path, err := e.scriptPath(name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// scriptPath resolves name inside the scripts directory. The .lua extension
// is optional.
func (e *Engine) scriptPath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ".lua") {
		name += ".lua"
	}
	clean := filepath.Base(name)
	if clean != name || clean == ".lua" || strings.Contains(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(e.scriptsDir, clean), nil
}

func (e *Engine) setRunning(name string) {
	e.mu.Lock()
	e.running = name
	e.mu.Unlock()
	if e.eventBus != nil {
		e.eventBus.Publish(core.Event{Type: core.ScriptChangedEvent, Payload: name})
	}
}

func (e *Engine) executeFile(ctx context.Context, name, path string, done chan struct{}) {
	defer close(done)

	e.logger.Info().Str("script", name).Msg("Starting script")
	e.setRunning(name)
	defer func() {
		e.logger.Info().Str("script", name).Msg("Script finished")
		e.setRunning("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	e.registerGoFunctions(ctx, L, name)

	if err := L.DoFile(path); err != nil {
		if ctx.Err() != nil {
			e.logger.Info().Str("script", name).Msg("Script was canceled")
		} else {
			e.logger.Error().Err(err).Str("script", name).Msg("Error executing script")
		}
	}
}
