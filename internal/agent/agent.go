// Package agent wires the panel, the dispatcher and the optional band
// broadcaster together and runs them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/ble"
	"magicband-controller/internal/config"
	"magicband-controller/internal/core"
	"magicband-controller/internal/device"
	"magicband-controller/internal/dispatch"
	"magicband-controller/internal/lua"
	"magicband-controller/internal/mqtt"
	"magicband-controller/internal/palette"
	"magicband-controller/internal/scheduler"
	"magicband-controller/internal/server"
	"magicband-controller/web"
)

// Result statuses reported for every command.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusBusy   = "busy"
)

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup
	logger zerolog.Logger

	state          *core.PanelState
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	transport   *dispatch.Client
	gate        *dispatch.Gate
	dispatcher  *dispatch.Dispatcher
	registry    *actions.Registry
	broadcaster *ble.Broadcaster
	luaEngine   *lua.Engine
	scheduler   *scheduler.Scheduler
	server      *server.Server
	mqttClient  *mqtt.Client
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		logger:         log.With().Str("component", "agent").Logger(),
		state:          core.NewPanelState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
	}

	base := dispatch.ResolveBase(cfg.Server.PublicHost, cfg.Device.Host, cfg.Device.URL)
	if base == "" {
		if !cfg.Band.Enabled {
			cancel()
			return nil, fmt.Errorf("panel host %q is the device host but band mode is disabled", cfg.Server.PublicHost)
		}
		base = "http://127.0.0.1:" + cfg.Server.Port
	}
	a.transport = dispatch.NewClient(base, &http.Client{Timeout: cfg.Device.HTTPTimeout.Duration()})
	a.gate = &dispatch.Gate{}
	a.dispatcher = dispatch.NewDispatcher(a.transport, a.eventBus, a.gate, cfg.Device.WakeDelay.Duration())

	a.registry = actions.NewRegistry(actions.NewController(a.state, a.dispatcher, a.eventBus))
	a.registry.OnInputs(func(in core.Inputs) {
		a.eventBus.Publish(core.Event{Type: core.PanelChangedEvent, Payload: in})
	})

	static := web.FileSystem(cfg.Server.WebFilesDir)

	var deviceHandler *device.Handler
	if cfg.Band.Enabled {
		adapter := ble.NewAdapter(cfg.Band.LocalName, cfg.Band.Interval.Duration())
		a.broadcaster = ble.NewBroadcaster(adapter, ble.Options{
			Hold:       cfg.Band.Hold.Duration(),
			RateLimit:  cfg.Band.RateLimit,
			RateBurst:  cfg.Band.RateBurst,
			QueueSize:  cfg.Band.QueueSize,
			RetryDelay: cfg.Band.RetryDelay.Duration(),
		})
		a.broadcaster.OnSent(func(packet []byte) {
			a.logger.Debug().Hex("packet", packet).Msg("Packet on air")
		})
		deviceHandler = device.NewHandler(a.broadcaster, cfg.Band.APAddress, static)
	}

	a.luaEngine = lua.NewEngine(ctx, a.registry, cfg.ScriptsDir, a.eventBus)

	a.scheduler = scheduler.NewScheduler(a.commandChannel)
	for _, s := range cfg.Schedules {
		if _, err := a.scheduler.Add(s.Spec, s.Command); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %q: %w", s.Command, err)
		}
	}

	a.server = server.NewServer(a.registry, a, server.Options{
		Port:           cfg.Server.Port,
		Static:         static,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Device:         deviceHandler,
	})
	a.server.SetHandler(NewCommandHandler(a.registry, a.luaEngine, a.scheduler, a.eventBus, a.commandChannel))

	a.mqttClient = mqtt.NewClient(cfg.MQTT, a.commandChannel)

	return a, nil
}

// Run starts the agent orchestration loop. It returns when Shutdown is called.
func (a *Agent) Run() {
	go a.listenEvents()

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				a.logger.Error().Err(err).Msg("MQTT setup error")
			}
		}()
	}

	if a.broadcaster != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.broadcaster.Run(a.ctx)
		}()
	}

	a.scheduler.Start()

	a.logger.Info().
		Str("port", a.config.Server.Port).
		Str("device", a.transport.Endpoint()).
		Bool("band", a.broadcaster != nil).
		Msg("Agent running")
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Server error")
			a.cancel()
		}
	}()

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info().Msg("Agent orchestrator shutting down")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(cmd)
		}
	}
}

// Done is closed once the agent has been asked to stop.
func (a *Agent) Done() <-chan struct{} {
	return a.ctx.Done()
}

func (a *Agent) listenEvents() {
	types := []core.EventType{
		core.NotificationEvent,
		core.ControlsChangedEvent,
		core.PanelChangedEvent,
		core.ScriptChangedEvent,
		core.CommandResultEvent,
	}
	sub := a.eventBus.Subscribe(types...)
	defer a.eventBus.Unsubscribe(sub)

	hub := a.server.Hub
	for {
		select {
		case <-a.ctx.Done():
			return
		case event := <-sub:
			switch event.Type {
			case core.NotificationEvent:
				hub.Broadcast(server.NewMessage(server.TypeToast, event.Payload))
			case core.ControlsChangedEvent:
				disabled, _ := event.Payload.(bool)
				hub.Broadcast(server.NewMessage(server.TypeControls, server.Controls{Disabled: disabled}))
				a.mqttClient.PublishPending(disabled)
			case core.PanelChangedEvent:
				hub.Broadcast(server.NewMessage(server.TypePanelState, event.Payload))
			case core.ScriptChangedEvent:
				name, _ := event.Payload.(string)
				hub.Broadcast(server.NewMessage(server.TypeScriptStatus, server.ScriptStatus{Running: name}))
				a.mqttClient.PublishScript(name)
			case core.CommandResultEvent:
				if r, ok := event.Payload.(core.Result); ok {
					a.mqttClient.PublishResult(r)
				}
			}
		}
	}
}

func (a *Agent) handleCommand(cmd core.Command) {
	a.logger.Info().Str("action", string(cmd.Action)).Str("source", cmd.Source).Interface("args", cmd.Args).Msg("Handling command")

	switch cmd.Action {
	case core.ActionRunScript:
		if err := a.luaEngine.Run(cmd.Args["name"]); err != nil {
			a.logger.Error().Err(err).Msg("Could not start script")
			a.eventBus.Notify("Error "+err.Error(), false)
		}
		return
	case core.ActionStopScript:
		a.luaEngine.Stop()
		return
	}

	// A hand-made command takes over from a running show.
	if cmd.Source != "scheduler" && a.luaEngine.Running() != "" {
		a.logger.Info().Str("script", a.luaEngine.Running()).Msg("Command received, stopping script")
		a.luaEngine.Stop()
	}

	// Commands run concurrently so the gate, not this loop, decides what is
	// rejected while a sequence is in flight.
	go a.runAction(cmd)
}

// runAction runs one command through the registry and reports the outcome.
func (a *Agent) runAction(cmd core.Command) {
	_, err := a.registry.Dispatch(a.ctx, cmd)

	result := core.Result{Action: cmd.Action, Status: StatusSent}
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrBusy):
		result.Status = StatusBusy
	default:
		result.Status = StatusFailed
		result.Error = err.Error()
		// The dispatcher already told the user about device failures.
		if errors.Is(err, actions.ErrUnknownAction) ||
			errors.Is(err, actions.ErrMissingArg) ||
			errors.Is(err, palette.ErrInvalidHex) {
			a.eventBus.Notify("Error "+err.Error(), false)
		}
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("action", string(cmd.Action)).Str("source", cmd.Source).Msg("Command not sent")
	}
	a.eventBus.Publish(core.Event{Type: core.CommandResultEvent, Payload: result})
}

// ScriptList implements server.StateProvider.
func (a *Agent) ScriptList() ([]string, error) {
	return a.luaEngine.List()
}

// RunningScript implements server.StateProvider.
func (a *Agent) RunningScript() string {
	return a.luaEngine.Running()
}

// Schedules implements server.StateProvider.
func (a *Agent) Schedules() []scheduler.Entry {
	return a.scheduler.GetAll()
}

// Shutdown stops every component and waits for the background workers.
func (a *Agent) Shutdown() {
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout.Duration())
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Server shutdown")
	}
	a.mqttClient.Disconnect()
	a.cancel()
	a.wg.Wait()
}
