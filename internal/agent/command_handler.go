package agent

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/core"
	"magicband-controller/internal/lua"
	"magicband-controller/internal/scheduler"
	"magicband-controller/internal/server"
)

// CommandHandler handles messages from panel websocket clients.
type CommandHandler struct {
	registry  *actions.Registry
	luaEngine *lua.Engine
	scheduler *scheduler.Scheduler
	notifier  *core.EventBus
	commands  core.CommandChannel
	logger    zerolog.Logger
}

func NewCommandHandler(r *actions.Registry, le *lua.Engine, s *scheduler.Scheduler, eb *core.EventBus, commands core.CommandChannel) *CommandHandler {
	return &CommandHandler{
		registry:  r,
		luaEngine: le,
		scheduler: s,
		notifier:  eb,
		commands:  commands,
		logger:    log.With().Str("component", "ws").Logger(),
	}
}

func (h *CommandHandler) Handle(msg server.Message, hub *server.Hub) {
	var cmd server.Command
	if err := json.Unmarshal(msg.Raw, &cmd); err != nil {
		h.logger.Warn().Err(err).Msg("Error unmarshalling command")
		return
	}
	args := cmd.Args()

	for _, a := range core.Actions {
		if string(a) == cmd.Type {
			h.commands <- core.Command{Action: a, Args: args, Source: "ws"}
			return
		}
	}

	switch cmd.Type {
	case "setInputs":
		if _, err := h.registry.ApplyInputs(args); err != nil {
			h.notifier.Notify("Error "+err.Error(), false)
		}

	case "runScript":
		h.commands <- core.Command{Action: core.ActionRunScript, Args: map[string]string{"name": args["name"]}, Source: "ws"}

	case "stopScript":
		h.commands <- core.Command{Action: core.ActionStopScript, Source: "ws"}

	case "getScriptCode":
		name := args["name"]
		code, err := h.luaEngine.Code(name)
		if err != nil {
			h.logger.Warn().Err(err).Str("script", name).Msg("Error getting script code")
			h.notifier.Notify("Error "+err.Error(), false)
			return
		}
		hub.Broadcast(server.NewMessage(server.TypeScriptCode, map[string]string{"name": name, "code": code}))

	case "addSchedule":
		if _, err := h.scheduler.Add(args["spec"], args["command"]); err != nil {
			h.notifier.Notify("Error "+err.Error(), false)
			return
		}
		hub.Broadcast(server.NewMessage(server.TypeScheduleList, h.scheduler.GetAll()))

	case "removeSchedule":
		id, err := strconv.Atoi(args["id"])
		if err != nil {
			return
		}
		if h.scheduler.Remove(id) {
			hub.Broadcast(server.NewMessage(server.TypeScheduleList, h.scheduler.GetAll()))
		}

	default:
		h.logger.Warn().Str("type", cmd.Type).Msg("Unknown command type")
	}
}
