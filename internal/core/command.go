package core

// Action names a panel action. The values double as the band's action= field.
type Action string

const (
	ActionPing      Action = "ping"
	ActionPreset    Action = "preset"
	ActionDual      Action = "dual"
	ActionCrossfade Action = "crossfade"
	ActionRainbow   Action = "rainbow"
	ActionCircle    Action = "circle"
	ActionManual    Action = "manual"

	// Script control. These are handled by the agent, not the action registry.
	ActionRunScript  Action = "script"
	ActionStopScript Action = "stop"
)

// Actions lists every action in panel order.
var Actions = []Action{
	ActionPreset,
	ActionDual,
	ActionCrossfade,
	ActionRainbow,
	ActionCircle,
	ActionPing,
	ActionManual,
}

// Command is the envelope for an action request coming from any entry point
// (scheduler, MQTT, websocket, scripts).
type Command struct {
	Action Action
	Args   map[string]string
	Source string
}

// CommandChannel is the single channel the agent drains commands from.
type CommandChannel chan Command
