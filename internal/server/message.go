package server

import (
	"fmt"
	"strconv"
)

// Command represents an incoming JSON command from a WebSocket client.
type Command struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Raw     []byte      `json:"-"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

// Outgoing message types.
const (
	TypeToast        = "toast"
	TypeControls     = "controls"
	TypePanelState   = "panel_state"
	TypeScriptList   = "script_list"
	TypeScriptStatus = "script_status"
	TypeScriptCode   = "script_code"
	TypeScheduleList = "schedule_list"
)

// Controls is the payload of a controls message.
type Controls struct {
	Disabled bool `json:"disabled"`
}

// ScriptStatus is the payload of a script_status message.
type ScriptStatus struct {
	Running string `json:"running"`
}

// Args flattens a websocket payload into string arguments. Numbers and
// booleans are formatted the way a form would carry them.
func (c Command) Args() map[string]string {
	args := make(map[string]string, len(c.Payload))
	for k, v := range c.Payload {
		switch val := v.(type) {
		case nil:
		case string:
			args[k] = val
		case bool:
			if val {
				args[k] = "true"
			} else {
				args[k] = "false"
			}
		case float64:
			args[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			args[k] = fmt.Sprint(val)
		}
	}
	return args
}
