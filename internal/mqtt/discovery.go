package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"magicband-controller/internal/config"
	"magicband-controller/internal/palette"
)

// deviceID turns the client id into a Home Assistant safe identifier.
func deviceID(clientID string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		if r == ' ' {
			return '_'
		}
		return -1
	}, clientID)
}

// discoveryConfigs builds one button per preset plus wake and circle, and a
// sensor for the last command result. Keys are discovery topics.
func discoveryConfigs(cfg config.MQTTConfig, prefix string) map[string][]byte {
	id := deviceID(cfg.ClientID)

	device := map[string]interface{}{
		"identifiers":  []string{id},
		"name":         "MagicBand Controller",
		"manufacturer": "magicband-controller",
		"model":        "MagicBand+ BLE broadcaster",
	}
	availability := []map[string]string{{
		"topic":                 prefix + "/availability",
		"payload_available":     "online",
		"payload_not_available": "offline",
	}}

	out := make(map[string][]byte)
	add := func(component, object string, payload map[string]interface{}) {
		payload["unique_id"] = id + "_" + object
		payload["object_id"] = id + "_" + object
		payload["device"] = device
		payload["availability"] = availability
		data, _ := json.Marshal(payload)
		out[fmt.Sprintf("%s/%s/%s/%s/config", cfg.HADiscoveryPrefix, component, id, object)] = data
	}

	for _, name := range palette.PresetNames() {
		add("button", "preset_"+name, map[string]interface{}{
			"name":          "Preset " + name,
			"icon":          "mdi:palette",
			"command_topic": prefix + "/action/preset",
			"payload_press": name,
		})
	}
	add("button", "wake", map[string]interface{}{
		"name":          "Wake",
		"icon":          "mdi:bell-ring",
		"command_topic": prefix + "/wake",
		"payload_press": "PRESS",
	})
	add("button", "circle", map[string]interface{}{
		"name":          "Circle",
		"icon":          "mdi:rotate-right",
		"command_topic": prefix + "/action/circle",
		"payload_press": "PRESS",
	})
	add("sensor", "result", map[string]interface{}{
		"name":        "Last result",
		"icon":        "mdi:send-check",
		"state_topic": prefix + "/result",
	})
	return out
}
