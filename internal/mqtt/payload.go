package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"magicband-controller/internal/core"
)

// ErrBadPayload is returned for action payloads that cannot be read.
var ErrBadPayload = errors.New("bad payload")

// ParsePayload reads action arguments from a message. Accepted forms are a
// JSON object, a form string ("inner=%23ff0000&outer=%230000ff"), or for
// preset a bare color name. A manual payload that is not JSON is the raw
// command body.
func ParsePayload(action core.Action, payload []byte) (map[string]string, error) {
	text := strings.TrimSpace(string(payload))
	args := map[string]string{}
	if text == "" {
		return args, nil
	}

	if strings.HasPrefix(text, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		for k, v := range obj {
			switch val := v.(type) {
			case nil:
			case string:
				args[k] = val
			case bool:
				args[k] = strconv.FormatBool(val)
			case float64:
				args[k] = strconv.FormatFloat(val, 'f', -1, 64)
			default:
				return nil, fmt.Errorf("%w: field %q is not a scalar", ErrBadPayload, k)
			}
		}
		return args, nil
	}

	if action == core.ActionManual {
		args["text"] = text
		return args, nil
	}

	if strings.Contains(text, "=") {
		values, err := url.ParseQuery(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		for k := range values {
			args[k] = values.Get(k)
		}
		return args, nil
	}

	if action == core.ActionPreset {
		args["color"] = strings.ToLower(text)
		return args, nil
	}
	// Buttons often send a fixed press payload; it carries no arguments.
	if strings.EqualFold(text, "PRESS") {
		return args, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBadPayload, text)
}
