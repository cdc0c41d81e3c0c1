package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	IntentGoto    = "goto"
	IntentWander  = "wander"
	IntentStop    = "stop"
	IntentPerform = "perform"
	IntentRelease = "release"
)

// Intent is a high-level request from a tool handler, the bridge or the
// debug console.
type Intent struct {
	Action string
	Params map[string]any
}

func ParseIntent(input map[string]any) (Intent, error) {
	if input == nil {
		return Intent{}, fmt.Errorf("intent input is nil")
	}
	action := strings.ToLower(strings.TrimSpace(asString(input["action"])))
	if action == "" {
		return Intent{}, fmt.Errorf("intent missing action")
	}

	params := make(map[string]any)
	switch action {
	case IntentStop, IntentRelease:
		// no params
	case IntentGoto:
		if err := requireFloatParam(input, params, "x"); err != nil {
			return Intent{}, err
		}
		if err := requireFloatParam(input, params, "z"); err != nil {
			return Intent{}, err
		}
	case IntentWander:
		if err := optionalMs(input, params, "interval_ms", false); err != nil {
			return Intent{}, err
		}
		if err := optionalMs(input, params, "duration_ms", true); err != nil {
			return Intent{}, err
		}
		if v, ok := input["max_distance"]; ok {
			f, ok := asFloat64(v)
			if !ok || f < 0 {
				return Intent{}, fmt.Errorf("invalid max_distance")
			}
			params["max_distance"] = f
		}
	case IntentPerform:
		if v, ok := input["entity_id"]; ok {
			id, ok := asID(v)
			if !ok {
				return Intent{}, fmt.Errorf("invalid entity_id")
			}
			params["entity_id"] = id
		}
	default:
		return Intent{}, fmt.Errorf("unknown intent action: %s", action)
	}

	return Intent{Action: action, Params: params}, nil
}

func (i Intent) Float(key string) float64 {
	f, _ := asFloat64(i.Params[key])
	return f
}

func (i Intent) Duration(key string) time.Duration {
	n, ok := asInt(i.Params[key])
	if !ok {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

func (i Intent) String(key string) string {
	return asString(i.Params[key])
}

func requireFloatParam(src map[string]any, dst map[string]any, key string) error {
	value, ok := src[key]
	if !ok {
		return fmt.Errorf("missing %s", key)
	}
	f, ok := asFloat64(value)
	if !ok {
		return fmt.Errorf("invalid %s", key)
	}
	dst[key] = f
	return nil
}

// optionalMs copies a millisecond field. Negative values are accepted only
// when allowNegative is set.
func optionalMs(src map[string]any, dst map[string]any, key string, allowNegative bool) error {
	v, ok := src[key]
	if !ok {
		return nil
	}
	n, ok := asInt(v)
	if !ok {
		return fmt.Errorf("invalid %s", key)
	}
	if n < 0 && !allowNegative {
		return fmt.Errorf("%s out of range", key)
	}
	dst[key] = n
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	default:
		return "", false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
