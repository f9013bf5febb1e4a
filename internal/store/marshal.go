package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/splitscript/internal/ir"
)

// marshalSettings converts toggle values to canonical JSON TEXT.
func marshalSettings(values map[string]bool) (string, error) {
	obj := make(ir.Object, len(values))
	for id, v := range values {
		obj[id] = ir.Bool(v)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	return string(data), nil
}

// unmarshalSettings parses a settings blob. Non-bool entries are rejected.
func unmarshalSettings(data string) (map[string]bool, error) {
	out := map[string]bool{}
	if data == "" || data == "{}" {
		return out, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	for id, v := range obj {
		b, ok := v.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("unmarshal settings: %q is %s, want bool", id, ir.Describe(v))
		}
		out[id] = bool(b)
	}
	return out, nil
}
