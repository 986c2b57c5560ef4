// inputs.go — Input validation against the pack's InputSchema (§4.1 step 1).
package pack

import (
	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// ValidateInputs rejects unknown top-level input fields, missing required
// fields, and type mismatches (§3 InputSchema invariants).
func ValidateInputs(inputs map[string]any, schema types.InputSchema) error {
	for name := range inputs {
		if _, ok := schema[name]; !ok {
			return errs.NewInputError("unknown input field %q", name)
		}
	}
	for name, field := range schema {
		v, present := inputs[name]
		if !present {
			if field.Required && field.Default == nil {
				return errs.NewInputError("missing required input %q", name)
			}
			continue
		}
		if !matchesType(v, field.Type) {
			return errs.NewInputError("input %q must be of type %s, got %T", name, field.Type, v)
		}
	}
	return nil
}

func matchesType(v any, t string) bool {
	switch t {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}
