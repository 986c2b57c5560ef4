// defaults.go — Input default application (§4.1 pre-run, §8 property 1).
package pack

import "github.com/eyupulker/showrun/internal/types"

// ApplyDefaults returns a fresh map equal to inputs except that keys
// declared in schema with a default and absent from inputs are populated.
// Explicit falsy/empty values (false, 0, "") suppress the default — only
// absence triggers it.
func ApplyDefaults(inputs map[string]any, schema types.InputSchema) map[string]any {
	out := make(map[string]any, len(inputs)+len(schema))
	for k, v := range inputs {
		out[k] = v
	}
	for name, field := range schema {
		if _, present := out[name]; !present && field.Default != nil {
			out[name] = field.Default
		}
	}
	return out
}
