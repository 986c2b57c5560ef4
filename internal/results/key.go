// key.go — Result Store (C10) key derivation: canonicalize inputs, hash
// with packId to a deterministic 16-hex key (§4.10, §8).
package results

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalizeInputs sorts object keys ascending, drops nil/undefined
// values, preserves array element order, and recurses (§4.10 step 1,
// §8 round-trip property).
func CanonicalizeInputs(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k, vv := range t {
			if vv == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			out = append(out, k, CanonicalizeInputs(t[k]))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CanonicalizeInputs(e)
		}
		return out
	default:
		return v
	}
}

// GenerateResultKey implements §4.10's generateResultKey(packId, inputs):
// canonicalize, concatenate packId + "\0" + canonical-JSON(inputs), hash
// with SHA-256, return the first 16 lowercase hex chars.
func GenerateResultKey(packID string, inputs map[string]any) (string, error) {
	canon := CanonicalizeInputs(inputs)
	b, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(packID))
	h.Write([]byte{0})
	h.Write(b)
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum)[:16], nil
}
