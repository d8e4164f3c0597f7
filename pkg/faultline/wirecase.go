// wirecase.go relabels internal field names to the report wire field names.

package faultline

import "unicode"

// wireExclusions lists keys whose subtrees are user data and must cross the
// wire byte-for-byte. The keys themselves are still relabeled.
var wireExclusions = map[string]struct{}{
	"customData":     {},
	"userCustomData": {},
}

// toWireCase recursively rewrites every map key from lower to upper camel
// case, except subtrees under excluded keys.
func toWireCase(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if _, excluded := wireExclusions[k]; excluded {
				out[upperCamel(k)] = child
				continue
			}
			out[upperCamel(k)] = toWireCase(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = toWireCase(child)
		}
		return out
	default:
		return v
	}
}

func upperCamel(key string) string {
	if key == "" {
		return key
	}
	r := []rune(key)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
