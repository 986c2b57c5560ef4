// filter.go — JMESPath query application and stable sort/pagination
// shared by every provider (§4.10 filter semantics).
package results

import (
	"sort"

	"github.com/jmespath/go-jmespath"

	"github.com/eyupulker/showrun/internal/errs"
)

// ApplyFilter runs opts' JMESPath (if any) against collectibles, then
// sorts (if the result is an array and SortBy is set — nulls sort last
// regardless of direction, ties compare equal/stable) and paginates.
func ApplyFilter(collectibles map[string]any, opts FilterOptions) (FilterResult, error) {
	var data any = collectibles
	if opts.JMESPath != "" {
		result, err := jmespath.Search(opts.JMESPath, collectibles)
		if err != nil {
			return FilterResult{}, errs.NewValidationError("invalid jmesPath expression %q: %v", opts.JMESPath, err)
		}
		data = result
	}

	arr, isArray := data.([]any)
	if !isArray {
		return FilterResult{Data: data}, nil
	}

	if opts.SortBy != "" {
		sortBy(arr, opts.SortBy, opts.SortDir)
	}

	total := len(arr)
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(arr) {
		start = len(arr)
	}
	end := len(arr)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return FilterResult{Data: arr[start:end], Total: &total}, nil
}

// sortBy stably sorts arr by field sortBy, nulls last regardless of
// direction, ties compare equal (§4.10, §8).
func sortBy(arr []any, field, dir string) {
	desc := dir == "desc"
	sort.SliceStable(arr, func(i, j int) bool {
		vi := fieldOf(arr[i], field)
		vj := fieldOf(arr[j], field)
		if vi == nil && vj == nil {
			return false
		}
		if vi == nil {
			return false // nulls last
		}
		if vj == nil {
			return true
		}
		less, ok := lessValue(vi, vj)
		if !ok {
			return false
		}
		if desc {
			return !less && !equalValue(vi, vj)
		}
		return less
	})
}

func fieldOf(v any, field string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[field]
}

func lessValue(a, b any) (bool, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false, false
		}
		return av < bv, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, false
		}
		return av < bv, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, false
		}
		return !av && bv, true
	default:
		return false, false
	}
}

func equalValue(a, b any) bool {
	return a == b
}
