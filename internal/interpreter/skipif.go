// skipif.go — skip_if condition evaluation (§4.4): url_includes,
// url_matches, element_visible, element_exists, var_equals/truthy/falsy,
// plus all/any combinators. Short-circuits.
package interpreter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/target"
	"github.com/eyupulker/showrun/internal/types"
)

// evalSkipIf evaluates a skip_if condition tree against the current run
// state. A nil/empty condition never skips.
func (in *Interpreter) evalSkipIf(ctx context.Context, cond map[string]any, st *types.RunState) (bool, error) {
	if len(cond) == 0 {
		return false, nil
	}

	if allRaw, ok := cond["all"].([]any); ok {
		for _, sub := range allRaw {
			sm, ok := sub.(map[string]any)
			if !ok {
				return false, errs.NewValidationError("skip_if.all entries must be objects")
			}
			ok2, err := in.evalSkipIf(ctx, sm, st)
			if err != nil {
				return false, err
			}
			if !ok2 {
				return false, nil
			}
		}
		return true, nil
	}
	if anyRaw, ok := cond["any"].([]any); ok {
		for _, sub := range anyRaw {
			sm, ok := sub.(map[string]any)
			if !ok {
				return false, errs.NewValidationError("skip_if.any entries must be objects")
			}
			ok2, err := in.evalSkipIf(ctx, sm, st)
			if err != nil {
				return false, err
			}
			if ok2 {
				return true, nil
			}
		}
		return false, nil
	}

	if v, ok := cond["url_includes"].(string); ok {
		url, err := in.currentURL(ctx, st)
		if err != nil {
			return false, err
		}
		return strings.Contains(url, v), nil
	}
	if v, ok := cond["url_matches"].(string); ok {
		re, err := regexp.Compile(v)
		if err != nil {
			return false, errs.NewValidationError("skip_if.url_matches is not a valid regex: %v", err)
		}
		url, err := in.currentURL(ctx, st)
		if err != nil {
			return false, err
		}
		return re.MatchString(url), nil
	}
	if raw, ok := cond["element_visible"]; ok {
		return in.evalElementPredicate(ctx, raw, st, true)
	}
	if raw, ok := cond["element_exists"]; ok {
		return in.evalElementPredicate(ctx, raw, st, false)
	}
	if raw, ok := cond["var_equals"].(map[string]any); ok {
		name, _ := raw["name"].(string)
		want := raw["value"]
		got, present := st.Vars[name]
		if !present {
			return false, nil
		}
		return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want), nil
	}
	if name, ok := cond["var_truthy"].(string); ok {
		return isTruthy(st.Vars[name]), nil
	}
	if name, ok := cond["var_falsy"].(string); ok {
		return !isTruthy(st.Vars[name]), nil
	}

	return false, errs.NewValidationError("skip_if condition has no recognized key")
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func (in *Interpreter) currentURL(ctx context.Context, st *types.RunState) (string, error) {
	if in.Controller == nil || st.Page == nil {
		return "", nil // HTTP-only mode: no page, url-based skip_if conditions never match
	}
	return in.Controller.URL(ctx, st.Page)
}

func (in *Interpreter) evalElementPredicate(ctx context.Context, raw any, st *types.RunState, requireVisible bool) (bool, error) {
	if in.Controller == nil || st.Page == nil {
		return false, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return false, errs.NewValidationError("skip_if element predicate must be an object target")
	}
	t, ok, err := target.FromParams(map[string]any{"target": m})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errs.NewValidationError("skip_if element predicate requires a target")
	}
	resolved, err := target.Resolve(ctx, in.Controller, st.Page, t)
	if err != nil {
		return false, nil // unresolved target: treat as condition false, not fatal
	}
	if resolved.MatchedCount == 0 {
		return false, nil
	}
	if !requireVisible {
		return true, nil
	}
	if err := resolved.Locator.First().WaitFor(ctx, "visible"); err != nil {
		return false, nil
	}
	return true, nil
}
