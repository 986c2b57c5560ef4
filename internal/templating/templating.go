// templating.go — Resolves {{inputs.x}}/{{vars.x}}/{{secret.X}} expressions
// with pipe filters (§4.2). Grounded on the teacher's redaction.go
// pre-compiled-pattern-table style: the expression regex and filter
// dispatch table are built once and reused across calls without locking.
package templating

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/eyupulker/showrun/internal/errs"
)

// Context is the scope a template expression is resolved against.
type Context struct {
	Inputs  map[string]any
	Vars    map[string]any
	Secrets map[string]string
}

var exprPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve replaces every {{...}} expression in s with its resolved value.
// An expression referencing a path that does not resolve (and has no
// filter supplying a fallback) returns a *errs.ValidationError instead of
// silently collapsing to empty string (§4.2).
func Resolve(s string, ctx Context) (string, error) {
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		sub := exprPattern.FindStringSubmatch(m)
		expr := strings.TrimSpace(sub[1])
		val, err := evalExpr(expr, ctx)
		if err != nil {
			firstErr = err
			return m
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveValue recurses into maps/arrays, resolving every string leaf via
// Resolve. Non-string leaves (numbers, booleans, nil) pass through
// unchanged (§4.2: "recursion into objects/arrays is required for override
// blobs").
func ResolveValue(v any, ctx Context) (any, error) {
	switch t := v.(type) {
	case string:
		return Resolve(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			rv, err := ResolveValue(vv, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			rv, err := ResolveValue(vv, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// HasExpression reports whether s contains at least one {{...}} expression,
// used by the Snapshot Engine's HTTP-only eligibility check (§4.7 rule 4).
func HasExpression(s string) bool {
	return exprPattern.MatchString(s)
}

func evalExpr(expr string, ctx Context) (string, error) {
	parts := strings.Split(expr, "|")
	pathExpr := strings.TrimSpace(parts[0])
	val, err := resolvePath(pathExpr, ctx)
	if err != nil {
		return "", err
	}
	for _, f := range parts[1:] {
		val, err = applyFilter(strings.TrimSpace(f), val)
		if err != nil {
			return "", err
		}
	}
	return val, nil
}

func resolvePath(path string, ctx Context) (string, error) {
	dot := strings.Index(path, ".")
	if dot < 0 {
		return "", errs.NewValidationError("unresolved template reference %q: expected a dotted scope.field path", path)
	}
	scope := path[:dot]
	field := path[dot+1:]
	switch scope {
	case "inputs":
		if v, ok := ctx.Inputs[field]; ok {
			return stringify(v), nil
		}
		return "", errs.NewValidationError("unresolved template reference %q: no such input", path)
	case "vars":
		if v, ok := ctx.Vars[field]; ok {
			return stringify(v), nil
		}
		return "", errs.NewValidationError("unresolved template reference %q: no such var", path)
	case "secret":
		if v, ok := ctx.Secrets[field]; ok {
			return v, nil
		}
		return "", errs.NewValidationError("unresolved template reference %q: secret not set", path)
	default:
		return "", errs.NewValidationError("unresolved template reference %q: unknown scope %q (expected inputs/vars/secret)", path, scope)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func applyFilter(f string, val string) (string, error) {
	name, args := parseFilter(f)
	switch name {
	case "urlencode":
		return url.QueryEscape(val), nil
	case "pctEncode":
		return pctEncode(val), nil
	case "totp":
		code, err := totp.GenerateCode(strings.ToUpper(val), time.Now())
		if err != nil {
			return "", errs.NewValidationError("totp filter: %v", err)
		}
		return code, nil
	case "replace":
		if len(args) != 2 {
			return "", errs.NewValidationError("replace filter requires exactly 2 arguments, got %d", len(args))
		}
		return strings.ReplaceAll(val, args[0], args[1]), nil
	default:
		return "", errs.NewValidationError("unknown template filter %q", name)
	}
}

// parseFilter parses "name('a', 'b')" or "name" into (name, args).
func parseFilter(f string) (string, []string) {
	open := strings.Index(f, "(")
	if open < 0 {
		return f, nil
	}
	name := strings.TrimSpace(f[:open])
	close := strings.LastIndex(f, ")")
	if close < open {
		return name, nil
	}
	inner := f[open+1 : close]
	var args []string
	for _, raw := range strings.Split(inner, ",") {
		a := strings.TrimSpace(raw)
		a = strings.Trim(a, `'"`)
		args = append(args, a)
	}
	return name, args
}

// pctEncode percent-encodes like urlencode, additionally keeping space as
// %20 (not "+") and escaping "~", which net/url.QueryEscape leaves
// unescaped since it treats "~" as an RFC 3986 unreserved character — §4.2
// requires it encoded too.
func pctEncode(s string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return strings.ReplaceAll(escaped, "~", "%7E")
}
