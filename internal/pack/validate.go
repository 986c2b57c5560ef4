// validate.go — Structural validation of a parsed TaskPack (C1, §4.1).
// Grounded on the teacher's internal/schema (manifest field validation) and
// internal/security (closed-enumeration checks, e.g. role sets) folded
// together: unlike a generic JSON-schema validator, this hand-writes the
// exact per-step, per-field diagnostic format §4.1 requires, including the
// extract_text -> network_extract steering message.
package pack

import (
	"fmt"
	"regexp"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/templating"
	"github.com/eyupulker/showrun/internal/types"
)

// requiredParams lists, per step type, the param names that must be
// present (possibly as a one-of group; see requiredOneOf below).
var requiredParams = map[string][]string{
	"navigate":          {"url"},
	"click":             {},
	"fill":              {"value"},
	"extract_text":      {"out"},
	"extract_attribute": {"attribute", "out"},
	"extract_title":     {"out"},
	"sleep":             {"durationMs"},
	"set_var":           {"name", "value"},
	"network_find":      {"where", "saveAs"},
	"network_replay":    {"requestId", "auth", "out"},
	"network_extract":   {"fromVar", "as", "out"},
	"dom_scrape":        {"out"},
	"select_option":     {},
	"press_key":         {"key"},
	"upload_file":       {"path"},
	"new_tab":           {},
	"switch_tab":        {"index"},
}

// knownParams enumerates every accepted param name per step type, used to
// reject unknown params with a steering message (§4.1).
var knownParams = map[string][]string{
	"navigate":          {"url", "waitUntil"},
	"wait_for":          {"target", "selector", "url", "loadState", "timeoutMs"},
	"click":             {"target", "selector", "first", "scope", "near", "hint"},
	"fill":              {"target", "selector", "value", "clear", "scope", "near", "hint"},
	"extract_text":      {"target", "selector", "out", "trim", "first", "default", "scope", "near", "hint"},
	"extract_attribute": {"target", "selector", "attribute", "out", "default", "scope", "near", "hint"},
	"extract_title":     {"out"},
	"sleep":             {"durationMs"},
	"assert":            {"target", "selector", "urlIncludes", "urlMatches", "varEquals", "varTruthy", "varFalsy", "elementVisible", "elementExists", "message"},
	"set_var":           {"name", "value"},
	"network_find":      {"where", "saveAs", "pick", "waitForMs", "pollIntervalMs"},
	"network_replay":    {"requestId", "auth", "out", "response", "overrides", "saveAs"},
	"network_extract":   {"fromVar", "as", "jsonPath", "out", "transform"},
	"dom_scrape":        {"target", "selector", "out", "attributes", "scope", "near", "hint"},
	"select_option":     {"target", "selector", "value", "label", "scope", "near", "hint"},
	"press_key":         {"target", "selector", "key", "scope", "near", "hint"},
	"upload_file":       {"target", "selector", "path", "scope", "near", "hint"},
	"frame":             {"target", "selector", "frameUrl"},
	"new_tab":           {"url"},
	"switch_tab":        {"index"},
}

var knownStepTypes = func() map[string]bool {
	m := map[string]bool{}
	for k := range knownParams {
		m[k] = true
	}
	return m
}()

var validMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true}
var validOnError = map[string]bool{"": true, "stop": true, "continue": true}
var validOnce = map[string]bool{"": true, "session": true, "profile": true}
var validWaitUntil = map[string]bool{"": true, "load": true, "domcontentloaded": true, "networkidle": true, "commit": true}

// Validate runs structural validation over the pack's flow. When sink is
// non-nil, every violation found is appended to *sink and Validate returns
// nil (collect-all mode). When sink is nil, the first violation found is
// returned immediately as a *errs.ValidationError (fail-fast mode, §8).
func Validate(p *types.TaskPack, sink *[]error) error {
	report := func(stepIdx int, stepID, stepType, reason string) error {
		if stepID == "" {
			stepID = "?"
		}
		if stepType == "" {
			stepType = "?"
		}
		e := errs.NewValidationError("Step %d (id=%q, type=%q): %s", stepIdx, stepID, stepType, reason)
		if sink == nil {
			return e
		}
		*sink = append(*sink, e)
		return nil
	}

	seenIDs := map[string]bool{}
	for i, step := range p.Flow {
		if step.ID == "" {
			if err := report(i, step.ID, step.Type, "step id must be non-empty"); err != nil {
				return err
			}
		} else if seenIDs[step.ID] {
			if err := report(i, step.ID, step.Type, fmt.Sprintf("duplicate step id %q", step.ID)); err != nil {
				return err
			}
		}
		seenIDs[step.ID] = true

		if !knownStepTypes[step.Type] {
			if err := report(i, step.ID, step.Type, fmt.Sprintf("unknown step type %q", step.Type)); err != nil {
				return err
			}
			continue // §4.1: unknown params inside unknown types are not also reported
		}

		if step.TimeoutMs != nil && *step.TimeoutMs < 0 {
			if err := report(i, step.ID, step.Type, "timeoutMs must be >= 0"); err != nil {
				return err
			}
		}
		if !validOnError[step.OnError] {
			if err := report(i, step.ID, step.Type, fmt.Sprintf("onError must be one of stop/continue, got %q", step.OnError)); err != nil {
				return err
			}
		}
		if !validOnce[step.Once] {
			if err := report(i, step.ID, step.Type, fmt.Sprintf("once must be one of session/profile, got %q", step.Once)); err != nil {
				return err
			}
		}

		for _, req := range requiredParams[step.Type] {
			if _, ok := step.Params[req]; !ok {
				if err := report(i, step.ID, step.Type, fmt.Sprintf("missing required param %q", req)); err != nil {
					return err
				}
			}
		}
		if err := validateOneOfRequirements(step, report, i); err != nil {
			return err
		}

		allowed := knownParams[step.Type]
		for name := range step.Params {
			if !containsStr(allowed, name) {
				reason := fmt.Sprintf("unknown param %q for step type %q", name, step.Type)
				if step.Type == "extract_text" && (name == "eval" || name == "expression" || name == "transform") {
					reason = fmt.Sprintf("unknown param %q for step type %q — use a network_extract step with a JMESPath expression instead", name, step.Type)
				}
				if err := report(i, step.ID, step.Type, reason); err != nil {
					return err
				}
			}
		}

		if err := validateStepSpecifics(step, report, i); err != nil {
			return err
		}
	}

	if err := validateInputSchema(p.Inputs, report, len(p.Flow)); err != nil {
		return err
	}

	if p.Kind != "" && p.Kind != "json-dsl" {
		if err := report(len(p.Flow), "", "", fmt.Sprintf("unsupported pack kind %q (expected \"json-dsl\")", p.Kind)); err != nil {
			return err
		}
	}
	if p.ID == "" {
		if err := report(len(p.Flow), "", "", "pack id is required"); err != nil {
			return err
		}
	} else if !idPattern.MatchString(p.ID) {
		if err := report(len(p.Flow), "", "", fmt.Sprintf("pack id %q does not match [a-zA-Z0-9._-]+", p.ID)); err != nil {
			return err
		}
	}

	return nil
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type reportFn func(stepIdx int, stepID, stepType, reason string) error

func validateOneOfRequirements(step types.Step, report reportFn, i int) error {
	switch step.Type {
	case "wait_for":
		if !hasAny(step.Params, "target", "selector", "url", "loadState") {
			return report(i, step.ID, step.Type, "wait_for requires one of target/selector/url/loadState")
		}
	case "click", "dom_scrape", "select_option", "press_key", "upload_file":
		if !hasAny(step.Params, "target", "selector") {
			return report(i, step.ID, step.Type, fmt.Sprintf("%s requires a target or selector", step.Type))
		}
	case "fill":
		if !hasAny(step.Params, "target", "selector") {
			return report(i, step.ID, step.Type, "fill requires a target or selector")
		}
	case "extract_text", "extract_attribute":
		if !hasAny(step.Params, "target", "selector") {
			return report(i, step.ID, step.Type, fmt.Sprintf("%s requires a target or selector", step.Type))
		}
	case "assert":
		if !hasAny(step.Params, "urlIncludes", "urlMatches", "varEquals", "varTruthy", "varFalsy", "elementVisible", "elementExists") {
			return report(i, step.ID, step.Type, "assert requires at least one predicate")
		}
	}
	return nil
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func validateStepSpecifics(step types.Step, report reportFn, i int) error {
	switch step.Type {
	case "navigate":
		if wu, ok := step.Params["waitUntil"].(string); ok && !validWaitUntil[wu] {
			return report(i, step.ID, step.Type, fmt.Sprintf("waitUntil must be one of load/domcontentloaded/networkidle/commit, got %q", wu))
		}
	case "network_find":
		where, _ := step.Params["where"].(map[string]any)
		if where == nil {
			return report(i, step.ID, step.Type, "where must be an object")
		}
		if rx, ok := where["urlRegex"].(string); ok && rx != "" {
			if _, err := regexp.Compile(rx); err != nil {
				return report(i, step.ID, step.Type, fmt.Sprintf("where.urlRegex is not a valid regex: %v", err))
			}
		}
		if method, ok := where["method"].(string); ok && method != "" && !validMethods[method] {
			return report(i, step.ID, step.Type, fmt.Sprintf("where.method must be one of GET/POST/PUT/DELETE/PATCH, got %q", method))
		}
		if rc, ok := where["responseContains"].(string); ok && len(rc) > 2000 {
			return report(i, step.ID, step.Type, "where.responseContains must be <= 2000 chars")
		}
		if pick, ok := step.Params["pick"].(string); ok && pick != "" && pick != "first" && pick != "last" {
			return report(i, step.ID, step.Type, fmt.Sprintf("pick must be one of first/last, got %q", pick))
		}
		if pim, ok := numParam(step.Params, "pollIntervalMs"); ok && pim < 100 {
			return report(i, step.ID, step.Type, "pollIntervalMs must be >= 100")
		}
	case "network_replay":
		if auth, _ := step.Params["auth"].(string); auth != "browser_context" {
			return report(i, step.ID, step.Type, fmt.Sprintf("auth must be \"browser_context\", got %q", auth))
		}
		if reqID, _ := step.Params["requestId"].(string); !templating.HasExpression(reqID) {
			return report(i, step.ID, step.Type, "requestId must be a template reference (e.g. {{vars.foo}}), never a literal capture id")
		}
		if resp, ok := step.Params["response"].(map[string]any); ok {
			if as, _ := resp["as"].(string); as != "json" && as != "text" {
				return report(i, step.ID, step.Type, fmt.Sprintf("response.as must be one of json/text, got %q", as))
			}
		} else {
			return report(i, step.ID, step.Type, "response must be an object with an 'as' field")
		}
		if overrides, ok := step.Params["overrides"].(map[string]any); ok {
			if err := validateOverrides(overrides, report, i, step); err != nil {
				return err
			}
		}
	case "network_extract":
		if as, _ := step.Params["as"].(string); as != "json" && as != "text" {
			return report(i, step.ID, step.Type, fmt.Sprintf("as must be one of json/text, got %q", as))
		}
	case "sleep":
		if d, ok := numParam(step.Params, "durationMs"); ok && d < 0 {
			return report(i, step.ID, step.Type, "durationMs must be >= 0")
		}
	}
	return nil
}

func validateOverrides(overrides map[string]any, report reportFn, i int, step types.Step) error {
	for _, key := range []string{"urlReplace", "bodyReplace"} {
		if block, ok := overrides[key].(map[string]any); ok {
			if find, ok := block["find"].(string); ok {
				if _, err := regexp.Compile(find); err != nil {
					return report(i, step.ID, step.Type, fmt.Sprintf("overrides.%s.find is not a valid regex: %v", key, err))
				}
			}
		}
	}
	if setHeaders, ok := overrides["setHeaders"].(map[string]any); ok {
		for name := range setHeaders {
			if types.SensitiveHeaders[lower(name)] {
				return report(i, step.ID, step.Type, fmt.Sprintf("overrides.setHeaders cannot set sensitive header %q", name))
			}
		}
	}
	return nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func numParam(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func validateInputSchema(schema types.InputSchema, report reportFn, idx int) error {
	for name, field := range schema {
		if field.Type != "string" && field.Type != "number" && field.Type != "boolean" {
			if err := report(idx, "", "", fmt.Sprintf("input %q has unsupported type %q (expected string/number/boolean)", name, field.Type)); err != nil {
				return err
			}
		}
	}
	return nil
}
