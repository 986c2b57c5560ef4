// steps_dom.go — DOM-interaction step handlers: navigate, wait_for, click,
// fill, extract_*, dom_scrape, sleep, assert, set_var, select_option,
// press_key, upload_file, frame, new_tab, switch_tab (§3, §4.4).
package interpreter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/target"
	"github.com/eyupulker/showrun/internal/templating"
	"github.com/eyupulker/showrun/internal/types"
)

func (in *Interpreter) stepNavigate(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	url, _ := params["url"].(string)
	if url == "" {
		return errs.NewValidationError("navigate requires a url")
	}
	waitUntil := types.WaitLoad
	if wu, ok := params["waitUntil"].(string); ok && wu != "" {
		waitUntil = types.WaitUntil(wu)
	}
	return in.Controller.Goto(ctx, in.currentPage(rc), url, waitUntil)
}

func (in *Interpreter) stepWaitFor(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	timeoutMs := 30000
	if step.TimeoutMs != nil {
		timeoutMs = *step.TimeoutMs
	}
	page := in.currentPage(rc)
	if u, ok := params["url"].(string); ok && u != "" {
		return in.Controller.WaitForURL(ctx, page, u, timeoutMs)
	}
	if ls, ok := params["loadState"].(string); ok && ls != "" {
		return in.Controller.WaitForLoadState(ctx, page, ls, timeoutMs)
	}
	t, ok, err := target.FromParams(params)
	if err != nil {
		return err
	}
	if ok {
		resolved, err := target.Resolve(ctx, in.Controller, page, t)
		if err != nil {
			return err
		}
		if resolved.MatchedCount == 0 {
			return errs.NewTargetNotFoundError("wait_for: target %s not found", target.Describe(t))
		}
		return resolved.Locator.First().WaitFor(ctx, "visible")
	}
	return errs.NewValidationError("wait_for requires one of target/selector/url/loadState")
}

func (in *Interpreter) resolveStepTarget(ctx context.Context, params map[string]any, rc *runContext) (target.Resolved, types.Target, error) {
	t, ok, err := target.FromParams(params)
	if err != nil {
		return target.Resolved{}, t, err
	}
	if !ok {
		return target.Resolved{}, t, errs.NewValidationError("step requires a target or selector")
	}
	resolved, err := target.Resolve(ctx, in.Controller, in.currentPage(rc), t)
	if err != nil {
		return target.Resolved{}, t, err
	}
	return resolved, t, nil
}

func (in *Interpreter) stepClick(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	resolved, t, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		return errs.NewTargetNotFoundError("click: target %s not found", target.Describe(t))
	}
	first := true
	if f, ok := params["first"].(bool); ok {
		first = f
	}
	loc := resolved.Locator
	if first {
		loc = loc.First()
	}
	return loc.Click(ctx)
}

func (in *Interpreter) stepFill(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	resolved, t, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		return errs.NewTargetNotFoundError("fill: target %s not found", target.Describe(t))
	}
	value, _ := params["value"].(string)
	clear := true
	if c, ok := params["clear"].(bool); ok {
		clear = c
	}
	return resolved.Locator.First().Fill(ctx, value, clear)
}

func (in *Interpreter) stepExtractText(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	out, _ := params["out"].(string)
	if out == "" {
		return errs.NewValidationError("extract_text requires out")
	}
	trim := true
	if tv, ok := params["trim"].(bool); ok {
		trim = tv
	}
	first := true
	if f, ok := params["first"].(bool); ok {
		first = f
	}

	resolved, _, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		rc.state.Collectibles[out] = defaultOrEmpty(params)
		return nil
	}

	if first {
		text, err := resolved.Locator.First().TextContent(ctx)
		if err != nil {
			return err
		}
		if trim {
			text = strings.TrimSpace(text)
		}
		rc.state.Collectibles[out] = text
		return nil
	}

	var all []string
	for i := 0; i < resolved.MatchedCount; i++ {
		text, err := resolved.Locator.Nth(i).TextContent(ctx)
		if err != nil {
			return err
		}
		if trim {
			text = strings.TrimSpace(text)
		}
		all = append(all, text)
	}
	rc.state.Collectibles[out] = all
	return nil
}

func defaultOrEmpty(params map[string]any) any {
	if d, ok := params["default"]; ok {
		return d
	}
	return ""
}

func (in *Interpreter) stepExtractAttribute(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	out, _ := params["out"].(string)
	attr, _ := params["attribute"].(string)
	if out == "" || attr == "" {
		return errs.NewValidationError("extract_attribute requires attribute and out")
	}
	resolved, _, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		rc.state.Collectibles[out] = defaultOrEmpty(params)
		return nil
	}
	val, err := resolved.Locator.First().GetAttribute(ctx, attr)
	if err != nil {
		return err
	}
	rc.state.Collectibles[out] = val
	return nil
}

func (in *Interpreter) stepExtractTitle(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	out, _ := params["out"].(string)
	if out == "" {
		return errs.NewValidationError("extract_title requires out")
	}
	content, err := in.Controller.Content(ctx, in.currentPage(rc))
	if err != nil {
		return err
	}
	rc.state.Collectibles[out] = extractHTMLTitle(content)
	return nil
}

func extractHTMLTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title>")
	if start < 0 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start : start+end])
}

func (in *Interpreter) stepDomScrape(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	out, _ := params["out"].(string)
	if out == "" {
		return errs.NewValidationError("dom_scrape requires out")
	}
	var attrNames []string
	if raw, ok := params["attributes"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				attrNames = append(attrNames, s)
			}
		}
	}
	resolved, _, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	type record struct {
		Text       string            `json:"text"`
		Attributes map[string]string `json:"attributes,omitempty"`
	}
	var records []record
	for i := 0; i < resolved.MatchedCount; i++ {
		loc := resolved.Locator.Nth(i)
		text, err := loc.TextContent(ctx)
		if err != nil {
			return err
		}
		rec := record{Text: strings.TrimSpace(text)}
		if len(attrNames) > 0 {
			rec.Attributes = map[string]string{}
			for _, a := range attrNames {
				v, err := loc.GetAttribute(ctx, a)
				if err == nil {
					rec.Attributes[a] = v
				}
			}
		}
		records = append(records, rec)
	}
	rc.state.Collectibles[out] = records
	return nil
}

func (in *Interpreter) stepSleep(ctx context.Context, params map[string]any) error {
	ms, _ := numParam(params["durationMs"])
	if ms < 0 {
		return errs.NewValidationError("sleep requires durationMs >= 0")
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func numParam(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func (in *Interpreter) stepAssert(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	message, _ := params["message"].(string)
	ok, err := in.evalAssertPredicate(ctx, params, rc)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewAssertionError(message)
	}
	return nil
}

func (in *Interpreter) evalAssertPredicate(ctx context.Context, params map[string]any, rc *runContext) (bool, error) {
	if v, ok := params["urlIncludes"].(string); ok {
		url, err := in.currentURL(ctx, rc.state)
		if err != nil {
			return false, err
		}
		return strings.Contains(url, v), nil
	}
	if v, ok := params["urlMatches"].(string); ok {
		cond := map[string]any{"url_matches": v}
		return in.evalSkipIf(ctx, cond, rc.state)
	}
	if v, ok := params["varEquals"].(map[string]any); ok {
		cond := map[string]any{"var_equals": v}
		return in.evalSkipIf(ctx, cond, rc.state)
	}
	if name, ok := params["varTruthy"].(string); ok {
		return isTruthy(rc.state.Vars[name]), nil
	}
	if name, ok := params["varFalsy"].(string); ok {
		return !isTruthy(rc.state.Vars[name]), nil
	}
	if v, ok := params["elementVisible"]; ok {
		return in.evalElementPredicate(ctx, v, rc.state, true)
	}
	if v, ok := params["elementExists"]; ok {
		return in.evalElementPredicate(ctx, v, rc.state, false)
	}
	return false, errs.NewValidationError("assert requires at least one predicate")
}

func (in *Interpreter) stepSetVar(step types.Step, params map[string]any, rc *runContext) error {
	name, _ := params["name"].(string)
	if name == "" {
		return errs.NewValidationError("set_var requires name")
	}
	value, present := params["value"]
	if !present {
		return errs.NewValidationError("set_var requires value")
	}
	if s, ok := value.(string); ok {
		resolved, err := templating.Resolve(s, templating.Context{Inputs: rc.state.Inputs, Vars: rc.state.Vars, Secrets: in.Secrets})
		if err != nil {
			return err
		}
		rc.state.Vars[name] = resolved
		return nil
	}
	rc.state.Vars[name] = value
	return nil
}

func (in *Interpreter) stepSelectOption(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	resolved, t, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		return errs.NewTargetNotFoundError("select_option: target %s not found", target.Describe(t))
	}
	value, _ := params["value"].(string)
	label, _ := params["label"].(string)
	return resolved.Locator.First().SelectOption(ctx, value, label)
}

// stepPressKey sends a key event to target's first match. The
// BrowserController capability (§6) has no page-level "send key to
// whatever is focused" primitive, so an omitted target/selector is a
// validation error here rather than the spec's "defaults to focused
// element" — a concrete adapter wanting that behavior can resolve its own
// focused-element locator and pass it as target.
func (in *Interpreter) stepPressKey(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	key, _ := params["key"].(string)
	if key == "" {
		return errs.NewValidationError("press_key requires key")
	}
	resolved, t, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		return errs.NewTargetNotFoundError("press_key: target %s not found", target.Describe(t))
	}
	return resolved.Locator.First().Press(ctx, key)
}

func (in *Interpreter) stepUploadFile(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	path, _ := params["path"].(string)
	if path == "" {
		return errs.NewValidationError("upload_file requires path")
	}
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return errs.NewValidationError("upload_file path %q escapes the uploads/ directory", path)
	}
	resolved, t, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		return errs.NewTargetNotFoundError("upload_file: target %s not found", target.Describe(t))
	}
	full := filepath.Join("uploads", clean)
	return resolved.Locator.First().SetInputFiles(ctx, []string{full})
}

func (in *Interpreter) stepFrame(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	if len(params) == 0 {
		main, err := in.Controller.MainFrame(ctx, in.currentPage(rc))
		if err != nil {
			return err
		}
		in.setCurrentPage(rc, main)
		return nil
	}
	resolved, t, err := in.resolveStepTarget(ctx, params, rc)
	if err != nil {
		return err
	}
	if resolved.MatchedCount == 0 {
		return errs.NewTargetNotFoundError("frame: target %s not found", target.Describe(t))
	}
	frame, err := in.Controller.Frame(ctx, in.currentPage(rc), resolved.Locator.First())
	if err != nil {
		return err
	}
	in.setCurrentPage(rc, frame)
	return nil
}

func (in *Interpreter) stepNewTab(ctx context.Context, params map[string]any, rc *runContext) error {
	url, _ := params["url"].(string)
	page, err := in.Controller.NewTab(ctx, url)
	if err != nil {
		return err
	}
	rc.tabs = append(rc.tabs, page)
	rc.active = len(rc.tabs) - 1
	rc.state.Page = page
	return nil
}

func (in *Interpreter) stepSwitchTab(ctx context.Context, params map[string]any, rc *runContext) error {
	idx, ok := numParam(params["index"])
	if !ok {
		return errs.NewValidationError("switch_tab requires index")
	}
	i := int(idx)
	if i < 0 || i >= len(rc.tabs) {
		page, err := in.Controller.Tab(ctx, i)
		if err != nil {
			return fmt.Errorf("switch_tab: %w", err)
		}
		rc.tabs = append(rc.tabs, page)
		i = len(rc.tabs) - 1
	}
	rc.active = i
	rc.state.Page = rc.tabs[i]
	return nil
}
