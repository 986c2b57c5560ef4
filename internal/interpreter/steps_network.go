// steps_network.go — network_find, network_replay, network_extract step
// handlers: search the capture buffer, replay a captured request (browser
// or pure-HTTP), and extract from a previously stored response (§3, §4.4,
// §4.6, §4.7).
package interpreter

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/netcapture"
	"github.com/eyupulker/showrun/internal/replay"
	"github.com/eyupulker/showrun/internal/types"
)

func (in *Interpreter) stepNetworkFind(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	where, _ := params["where"].(map[string]any)
	saveAs, _ := params["saveAs"].(string)
	if where == nil || saveAs == "" {
		return errs.NewValidationError("network_find requires where and saveAs")
	}
	if in.Capture == nil {
		return errs.NewNetworkFindError("network_find: no network capture active (HTTP-only mode runs network_find as a no-op)")
	}

	pollMs, _ := numParam(params["pollIntervalMs"])
	if pollMs < 100 {
		pollMs = 1000
	}
	waitForMs, _ := numParam(params["waitForMs"])
	pick, _ := params["pick"].(string)
	if pick == "" {
		pick = "first"
	}

	if rc, ok := where["responseContains"].(string); ok && rc != "" {
		delay := time.Duration(pollMs*4) * time.Millisecond
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	deadline := time.Now().Add(time.Duration(waitForMs) * time.Millisecond)
	for {
		if id, ok := findMatch(in.Capture, where, pick); ok {
			rc.state.Vars[saveAs] = id
			return nil
		}
		if waitForMs <= 0 || time.Now().After(deadline) {
			return errs.NewNetworkFindError(
				"network_find: no capture matched within %dms — ensure a prior step triggers the request, or raise waitForMs", int(waitForMs))
		}
		timer := time.NewTimer(time.Duration(pollMs) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func findMatch(capture *netcapture.Capture, where map[string]any, pick string) (string, bool) {
	entries := capture.List(netcapture.ListAll, 0, false)
	var matches []types.CapturedRequest
	for _, e := range entries {
		if whereMatches(e, where) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	// cap.List returns newest first; "first" means earliest match
	// chronologically, "last" means most recent.
	if pick == "last" {
		return matches[0].ID, true
	}
	return matches[len(matches)-1].ID, true
}

func whereMatches(e types.CapturedRequest, where map[string]any) bool {
	if v, ok := where["urlIncludes"].(string); ok && v != "" && !strings.Contains(e.URL, v) {
		return false
	}
	if v, ok := where["urlRegex"].(string); ok && v != "" {
		re, err := regexp.Compile(v)
		if err != nil || !re.MatchString(e.URL) {
			return false
		}
	}
	if v, ok := where["method"].(string); ok && v != "" && !strings.EqualFold(e.Method, v) {
		return false
	}
	if v, ok := numParam(where["status"]); ok && v != 0 && e.Status != int(v) {
		return false
	}
	if v, ok := where["contentTypeIncludes"].(string); ok && v != "" {
		ct := e.ResponseHeaders["content-type"]
		if ct == "" {
			ct = e.ResponseHeaders["Content-Type"]
		}
		if !strings.Contains(ct, v) {
			return false
		}
	}
	if v, ok := where["responseContains"].(string); ok && v != "" && !strings.Contains(e.ResponseBodySnippet, v) {
		return false
	}
	return true
}

func (in *Interpreter) stepNetworkReplay(ctx context.Context, step types.Step, params map[string]any, rc *runContext) error {
	requestID, _ := params["requestId"].(string)
	out, _ := params["out"].(string)
	saveAs, _ := params["saveAs"].(string)
	auth, _ := params["auth"].(string)
	if requestID == "" || out == "" || auth != "browser_context" {
		return errs.NewValidationError("network_replay requires requestId, auth=\"browser_context\", and out")
	}
	respSpec, _ := params["response"].(map[string]any)
	as, _ := respSpec["as"].(string)
	jsonPath, _ := respSpec["jsonPath"].(string)

	ov, err := parseOverrides(params["overrides"])
	if err != nil {
		return err
	}

	var rawResp any
	var bodyBytes []byte
	var status int
	var url string

	if in.HTTPOnly {
		bodyBytes, status, url, err = in.replayHTTPOnly(step.ID, requestID, ov)
	} else {
		bodyBytes, status, url, err = in.replayBrowserContext(ctx, requestID, rc, ov)
	}
	rc.lastStatus = status
	rc.lastURL = url
	if err != nil {
		return err
	}

	extracted, err := extractResponse(bodyBytes, as, jsonPath)
	if err != nil {
		return err
	}
	rawResp = extracted

	if saveAs != "" {
		rc.state.Vars[saveAs] = rawResp
	}
	rc.state.Collectibles[out] = rawResp
	return nil
}

func (in *Interpreter) replayBrowserContext(ctx context.Context, requestID string, rc *runContext, ov replay.Overrides) ([]byte, int, string, error) {
	entry, ok, replayable := in.Capture.Get(requestID)
	if !ok {
		return nil, 0, "", errs.NewReplayError("network_replay: capture id %q not found in this session", requestID)
	}
	if !replayable {
		return nil, 0, entry.URL, errs.NewReplayError("network_replay: capture id %q has been evicted; replay data no longer available", requestID)
	}
	data, _ := in.Capture.ReplayData(requestID)
	req, err := replay.Resolve(data, entry.Method, entry.URL, ov)
	if err != nil {
		return nil, 0, entry.URL, err
	}
	br := replay.BrowserReplay{Controller: in.Controller}
	resp, err := br.Do(ctx, in.currentPage(rc), req)
	if err != nil {
		return nil, 0, req.URL, err
	}
	return resp.Body, resp.Status, req.URL, nil
}

func (in *Interpreter) replayHTTPOnly(stepID, requestID string, ov replay.Overrides) ([]byte, int, string, error) {
	if in.Snapshots == nil {
		return nil, 0, "", errs.NewReplayError("network_replay: no snapshot available for step %q in HTTP-only mode", stepID)
	}
	snap, ok := in.Snapshots.Snapshots[stepID]
	if !ok {
		return nil, 0, "", errs.NewReplayError("network_replay: no snapshot recorded for step %q", stepID)
	}
	req, err := replay.Resolve(types.ReplayData{RequestHeadersFull: snap.Headers, PostData: snap.Body}, snap.Method, snap.URL, ov)
	if err != nil {
		return nil, 0, snap.URL, err
	}
	resp, err := in.HTTPReplay.Do(req)
	if err != nil {
		return nil, 0, req.URL, err
	}
	if err := replay.ValidateStatusClass(stepID, snap.Response.Status, resp.Status); err != nil {
		return resp.Body, resp.Status, req.URL, err
	}
	return resp.Body, resp.Status, req.URL, nil
}

func extractResponse(body []byte, as, jsonPath string) (any, error) {
	switch as {
	case "json":
		var parsed any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, errs.NewReplayError("network_replay: response is not valid JSON: %v", err)
			}
		}
		if jsonPath == "" {
			return parsed, nil
		}
		result, err := jmespath.Search(jsonPath, parsed)
		if err != nil {
			return nil, errs.NewValidationError("invalid jsonPath expression %q: %v", jsonPath, err)
		}
		return result, nil
	case "text":
		if jsonPath == "" {
			return string(body), nil
		}
		var parsed any
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, errs.NewReplayError("network_replay: response is not valid JSON for jsonPath query: %v", err)
		}
		result, err := jmespath.Search(jsonPath, parsed)
		if err != nil {
			return nil, errs.NewValidationError("invalid jsonPath expression %q: %v", jsonPath, err)
		}
		return reserializeIfComplex(result), nil
	default:
		return nil, errs.NewValidationError("response.as must be json or text, got %q", as)
	}
}

// reserializeIfComplex implements §4.4's network_extract rule, reused
// here for network_replay's as:"text"+jsonPath combination: when the
// queried value is an object/array, re-serialize it as a JSON string for
// the output instead of Go's default %v formatting.
func reserializeIfComplex(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}

func (in *Interpreter) stepNetworkExtract(step types.Step, params map[string]any, rc *runContext) error {
	fromVar, _ := params["fromVar"].(string)
	as, _ := params["as"].(string)
	out, _ := params["out"].(string)
	jsonPath, _ := params["jsonPath"].(string)
	if fromVar == "" || out == "" {
		return errs.NewValidationError("network_extract requires fromVar and out")
	}
	raw, ok := rc.state.Vars[fromVar]
	if !ok {
		return errs.NewValidationError("network_extract: var %q not found", fromVar)
	}

	var value any = raw
	if jsonPath != "" {
		var err error
		value, err = jmespath.Search(jsonPath, raw)
		if err != nil {
			return errs.NewValidationError("invalid jsonPath expression %q: %v", jsonPath, err)
		}
	}

	if transform, ok := params["transform"].(map[string]any); ok {
		transformed, err := applyTransform(value, transform)
		if err != nil {
			return err
		}
		value = transformed
	}

	if as == "text" {
		value = reserializeIfComplex(value)
	}
	rc.state.Collectibles[out] = value
	return nil
}

// applyTransform implements §4.4's network_extract transform rule: apply
// a record of JMESPath expressions per element when value is an array, or
// once when value is a single object.
func applyTransform(value any, transform map[string]any) (any, error) {
	if arr, ok := value.([]any); ok {
		out := make([]any, len(arr))
		for i, item := range arr {
			t, err := applyTransformOnce(item, transform)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}
	return applyTransformOnce(value, transform)
}

func applyTransformOnce(item any, transform map[string]any) (map[string]any, error) {
	out := map[string]any{}
	for key, exprRaw := range transform {
		expr, _ := exprRaw.(string)
		if expr == "" {
			continue
		}
		v, err := jmespath.Search(expr, item)
		if err != nil {
			return nil, errs.NewValidationError("invalid transform jsonPath %q: %v", expr, err)
		}
		out[key] = v
	}
	return out, nil
}

func parseOverrides(raw any) (replay.Overrides, error) {
	var ov replay.Overrides
	m, ok := raw.(map[string]any)
	if !ok {
		return ov, nil
	}
	if rr, ok := m["urlReplace"].(map[string]any); ok {
		find, _ := rr["find"].(string)
		rep, _ := rr["replace"].(string)
		ov.URLReplace = &replay.RegexReplace{Pattern: find, Replace: rep}
	}
	if rr, ok := m["bodyReplace"].(map[string]any); ok {
		find, _ := rr["find"].(string)
		rep, _ := rr["replace"].(string)
		ov.BodyReplace = &replay.RegexReplace{Pattern: find, Replace: rep}
	}
	ov.URL, _ = m["url"].(string)
	ov.Body, _ = m["body"].(string)
	if q, ok := m["setQuery"].(map[string]any); ok {
		ov.SetQuery = map[string]string{}
		for k, v := range q {
			ov.SetQuery[k], _ = v.(string)
		}
	}
	if h, ok := m["setHeaders"].(map[string]any); ok {
		ov.SetHeaders = map[string]string{}
		for k, v := range h {
			ov.SetHeaders[k], _ = v.(string)
		}
	}
	return ov, nil
}
