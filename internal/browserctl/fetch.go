// fetch.go — browser-context replay (§4.6): issues a request from inside
// the page's JS context via window.fetch, so it rides the page's live
// cookies and TLS session rather than a separate HTTP client connection.
package browserctl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

type fetchResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	BodyB64 string            `json:"bodyB64"`
	Error   string            `json:"error,omitempty"`
}

func (c *Controller) Fetch(ctx context.Context, page types.PageHandle, req types.FetchRequest) (types.FetchResponse, error) {
	pg, err := toPage(page)
	if err != nil {
		return types.FetchResponse{}, err
	}

	headersJSON, _ := json.Marshal(req.Headers)
	bodyB64 := base64.StdEncoding.EncodeToString(req.Body)

	expr := fmt.Sprintf(`
(async function() {
  try {
    var headers = %s;
    var bodyB64 = %s;
    var body = bodyB64 ? Uint8Array.from(atob(bodyB64), c => c.charCodeAt(0)) : undefined;
    var resp = await fetch(%s, {method: %s, headers: headers, body: (%s === 'GET' || %s === 'HEAD') ? undefined : body, credentials: 'include'});
    var buf = await resp.arrayBuffer();
    var bytes = new Uint8Array(buf);
    var bin = '';
    for (var i = 0; i < bytes.length; i++) { bin += String.fromCharCode(bytes[i]); }
    var outHeaders = {};
    resp.headers.forEach(function(v, k) { outHeaders[k] = v; });
    return {status: resp.status, headers: outHeaders, bodyB64: btoa(bin)};
  } catch (e) {
    return {status: 0, headers: {}, bodyB64: '', error: String(e)};
  }
})()`, string(headersJSON), jsString(bodyB64), jsString(req.URL), jsString(req.Method), jsString(req.Method), jsString(req.Method))

	var result fetchResult
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		raw, exp, err := runtime.Evaluate(expr).WithAwaitPromise(true).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return errs.NewReplayError("browser-context fetch of %s: %s", req.URL, exp.Text)
		}
		return json.Unmarshal(raw.Value, &result)
	})
	if err := chromedp.Run(pg.ctx, action); err != nil {
		return types.FetchResponse{}, errs.NewReplayError("browser-context fetch of %s: %v", req.URL, err)
	}
	if result.Error != "" {
		return types.FetchResponse{}, errs.NewReplayError("browser-context fetch of %s: %s", req.URL, result.Error)
	}

	body, err := base64.StdEncoding.DecodeString(result.BodyB64)
	if err != nil {
		return types.FetchResponse{}, errs.NewReplayError("decoding fetch response body: %v", err)
	}
	return types.FetchResponse{Status: result.Status, Headers: result.Headers, Body: body}, nil
}
