// replay.go — Replay Engine (C6): replays a previously captured request
// either through the live browser's network context (authoritative) or
// via a standalone HTTP client against a recorded snapshot (§4.6).
package replay

import (
	"context"
	"time"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// browserBodyTruncateFull is the verbatim cap on a browser-context replay
// response body (§4.6: "≤ 256 KB verbatim, else first 2 KB plus a
// truncation marker").
const browserBodyTruncateFull = 256 * 1024

const browserBodyTruncateHead = 2 * 1024

const truncationMarker = "\n...[truncated]"

// DefaultHTTPTimeout is the pure-HTTP replay path's default, cancellable
// request timeout (§4.6).
const DefaultHTTPTimeout = 30 * time.Second

// Request is a fully resolved (templated, overridden) replay request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Resolve applies ResolveURL/ResolveBody/ResolveHeaders to a captured
// request's replay data to produce the request actually sent.
func Resolve(data types.ReplayData, method, originalURL string, ov Overrides) (Request, error) {
	u, err := ResolveURL(originalURL, ov)
	if err != nil {
		return Request{}, err
	}
	body, err := ResolveBody(data.PostData, ov)
	if err != nil {
		return Request{}, err
	}
	headers, err := ResolveHeaders(data.RequestHeadersFull, ov)
	if err != nil {
		return Request{}, err
	}
	return Request{Method: method, URL: u, Headers: headers, Body: []byte(body)}, nil
}

// BrowserReplay replays req through the browser's live network context, so
// cookies and TLS session state apply (§4.6, authoritative path).
type BrowserReplay struct {
	Controller types.BrowserController
}

// Do issues req via the controller's Fetch and truncates the response body
// per §4.6's bound.
func (r BrowserReplay) Do(ctx context.Context, page types.PageHandle, req Request) (types.FetchResponse, error) {
	resp, err := r.Controller.Fetch(ctx, page, types.FetchRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Body:    req.Body,
	})
	if err != nil {
		return types.FetchResponse{}, errs.NewReplayError("browser-context replay of %s: %v", req.URL, err)
	}
	resp.Body = truncateBody(resp.Body)
	return resp, nil
}

func truncateBody(body []byte) []byte {
	if len(body) <= browserBodyTruncateFull {
		return body
	}
	head := body[:browserBodyTruncateHead]
	out := make([]byte, 0, len(head)+len(truncationMarker))
	out = append(out, head...)
	out = append(out, truncationMarker...)
	return out
}
