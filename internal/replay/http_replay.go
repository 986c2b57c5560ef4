// http_replay.go — pure-HTTP replay path (§4.6, §4.7's HTTP-only mode):
// issues the resolved request with the engine's own HTTP client instead of
// through the browser, so a flow that is fully HTTP-compatible never needs
// to launch a browser at all.
package replay

import (
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"github.com/eyupulker/showrun/internal/errs"
)

// HTTPResponse is the result of a pure-HTTP replay.
type HTTPResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// HTTPReplay issues Request objects with fasthttp.Client, stripping any
// content-length header first since fasthttp recomputes it from the
// (possibly override-changed) body (§4.6).
type HTTPReplay struct {
	// ProxyAddr, when non-empty, routes requests through an HTTP(S) proxy
	// (e.g. the one resolved by internal/proxy's provider registry).
	ProxyAddr string
	// Timeout defaults to DefaultHTTPTimeout when zero.
	Timeout time.Duration

	client     *fasthttp.Client
	clientAddr string
}

// Do sends req and returns its response. The request must already be fully
// resolved (Resolve having been applied upstream).
func (h *HTTPReplay) Do(req Request) (HTTPResponse, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	client := h.clientFor(h.ProxyAddr)

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(req.URL)
	freq.Header.SetMethod(req.Method)
	for k, v := range StripContentLength(req.Headers) {
		freq.Header.Set(k, v)
	}
	freq.SetBody(req.Body)

	if err := client.DoTimeout(freq, fresp, timeout); err != nil {
		return HTTPResponse{}, errs.NewReplayError("pure-HTTP replay of %s: %v", req.URL, err)
	}

	headers := map[string]string{}
	fresp.Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})
	body := append([]byte(nil), fresp.Body()...)
	return HTTPResponse{Status: fresp.StatusCode(), Headers: headers, Body: body}, nil
}

func (h *HTTPReplay) clientFor(proxyAddr string) *fasthttp.Client {
	if h.client != nil && h.clientAddr == proxyAddr {
		return h.client
	}
	c := &fasthttp.Client{
		MaxConnsPerHost: 64,
	}
	if proxyAddr != "" {
		c.Dial = fasthttpproxy.FasthttpHTTPDialerTimeout(proxyAddr, DefaultHTTPTimeout)
	}
	h.client = c
	h.clientAddr = proxyAddr
	return c
}

// ValidateStatusClass implements §4.7's post-replay response validation:
// compare the replayed status against the snapshot's recorded status
// class (the hundreds digit), surfacing a typed drift error on mismatch so
// the caller can fall back to the browser path on a subsequent run.
func ValidateStatusClass(stepID string, recordedStatus, replayedStatus int) error {
	if recordedStatus/100 != replayedStatus/100 {
		return errs.NewSnapshotDriftError(
			"step %q: replayed status %d is not in the same class as recorded status %d",
			stepID, replayedStatus, recordedStatus,
		)
	}
	return nil
}
