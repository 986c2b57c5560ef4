// capture.go — Network Capture Service (C5): a bounded ring buffer of
// captured HTTP request/response pairs, observed via the BrowserController's
// CaptureObserver hookup and consumed by network_find/network_extract and
// the Replay Engine (§3, §4.5).
//
// Grounded on the teacher's internal/capture ring-buffer discipline
// (parallel slice + monotonic counter + oldest-first eviction), heavily
// trimmed: the teacher also buffers WS events, performance timings,
// extension logs, and multi-client connection tracking that have no
// counterpart here. Only the request/response ring buffer, its eviction
// discipline, and the redaction hookup survive, rewritten for
// CapturedRequest/ReplayData instead of NetworkBody.
package netcapture

import (
	neturl "net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/eyupulker/showrun/internal/redaction"
	"github.com/eyupulker/showrun/internal/types"
)

// versionSegment matches a versioned API path segment like /v2/ or /v10/.
var versionSegment = regexp.MustCompile(`/v[0-9]+/`)

// DefaultBufferMax is NETWORK_BUFFER_MAX's default (§3).
const DefaultBufferMax = 500

// ResponseBodyCaptureMax is the cap, in runes, on the response body snippet
// exposed via CapturedRequest.ResponseBodySnippet (§4.5).
const ResponseBodyCaptureMax = 4096

// fullBodyReadMax is how much of a response body is actually read from the
// controller's bodyReader, beyond which GetResponseBody(id, full=true) also
// truncates.
const fullBodyReadMax = 4 * ResponseBodyCaptureMax

// PostDataCap is the cap, in runes, on the public-facing
// CapturedRequest.PostData (§3).
const PostDataCap = 4096

// PostDataReplayCap is the cap, in runes, on the internal-only
// ReplayData.PostData (§3) — larger than PostDataCap since the Replay
// Engine (C6) needs enough fidelity to reproduce the original request body.
const PostDataReplayCap = 65536

// Capture is the Network Capture Service. It implements
// types.CaptureObserver and is safe for concurrent use.
type Capture struct {
	mu sync.RWMutex

	bufferMax int
	redactor  *redaction.RedactionEngine

	order      []string // insertion order, oldest first
	entries    map[string]*types.CapturedRequest
	replay     map[string]*types.ReplayData
	fullBodies map[string]string // id -> response body read up to fullBodyReadMax, for GetResponseBody(full=true)

	totalAdded int64
}

// NewCapture builds a Capture with the given ring-buffer bound. A
// bufferMax <= 0 falls back to DefaultBufferMax.
func NewCapture(bufferMax int, redactor *redaction.RedactionEngine) *Capture {
	if bufferMax <= 0 {
		bufferMax = DefaultBufferMax
	}
	if redactor == nil {
		redactor = redaction.NewRedactionEngine("")
	}
	return &Capture{
		bufferMax:  bufferMax,
		redactor:   redactor,
		entries:    make(map[string]*types.CapturedRequest),
		replay:     make(map[string]*types.ReplayData),
		fullBodies: make(map[string]string),
	}
}

// OnRequest records a new in-flight request. Implements types.CaptureObserver.
func (c *Capture) OnRequest(id, method, url, resourceType string, headers map[string]string, postData string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	publicHeaders := redactHeaders(headers)

	entry := &types.CapturedRequest{
		ID:             id,
		Ts:             time.Now(),
		Method:         method,
		URL:            url,
		ResourceType:   resourceType,
		RequestHeaders: publicHeaders,
		PostData:       c.redactor.Redact(truncateRunes(postData, PostDataCap)),
		IsLikelyAPI:    isLikelyAPI(url),
	}
	c.entries[id] = entry
	c.replay[id] = &types.ReplayData{
		RequestHeadersFull: cloneHeaders(headers),
		PostData:           truncateRunes(postData, PostDataReplayCap),
	}
	c.order = append(c.order, id)
	c.totalAdded++

	c.evictLocked()
}

// OnResponse attaches response data to a previously observed request.
// Implements types.CaptureObserver. Responses for an id that has already
// been evicted (or was never observed) are silently dropped.
func (c *Capture) OnResponse(id string, status int, headers map[string]string, bodyReader func() ([]byte, error)) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	var body []byte
	if bodyReader != nil {
		if b, err := bodyReader(); err == nil {
			body = b
		}
	}
	full := truncateRunes(string(body), fullBodyReadMax)
	snippet := truncateRunes(full, ResponseBodyCaptureMax)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check presence: an eviction may have raced the body read.
	if _, ok := c.entries[id]; !ok {
		return
	}
	entry.Status = status
	entry.ResponseHeaders = redactHeaders(headers)
	entry.ResponseBodySnippet = c.redactor.Redact(snippet)
	c.fullBodies[id] = c.redactor.Redact(full)
}

// evictLocked drops the oldest entries until the buffer is within bound.
// Caller must hold c.mu.
func (c *Capture) evictLocked() {
	excess := len(c.order) - c.bufferMax
	if excess <= 0 {
		return
	}
	for i := 0; i < excess; i++ {
		id := c.order[i]
		delete(c.entries, id)
		delete(c.replay, id)
		delete(c.fullBodies, id)
	}
	remaining := make([]string, len(c.order)-excess)
	copy(remaining, c.order[excess:])
	c.order = remaining
}

// ListMode is list's filter category (§4.5).
type ListMode string

const (
	ListAll ListMode = "all"
	ListAPI ListMode = "api"
	ListXHR ListMode = "xhr"
)

func isXHRLike(resourceType string) bool {
	return strings.EqualFold(resourceType, "xhr") || strings.EqualFold(resourceType, "fetch")
}

func (m ListMode) matches(e *types.CapturedRequest) bool {
	switch m {
	case ListAPI:
		return e.IsLikelyAPI || isXHRLike(e.ResourceType)
	case ListXHR:
		return isXHRLike(e.ResourceType)
	default:
		return true
	}
}

// List returns up to limit matching entries, newest first. When compact is
// true, response bodies and header maps are stripped from the copies
// returned (a lighter summary for listing UIs).
func (c *Capture) List(mode ListMode, limit int, compact bool) []types.CapturedRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.CapturedRequest, 0, limit)
	for i := len(c.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := c.entries[c.order[i]]
		if e == nil || !mode.matches(e) {
			continue
		}
		cp := *e
		if compact {
			cp.RequestHeaders = nil
			cp.ResponseHeaders = nil
			cp.ResponseBodySnippet = ""
			cp.PostData = ""
		}
		out = append(out, cp)
	}
	return out
}

// Search returns up to limit entries whose URL, method, resourceType,
// status, header keys/values, post-data, or response-body snippet contains
// query (case-insensitive), newest first (§4.5).
func (c *Capture) Search(query string, limit int) []types.CapturedRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(query)
	out := make([]types.CapturedRequest, 0, limit)
	for i := len(c.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := c.entries[c.order[i]]
		if e == nil {
			continue
		}
		if entryMatches(e, q) {
			out = append(out, *e)
		}
	}
	return out
}

func entryMatches(e *types.CapturedRequest, q string) bool {
	if strings.Contains(strings.ToLower(e.URL), q) ||
		strings.Contains(strings.ToLower(e.Method), q) ||
		strings.Contains(strings.ToLower(e.ResourceType), q) ||
		strings.Contains(strings.ToLower(e.PostData), q) ||
		strings.Contains(strings.ToLower(e.ResponseBodySnippet), q) {
		return true
	}
	if headersMatch(e.RequestHeaders, q) || headersMatch(e.ResponseHeaders, q) {
		return true
	}
	return false
}

func headersMatch(headers map[string]string, q string) bool {
	for k, v := range headers {
		if strings.Contains(strings.ToLower(k), q) || strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Get returns the entry for id and whether replay data is available for it
// (i.e. it has not been evicted).
func (c *Capture) Get(id string) (types.CapturedRequest, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return types.CapturedRequest{}, false, false
	}
	_, replayable := c.replay[id]
	return *e, true, replayable
}

// ReplayData returns the unredacted replay payload for id, for exclusive
// use by the Replay Engine (C6). It is never exposed outside the engine.
func (c *Capture) ReplayData(id string) (types.ReplayData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.replay[id]
	if !ok {
		return types.ReplayData{}, false
	}
	return *r, true
}

// GetResponseBody returns the response body for id. When full is true, the
// body is returned up to fullBodyReadMax runes instead of
// ResponseBodyCaptureMax.
func (c *Capture) GetResponseBody(id string, full bool) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if full {
		b, ok := c.fullBodies[id]
		return b, ok
	}
	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	return e.ResponseBodySnippet, true
}

// Clear empties the buffer and returns how many entries were dropped.
func (c *Capture) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.order)
	c.order = nil
	c.entries = make(map[string]*types.CapturedRequest)
	c.replay = make(map[string]*types.ReplayData)
	c.fullBodies = make(map[string]string)
	return n
}

// Len reports the current number of buffered entries.
func (c *Capture) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// TotalAdded reports the monotonic count of requests ever observed,
// including ones since evicted.
func (c *Capture) TotalAdded() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalAdded
}

func redactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if types.SensitiveHeaders[strings.ToLower(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

func cloneHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// isLikelyAPI heuristically flags requests that look like programmatic API
// calls rather than page/asset loads (§4.5): the URL path starts with
// /api/, contains a versioned segment like /v2/, or matches a graphql
// endpoint. resourceType ∈ {xhr, fetch} is deliberately NOT folded in here
// — §4.5 keeps that combination in list()'s "api" filter only, so it
// doesn't also leak into the persisted IsLikelyAPI field.
func isLikelyAPI(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	path := lower
	if u, err := neturl.Parse(rawURL); err == nil {
		path = strings.ToLower(u.Path)
	}
	if strings.HasPrefix(path, "/api/") {
		return true
	}
	if strings.Contains(lower, "graphql") {
		return true
	}
	return versionSegment.MatchString(lower)
}
