// network.go — Network capture and replay domain types.
// Mirrors the teacher's NetworkBody shape, split into the public (redacted)
// CapturedRequest summary and the internal-only ReplayData pair (§3, §4.5).
package types

import "time"

// SensitiveHeaders is the fixed, lowercase set of headers that must never
// be exposed in a CapturedRequest, overridden in a replay, or logged.
var SensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"proxy-authorization": true,
}

// CapturedRequest is the public, redacted summary of one captured HTTP
// request/response pair exposed to network_find/network_extract and any
// consumer that lists the capture buffer.
type CapturedRequest struct {
	ID                  string            `json:"id"`
	Ts                  time.Time         `json:"ts"`
	Method              string            `json:"method"`
	URL                 string            `json:"url"`
	ResourceType        string            `json:"resourceType,omitempty"`
	RequestHeaders      map[string]string `json:"requestHeaders,omitempty"`
	PostData            string            `json:"postData,omitempty"`
	Status              int               `json:"status,omitempty"`
	ResponseHeaders     map[string]string `json:"responseHeaders,omitempty"`
	ResponseBodySnippet string            `json:"responseBodySnippet,omitempty"`
	IsLikelyAPI         bool              `json:"isLikelyApi"`
}

// ReplayData is the internal-only, unredacted companion to a
// CapturedRequest, used exclusively by the Replay Engine. It is never
// serialized into any consumer-facing response.
type ReplayData struct {
	RequestHeadersFull map[string]string
	PostData           string
}

// RequestSnapshot is the persisted form of a captured request associated
// with one network_replay step id (§3, §4.7).
type RequestSnapshot struct {
	StepID     string            `json:"stepId"`
	CapturedAt time.Time         `json:"capturedAt"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"requestHeaders,omitempty"`
	Body       string            `json:"body,omitempty"`
	Response   SnapshotResponse  `json:"response"`
	ParamsHash string            `json:"paramsHash"`
}

// SnapshotResponse is the recorded response shape a snapshot carries.
type SnapshotResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	BodySha     string `json:"bodySha,omitempty"`
}

// SnapshotFile maps step id to its RequestSnapshot, plus file metadata.
type SnapshotFile struct {
	Snapshots map[string]RequestSnapshot `json:"snapshots"`
	UpdatedAt time.Time                  `json:"updatedAt,omitempty"`
}
