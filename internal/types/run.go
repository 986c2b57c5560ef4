// run.go — Run-scoped state, versioning, and result-store domain types.
package types

import "time"

// RunState is the per-run in-memory state threaded through the interpreter.
type RunState struct {
	Inputs       map[string]any
	Vars         map[string]any
	Collectibles map[string]any
	Page         PageHandle // nil in HTTP-only mode
	CurrentStep  string
}

// PageHandle is an opaque handle to a BrowserController page; defined here
// (rather than in the controller interface file) so RunState has no import
// cycle onto the controller package.
type PageHandle interface{}

// RunResult is what the Step Interpreter and Run Orchestrator hand back.
type RunResult struct {
	Success      bool           `json:"success"`
	Collectibles map[string]any `json:"collectibles"`
	Error        string         `json:"error,omitempty"`
	Meta         RunMeta        `json:"meta"`

	// ResultKey is the Result Store (C10) key computed on a successful run
	// (§4.10, §5). Result Store writes happen fire-and-forget after the run
	// returns, so callers must treat ResultKey, not the store write, as the
	// authoritative handle for later retrieval.
	ResultKey string `json:"_resultKey,omitempty"`
}

// RunMeta carries run bookkeeping surfaced alongside collectibles.
type RunMeta struct {
	URL            string   `json:"url,omitempty"`
	DurationMs     int64    `json:"durationMs"`
	StepsExecuted  int      `json:"stepsExecuted"`
	StepsTotal     int      `json:"stepsTotal"`
	Notes          []string `json:"notes,omitempty"`
}

// FlowVersion is one entry in a VersionManifest (§3, §4.9).
type FlowVersion struct {
	Number         int       `json:"number"`
	Version        string    `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
	Label          string    `json:"label,omitempty"`
	Source         string    `json:"source"` // cli|dashboard|agent
	ConversationID string    `json:"conversationId,omitempty"`
}

// VersionManifest is the persisted `.versions/manifest.json` document.
type VersionManifest struct {
	Version    string        `json:"version"`
	Versions   []FlowVersion `json:"versions"`
	MaxVersions int          `json:"maxVersions"`
}

// StoredResult is one content-addressed Result Store entry (§3, §4.10).
type StoredResult struct {
	Key               string         `json:"key"`
	PackID            string         `json:"packId"`
	ToolName          string         `json:"toolName"`
	Inputs            map[string]any `json:"inputs"`
	Collectibles      map[string]any `json:"collectibles"`
	Meta              map[string]any `json:"meta,omitempty"`
	CollectibleSchema []Collectible  `json:"collectibleSchema,omitempty"`
	StoredAt          time.Time      `json:"storedAt"`
	RanAt             time.Time      `json:"ranAt"`
	Version           int            `json:"version"`
}

// StoredResultSummary is the trimmed shape list()/filter() return.
type StoredResultSummary struct {
	Key      string    `json:"key"`
	PackID   string    `json:"packId"`
	ToolName string    `json:"toolName"`
	StoredAt time.Time `json:"storedAt"`
	Version  int       `json:"version"`
}
