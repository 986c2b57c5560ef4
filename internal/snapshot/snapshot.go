// snapshot.go — Snapshot Engine (C7): write/read RequestSnapshot/
// SnapshotFile, staleness policy, HTTP-only compatibility decision (§4.7).
//
// Grounded on the teacher's internal/session/snapshot-manager.go named-
// snapshot persistence-and-comparison shape, adapted from "named
// browser-state snapshots for regression diffing" to "per-step request
// snapshots for HTTP-only replay eligibility."
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/templating"
	"github.com/eyupulker/showrun/internal/types"
)

// MaxAgeEnv overrides the default staleness age threshold (§9 Open
// Question: "age threshold configurable").
const MaxAgeEnv = "SHOWRUN_SNAPSHOT_MAX_AGE"

// DefaultMaxAge is the conservative default staleness window.
const DefaultMaxAge = 24 * time.Hour

// domExtractionSet is the step-type set that disqualifies HTTP-only mode
// outright (§4.7 rule 2).
var domExtractionSet = map[string]bool{
	"extract_text":      true,
	"extract_title":     true,
	"extract_attribute": true,
	"dom_scrape":        true,
}

// httpSkippedSet is the step-type set that, when HTTP-only mode is
// eligible, is silently no-op'd rather than executed (§4.7 rule 4).
var httpSkippedSet = map[string]bool{
	"navigate": true, "click": true, "fill": true, "select_option": true,
	"press_key": true, "upload_file": true, "wait_for": true, "assert": true,
	"frame": true, "new_tab": true, "switch_tab": true, "network_find": true,
	"dom_scrape": true,
}

// LoadSnapshots reads a pack's .snapshots.json. Modeled as async-capable
// per §9's resolution of the legacy loadSnapshots/loadSnapshotsAsync pair.
func LoadSnapshots(ctx context.Context, dir string) (*types.SnapshotFile, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	data, err := os.ReadFile(filepath.Join(dir, ".snapshots.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.NewOperationalError("reading .snapshots.json: %v", err)
	}
	var sf types.SnapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, errs.NewValidationError(".snapshots.json is not valid JSON: %v", err)
	}
	return &sf, nil
}

// Save persists sf to dir/.snapshots.json via write-to-temp-then-rename.
func Save(dir string, sf *types.SnapshotFile) error {
	sf.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ".snapshots.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.NewOperationalError("writing .snapshots.json: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.NewOperationalError("renaming .snapshots.json: %v", err)
	}
	return nil
}

// ParamsHash computes a stable hash of a step's params, used to detect
// "structurally changed params" staleness (§4.7, §9).
func ParamsHash(params map[string]any) string {
	canon := canonicalize(params)
	b, _ := json.Marshal(canon)
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)[:16]
}

func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			out = append(out, k, canonicalize(t[k]))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

// maxAge resolves the configured staleness age threshold.
func maxAge() time.Duration {
	if v := os.Getenv(MaxAgeEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return DefaultMaxAge
}

// IsStale applies §9's conservative policy: a snapshot is stale if its age
// exceeds the threshold, or if the step's current params hash no longer
// matches the hash recorded at capture time (any structural change →
// stale).
func IsStale(snap types.RequestSnapshot, currentParamsHash string) bool {
	if time.Since(snap.CapturedAt) > maxAge() {
		return true
	}
	if snap.ParamsHash != "" && snap.ParamsHash != currentParamsHash {
		return true
	}
	return false
}

// IsFlowHTTPCompatible implements §4.7's HTTP-only eligibility decision
// and §8's five-part property.
func IsFlowHTTPCompatible(flow []types.Step, sf *types.SnapshotFile) bool {
	if sf == nil {
		return false
	}
	replayCount := 0
	for _, step := range flow {
		if domExtractionSet[step.Type] {
			return false
		}
		if step.Type == "network_replay" {
			replayCount++
			snap, ok := sf.Snapshots[step.ID]
			if !ok {
				return false
			}
			hash := ParamsHash(step.Params)
			if IsStale(snap, hash) {
				return false
			}
		}
		if httpSkippedSet[step.Type] && stepHasTemplate(step) {
			return false
		}
	}
	return replayCount > 0
}

func stepHasTemplate(step types.Step) bool {
	for _, v := range step.Params {
		if valueHasTemplate(v) {
			return true
		}
	}
	return false
}

func valueHasTemplate(v any) bool {
	switch t := v.(type) {
	case string:
		return templating.HasExpression(t)
	case map[string]any:
		for _, vv := range t {
			if valueHasTemplate(vv) {
				return true
			}
		}
	case []any:
		for _, vv := range t {
			if valueHasTemplate(vv) {
				return true
			}
		}
	}
	return false
}

// RecordFromCapture builds a RequestSnapshot from a captured request and
// the step params that produced the network_replay (so later staleness
// checks can compare).
func RecordFromCapture(stepID string, req types.CapturedRequest, body string, params map[string]any) types.RequestSnapshot {
	sum := sha256.Sum256([]byte(req.ResponseBodySnippet))
	return types.RequestSnapshot{
		StepID:     stepID,
		CapturedAt: time.Now().UTC(),
		Method:     req.Method,
		URL:        req.URL,
		Headers:    req.RequestHeaders,
		Body:       body,
		Response: types.SnapshotResponse{
			Status:      req.Status,
			ContentType: req.ResponseHeaders["content-type"],
			BodySha:     fmt.Sprintf("%x", sum),
		},
		ParamsHash: ParamsHash(params),
	}
}
