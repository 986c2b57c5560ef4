// versioning.go — Pack Versioning Store (C9): append-only numbered
// snapshots of a pack's manifest + flow with bounded retention and atomic
// writes (§4.9).
//
// Grounded on the teacher's internal/recording playback/persistence shape
// (action-log persistence and replay), adapted from "persist a recorded
// action log for playback" to "persist a numbered manifest+flow snapshot
// for restore."
package versioning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// DefaultMaxVersions is the default bounded-retention limit (§4.9).
const DefaultMaxVersions = 50

const versionsDirName = ".versions"

// SaveOptions configures one saveVersion call.
type SaveOptions struct {
	Label          string
	Source         string // cli|dashboard|agent
	ConversationID string
}

func versionsDir(packDir string) string { return filepath.Join(packDir, versionsDirName) }
func manifestPath(packDir string) string { return filepath.Join(versionsDir(packDir), "manifest.json") }
func numberedFlowPath(packDir string, n int) string {
	return filepath.Join(versionsDir(packDir), itoa(n)+".flow.json")
}
func numberedTaskpackPath(packDir string, n int) string {
	return filepath.Join(versionsDir(packDir), itoa(n)+".taskpack.json")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// readManifest loads the version manifest, tolerating a missing file (no
// versions saved yet).
func readManifest(packDir string) (types.VersionManifest, error) {
	data, err := os.ReadFile(manifestPath(packDir))
	if err != nil {
		if os.IsNotExist(err) {
			return types.VersionManifest{MaxVersions: DefaultMaxVersions}, nil
		}
		return types.VersionManifest{}, errs.NewOperationalError("reading version manifest: %v", err)
	}
	var m types.VersionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return types.VersionManifest{}, errs.NewValidationError("version manifest is not valid JSON: %v", err)
	}
	if m.MaxVersions <= 0 {
		m.MaxVersions = DefaultMaxVersions
	}
	return m, nil
}

// writeManifestAtomic writes m via write-to-temp-then-rename (§4.9 step 6,
// §5 "version manifest writes use the same atomic write-and-rename
// discipline").
func writeManifestAtomic(packDir string, m types.VersionManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := manifestPath(packDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.NewOperationalError("writing version manifest: %v", err)
	}
	return os.Rename(tmp, path)
}

// SaveVersion implements §4.9's saveVersion(packDir, opts):
//  1. read current flow.json/taskpack.json (fail if missing)
//  2. compute N = max(existing)+1, or 1
//  3. copy both files to numbered paths
//  4. append to manifest
//  5. prune oldest until |versions| <= maxVersions
//  6. write manifest atomically
func SaveVersion(packDir string, opts SaveOptions) (types.FlowVersion, error) {
	flowBytes, err := os.ReadFile(filepath.Join(packDir, "flow.json"))
	if err != nil {
		return types.FlowVersion{}, errs.NewOperationalError("reading flow.json: %v", err)
	}
	taskpackBytes, err := os.ReadFile(filepath.Join(packDir, "taskpack.json"))
	if err != nil {
		return types.FlowVersion{}, errs.NewOperationalError("reading taskpack.json: %v", err)
	}

	if err := os.MkdirAll(versionsDir(packDir), 0o755); err != nil {
		return types.FlowVersion{}, errs.NewOperationalError("creating .versions dir: %v", err)
	}

	manifest, err := readManifest(packDir)
	if err != nil {
		return types.FlowVersion{}, err
	}

	n := 1
	for _, v := range manifest.Versions {
		if v.Number >= n {
			n = v.Number + 1
		}
	}

	if err := os.WriteFile(numberedFlowPath(packDir, n), flowBytes, 0o644); err != nil {
		return types.FlowVersion{}, errs.NewOperationalError("writing version %d flow: %v", n, err)
	}
	if err := os.WriteFile(numberedTaskpackPath(packDir, n), taskpackBytes, 0o644); err != nil {
		return types.FlowVersion{}, errs.NewOperationalError("writing version %d taskpack: %v", n, err)
	}

	var taskpackVersion string
	var tp struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(taskpackBytes, &tp) == nil {
		taskpackVersion = tp.Version
	}

	fv := types.FlowVersion{
		Number:         n,
		Version:        taskpackVersion,
		Timestamp:      time.Now().UTC(),
		Label:          opts.Label,
		Source:         opts.Source,
		ConversationID: opts.ConversationID,
	}
	manifest.Versions = append(manifest.Versions, fv)
	manifest.Version = taskpackVersion

	pruneOldest(packDir, &manifest)

	if err := writeManifestAtomic(packDir, manifest); err != nil {
		return types.FlowVersion{}, err
	}
	return fv, nil
}

// pruneOldest deletes the oldest versions' numbered files (best-effort,
// tolerating missing files) until len(manifest.Versions) <= MaxVersions.
func pruneOldest(packDir string, manifest *types.VersionManifest) {
	if manifest.MaxVersions <= 0 {
		manifest.MaxVersions = DefaultMaxVersions
	}
	sort.Slice(manifest.Versions, func(i, j int) bool {
		return manifest.Versions[i].Number < manifest.Versions[j].Number
	})
	excess := len(manifest.Versions) - manifest.MaxVersions
	if excess <= 0 {
		return
	}
	for _, v := range manifest.Versions[:excess] {
		_ = os.Remove(numberedFlowPath(packDir, v.Number))
		_ = os.Remove(numberedTaskpackPath(packDir, v.Number))
	}
	manifest.Versions = manifest.Versions[excess:]
}

// ListVersions returns the manifest's versions, oldest first. No mutation.
func ListVersions(packDir string) ([]types.FlowVersion, error) {
	m, err := readManifest(packDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(m.Versions, func(i, j int) bool { return m.Versions[i].Number < m.Versions[j].Number })
	return m.Versions, nil
}

// VersionFiles is the pair of raw file contents for one saved version.
type VersionFiles struct {
	Flow     json.RawMessage
	Taskpack json.RawMessage // nil if the versioned taskpack file is missing (legacy compatibility, §4.9)
}

// GetVersionFiles returns the raw flow/taskpack bytes for version n. No
// mutation. Tolerates a missing versioned taskpack file.
func GetVersionFiles(packDir string, n int) (VersionFiles, error) {
	flowBytes, err := os.ReadFile(numberedFlowPath(packDir, n))
	if err != nil {
		return VersionFiles{}, errs.NewOperationalError("reading version %d flow: %v", n, err)
	}
	var vf VersionFiles
	vf.Flow = flowBytes
	if tpBytes, err := os.ReadFile(numberedTaskpackPath(packDir, n)); err == nil {
		vf.Taskpack = tpBytes
	}
	return vf, nil
}

// RestoreVersion implements §4.9's restoreVersion(packDir, N):
//  1. verify N exists
//  2. auto-save current state with source="dashboard" and a generated label
//  3. copy versioned files back over the live ones
func RestoreVersion(packDir string, n int) error {
	versions, err := ListVersions(packDir)
	if err != nil {
		return err
	}
	found := false
	for _, v := range versions {
		if v.Number == n {
			found = true
			break
		}
	}
	if !found {
		return errs.NewValidationError("version %d does not exist", n)
	}

	if _, err := SaveVersion(packDir, SaveOptions{
		Source: "dashboard",
		Label:  "Auto-saved before restoring version " + itoa(n),
	}); err != nil {
		return err
	}

	vf, err := GetVersionFiles(packDir, n)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(packDir, "flow.json"), vf.Flow); err != nil {
		return err
	}
	if vf.Taskpack != nil {
		if err := writeAtomic(filepath.Join(packDir, "taskpack.json"), vf.Taskpack); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.NewOperationalError("writing %s: %v", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
