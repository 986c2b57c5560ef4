// parse.go — Loads a task pack directory into a types.TaskPack (§6 pack
// layout): taskpack.json, flow.json, optional .secrets.json/.snapshots.json.
package pack

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// flowDocument is the shape of flow.json.
type flowDocument struct {
	Inputs       types.InputSchema    `json:"inputs,omitempty"`
	Collectibles []types.Collectible  `json:"collectibles,omitempty"`
	Flow         []types.Step         `json:"flow"`
}

// secretsDocument is the shape of .secrets.json.
type secretsDocument struct {
	Version int               `json:"version"`
	Secrets map[string]string `json:"secrets"`
}

// Load reads taskpack.json + flow.json (+ optional .secrets.json and
// .snapshots.json) from dir and returns the assembled TaskPack. It does
// not validate — call Validate separately.
func Load(dir string) (*types.TaskPack, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, "taskpack.json"))
	if err != nil {
		return nil, errs.NewOperationalError("reading taskpack.json: %v", err)
	}
	var p types.TaskPack
	if err := json.Unmarshal(manifestBytes, &p); err != nil {
		return nil, errs.NewValidationError("taskpack.json is not valid JSON: %v", err)
	}

	flowBytes, err := os.ReadFile(filepath.Join(dir, "flow.json"))
	if err != nil {
		return nil, errs.NewOperationalError("reading flow.json: %v", err)
	}
	var fd flowDocument
	if err := json.Unmarshal(flowBytes, &fd); err != nil {
		return nil, errs.NewValidationError("flow.json is not valid JSON: %v", err)
	}
	p.Flow = fd.Flow
	if p.Inputs == nil {
		p.Inputs = fd.Inputs
	}
	if p.Collectibles == nil {
		p.Collectibles = fd.Collectibles
	}

	if snapBytes, err := os.ReadFile(filepath.Join(dir, ".snapshots.json")); err == nil {
		var sf types.SnapshotFile
		if err := json.Unmarshal(snapBytes, &sf); err != nil {
			return nil, errs.NewValidationError(".snapshots.json is not valid JSON: %v", err)
		}
		p.Snapshots = &sf
	}

	return &p, nil
}

// LoadSecrets reads .secrets.json if present; a missing file is not an
// error (§6: "optional, ignored if missing").
func LoadSecrets(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ".secrets.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errs.NewOperationalError("reading .secrets.json: %v", err)
	}
	var doc secretsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.NewValidationError(".secrets.json is not valid JSON: %v", err)
	}
	return doc.Secrets, nil
}

// SecretNameStatus is one entry returned by GetSecretNamesWithValues (§6):
// the secret's name and description, and whether it is currently set —
// never its value.
type SecretNameStatus struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsSet       bool   `json:"isSet"`
}

// GetSecretNamesWithValues reports which declared secrets are set, without
// ever returning the values themselves.
func GetSecretNamesWithValues(dir string) ([]SecretNameStatus, error) {
	p, err := Load(dir)
	if err != nil {
		return nil, err
	}
	secrets, err := LoadSecrets(dir)
	if err != nil {
		return nil, err
	}
	out := make([]SecretNameStatus, 0, len(p.SecretDefs))
	for _, def := range p.SecretDefs {
		_, set := secrets[def.Name]
		out = append(out, SecretNameStatus{Name: def.Name, Description: def.Description, IsSet: set})
	}
	return out, nil
}
