// pack.go — Task pack domain types: manifest, flow, steps, targets, inputs.
// Zero dependencies - foundational types shared by every other package.
package types

// TaskPack is the parsed, in-memory form of taskpack.json + flow.json.
type TaskPack struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Kind          string         `json:"kind"`
	Description   string         `json:"description,omitempty"`
	Inputs        InputSchema    `json:"inputs,omitempty"`
	Collectibles  []Collectible  `json:"collectibles,omitempty"`
	Flow          []Step         `json:"flow"`
	Auth          *AuthPolicy    `json:"auth,omitempty"`
	Browser       *BrowserConfig `json:"browser,omitempty"`
	Snapshots     *SnapshotFile  `json:"snapshots,omitempty"`
	SecretDefs    []SecretDef    `json:"secrets,omitempty"`
}

// Collectible is a declared named output slot.
type Collectible struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// SecretDef declares a secret name a pack consumes, without its value.
type SecretDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// InputSchema maps field name to its declared shape.
type InputSchema map[string]InputField

// InputField describes one input.
type InputField struct {
	Type        string `json:"type"` // string|number|boolean
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// AuthPolicy configures the auth-resilience subsystem for a pack.
type AuthPolicy struct {
	StatusCodes              []int    `json:"statusCodes,omitempty"`
	URLIncludes              string   `json:"urlIncludes,omitempty"`
	URLRegex                 string   `json:"urlRegex,omitempty"`
	LoginURLIncludes         string   `json:"loginUrlIncludes,omitempty"`
	Enabled                  *bool    `json:"enabled,omitempty"`
	MaxRecoveriesPerRun      int      `json:"maxRecoveriesPerRun,omitempty"`
	MaxStepRetryAfterRecov   int      `json:"maxStepRetryAfterRecovery,omitempty"`
	CooldownMs               int      `json:"cooldownMs,omitempty"`
	GuardVisibleSelector     string   `json:"guardVisibleSelector,omitempty"`
	GuardURLIncludes         string   `json:"guardUrlIncludes,omitempty"`
}

// BrowserConfig configures the browser the pack drives.
type BrowserConfig struct {
	Proxy *ProxyConfig `json:"proxy,omitempty"`
}

// ProxyConfig is the manifest's browser.proxy block (§6).
type ProxyConfig struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode,omitempty"` // session|random
	Country string `json:"country,omitempty"`
}

// Step is a tagged-union flow step. Params is kept as a raw map and
// re-decoded per type by the interpreter/validator so unknown-type packs
// still parse (and get a single "unknown step type" diagnostic instead of
// a hard parse failure).
type Step struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Label      string         `json:"label,omitempty"`
	TimeoutMs  *int           `json:"timeoutMs,omitempty"`
	Optional   bool           `json:"optional,omitempty"`
	OnError    string         `json:"onError,omitempty"` // stop|continue
	Once       string         `json:"once,omitempty"`    // session|profile
	SkipIf     map[string]any `json:"skip_if,omitempty"`
	Params     map[string]any `json:"params"`
}

// Target is the sum type consumed by the Target Resolver (C3).
type Target struct {
	Kind        string    `json:"kind,omitempty"`
	Selector    string    `json:"selector,omitempty"`
	Text        string    `json:"text,omitempty"`
	Role        string    `json:"role,omitempty"`
	Name        string    `json:"name,omitempty"`
	ID          string    `json:"id,omitempty"`
	Exact       bool      `json:"exact,omitempty"`
	AnyOf       []Target  `json:"anyOf,omitempty"`
	Scope       *Target   `json:"scope,omitempty"`
	Near        *Target   `json:"near,omitempty"`
	Hint        string    `json:"hint,omitempty"`
}

// RoleEnum is the closed set of ARIA roles the resolver accepts for
// {kind:"role"} targets.
var RoleEnum = map[string]bool{
	"button": true, "link": true, "textbox": true, "checkbox": true,
	"radio": true, "combobox": true, "listbox": true, "option": true,
	"menuitem": true, "tab": true, "tabpanel": true, "dialog": true,
	"heading": true, "img": true, "list": true, "listitem": true,
	"navigation": true, "search": true, "switch": true, "slider": true,
	"spinbutton": true, "progressbar": true, "alert": true, "status": true,
	"banner": true, "main": true, "contentinfo": true, "form": true,
	"article": true, "cell": true, "row": true, "table": true, "grid": true,
	"columnheader": true, "rowheader": true, "group": true, "region": true,
}
