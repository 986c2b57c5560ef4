// monitor.go — AuthFailureMonitor: detects auth failures in observed
// responses and tracks the per-run recovery budget (§4.8).
// Grounded on the teacher's internal/capture/circuit_breaker.go streak-
// counter/budget-gated state-machine shape, adapted from rate-limiting to
// recovery-budget tracking.
package auth

import (
	"regexp"
	"strings"
	"sync"

	"github.com/eyupulker/showrun/internal/types"
)

// Failure is one recorded auth failure observation.
type Failure struct {
	URL    string
	Status int
	StepID string
}

// MonitorConfig mirrors types.AuthPolicy with defaults applied (§4.8).
type MonitorConfig struct {
	Enabled                bool
	StatusCodes            map[int]bool
	URLIncludes            string
	URLRegex               *regexp.Regexp
	LoginURLIncludes       string
	MaxRecoveriesPerRun    int
	MaxStepRetryAfterRecov int
	CooldownMs             int
}

// DefaultMonitorConfig returns §4.8's stated defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:                true,
		StatusCodes:            map[int]bool{401: true, 403: true},
		MaxRecoveriesPerRun:    1,
		MaxStepRetryAfterRecov: 1,
		CooldownMs:             0,
	}
}

// ConfigFromPolicy builds a MonitorConfig from a pack's declared AuthPolicy,
// falling back to DefaultMonitorConfig for unset fields.
func ConfigFromPolicy(p *types.AuthPolicy) (MonitorConfig, error) {
	cfg := DefaultMonitorConfig()
	if p == nil {
		return cfg, nil
	}
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if len(p.StatusCodes) > 0 {
		cfg.StatusCodes = map[int]bool{}
		for _, c := range p.StatusCodes {
			cfg.StatusCodes[c] = true
		}
	}
	cfg.URLIncludes = p.URLIncludes
	cfg.LoginURLIncludes = p.LoginURLIncludes
	if p.URLRegex != "" {
		re, err := regexp.Compile(p.URLRegex)
		if err != nil {
			return cfg, err
		}
		cfg.URLRegex = re
	}
	if p.MaxRecoveriesPerRun > 0 {
		cfg.MaxRecoveriesPerRun = p.MaxRecoveriesPerRun
	}
	if p.MaxStepRetryAfterRecov > 0 {
		cfg.MaxStepRetryAfterRecov = p.MaxStepRetryAfterRecov
	}
	if p.CooldownMs > 0 {
		cfg.CooldownMs = p.CooldownMs
	}
	return cfg, nil
}

// FailureMonitor observes browser traffic for auth failures and tracks
// recovery budget for a single run.
type FailureMonitor struct {
	mu                sync.Mutex
	cfg               MonitorConfig
	failures          []Failure
	recoveriesUsed    int
	retriesAfterByStep map[string]int
}

// NewFailureMonitor constructs a monitor for one run.
func NewFailureMonitor(cfg MonitorConfig) *FailureMonitor {
	return &FailureMonitor{cfg: cfg, retriesAfterByStep: map[string]int{}}
}

// IsAuthFailure reports whether status/url match the configured failure
// predicate (§4.8): status in the configured set, and (no URL constraint
// is set, or at least one matches).
func (m *FailureMonitor) IsAuthFailure(url string, status int) bool {
	if !m.cfg.Enabled {
		return false
	}
	if !m.cfg.StatusCodes[status] {
		return false
	}
	if m.cfg.URLIncludes == "" && m.cfg.URLRegex == nil {
		return true
	}
	if m.cfg.URLIncludes != "" && strings.Contains(url, m.cfg.URLIncludes) {
		return true
	}
	if m.cfg.URLRegex != nil && m.cfg.URLRegex.MatchString(url) {
		return true
	}
	return false
}

// Record stores an observed failure for later querying.
func (m *FailureMonitor) Record(f Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, f)
}

// LatestFailure returns the most recently recorded failure, if any.
func (m *FailureMonitor) LatestFailure() (Failure, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failures) == 0 {
		return Failure{}, false
	}
	return m.failures[len(m.failures)-1], true
}

// FailuresForStep returns all recorded failures attributed to stepID.
func (m *FailureMonitor) FailuresForStep(stepID string) []Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Failure
	for _, f := range m.failures {
		if f.StepID == stepID {
			out = append(out, f)
		}
	}
	return out
}

// HasRecoveryBudget reports whether at least one more recovery can run
// this run (§4.8 maxRecoveriesPerRun).
func (m *FailureMonitor) HasRecoveryBudget() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recoveriesUsed < m.cfg.MaxRecoveriesPerRun
}

// UseRecovery consumes one unit of recovery budget. Recovery is counted
// once per run regardless of how many once-steps were re-run (§4.8).
func (m *FailureMonitor) UseRecovery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveriesUsed++
}

// RetryBudgetRemaining reports how many more retries stepID may use after
// recovery (§4.8 maxStepRetryAfterRecovery).
func (m *FailureMonitor) RetryBudgetRemaining(stepID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.MaxStepRetryAfterRecov - m.retriesAfterByStep[stepID]
}

// UseRetry consumes one retry-after-recovery attempt for stepID.
func (m *FailureMonitor) UseRetry(stepID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retriesAfterByStep[stepID]++
}

// CooldownMs returns the configured inter-retry cooldown.
func (m *FailureMonitor) CooldownMs() int { return m.cfg.CooldownMs }

// IsLoginURL reports whether url looks like the pack's login page, used to
// avoid recursively recovering a login step that is itself failing.
func (m *FailureMonitor) IsLoginURL(url string) bool {
	return m.cfg.LoginURLIncludes != "" && strings.Contains(url, m.cfg.LoginURLIncludes)
}
