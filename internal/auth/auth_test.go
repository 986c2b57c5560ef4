package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnceCache_MarkAndSeen(t *testing.T) {
	c, err := NewOnceCache(t.TempDir())
	require.NoError(t, err)

	assert.False(t, c.Seen("session", "login"))
	require.NoError(t, c.MarkSeen("session", "login"))
	assert.True(t, c.Seen("session", "login"))
	assert.False(t, c.Seen("profile", "login")) // scopes are independent
}

func TestOnceCache_ToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	c, err := NewOnceCache(dir)
	require.NoError(t, err)
	require.NoError(t, c.MarkSeen("session", "a/b"))

	// Fresh instance re-reads from disk.
	c2, err := NewOnceCache(dir)
	require.NoError(t, err)
	assert.True(t, c2.Seen("session", "a/b"))
}

func TestOnceCache_SanitizesPathSeparators(t *testing.T) {
	c, err := NewOnceCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.MarkSeen("session", "../../etc/passwd"))
	assert.True(t, c.Seen("session", "../../etc/passwd"))
}

func TestFailureMonitor_IsAuthFailure(t *testing.T) {
	m := NewFailureMonitor(DefaultMonitorConfig())
	assert.True(t, m.IsAuthFailure("https://api.test/x", 401))
	assert.False(t, m.IsAuthFailure("https://api.test/x", 200))
}

func TestFailureMonitor_URLConstraint(t *testing.T) {
	cfg := DefaultMonitorConfig()
	cfg.URLIncludes = "/api/"
	m := NewFailureMonitor(cfg)
	assert.True(t, m.IsAuthFailure("https://x.test/api/search", 403))
	assert.False(t, m.IsAuthFailure("https://x.test/static/app.js", 403))
}

func TestFailureMonitor_RecoveryBudget(t *testing.T) {
	m := NewFailureMonitor(DefaultMonitorConfig())
	assert.True(t, m.HasRecoveryBudget())
	m.UseRecovery()
	assert.False(t, m.HasRecoveryBudget())
}

func TestFailureMonitor_RetryBudgetPerStep(t *testing.T) {
	m := NewFailureMonitor(DefaultMonitorConfig())
	assert.Equal(t, 1, m.RetryBudgetRemaining("s1"))
	m.UseRetry("s1")
	assert.Equal(t, 0, m.RetryBudgetRemaining("s1"))
	assert.Equal(t, 1, m.RetryBudgetRemaining("s2"))
}

func TestFailureMonitor_FailuresForStep(t *testing.T) {
	m := NewFailureMonitor(DefaultMonitorConfig())
	m.Record(Failure{URL: "https://x", Status: 401, StepID: "s1"})
	m.Record(Failure{URL: "https://y", Status: 401, StepID: "s2"})
	assert.Len(t, m.FailuresForStep("s1"), 1)
	latest, ok := m.LatestFailure()
	require.True(t, ok)
	assert.Equal(t, "s2", latest.StepID)
}
