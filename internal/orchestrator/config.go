// config.go — SHOWRUN_* environment configuration for the Run Orchestrator
// (§6's "configuration comes from environment variables").
//
// Grounded on the teacher/pack's viper-based config loading convention
// (cmd/gasoline-cmd/config): a thin typed wrapper over viper's
// AutomaticEnv binding rather than hand-rolled os.Getenv calls scattered
// through the orchestrator.
package orchestrator

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the orchestrator's environment-tunable defaults. Per-run
// RunOptions always take precedence over these when both are set.
type Config struct {
	Headless           bool
	MaxConcurrentRuns  int
	MinRunIntervalMs   int
	SnapshotMaxAgeDays int
}

// LoadConfig reads SHOWRUN_* environment variables (and, if present,
// ./showrun.config.yaml) via viper.
func LoadConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("SHOWRUN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("showrun.config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional; absence is not an error

	v.SetDefault("headless", true)
	v.SetDefault("max_concurrent_runs", 1)
	v.SetDefault("min_run_interval_ms", 0)
	v.SetDefault("snapshot_max_age_days", 1)

	return Config{
		Headless:           v.GetBool("headless"),
		MaxConcurrentRuns:  v.GetInt("max_concurrent_runs"),
		MinRunIntervalMs:   v.GetInt("min_run_interval_ms"),
		SnapshotMaxAgeDays: v.GetInt("snapshot_max_age_days"),
	}
}
