// Package config defines the tokenization demo harness's configuration,
// loaded with viper from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SchedulerConfig holds the scheduler settings of the demo harness. It is
// unmarshalled from YAML via mapstructure tags, the same convention the
// rest of the demo harness's config uses. Only IdleSliceBudget is read,
// as the idle window the demo's TimerHost grants; the engine's work
// quantum and cheap-tokenize threshold are constants in package
// tokenengine, and BackgroundWorkQuantum, CheapTokenizeThreshold and
// AutoBackground are not read by any code.
type SchedulerConfig struct {
	IdleSliceBudget        time.Duration `mapstructure:"idle_slice_budget"`
	BackgroundWorkQuantum  time.Duration `mapstructure:"background_work_quantum"`
	CheapTokenizeThreshold int           `mapstructure:"cheap_tokenize_threshold"`
	AutoBackground         bool          `mapstructure:"auto_background"`
}

// Config is the demo harness's top-level configuration.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	LogPath   string          `mapstructure:"log_path"`
	Debug     bool            `mapstructure:"debug"`
}

// Defaults returns the configuration used when no config file is found and
// no flag overrides are set.
func Defaults() Config {
	return Config{
		Scheduler: SchedulerConfig{
			IdleSliceBudget:        16 * time.Millisecond,
			BackgroundWorkQuantum:  time.Millisecond,
			CheapTokenizeThreshold: 2048,
			AutoBackground:         true,
		},
		LogPath: ".tokenengine/debug.log",
		Debug:   false,
	}
}

// WriteDefaultConfig writes Defaults() to path as YAML, creating parent
// directories as needed, so a missing config file is seeded with sane
// defaults on first run instead of failing.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	contents := fmt.Sprintf(`scheduler:
  idle_slice_budget: %s
  background_work_quantum: %s
  cheap_tokenize_threshold: %d
  auto_background: %t
log_path: %s
debug: %t
`,
		Defaults().Scheduler.IdleSliceBudget,
		Defaults().Scheduler.BackgroundWorkQuantum,
		Defaults().Scheduler.CheapTokenizeThreshold,
		Defaults().Scheduler.AutoBackground,
		Defaults().LogPath,
		Defaults().Debug,
	)

	return os.WriteFile(path, []byte(contents), 0o644)
}
