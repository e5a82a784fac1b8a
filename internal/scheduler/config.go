package scheduler

import (
	"time"

	appconfig "github.com/smallbiznis/rebill/internal/config"
)

// Config controls scheduler intervals, batch sizes and dispatch jitter.
type Config struct {
	RunInterval       time.Duration
	BatchSize         int
	DispatchJitterMax time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Hour,
		BatchSize:         100,
		DispatchJitterMax: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.DispatchJitterMax < 0 {
		c.DispatchJitterMax = defaults.DispatchJitterMax
	}
	return c
}

// ProvideConfig maps the application config onto the scheduler config.
func ProvideConfig(appCfg appconfig.Config) Config {
	return Config{
		RunInterval:       time.Duration(appCfg.Scheduler.RunIntervalSeconds) * time.Second,
		BatchSize:         appCfg.Scheduler.BatchSize,
		DispatchJitterMax: time.Duration(appCfg.Scheduler.JitterMaxSeconds) * time.Second,
		EnabledJobs:       appCfg.Scheduler.EnabledJobs,
	}.withDefaults()
}
