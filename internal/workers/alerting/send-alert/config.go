package sendalert

import (
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig derives the job deadline from the worker's configured timeout.
func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Config{Timeout: timeout}
}
