package orchestratequery

import (
	"time"

	"query-orchestrator/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
	PersistPlaces bool
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	c := &Config{
		Timeout:       time.Duration(wc.Timeout) * time.Millisecond,
		MaxJobsActive: wc.MaxJobsActive,
		PersistPlaces: true,
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.MaxJobsActive <= 0 {
		c.MaxJobsActive = 5
	}
	return c
}
