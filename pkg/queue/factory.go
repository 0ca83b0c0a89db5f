package queue

import (
	"fmt"

	"fleetwatch/pkg/config"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/queue/asynq"
	"fleetwatch/pkg/queue/local"
)

// NewDeadlineScheduler creates the step deadline scheduler selected by dispatch.deadline_backend
func NewDeadlineScheduler(cfg *config.Config) (interfaces.DeadlineScheduler, error) {
	switch cfg.Dispatch.DeadlineBackend {
	case config.DeadlineBackendAsynq:
		if !cfg.Redis.Enabled() {
			return nil, fmt.Errorf("deadline backend %q requires redis.addr", config.DeadlineBackendAsynq)
		}
		return asynq.NewDeadlineScheduler(cfg.Redis, cfg.Dispatch.Concurrency), nil
	case config.DeadlineBackendLocal, "":
		return local.NewDeadlineScheduler(), nil
	default:
		return nil, fmt.Errorf("unsupported deadline backend: %s", cfg.Dispatch.DeadlineBackend)
	}
}
