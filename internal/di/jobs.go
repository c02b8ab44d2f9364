// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/findata/internal/clientdata"
	"github.com/aristath/findata/internal/config"
	"github.com/aristath/findata/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers maintenance jobs.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	container.Scheduler = sched
	instances := &JobInstances{}

	if container.ClientDataDB != nil {
		instances.WALCheckpoint = scheduler.NewWALCheckpointJob(log, container.ClientDataDB)
		if err := sched.AddJob(cfg.Jobs.WALSchedule, instances.WALCheckpoint); err != nil {
			return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
		}

		if cfg.Jobs.PurgeRetention > 0 {
			instances.Purge = clientdata.NewPurgeJob(container.ClientDataRepo, cfg.Jobs.PurgeRetention, log)
			if err := sched.AddJob(cfg.Jobs.PurgeSchedule, instances.Purge); err != nil {
				return nil, fmt.Errorf("failed to register purge job: %w", err)
			}
		}
	}

	if len(cfg.Jobs.WarmTickers) > 0 {
		instances.WarmCache = scheduler.NewWarmCacheJob(container.DataService, cfg.Jobs.WarmTickers, log)
		if err := sched.AddJob(cfg.Jobs.WarmSchedule, instances.WarmCache); err != nil {
			return nil, fmt.Errorf("failed to register warm cache job: %w", err)
		}
	}

	return instances, nil
}
