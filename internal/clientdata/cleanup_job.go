package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PurgeJob removes records older than a retention window. Freshness TTLs
// never delete rows; this is the only path that does, and only when a
// positive retention is configured.
type PurgeJob struct {
	repo      *Repository
	retention time.Duration
	timeout   time.Duration
	log       zerolog.Logger
}

// NewPurgeJob creates a purge job. A retention of zero disables purging.
func NewPurgeJob(repo *Repository, retention time.Duration, log zerolog.Logger) *PurgeJob {
	return &PurgeJob{
		repo:      repo,
		retention: retention,
		timeout:   time.Minute,
		log:       log.With().Str("job", "client_data_purge").Logger(),
	}
}

// Run deletes every record written before now - retention.
func (j *PurgeJob) Run() error {
	if j.retention <= 0 {
		j.log.Debug().Msg("Purge disabled, no retention configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	results, err := j.repo.DeleteAllOlderThan(ctx, cutoff)

	var totalDeleted int64
	for category, count := range results {
		if count > 0 {
			j.log.Info().
				Str("category", category.String()).
				Int64("deleted", count).
				Msg("Purged records past retention")
			totalDeleted += count
		}
	}

	if err != nil {
		j.log.Error().Err(err).Int64("deleted", totalDeleted).Msg("Client data purge finished with errors")
		return err
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Dur("retention", j.retention).
			Msg("Client data purge completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *PurgeJob) Name() string {
	return "client_data_purge"
}
