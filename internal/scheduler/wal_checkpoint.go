package scheduler

import (
	"github.com/aristath/findata/internal/database"
	"github.com/rs/zerolog"
)

// largeWALFrames is the WAL size above which a warning is logged.
const largeWALFrames = 1000

// Checkpointer is the part of database.DB the checkpoint job needs.
type Checkpointer interface {
	Name() string
	WALCheckpoint(mode string) (database.CheckpointResult, error)
}

// WALCheckpointJob folds the cache database WAL back into the main file.
type WALCheckpointJob struct {
	dbs  []Checkpointer
	mode string
	log  zerolog.Logger
}

// NewWALCheckpointJob creates a PASSIVE checkpoint job for the given databases.
func NewWALCheckpointJob(log zerolog.Logger, dbs ...Checkpointer) *WALCheckpointJob {
	return &WALCheckpointJob{
		dbs:  dbs,
		mode: "PASSIVE",
		log:  log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints every database. A failing database is logged and skipped.
func (j *WALCheckpointJob) Run() error {
	checked := 0
	for _, db := range j.dbs {
		if db == nil {
			continue
		}

		res, err := db.WALCheckpoint(j.mode)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to checkpoint WAL")
			continue
		}

		if res.LogFrames > largeWALFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", res.LogFrames).
				Int("checkpointed", res.Checkpointed).
				Msg("WAL file is large, checkpoint may be lagging")
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", res.LogFrames).
				Msg("WAL checkpoint status OK")
		}
		checked++
	}

	j.log.Debug().Int("checked", checked).Msg("WAL checkpoint completed")
	return nil
}
