package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/store"
)

// RegisterCacheSweepTask registers the nightly sweep of expired metadata
// records from the database. The in-memory cache cleans itself up; only
// the persistent rows need a janitor.
func RegisterCacheSweepTask(sched *scheduler.Scheduler, st *store.Store, logger zerolog.Logger) error {
	taskLogger := logger.With().Str("task", "cache-sweep").Logger()

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "cache-sweep",
		Name:        "Metadata Cache Sweep",
		Description: "Deletes expired metadata records from the database cache",
		Cron:        "0 3 * * *",
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			pruned, err := st.PruneExpiredRecords(ctx)
			if err != nil {
				return err
			}
			if pruned > 0 {
				taskLogger.Info().Int64("pruned", pruned).Msg("Removed expired metadata records")
			}
			return nil
		},
	})
}
