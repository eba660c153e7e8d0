package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/store"
)

const HistoryTrimTaskID = "history-trim"

// RegisterHistoryTrimTask registers the nightly search-history trim,
// keeping only the newest keep entries.
func RegisterHistoryTrimTask(sched *scheduler.Scheduler, st *store.Store, keep int, logger zerolog.Logger) error {
	taskLogger := logger.With().Str("task", "history-trim").Logger()

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryTrimTaskID,
		Name:        "Search History Trim",
		Description: "Trims the search history down to the configured size",
		Cron:        "30 2 * * *",
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			removed, err := st.TrimSearchHistory(ctx, keep)
			if err != nil {
				return err
			}
			if removed > 0 {
				taskLogger.Info().Int64("removed", removed).Int("keep", keep).Msg("Trimmed search history")
			}
			return nil
		},
	})
}
