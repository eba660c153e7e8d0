package tasks

import (
	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
)

// RegisterTraktRefreshTask registers the hourly Trakt token refresh.
// The service only swaps tokens once expiry moves inside its refresh
// window, so running often is cheap. Skipped entirely when no Trakt
// application is configured.
func RegisterTraktRefreshTask(sched *scheduler.Scheduler, svc *trakt.Service) error {
	if !svc.Enabled() {
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "trakt-refresh",
		Name:        "Trakt Token Refresh",
		Description: "Refreshes the Trakt access token before it expires",
		Cron:        "15 * * * *",
		RunOnStart:  true,
		Func:        svc.Refresh,
	})
}
