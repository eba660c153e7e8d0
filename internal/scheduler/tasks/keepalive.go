// Package tasks wires the daemon's background jobs into the scheduler.
package tasks

import (
	"time"

	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/session"
)

const KeepAliveTaskID = "session-keepalive"

// RegisterKeepAliveTask registers the Webshare session keep-alive.
// Webshare drops idle tokens, so an established session is pinged on
// the configured interval; a logged-out manager makes it a no-op.
func RegisterKeepAliveTask(sched *scheduler.Scheduler, sessions *session.Manager, cfg config.WebshareConfig) error {
	every := time.Duration(cfg.KeepAliveSecs) * time.Second
	if every <= 0 {
		every = 10 * time.Minute
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          KeepAliveTaskID,
		Name:        "Session Keep-Alive",
		Description: "Pings the Webshare session so the token stays valid between requests",
		Every:       every,
		RunOnStart:  false,
		Func:        sessions.KeepAlive,
	})
}
