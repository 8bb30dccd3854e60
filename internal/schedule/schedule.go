package schedule

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftstack/mc-server-manager/internal/logging"
	"github.com/craftstack/mc-server-manager/internal/server"
)

// Restarter is the slice of the supervisor the scheduler needs.
type Restarter interface {
	State() server.RunState
	Restart(timeout time.Duration) error
}

// Runner fires scheduled server restarts from a cron expression.
// An empty expression disables scheduling entirely.
type Runner struct {
	cron      *cron.Cron
	restarter Restarter
	timeout   time.Duration
	activity  *logging.ActivityLogger
}

func NewRunner(restarter Restarter, timeout time.Duration, activity *logging.ActivityLogger) *Runner {
	return &Runner{
		cron:      cron.New(),
		restarter: restarter,
		timeout:   timeout,
		activity:  activity,
	}
}

// Start schedules restarts per the expression and begins the cron
// loop. Returns an error for a malformed expression; an empty
// expression is a successful no-op.
func (r *Runner) Start(expression string) error {
	if expression == "" {
		return nil
	}

	if _, err := r.cron.AddFunc(expression, r.restart); err != nil {
		return err
	}

	r.cron.Start()
	log.Printf("[Schedule] Restart schedule active: %s", expression)
	return nil
}

// Stop halts the cron loop and waits for an in-flight restart.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Runner) restart() {
	// Only a running server is restarted; a stopped one stays stopped.
	if r.restarter.State() != server.StateRunning {
		log.Println("[Schedule] Skipping scheduled restart, server not running")
		return
	}

	log.Println("[Schedule] Running scheduled restart")
	err := r.restarter.Restart(r.timeout)
	if err != nil {
		log.Printf("[Schedule] Scheduled restart failed: %v", err)
	}
	if r.activity != nil {
		r.activity.LogResult(logging.ActivityScheduledRestart, "Scheduled server restart", err)
	}
}
