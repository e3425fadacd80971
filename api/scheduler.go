/*
scheduler.go - Background jobs

PURPOSE:
  Periodically runs the time-driven operations that no request triggers:
  - auto_end:            close active entries past their scheduled window
  - release_attempts:    approve early attempts once scheduled start minus
                         the tolerance is reached (optional)
  - auto_approve:        approve small corrections created on a past day

DESIGN:
  - One goroutine, one ticker; every pass runs each job once
  - A failing job is logged and does not stop the others
  - RunOnce is exported for the manual trigger endpoint and tests

CONFIGURATION:
  - Interval: How often to run (default: 1 minute)
  - ReleaseEarlyAttempts: Whether release_attempts runs (default: false)

USAGE:
  jobs := NewJobs(services, time.Minute, false, clock, logger)
  jobs.Start()
  // ... later
  jobs.Stop()

SEE ALSO:
  - clock/clock.go: AutoEnd
  - clock/attempt.go: ReleaseDueAttempts
  - correction/correction.go: AutoApprove
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
)

const DefaultJobInterval = time.Minute

// Jobs runs the periodic maintenance passes.
type Jobs struct {
	Services             Services
	Interval             time.Duration
	ReleaseEarlyAttempts bool

	clock  generic.Clock
	logger *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewJobs(svc Services, interval time.Duration, releaseEarly bool, clock generic.Clock, logger *slog.Logger) *Jobs {
	if interval <= 0 {
		interval = DefaultJobInterval
	}
	return &Jobs{
		Services:             svc,
		Interval:             interval,
		ReleaseEarlyAttempts: releaseEarly,
		clock:                clock,
		logger:               logging.Default(logger).With("component", "jobs"),
	}
}

// Start begins the ticker. Calling Start twice is a no-op.
func (j *Jobs) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker != nil {
		return
	}
	j.ticker = time.NewTicker(j.Interval)
	j.stop = make(chan struct{})
	j.wg.Add(1)
	go j.run()

	j.logger.Info("jobs started", "interval", j.Interval.String(), "release_early_attempts", j.ReleaseEarlyAttempts)
}

// Stop halts the ticker and waits for a running pass to finish.
func (j *Jobs) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker == nil {
		return
	}
	j.ticker.Stop()
	close(j.stop)
	j.wg.Wait()
	j.ticker = nil
	j.logger.Info("jobs stopped")
}

func (j *Jobs) run() {
	defer j.wg.Done()

	j.RunOnce(context.Background())
	for {
		select {
		case <-j.ticker.C:
			j.RunOnce(context.Background())
		case <-j.stop:
			return
		}
	}
}

// RunOnce runs every job once at the current time and reports each result.
func (j *Jobs) RunOnce(ctx context.Context) []JobRunDTO {
	now := j.clock.Now()
	ctx = logging.ContextWithLogger(ctx, j.logger)

	type job struct {
		name string
		fn   func(context.Context, time.Time) (int, error)
	}
	jobs := []job{{"auto_end", j.Services.Clock.AutoEnd}}
	if j.ReleaseEarlyAttempts {
		jobs = append(jobs, job{"release_attempts", j.Services.Clock.ReleaseDueAttempts})
	}
	jobs = append(jobs, job{"auto_approve", j.Services.Corrections.AutoApprove})

	runs := make([]JobRunDTO, 0, len(jobs))
	for _, jb := range jobs {
		n, err := jb.fn(ctx, now)
		run := JobRunDTO{Job: jb.name, Count: n}
		if err != nil {
			run.Error = err.Error()
			j.logger.Warn("job failed", "job", jb.name, "count", n, "error_kind", generic.ErrorKind(err), "error", err)
		} else if n > 0 {
			j.logger.Info("job done", "job", jb.name, "count", n)
		}
		runs = append(runs, run)
	}
	return runs
}

// RunJobs triggers one pass manually.
// POST /api/admin/jobs/run
func (h *Handler) RunJobs(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		h.writeError(w, r, generic.NewValidationError("jobs", "background jobs are not configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.Jobs.RunOnce(r.Context()))
}
