// Package scheduler runs the process's periodic maintenance sweep: a
// database health probe and a safety-net flush of any session whose dirty
// config/memory was never written back because the process crashed mid
// session (spec.md §4.5, §7's durability notes). Cron schedules are
// evaluated with adhocore/gronx, the teacher's own scheduling dependency,
// given a concrete home here rather than dropped for being unused in the
// copied subset.
package scheduler

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/solace-ai/agentserver/pkg/logger"
)

// Job is one named unit of periodic maintenance work.
type Job struct {
	Name string
	Expr string // standard 5-field cron expression
	Run  func(ctx context.Context) error
}

// Scheduler polls a set of cron-scheduled jobs once a minute, the finest
// granularity a 5-field cron expression supports, and runs any job whose expression
// is due.
type Scheduler struct {
	gron gronx.Gronx
	jobs []Job

	tick time.Duration
}

// New builds a Scheduler over jobs, checking due-ness every minute.
func New(jobs []Job) *Scheduler {
	return &Scheduler{gron: gronx.New(), jobs: jobs, tick: time.Minute}
}

// Run blocks, firing due jobs until ctx is cancelled. Each job runs in its
// own goroutine so a slow job never delays the next minute's due check for
// the others.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now)
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		due, err := s.gron.IsDue(job.Expr, now)
		if err != nil {
			logger.WarnCF("scheduler", "invalid cron expression", map[string]interface{}{"job": job.Name, "expr": job.Expr, "error": err.Error()})
			continue
		}
		if !due {
			continue
		}
		go s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := job.Run(jobCtx); err != nil {
		logger.ErrorCF("scheduler", "job failed", map[string]interface{}{"job": job.Name, "error": err.Error()})
		return
	}
	logger.DebugCF("scheduler", "job completed", map[string]interface{}{"job": job.Name})
}
