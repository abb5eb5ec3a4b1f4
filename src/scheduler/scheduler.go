// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers a job with a cron schedule, e.g. "*/5 * * * *",
// "@hourly" or "@every 15m". An empty schedule leaves the job disabled.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if strings.TrimSpace(schedule) == "" {
		s.log.Info("Job disabled, no schedule configured", "job", job.Name())
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug("Running job", "job", job.Name())
		if err := job.Run(); err != nil {
			s.log.Error("Job failed", "job", job.Name(), "error", err)
		} else {
			s.log.Debug("Job completed", "job", job.Name())
		}
	})
	if err != nil {
		return err
	}

	s.log.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info("Running job immediately", "job", job.Name())
	return job.Run()
}
