// Package scheduler runs the periodic ingestion and reply jobs for serve
// mode.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled task. It receives a bounded context; long scrape runs
// are cut off rather than allowed to pile up behind the next trigger.
type Job func(ctx context.Context) error

// Scheduler manages the periodic tasks.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	timezone *time.Location
	logger   *slog.Logger
}

// jobTimeout bounds a single run. A full ingestion with per-post media
// resolution can take a while; half an hour is generous.
const jobTimeout = 30 * time.Minute

// New creates a scheduler in the given timezone.
func New(timezone string, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		logger:   logger,
	}, nil
}

// AddJob registers a job under a cron expression like "0 */2 * * *".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		s.logger.Info("scheduler: job starting", "job", name)
		start := time.Now()

		if err := job(ctx); err != nil {
			s.logger.Error("scheduler: job failed", "job", name, "error", err)
			return
		}
		s.logger.Info("scheduler: job completed", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("scheduler: job added", "job", name, "schedule", schedule)
	return nil
}

// AddIngestJob schedules the keyword ingestion every intervalHours hours, on
// the hour.
func (s *Scheduler) AddIngestJob(intervalHours int, job Job) error {
	if intervalHours <= 0 {
		return fmt.Errorf("ingest interval must be positive, got %d", intervalHours)
	}
	return s.AddJob("ingest", fmt.Sprintf("0 */%d * * *", intervalHours), job)
}

// AddReplyJob schedules the daily reply run at timeStr ("HH:MM", scheduler
// timezone).
func (s *Scheduler) AddReplyJob(timeStr string, job Job) error {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return fmt.Errorf("invalid time format %s: %w", timeStr, err)
	}
	return s.AddJob("reply", fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), job)
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler: starting", "timezone", s.timezone.String())
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler: stopping")
	return s.cron.Stop()
}

// JobInfo describes one scheduled job.
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// ListJobs reports the registered jobs with their next and previous runs.
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	return infos
}
