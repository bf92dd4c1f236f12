// Package scheduler implements C18, the daily scheduler: the four
// cron-style jobs of spec §4.15 (universe scan, engine start, primary
// session notice, settlement) plus SIGINT/SIGTERM-driven graceful
// shutdown. Grounded on cmd/scanner/main.go's signal.NotifyContext
// pattern and internal/application/scanner.Scanner.Run's ticker loop,
// generalized from one repeating cycle to several fixed wall-clock jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain/xtime"
	"github.com/kkim/hanaro-trader/internal/ports"
)

// DefaultPollInterval is how often the scheduler checks job times against
// the exchange-local clock. One minute matches the job times' resolution.
const DefaultPollInterval = time.Minute

// JobFunc is one scheduled unit of work. A non-nil error is logged and
// notified but never stops the scheduler; a panic is recovered and
// reported the same way (spec's "catastrophic error" path, §7).
type JobFunc func(ctx context.Context) error

// Job pairs a name and exchange-local "HH:MM" fire time with its body.
type Job struct {
	Name string
	At   string
	Run  JobFunc
}

// Scheduler fires each registered Job at most once per exchange-local
// calendar day, at its configured time.
type Scheduler struct {
	clock        *xtime.Clock
	notify       ports.Notifier
	jobs         []Job
	pollInterval time.Duration

	mu       sync.Mutex
	firedDay map[string]time.Time
}

// New constructs a Scheduler over jobs, polling at DefaultPollInterval.
func New(clock *xtime.Clock, notify ports.Notifier, jobs []Job) *Scheduler {
	return &Scheduler{
		clock:        clock,
		notify:       notify,
		jobs:         jobs,
		pollInterval: DefaultPollInterval,
		firedDay:     make(map[string]time.Time),
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Run polls until ctx is cancelled, firing any job whose At matches the
// current exchange-local minute and that hasn't already fired today.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler: starting", "jobs", len(s.jobs), "poll_interval", s.pollInterval)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stopped")
			return nil
		case <-ticker.C:
			s.checkJobs(ctx)
		}
	}
}

func (s *Scheduler) checkJobs(ctx context.Context) {
	now := s.clock.Now()
	hhmm := now.Format("15:04")
	day := dayOf(now)

	for _, job := range s.jobs {
		if job.At != hhmm {
			continue
		}
		s.mu.Lock()
		if s.firedDay[job.Name].Equal(day) {
			s.mu.Unlock()
			continue
		}
		s.firedDay[job.Name] = day
		s.mu.Unlock()

		go s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("job %s panicked: %v", job.Name, r)
			slog.Error("scheduler: job panicked", "job", job.Name, "panic", r)
			s.notifyFailure(ctx, job.Name, err)
		}
	}()

	slog.Info("scheduler: job starting", "job", job.Name)
	if err := job.Run(ctx); err != nil {
		slog.Error("scheduler: job failed", "job", job.Name, "err", err)
		s.notifyFailure(ctx, job.Name, err)
		return
	}
	slog.Info("scheduler: job completed", "job", job.Name)
}

func (s *Scheduler) notifyFailure(ctx context.Context, jobName string, err error) {
	if s.notify == nil {
		return
	}
	subject := fmt.Sprintf("job %s failed", jobName)
	if nerr := s.notify.Notify(ctx, subject, err.Error()); nerr != nil {
		slog.Warn("scheduler: failure notification failed", "err", nerr)
	}
}

// RunNow fires job immediately, bypassing the daily latch and the clock —
// used by operators and tests to trigger a job out of band.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) error {
	for _, job := range s.jobs {
		if job.Name == jobName {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("scheduler: no job named %q", jobName)
}
