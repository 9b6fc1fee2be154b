// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StaleBatchStore is the part of the bulk repository the reaper needs.
type StaleBatchStore interface {
	FailStaleBulkSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper marks batches stuck in processing as failed. A batch gets stuck
// when the process dies while it is running.
type Reaper struct {
	store      StaleBatchStore
	schedule   string
	staleAfter time.Duration
	metrics    *metrics.Metrics
	log        *logger.Logger
	cron       *cron.Cron
	now        func() time.Time
}

func NewReaper(store StaleBatchStore, schedule string, staleAfter time.Duration, m *metrics.Metrics, log *logger.Logger) *Reaper {
	l := log.Component("reaper")
	return &Reaper{
		store:      store,
		schedule:   schedule,
		staleAfter: staleAfter,
		metrics:    m,
		log:        l,
		// overlapping runs are skipped
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(l)))),
		now:  time.Now,
	}
}

// Start schedules the job and blocks until ctx is done.
func (r *Reaper) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.WithError(err).Error("stale batch sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add reaper job %q: %w", r.schedule, err)
	}

	r.log.WithFields(logrus.Fields{
		"schedule":    r.schedule,
		"stale_after": r.staleAfter.String(),
	}).Info("reaper started")
	r.cron.Start()

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.log.Info("reaper stopped")
	return nil
}

// RunOnce performs a single sweep and returns how many batches were failed.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.staleAfter)
	n, err := r.store.FailStaleBulkSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stale bulk sessions: %w", err)
	}
	r.metrics.RecordStaleReaped(n)
	if n > 0 {
		r.log.WithFields(logrus.Fields{
			"count":  n,
			"cutoff": cutoff.UTC().Format(time.RFC3339),
		}).Warn("marked stale bulk sessions as failed")
	}
	return n, nil
}
