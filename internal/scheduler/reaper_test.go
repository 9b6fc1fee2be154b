package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStore struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeStore) FailStaleBulkSessions(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func TestReaper_RunOnceUsesCutoff(t *testing.T) {
	store := &fakeStore{n: 2}
	m := metrics.New(prometheus.NewRegistry())
	r := NewReaper(store, "@every 15m", 6*time.Hour, m, logger.Discard())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reaped, got %d", n)
	}
	if len(store.cutoffs) != 1 || !store.cutoffs[0].Equal(now.Add(-6*time.Hour)) {
		t.Fatalf("unexpected cutoff: %v", store.cutoffs)
	}
	if got := testutil.ToFloat64(m.StaleBatchesReaped); got != 2 {
		t.Fatalf("expected reaped counter 2, got %v", got)
	}
}

func TestReaper_RunOnceError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	r := NewReaper(store, "@every 15m", time.Hour, nil, logger.Discard())
	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestReaper_StartRejectsBadSchedule(t *testing.T) {
	r := NewReaper(&fakeStore{}, "not a schedule", time.Hour, nil, logger.Discard())
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected invalid schedule to be rejected")
	}
}

func TestReaper_StartStopsOnCancel(t *testing.T) {
	r := NewReaper(&fakeStore{}, "@every 1h", time.Hour, nil, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
