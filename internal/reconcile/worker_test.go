package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
)

type mockSweeper struct {
	cutoff time.Time
	n      int64
	err    error
}

func (m *mockSweeper) FailStalePending(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return m.n, m.err
}

func TestSweepWork(t *testing.T) {
	sweeper := &mockSweeper{n: 3}
	w := NewSweepWorker(sweeper, nil)

	before := time.Now().Add(-StaleAfter)
	if err := w.Work(context.Background(), &river.Job[SweepArgs]{}); err != nil {
		t.Fatalf("work: %v", err)
	}
	after := time.Now().Add(-StaleAfter)

	if sweeper.cutoff.Before(before) || sweeper.cutoff.After(after) {
		t.Fatalf("cutoff %s not within [%s, %s]", sweeper.cutoff, before, after)
	}
}

func TestSweepWorkError(t *testing.T) {
	sweeper := &mockSweeper{err: errors.New("db down")}
	w := NewSweepWorker(sweeper, nil)

	if err := w.Work(context.Background(), &river.Job[SweepArgs]{}); err == nil {
		t.Fatal("expected error to propagate for retry")
	}
}
