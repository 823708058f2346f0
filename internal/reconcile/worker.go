package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// StaleAfter is how long a transaction may sit in pending before the sweeper
// treats its enclosing operation as abandoned.
const StaleAfter = 15 * time.Minute

type SweepArgs struct{}

func (SweepArgs) Kind() string { return "sweep_stale_transactions" }

// LedgerSweeper marks stale pending transactions failed.
type LedgerSweeper interface {
	FailStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepWorker is the periodic reconciliation pass: committed operations
// always write their transactions as completed, so any pending row older
// than the cutoff belongs to an operation that never finished and is marked
// failed.
type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	ledger LedgerSweeper
	log    *slog.Logger
}

func NewSweepWorker(ledger LedgerSweeper, log *slog.Logger) *SweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SweepWorker{ledger: ledger, log: log}
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepArgs]) error {
	cutoff := time.Now().Add(-StaleAfter)
	n, err := w.ledger.FailStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep stale transactions: %w", err)
	}
	if n > 0 {
		w.log.Warn("reconciled stale pending transactions", "count", n, "cutoff", cutoff)
	}
	return nil
}
