package lifecycle

import (
	"context"
	"log"
	"time"

	"taskmap-backend/core"
	"taskmap-backend/metrics"
	"taskmap-backend/storage"
)

// StartFundingWatch periodically sweeps submitted tasks and records how
// many are backed by a funded escrow. This is operator visibility only:
// the approve gate always re-reads the chain itself, so the sweep grants
// nothing.
func StartFundingWatch(ctx context.Context, store storage.Store, funding *Reconciler, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := sweepFunding(ctx, store, funding); err != nil {
					log.Printf("funding watch error: %v", err)
				}
			}
		}
	}()
}

func sweepFunding(ctx context.Context, store storage.Store, funding *Reconciler) error {
	tasks, err := store.List(ctx, []string{core.StatusOpen, core.StatusCompleted, core.StatusPaid})
	if err != nil {
		return err
	}

	var funded, unfunded int
	for _, t := range tasks {
		if t.Status != core.StatusSubmitted {
			continue
		}
		ok, err := funding.IsFunded(ctx, t)
		if err != nil {
			log.Printf("funding watch: task %d: %v", t.ID, err)
			continue
		}
		if ok {
			funded++
		} else {
			unfunded++
			log.Printf("funding watch: task %d submitted but escrow not funded", t.ID)
		}
	}
	metrics.FundedSubmitted.Set(float64(funded))
	metrics.UnfundedSubmitted.Set(float64(unfunded))
	return nil
}
