package lifecycle

import (
	"context"

	"taskmap-backend/chain"
	"taskmap-backend/core"
)

// EscrowReader is the read side of the escrow client.
type EscrowReader interface {
	Read(ctx context.Context, taskID int64) (core.EscrowRecord, error)
}

// Reconciler decides whether the on-chain escrow currently backs a task's
// reward. Every check re-reads the chain: escrow state can change outside
// this system (direct contract interaction), so nothing here is cached.
type Reconciler struct {
	escrow EscrowReader
}

// NewReconciler builds a reconciler over an escrow reader.
func NewReconciler(escrow EscrowReader) *Reconciler {
	return &Reconciler{escrow: escrow}
}

// IsFunded reports whether the locked amount covers the task's reward and
// the record is neither released nor cancelled. Worker-address equality is
// not part of the check; assignment is owned by the task row.
func (r *Reconciler) IsFunded(ctx context.Context, task core.Task) (bool, error) {
	record, err := r.escrow.Read(ctx, task.ID)
	if err != nil {
		return false, err
	}
	required, err := chain.ParseEther(task.Reward)
	if err != nil {
		return false, err
	}
	if record.Terminal() {
		return false, nil
	}
	return record.LockedWei != nil && record.LockedWei.Cmp(required) >= 0, nil
}
