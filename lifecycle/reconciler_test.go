package lifecycle

import (
	"context"
	"math/big"
	"testing"

	"taskmap-backend/chain"
	"taskmap-backend/core"
)

type staticReader struct {
	rec core.EscrowRecord
	err error
}

func (s staticReader) Read(ctx context.Context, taskID int64) (core.EscrowRecord, error) {
	return s.rec, s.err
}

func wei(t *testing.T, ether string) *big.Int {
	t.Helper()
	v, err := chain.ParseEther(ether)
	if err != nil {
		t.Fatalf("ParseEther(%q): %v", ether, err)
	}
	return v
}

func TestIsFunded(t *testing.T) {
	task := core.Task{ID: 7, Reward: "0.05", WorkerWallet: workerA, Status: core.StatusSubmitted}

	cases := []struct {
		name string
		rec  core.EscrowRecord
		want bool
	}{
		{"exact amount", core.EscrowRecord{LockedWei: wei(t, "0.05"), Funded: true}, true},
		{"overfunded", core.EscrowRecord{LockedWei: wei(t, "0.06"), Funded: true}, true},
		{"underfunded", core.EscrowRecord{LockedWei: wei(t, "0.049"), Funded: true}, false},
		{"empty record", core.EscrowRecord{}, false},
		{"released", core.EscrowRecord{LockedWei: wei(t, "0.05"), Funded: true, Released: true}, false},
		{"cancelled", core.EscrowRecord{LockedWei: wei(t, "0.05"), Funded: true, Cancelled: true}, false},
		// A mismatched on-chain worker does not block funding; the row is
		// authoritative for assignment.
		{"different worker on chain", core.EscrowRecord{Worker: workerB, LockedWei: wei(t, "0.05"), Funded: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReconciler(staticReader{rec: tc.rec})
			got, err := r.IsFunded(context.Background(), task)
			if err != nil {
				t.Fatalf("IsFunded error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsFunded = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsFundedChainError(t *testing.T) {
	r := NewReconciler(staticReader{err: &core.ChainError{Kind: core.ChainUnavailable, Detail: "down"}})
	_, err := r.IsFunded(context.Background(), core.Task{ID: 1, Reward: "0.05"})
	if core.ChainKind(err) != core.ChainUnavailable {
		t.Fatalf("expected ChainUnavailable, got %v", err)
	}
}
