package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"

	"taskmap-backend/core"
	"taskmap-backend/metrics"
	"taskmap-backend/storage"
)

// EscrowClient is the escrow surface the controller drives.
type EscrowClient interface {
	EscrowReader
	Fund(ctx context.Context, task core.Task, from string) (core.TxReceipt, error)
	Release(ctx context.Context, taskID int64, from string) (core.TxReceipt, error)
}

// SubmissionRef is the worker's proof of completed work.
type SubmissionRef struct {
	URL   string `json:"url"`
	Notes string `json:"notes"`
}

// Controller is the task lifecycle state machine. It validates actor and
// current state before every store mutation, and sequences the release-
// then-commit ordering of approve. It holds no state and takes no locks:
// mutual exclusion lives in the store's conditional updates and in the
// contract's own flags.
type Controller struct {
	store   storage.Store
	escrow  EscrowClient
	funding *Reconciler
}

// NewController wires the state machine over a store and an escrow client.
func NewController(store storage.Store, escrow EscrowClient) *Controller {
	return &Controller{
		store:   store,
		escrow:  escrow,
		funding: NewReconciler(escrow),
	}
}

// Funding exposes the reconciler for the escrow-status view.
func (c *Controller) Funding() *Reconciler { return c.funding }

// Create inserts a new open task posted by actor.
func (c *Controller) Create(ctx context.Context, actor string, fields storage.NewTask) (core.Task, error) {
	if err := core.ValidateWallet(actor); err != nil {
		return core.Task{}, err
	}
	fields.PosterWallet = actor
	task, err := c.store.Insert(ctx, fields)
	if err != nil {
		return core.Task{}, c.classifyStore("create", err)
	}
	metrics.Transitions.WithLabelValues("create", "ok").Inc()
	return task, nil
}

// Get returns a task by id.
func (c *Controller) Get(ctx context.Context, id int64) (core.Task, error) {
	task, err := c.store.Get(ctx, id)
	if err != nil {
		return core.Task{}, c.classifyStore("get", err)
	}
	return task, nil
}

// List returns active tasks, hiding terminal statuses from browsing.
func (c *Controller) List(ctx context.Context) ([]core.Task, error) {
	tasks, err := c.store.List(ctx, []string{core.StatusCompleted, core.StatusPaid})
	if err != nil {
		return nil, c.classifyStore("list", err)
	}
	return tasks, nil
}

// Accept assigns the task to actor. Racing accepts collapse at the store:
// exactly one conditional update matches status=open.
func (c *Controller) Accept(ctx context.Context, taskID int64, actor string) (core.Task, error) {
	// The accept write is what sets worker_wallet, so a malformed actor
	// here would corrupt the worker-assignment invariant.
	if err := core.ValidateWallet(actor); err != nil {
		return core.Task{}, err
	}
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return core.Task{}, err
	}
	if core.SameWallet(actor, task.PosterWallet) {
		return core.Task{}, c.reject("accept", "the poster cannot accept their own task")
	}

	updated, err := c.store.ConditionalUpdate(ctx, taskID,
		storage.TaskGuard{Status: core.StatusOpen},
		storage.TaskPatch{Status: ptr(core.StatusAccepted), WorkerWallet: &actor})
	if errors.Is(err, storage.ErrNoMatch) {
		return core.Task{}, c.reject("accept", "task already taken")
	}
	if err != nil {
		return core.Task{}, c.classifyStore("accept", err)
	}
	metrics.Transitions.WithLabelValues("accept", "ok").Inc()
	return updated, nil
}

// Submit moves accepted -> submitted for the assigned worker, storing the
// submission reference.
func (c *Controller) Submit(ctx context.Context, taskID int64, actor string, ref SubmissionRef) (core.Task, error) {
	updated, err := c.store.ConditionalUpdate(ctx, taskID,
		storage.TaskGuard{Status: core.StatusAccepted, WorkerWallet: &actor},
		storage.TaskPatch{
			Status:          ptr(core.StatusSubmitted),
			SubmissionURL:   &ref.URL,
			SubmissionNotes: &ref.Notes,
		})
	if errors.Is(err, storage.ErrNoMatch) {
		return core.Task{}, c.reject("submit", "only the assigned worker may submit while the task is accepted")
	}
	if err != nil {
		return core.Task{}, c.classifyStore("submit", err)
	}
	metrics.Transitions.WithLabelValues("submit", "ok").Inc()
	return updated, nil
}

// RequestChanges sends submitted back to accepted with review notes. The
// previous submission reference stays until the worker's next submit
// overwrites it.
func (c *Controller) RequestChanges(ctx context.Context, taskID int64, actor, notes string) (core.Task, error) {
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return core.Task{}, err
	}
	if !core.SameWallet(actor, task.PosterWallet) {
		return core.Task{}, c.reject("request_changes", "only the poster may request changes")
	}

	updated, err := c.store.ConditionalUpdate(ctx, taskID,
		storage.TaskGuard{Status: core.StatusSubmitted},
		storage.TaskPatch{Status: ptr(core.StatusAccepted), ReviewNotes: &notes})
	if errors.Is(err, storage.ErrNoMatch) {
		return core.Task{}, c.reject("request_changes", "task is not awaiting review")
	}
	if err != nil {
		return core.Task{}, c.classifyStore("request_changes", err)
	}
	metrics.Transitions.WithLabelValues("request_changes", "ok").Inc()
	return updated, nil
}

// Fund locks the reward in escrow for the assigned worker. Reading the
// escrow first keeps retries honest: a retry after a successful fund sees
// the money already locked and does not resubmit.
func (c *Controller) Fund(ctx context.Context, taskID int64, actor string) (core.TxReceipt, error) {
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return core.TxReceipt{}, err
	}
	if !core.SameWallet(actor, task.PosterWallet) {
		return core.TxReceipt{}, c.reject("fund", "only the poster may fund the escrow")
	}
	if !task.HasWorker() {
		return core.TxReceipt{}, c.reject("fund", "assign a worker first, then fund")
	}
	if task.Status != core.StatusAccepted && task.Status != core.StatusSubmitted {
		return core.TxReceipt{}, c.reject("fund", "task is not in a fundable state")
	}

	funded, err := c.funding.IsFunded(ctx, task)
	if err != nil {
		metrics.Transitions.WithLabelValues("fund", "error").Inc()
		return core.TxReceipt{}, err
	}
	if funded {
		return core.TxReceipt{}, c.reject("fund", "escrow already holds the reward")
	}

	receipt, err := c.escrow.Fund(ctx, task, actor)
	if err != nil {
		metrics.Transitions.WithLabelValues("fund", "error").Inc()
		return core.TxReceipt{}, err
	}
	metrics.Transitions.WithLabelValues("fund", "ok").Inc()
	return receipt, nil
}

// Approve releases escrow to the worker and then advances the task to its
// terminal state. The on-chain release deliberately happens first: a
// released payment with a stuck submitted row is a recoverable, auditable
// anomaly, while a row marked paid before money moved would not be. If the
// release itself fails, no off-chain state changes and the task stays
// submitted, safe to retry.
func (c *Controller) Approve(ctx context.Context, taskID int64, actor string) (core.Task, error) {
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return core.Task{}, err
	}
	if !core.SameWallet(actor, task.PosterWallet) {
		return core.Task{}, c.reject("approve", "only the poster may approve")
	}
	if task.Status != core.StatusSubmitted {
		return core.Task{}, c.reject("approve", "task is not awaiting review")
	}

	funded, err := c.funding.IsFunded(ctx, task)
	if err != nil {
		metrics.Transitions.WithLabelValues("approve", "error").Inc()
		return core.Task{}, err
	}
	if !funded {
		return core.Task{}, c.reject("approve", "escrow not funded: fund before approving")
	}

	receipt, err := c.escrow.Release(ctx, taskID, actor)
	if err != nil {
		metrics.Transitions.WithLabelValues("approve", "error").Inc()
		return core.Task{}, err
	}

	completed, err := c.store.ConditionalUpdate(ctx, taskID,
		storage.TaskGuard{Status: core.StatusSubmitted, WorkerWallet: &task.WorkerWallet},
		storage.TaskPatch{Status: ptr(core.StatusCompleted)})
	if err != nil {
		// Money has moved; surface the payout reference so the row can be
		// reconciled manually.
		log.Printf("approve: release %s confirmed but task %d not advanced: %v", receipt.TxHash, taskID, err)
		metrics.Transitions.WithLabelValues("approve", "anomaly").Inc()
		return core.Task{}, &core.StoreError{
			Op:  "approve",
			Err: fmt.Errorf("release %s confirmed but task not marked completed: %w", receipt.TxHash, err),
		}
	}

	paid, err := c.store.ConditionalUpdate(ctx, taskID,
		storage.TaskGuard{Status: core.StatusCompleted},
		storage.TaskPatch{Status: ptr(core.StatusPaid), PayoutTx: &receipt.TxHash})
	if err != nil {
		log.Printf("approve: release %s confirmed but task %d stuck completed: %v", receipt.TxHash, taskID, err)
		metrics.Transitions.WithLabelValues("approve", "anomaly").Inc()
		return completed, &core.StoreError{
			Op:  "approve",
			Err: fmt.Errorf("release %s confirmed but task not marked paid: %w", receipt.TxHash, err),
		}
	}
	metrics.Transitions.WithLabelValues("approve", "ok").Inc()
	return paid, nil
}

// MarkPaid is the manual fallback for a completed task whose payout was
// settled out of band.
func (c *Controller) MarkPaid(ctx context.Context, taskID int64, actor, payoutRef string) (core.Task, error) {
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return core.Task{}, err
	}
	if !core.SameWallet(actor, task.PosterWallet) {
		return core.Task{}, c.reject("mark_paid", "only the poster may mark a task paid")
	}

	patch := storage.TaskPatch{Status: ptr(core.StatusPaid)}
	if payoutRef != "" {
		patch.PayoutTx = &payoutRef
	}
	updated, err := c.store.ConditionalUpdate(ctx, taskID,
		storage.TaskGuard{Status: core.StatusCompleted}, patch)
	if errors.Is(err, storage.ErrNoMatch) {
		return core.Task{}, c.reject("mark_paid", "task is not completed")
	}
	if err != nil {
		return core.Task{}, c.classifyStore("mark_paid", err)
	}
	metrics.Transitions.WithLabelValues("mark_paid", "ok").Inc()
	return updated, nil
}

func (c *Controller) reject(transition, reason string) error {
	metrics.Transitions.WithLabelValues(transition, "rejected").Inc()
	return &core.GuardError{Reason: reason}
}

// classifyStore separates benign sentinels from real store faults so
// callers can retry the latter idempotently.
func (c *Controller) classifyStore(op string, err error) error {
	var v *core.ValidationError
	if errors.As(err, &v) {
		return err
	}
	if errors.Is(err, storage.ErrTaskNotFound) || errors.Is(err, storage.ErrNoMatch) {
		return err
	}
	metrics.Transitions.WithLabelValues(op, "error").Inc()
	return &core.StoreError{Op: op, Err: err}
}

func ptr(s string) *string { return &s }
