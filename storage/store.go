package storage

import (
	"context"
	"strings"
	"time"

	"taskmap-backend/core"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	// ErrTaskNotFound means the id does not exist at all.
	ErrTaskNotFound = Err("task not found")
	// ErrNoMatch means the row exists but no longer satisfies the guard.
	// It is the benign outcome of losing a race, never a fault.
	ErrNoMatch = Err("no task row matched the update guard")
)

// TaskGuard is the compare half of a conditional update: the row must
// currently have this status, and, when WorkerWallet is non-nil, this
// assigned worker.
type TaskGuard struct {
	Status       string
	WorkerWallet *string
}

// TaskPatch is the swap half of a conditional update. Nil fields are left
// unchanged.
type TaskPatch struct {
	Status          *string
	WorkerWallet    *string
	SubmissionURL   *string
	SubmissionNotes *string
	ReviewNotes     *string
	PayoutTx        *string
}

// NewTask carries the immutable-at-creation fields of a task.
type NewTask struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Reward       string     `json:"reward"`
	Location     string     `json:"location"`
	Category     string     `json:"category"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Contact      string     `json:"contact"`
	PosterEmail  string     `json:"poster_email"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	PosterWallet string     `json:"poster_wallet"`
}

// Store abstracts the task record store. Conditional updates are the sole
// concurrency-control primitive: the store may have other authorized
// writers, so every mutation is a compare-and-swap on the pre-transition
// state.
type Store interface {
	Insert(ctx context.Context, fields NewTask) (core.Task, error)
	Get(ctx context.Context, id int64) (core.Task, error)
	ConditionalUpdate(ctx context.Context, id int64, guard TaskGuard, patch TaskPatch) (core.Task, error)
	List(ctx context.Context, excludeStatuses []string) ([]core.Task, error)
	Close()
}

// validateNewTask enforces the creation invariants shared by both store
// implementations.
func validateNewTask(fields NewTask) error {
	if strings.TrimSpace(fields.Title) == "" {
		return &core.ValidationError{Field: "title", Reason: "title is required"}
	}
	if err := core.ValidateReward(fields.Reward); err != nil {
		return err
	}
	if strings.TrimSpace(fields.PosterWallet) == "" {
		return &core.ValidationError{Field: "poster_wallet", Reason: "poster wallet is required"}
	}
	return nil
}

// applyPatch copies non-nil patch fields onto a task.
func applyPatch(t *core.Task, patch TaskPatch) {
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.WorkerWallet != nil {
		t.WorkerWallet = core.NormalizeWallet(*patch.WorkerWallet)
	}
	if patch.SubmissionURL != nil {
		t.SubmissionURL = *patch.SubmissionURL
	}
	if patch.SubmissionNotes != nil {
		t.SubmissionNotes = *patch.SubmissionNotes
	}
	if patch.ReviewNotes != nil {
		t.ReviewNotes = *patch.ReviewNotes
	}
	if patch.PayoutTx != nil {
		t.PayoutTx = *patch.PayoutTx
	}
}

// matchesGuard checks a row snapshot against a guard.
func matchesGuard(t core.Task, guard TaskGuard) bool {
	if !strings.EqualFold(t.Status, guard.Status) {
		return false
	}
	if guard.WorkerWallet != nil && !core.SameWallet(t.WorkerWallet, *guard.WorkerWallet) {
		return false
	}
	return true
}
