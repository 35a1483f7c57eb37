package core

import (
	"math/big"
	"strings"
	"time"
)

// Task statuses. A task starts open and only ever moves forward through
// accepted -> submitted -> completed -> paid, except for request-changes
// which sends submitted back to accepted for rework.
const (
	StatusOpen      = "open"
	StatusAccepted  = "accepted"
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusPaid      = "paid"
)

// Task is the unit of paid work. Payment custody lives in the on-chain
// escrow record; the task row only tracks lifecycle status.
type Task struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Reward          string     `json:"reward"` // decimal ETH, e.g. "0.05"
	Location        string     `json:"location"`
	Category        string     `json:"category"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Contact         string     `json:"contact"`
	PosterEmail     string     `json:"poster_email"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	PosterWallet    string     `json:"poster_wallet"`
	WorkerWallet    string     `json:"worker_wallet,omitempty"`
	Status          string     `json:"status"`
	SubmissionURL   string     `json:"submission_url,omitempty"`
	SubmissionNotes string     `json:"submission_notes,omitempty"`
	ReviewNotes     string     `json:"review_notes,omitempty"`
	PayoutTx        string     `json:"payout_tx,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasWorker reports whether a worker has been assigned. The store keeps
// worker_wallet set exactly for statuses accepted and beyond.
func (t Task) HasWorker() bool {
	return strings.TrimSpace(t.WorkerWallet) != ""
}

// EscrowRecord is the normalized on-chain custody ledger entry for a task.
type EscrowRecord struct {
	Poster    string   `json:"poster"`
	Worker    string   `json:"worker"`
	LockedWei *big.Int `json:"locked_wei"`
	Funded    bool     `json:"funded"`
	Released  bool     `json:"released"`
	Cancelled bool     `json:"cancelled"`
}

// Terminal reports whether the escrow slot can no longer be funded or
// released. The contract keeps released and cancelled mutually exclusive.
func (e EscrowRecord) Terminal() bool {
	return e.Released || e.Cancelled
}

// TxReceipt is the confirmation result of a value-bearing chain call.
type TxReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Status      uint64 `json:"status"` // 1 = success, 0 = reverted
}

// SameWallet compares two wallet identities. Addresses are hex and
// compared case-insensitively.
func SameWallet(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeWallet lowercases and trims a wallet address for storage.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ValidateWallet checks that addr is a 0x-prefixed 20-byte hex address.
// Every actor boundary runs this before an address can reach the store.
func ValidateWallet(addr string) error {
	s := strings.TrimSpace(addr)
	if s == "" {
		return &ValidationError{Field: "wallet", Reason: "wallet address is required"}
	}
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return &ValidationError{Field: "wallet", Reason: "malformed address"}
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return &ValidationError{Field: "wallet", Reason: "malformed address"}
		}
	}
	return nil
}

// ValidateReward checks that a reward string is a positive decimal value.
// Precision against the chain's minor unit is enforced separately by the
// escrow client when the amount is converted to wei.
func ValidateReward(reward string) error {
	s := strings.TrimSpace(reward)
	if s == "" {
		return &ValidationError{Field: "reward", Reason: "reward is required"}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return &ValidationError{Field: "reward", Reason: "reward is not a decimal number"}
	}
	if r.Sign() <= 0 {
		return &ValidationError{Field: "reward", Reason: "reward must be greater than zero"}
	}
	return nil
}
