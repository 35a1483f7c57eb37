package core

import (
	"errors"
	"fmt"
)

// GuardError reports that a transition's precondition did not hold: wrong
// status, wrong actor, or escrow not funded. It is a user-facing rejection,
// not a system fault, and retrying changes nothing until someone else moves
// the task.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string { return e.Reason }

// Guard builds a GuardError.
func Guard(format string, args ...interface{}) error {
	return &GuardError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError reports malformed input at creation time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// StoreError wraps a record-store failure. These are retryable: every
// mutation is a conditional update keyed on the pre-transition state.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// ChainErrorKind classifies escrow-call failures so callers can decide
// between retrying, prompting a network switch, and giving up.
type ChainErrorKind string

const (
	ChainUnavailable ChainErrorKind = "chain_unavailable"
	WrongNetwork     ChainErrorKind = "wrong_network"
	NoContractCode   ChainErrorKind = "no_contract_code"
	ChainRejected    ChainErrorKind = "chain_rejected"
)

// ChainError wraps an escrow client failure with its kind.
type ChainError struct {
	Kind   ChainErrorKind
	Detail string
	Err    error
}

func (e *ChainError) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChainError) Unwrap() error { return e.Err }

// NeedsActionError signals that the caller must complete a step (typically
// connecting a wallet) and try again. It is not a failure.
type NeedsActionError struct {
	Action string
	Reason string
}

func (e *NeedsActionError) Error() string { return e.Reason }

// IsGuardRejected reports whether err is a precondition rejection.
func IsGuardRejected(err error) bool {
	var g *GuardError
	return errors.As(err, &g)
}

// ChainKind returns the chain error kind, or "" when err is not a chain error.
func ChainKind(err error) ChainErrorKind {
	var c *ChainError
	if errors.As(err, &c) {
		return c.Kind
	}
	return ""
}
