package trust

import (
	"errors"
	"fmt"

	"github.com/example/trust-ledger/internal/money"
	"github.com/example/trust-ledger/pkg/hashchain"
)

// Kind is the stable machine-readable classification of a ledger error.
// External layers render messages from Kind + Reason + Precondition without
// inspecting internal state.
type Kind string

const (
	KindInvalidAmount          Kind = "invalid_amount"
	KindInvalidTransaction     Kind = "invalid_transaction"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindAlreadyReversed        Kind = "already_reversed"
	KindCannotReverseAReversal Kind = "cannot_reverse_a_reversal"
	KindNotFound               Kind = "not_found"
	KindChainBroken            Kind = "chain_broken"
	KindDiscrepancyDetected    Kind = "discrepancy_detected"
	KindAccountHasBalance      Kind = "account_has_balance"
	KindPendingTransactions    Kind = "pending_transactions"
	KindAccountNotActive       Kind = "account_not_active"
	KindPersistenceUnavailable Kind = "persistence_unavailable"
	KindConflict               Kind = "conflict"
)

// Error is a rejected ledger operation. Every rejection happens before any
// mutation takes effect.
type Error struct {
	Kind         Kind
	Reason       string
	Precondition string
	Err          error
}

func (e *Error) Error() string {
	if e.Precondition != "" {
		return fmt.Sprintf("%s: %s (precondition: %s)", e.Kind, e.Reason, e.Precondition)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a ledger error with a stable kind.
func NewError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// NewPreconditionError names the precondition that failed.
func NewPreconditionError(kind Kind, reason, precondition string) *Error {
	return &Error{Kind: kind, Reason: reason, Precondition: precondition}
}

// WrapPersistence classifies a store failure as transient and retryable.
func WrapPersistence(err error) *Error {
	return &Error{Kind: KindPersistenceUnavailable, Reason: "persistence unavailable", Err: err}
}

// KindOf extracts the error kind, mapping collaborator error types into the
// taxonomy. Unknown errors report an empty Kind.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	var ia *money.InvalidAmountError
	if errors.As(err, &ia) {
		return KindInvalidAmount
	}
	var bc *hashchain.BrokenChainError
	if errors.As(err, &bc) {
		return KindChainBroken
	}
	return ""
}
