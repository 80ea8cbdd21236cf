package ledger

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindBusinessRule
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBusinessRule:
		return "business_rule"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Code is the stable machine-readable reason attached to every ledger error.
type Code string

const (
	CodeInvalidDocument             Code = "invalid_document"
	CodeInvalidClientName           Code = "invalid_client_name"
	CodeInvalidAmount               Code = "invalid_amount"
	CodeInvalidDescription          Code = "invalid_description"
	CodeInvalidStatus               Code = "invalid_status"
	CodeAccountNotFound             Code = "account_not_found"
	CodeSourceNotFound              Code = "source_not_found"
	CodeDestinationNotFound         Code = "destination_not_found"
	CodeTransactionNotFound         Code = "transaction_not_found"
	CodeDuplicateDocument           Code = "duplicate_document"
	CodeAlreadyInactive             Code = "already_inactive"
	CodeInactiveAccount             Code = "inactive_account"
	CodeInsufficientFundsOrInactive Code = "insufficient_funds_or_inactive"
	CodeSourceInactive              Code = "source_inactive"
	CodeDestinationInactive         Code = "destination_inactive"
	CodeNonPositiveAmount           Code = "non_positive_amount"
	CodeInsufficientFunds           Code = "insufficient_funds"
	CodeSameAccountTransfer         Code = "same_account_transfer"
	CodeStorageUnavailable          Code = "storage_unavailable"
)

// Error is the error type returned by the ledger services and gateways.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Detail returns the human-readable message without the wrapped cause.
func (e *Error) Detail() string { return e.Message }

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidDocument    = newError(KindValidation, CodeInvalidDocument, "document must be a valid 11-digit national id or 14-digit organization id")
	ErrInvalidClientName  = newError(KindValidation, CodeInvalidClientName, "client name is required and must not exceed 200 characters")
	ErrInvalidAmount      = newError(KindValidation, CodeInvalidAmount, "amount must have at most 2 decimal places and not exceed 1000000.00")
	ErrInvalidDescription = newError(KindValidation, CodeInvalidDescription, "description must not exceed 500 characters")
	ErrInvalidStatus      = newError(KindValidation, CodeInvalidStatus, "status must be active or inactive")

	ErrAccountNotFound     = newError(KindNotFound, CodeAccountNotFound, "account not found")
	ErrSourceNotFound      = newError(KindNotFound, CodeSourceNotFound, "source account not found")
	ErrDestinationNotFound = newError(KindNotFound, CodeDestinationNotFound, "destination account not found")
	ErrTransactionNotFound = newError(KindNotFound, CodeTransactionNotFound, "transaction not found")
	ErrDuplicateDocument   = newError(KindConflict, CodeDuplicateDocument, "an account already exists for this document")
	ErrAlreadyInactive     = newError(KindBusinessRule, CodeAlreadyInactive, "account is already inactive")
	ErrInactiveAccount     = newError(KindBusinessRule, CodeInactiveAccount, "account is inactive")
	ErrSourceInactive      = newError(KindBusinessRule, CodeSourceInactive, "source account is inactive")
	ErrDestinationInactive = newError(KindBusinessRule, CodeDestinationInactive, "destination account is inactive")
	ErrNonPositiveAmount   = newError(KindBusinessRule, CodeNonPositiveAmount, "transfer amount must be greater than zero")
	ErrInsufficientFunds   = newError(KindBusinessRule, CodeInsufficientFunds, "insufficient balance for this transfer")
	ErrSameAccountTransfer = newError(KindBusinessRule, CodeSameAccountTransfer, "cannot transfer to the same account")
	ErrStorageUnavailable  = newError(KindUnavailable, CodeStorageUnavailable, "storage is temporarily unavailable")

	ErrInsufficientFundsOrInactive = newError(KindBusinessRule, CodeInsufficientFundsOrInactive, "insufficient funds or inactive account")
)

// unavailable wraps a storage failure that survived the retry policy.
func unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Code: CodeStorageUnavailable, Message: op + ": storage is temporarily unavailable", Err: err}
}

// outcomeUnknown reports a write whose commit acknowledgement was lost. The change may or may
// not be durable, so the caller must not repeat it blindly.
func outcomeUnknown(op string, err error) error {
	return &Error{Kind: KindUnavailable, Code: CodeStorageUnavailable, Message: op + ": outcome unknown, the change may have been applied", Err: err}
}

// KindOf classifies any error. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

// CodeOf returns the code of a ledger error, or the empty code.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
