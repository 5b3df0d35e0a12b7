package clients

import (
	"errors"
	"fmt"

	"github.com/vitwit/htlcbridge/types"
)

// ErrorCode classifies contract call failures.
type ErrorCode string

const (
	// -----------------------------
	// INITIATOR SIDE
	// -----------------------------
	CodeInvalidAmount         ErrorCode = "INVALID_AMOUNT"
	CodeInvalidTimeLock       ErrorCode = "INVALID_TIME_LOCK"
	CodeTransferAlreadyExists ErrorCode = "TRANSFER_ALREADY_EXISTS"
	CodeTimeLockNotExpired    ErrorCode = "TIME_LOCK_NOT_EXPIRED"

	// -----------------------------
	// COUNTERPARTY SIDE
	// -----------------------------
	CodeLockTransferAssets ErrorCode = "LOCK_TRANSFER_ASSETS_FAILED"
	CodeAbortTransfer      ErrorCode = "ABORT_TRANSFER_FAILED"

	// -----------------------------
	// BOTH SIDES
	// -----------------------------
	CodeInvalidSecret            ErrorCode = "INVALID_SECRET"
	CodeTransferNotFound         ErrorCode = "TRANSFER_NOT_FOUND"
	CodeTransferAlreadyCompleted ErrorCode = "TRANSFER_ALREADY_COMPLETED"
	CodeContractCallFailed       ErrorCode = "CONTRACT_CALL_FAILED"
)

// ContractError is returned by every adapter operation. Role tells which
// side of the bridge rejected the call.
type ContractError struct {
	Role    types.ChainRole
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ContractError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Role != "" {
		msg = fmt.Sprintf("%s: %s", e.Role, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// Is matches another ContractError by code, and by role when the target
// names one.
func (e *ContractError) Is(target error) bool {
	t, ok := target.(*ContractError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Role == "" || t.Role == e.Role
}

// Sentinels for errors.Is. Those without a role match either side.
var (
	ErrInvalidAmount            = &ContractError{Role: types.RoleInitiator, Code: CodeInvalidAmount}
	ErrInvalidTimeLock          = &ContractError{Role: types.RoleInitiator, Code: CodeInvalidTimeLock}
	ErrTransferAlreadyExists    = &ContractError{Code: CodeTransferAlreadyExists}
	ErrTimeLockNotExpired       = &ContractError{Role: types.RoleInitiator, Code: CodeTimeLockNotExpired}
	ErrLockTransferAssets       = &ContractError{Role: types.RoleCounterparty, Code: CodeLockTransferAssets}
	ErrAbortTransfer            = &ContractError{Role: types.RoleCounterparty, Code: CodeAbortTransfer}
	ErrInvalidSecret            = &ContractError{Code: CodeInvalidSecret}
	ErrTransferNotFound         = &ContractError{Code: CodeTransferNotFound}
	ErrTransferAlreadyCompleted = &ContractError{Code: CodeTransferAlreadyCompleted}
	ErrContractCallFailed       = &ContractError{Code: CodeContractCallFailed}
)

// InitiatorError builds an initiator-side ContractError.
func InitiatorError(code ErrorCode, err error) *ContractError {
	return &ContractError{Role: types.RoleInitiator, Code: code, Err: err}
}

// CounterpartyError builds a counterparty-side ContractError.
func CounterpartyError(code ErrorCode, err error) *ContractError {
	return &ContractError{Role: types.RoleCounterparty, Code: code, Err: err}
}

// CodeOf returns the code of the outermost ContractError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var cerr *ContractError
	if errors.As(err, &cerr) {
		return cerr.Code, true
	}
	return "", false
}

// IsRetryable reports whether a caller may retry the operation. Only
// failures of the underlying chain call qualify; every other kind is final
// for that operation.
func IsRetryable(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeContractCallFailed
}
