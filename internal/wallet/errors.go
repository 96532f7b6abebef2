package wallet

import (
	"errors"
	"fmt"
)

// Stable machine-readable failure codes. Upstream layers render messaging
// from the code alone, never from the free-text message.
const (
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeWalletExists        = "WALLET_EXISTS"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeWalletInactive      = "WALLET_INACTIVE"
	CodeWalletClosed        = "WALLET_CLOSED"
	CodeWalletNotEmpty      = "WALLET_NOT_EMPTY"
	CodeSenderInactive      = "SENDER_WALLET_INACTIVE"
	CodeReceiverInactive    = "RECEIVER_WALLET_INACTIVE"
	CodeSelfTransfer        = "SELF_TRANSFER"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeUnknownKYCLevel     = "UNKNOWN_KYC_LEVEL"
	CodeLocationRequired    = "LOCATION_REQUIRED"
	CodeAgentIDRequired     = "AGENT_ID_REQUIRED"
	CodeDuplicateReference  = "DUPLICATE_REFERENCE"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInsufficientEscrow  = "INSUFFICIENT_ESCROW"
	CodeDailyLoadLimit      = "DAILY_LOAD_LIMIT_EXCEEDED"
	CodeMonthlyLoadLimit    = "MONTHLY_LOAD_LIMIT_EXCEEDED"
	CodeDailySpendLimit     = "DAILY_SPEND_LIMIT_EXCEEDED"
	CodeMonthlySpendLimit   = "MONTHLY_SPEND_LIMIT_EXCEEDED"
	CodeEntryNotFound       = "ENTRY_NOT_FOUND"
	CodeEntryNotPending     = "ENTRY_NOT_PENDING"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
	CodeLockTimeout         = "LOCK_TIMEOUT"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
)

// Error is a typed engine failure: a stable code plus a human message.
// Business-rule failures are detected before commit and roll the whole unit
// of work back; no half-applied mutation ever surfaces as an Error.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the machine-readable code, or STORE_UNAVAILABLE for raw
// infrastructure errors that escaped classification.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStoreUnavailable
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the failure is infrastructural and the caller
// may retry. Business-rule denials are never retryable; the engine performs
// no automatic retries so a financial mutation cannot be double-applied.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeLockTimeout, CodeStoreUnavailable:
		return true
	}
	return false
}
