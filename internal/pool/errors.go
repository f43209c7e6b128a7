package pool

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedAsset   = errors.New("asset not supported by pool")
	ErrSameAsset          = errors.New("sell and buy asset are equal")
	ErrNotReady           = errors.New("asset sync not complete")
	ErrUnauthorized       = errors.New("caller is not the pool owner")
	ErrInvariantViolation = errors.New("pool invariant violation")
	ErrExternalCallFailed = errors.New("external ledger call failed")
	ErrStalled            = errors.New("ledger request pending too long")
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrZeroAmount         = errors.New("amount must be greater than zero")
	ErrEmptyReserve       = errors.New("pool reserve is empty")
	ErrMalformedMessage   = errors.New("malformed deposit message")
	ErrSyncInProgress     = errors.New("asset sync in progress")
	ErrAmountOutOfRange   = errors.New("amount out of pricing range")
	ErrDuplicateDeposit   = errors.New("deposit already processed")
)

var reasons = []struct {
	err  error
	name string
}{
	{ErrUnsupportedAsset, "unsupported_asset"},
	{ErrSameAsset, "same_asset"},
	{ErrNotReady, "not_ready"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvariantViolation, "invariant_violation"},
	{ErrExternalCallFailed, "external_call_failed"},
	{ErrStalled, "stalled"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrZeroAmount, "zero_amount"},
	{ErrEmptyReserve, "empty_reserve"},
	{ErrMalformedMessage, "malformed_message"},
	{ErrSyncInProgress, "sync_in_progress"},
	{ErrAmountOutOfRange, "amount_out_of_range"},
	{ErrDuplicateDeposit, "duplicate_deposit"},
}

// Reason returns a stable label for err, suitable for metrics.
func Reason(err error) string {
	if err == nil {
		return "none"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "other"
}

func invariantViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
