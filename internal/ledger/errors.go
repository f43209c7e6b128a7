package ledger

import "errors"

var (
	// ErrAlreadyProvisioned is reported for a duplicate storage registration and
	// must be treated as an acknowledgement.
	ErrAlreadyProvisioned = errors.New("storage already provisioned")
	ErrNotProvisioned     = errors.New("holder storage not provisioned")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnsupported        = errors.New("asset not supported by ledger")
)
