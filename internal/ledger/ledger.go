package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"pairPool/internal/model"
)

//go:generate mockgen -source=ledger.go -destination=mock_ledger.go -package=ledger

// Kind names the ledger primitive a request targets.
type Kind string

const (
	KindProvision Kind = "provision_storage"
	KindMetadata  Kind = "query_metadata"
	KindBalance   Kind = "query_balance"
	KindTransfer  Kind = "transfer"
)

// Request is an outbound call to an asset ledger. ID correlates the eventual Response.
type Request struct {
	ID     string
	Kind   Kind
	Asset  model.AssetID
	Holder model.AccountID
	To     model.AccountID
	Amount *uint256.Int
	Memo   string
}

// Response is the asynchronous outcome of a Request.
type Response struct {
	RequestID string
	Kind      Kind
	Asset     model.AssetID
	Metadata  *model.AssetMeta
	Balance   *uint256.Int
	Err       error
}

// Reply delivers a Response back to the requester. It may be invoked from any
// goroutine, but never before the submitting method has returned.
type Reply func(Response)

// Ledger is the contract an external asset ledger offers the pool. Every method
// only submits the request: a nil error means the request was accepted and its
// outcome will arrive later through reply, exactly once or never.
type Ledger interface {
	ProvisionStorage(ctx context.Context, req Request, reply Reply) error
	QueryMetadata(ctx context.Context, req Request, reply Reply) error
	QueryBalance(ctx context.Context, req Request, reply Reply) error
	Transfer(ctx context.Context, req Request, reply Reply) error
}
