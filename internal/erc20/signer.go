package erc20

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer serializes transaction submission for one key so that ledgers of
// different tokens sharing it do not race on nonces.
type Signer struct {
	mu   sync.Mutex
	opts *bind.TransactOpts
}

func NewSigner(opts *bind.TransactOpts) *Signer {
	if opts == nil {
		return nil
	}
	return &Signer{opts: opts}
}

// Address returns the signing account.
func (s *Signer) Address() common.Address {
	return s.opts.From
}

func (s *Signer) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := *s.opts
	opts.Context = ctx
	return contract.Transact(&opts, method, args...)
}
