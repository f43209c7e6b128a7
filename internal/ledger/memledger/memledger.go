package memledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"pairPool/internal/ledger"
	"pairPool/internal/model"
)

// Receiver is the deposit entry point a TransferCall notifies. It returns the
// part of the amount to hand back to the sender.
type Receiver func(n model.DepositNotification) (*uint256.Int, error)

// Option configures a Ledger.
type Option func(*Ledger)

// WithManualDelivery queues requests until Flush is called instead of
// processing each on its own goroutine.
func WithManualDelivery() Option {
	return func(l *Ledger) {
		l.manual = true
	}
}

// Ledger is an in-memory fungible asset ledger with asynchronous request handling.
type Ledger struct {
	meta   model.AssetMeta
	manual bool

	mu         sync.Mutex
	balances   map[model.AccountID]*uint256.Int
	registered map[model.AccountID]bool
	failures   map[ledger.Kind]error
	dropped    map[ledger.Kind]bool
	queue      []func()
	requests   []ledger.Request
	wg         sync.WaitGroup
}

// New creates a ledger for a single asset.
func New(meta model.AssetMeta, opts ...Option) *Ledger {
	l := &Ledger{
		meta:       meta,
		balances:   make(map[model.AccountID]*uint256.Int),
		registered: make(map[model.AccountID]bool),
		failures:   make(map[ledger.Kind]error),
		dropped:    make(map[ledger.Kind]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Asset returns the ledger's asset id.
func (l *Ledger) Asset() model.AssetID {
	return l.meta.Asset
}

// Client returns a view of the ledger whose transfers are signed by caller.
func (l *Ledger) Client(caller model.AccountID) ledger.Ledger {
	return &client{ledger: l, caller: caller}
}

// Register provisions storage for an account directly.
func (l *Ledger) Register(account model.AccountID) {
	l.mu.Lock()
	l.registered[account] = true
	l.mu.Unlock()
}

// Mint credits an account, registering it if needed.
func (l *Ledger) Mint(account model.AccountID, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered[account] = true
	l.credit(account, amount)
}

// BalanceOf returns the ground-truth balance of an account.
func (l *Ledger) BalanceOf(account model.AccountID) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[account]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Fail makes every subsequent request of kind resolve with err. A nil err clears it.
func (l *Ledger) Fail(kind ledger.Kind, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failures, kind)
		return
	}
	l.failures[kind] = err
}

// Drop makes requests of kind never resolve.
func (l *Ledger) Drop(kind ledger.Kind, drop bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropped[kind] = drop
}

// Requests returns every request accepted so far.
func (l *Ledger) Requests() []ledger.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Request, len(l.requests))
	copy(out, l.requests)
	return out
}

// Pending reports how many requests wait for Flush.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush resolves queued requests in order, including requests queued while
// flushing, and returns how many were resolved.
func (l *Ledger) Flush() int {
	var n int
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		next := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		next()
		n++
	}
}

// Wait blocks until every request processed in the background has replied.
func (l *Ledger) Wait() {
	l.wg.Wait()
}

// TransferCall moves amount from sender to receiver account and notifies
// the receiver, then pays back whatever refund it asks for. It returns the
// amount the receiver kept.
func (l *Ledger) TransferCall(from, to model.AccountID, amount *uint256.Int, msg string, receiver Receiver) (*uint256.Int, error) {
	if err := l.move(from, to, amount); err != nil {
		return nil, err
	}

	refund, err := receiver(model.DepositNotification{
		Asset:   l.meta.Asset,
		Sender:  from,
		Amount:  amount.Clone(),
		Message: msg,
	})
	switch {
	case err != nil:
		refund = amount.Clone()
	case refund == nil:
		refund = new(uint256.Int)
	case refund.Gt(amount):
		refund = amount.Clone()
	}

	if !refund.IsZero() {
		if moveErr := l.move(to, from, refund); moveErr != nil {
			return nil, fmt.Errorf("refund: %w", moveErr)
		}
	}
	kept := new(uint256.Int).Sub(amount, refund)
	return kept, err
}

func (l *Ledger) move(from, to model.AccountID, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(from, to, amount)
}

func (l *Ledger) moveLocked(from, to model.AccountID, amount *uint256.Int) error {
	if !l.registered[to] {
		return fmt.Errorf("%s: %w", to, ledger.ErrNotProvisioned)
	}
	bal := l.balances[from]
	if bal == nil || bal.Lt(amount) {
		return fmt.Errorf("%s: %w", from, ledger.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) credit(account model.AccountID, amount *uint256.Int) {
	bal, ok := l.balances[account]
	if !ok {
		bal = new(uint256.Int)
		l.balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) submit(caller model.AccountID, req ledger.Request, reply ledger.Reply) error {
	if reply == nil {
		return fmt.Errorf("reply is nil")
	}
	if req.Asset != "" && req.Asset != l.meta.Asset {
		return fmt.Errorf("%s: %w", req.Asset, ledger.ErrUnsupported)
	}

	l.mu.Lock()
	l.requests = append(l.requests, req)
	if l.dropped[req.Kind] {
		l.mu.Unlock()
		return nil
	}
	task := func() {
		reply(l.resolve(caller, req))
	}
	if l.manual {
		l.queue = append(l.queue, task)
		l.mu.Unlock()
		return nil
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		task()
	}()
	return nil
}

func (l *Ledger) resolve(caller model.AccountID, req ledger.Request) ledger.Response {
	resp := ledger.Response{RequestID: req.ID, Kind: req.Kind, Asset: l.meta.Asset}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.failures[req.Kind]; ok {
		resp.Err = err
		return resp
	}

	switch req.Kind {
	case ledger.KindProvision:
		if l.registered[req.Holder] {
			resp.Err = ledger.ErrAlreadyProvisioned
			return resp
		}
		l.registered[req.Holder] = true
	case ledger.KindMetadata:
		meta := l.meta
		resp.Metadata = &meta
	case ledger.KindBalance:
		if bal, ok := l.balances[req.Holder]; ok {
			resp.Balance = bal.Clone()
		} else {
			resp.Balance = new(uint256.Int)
		}
	case ledger.KindTransfer:
		if req.Amount == nil {
			resp.Err = fmt.Errorf("transfer amount is nil")
			return resp
		}
		resp.Err = l.moveLocked(caller, req.To, req.Amount)
	default:
		resp.Err = fmt.Errorf("unknown request kind %q", req.Kind)
	}
	return resp
}

type client struct {
	ledger *Ledger
	caller model.AccountID
}

func (c *client) ProvisionStorage(_ context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindProvision
	return c.ledger.submit(c.caller, req, reply)
}

func (c *client) QueryMetadata(_ context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindMetadata
	return c.ledger.submit(c.caller, req, reply)
}

func (c *client) QueryBalance(_ context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindBalance
	return c.ledger.submit(c.caller, req, reply)
}

func (c *client) Transfer(_ context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindTransfer
	return c.ledger.submit(c.caller, req, reply)
}
