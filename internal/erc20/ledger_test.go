package erc20

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
)

var (
	token  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	holder = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeToken struct {
	mu            sync.Mutex
	decimals      uint8
	symbol        string
	symbolBytes32 string
	name          string
	balances      map[common.Address]*big.Int
	failures      int
	blocks        []*big.Int
}

func (f *fakeToken) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, block)
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset by peer")
	}

	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	case "symbol":
		if f.symbolBytes32 != "" {
			fallback, err := bytes32ABI()
			if err != nil {
				return nil, err
			}
			var raw [32]byte
			copy(raw[:], f.symbolBytes32)
			return fallback.Methods["symbol"].Outputs.Pack(raw)
		}
		return method.Outputs.Pack(f.symbol)
	case "name":
		return method.Outputs.Pack(f.name)
	case "balanceOf":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		bal, ok := f.balances[args[0].(common.Address)]
		if !ok {
			bal = new(big.Int)
		}
		return method.Outputs.Pack(bal)
	default:
		return nil, errors.New("execution reverted")
	}
}

type fakeBackend struct {
	mu     sync.Mutex
	sent   []*types.Transaction
	status uint64
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (b *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Receipt{Status: b.status, TxHash: hash}, nil
}

func replies() (ledger.Reply, <-chan ledger.Response) {
	ch := make(chan ledger.Response, 4)
	return func(resp ledger.Response) { ch <- resp }, ch
}

func await(t *testing.T, ch <-chan ledger.Response) ledger.Response {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply")
		return ledger.Response{}
	}
}

func newLedger(t *testing.T, fake *fakeToken, backend Backend, opts *bind.TransactOpts) *Ledger {
	t.Helper()
	l, err := New(Config{Token: token, MaxRetries: 2, RetryBackoff: time.Millisecond}, fake, backend, NewSigner(opts), zap.NewNop())
	require.NoError(t, err)
	return l
}

func TestQueryMetadata(t *testing.T) {
	fake := &fakeToken{decimals: 18, symbol: "WETH", name: "Wrapped Ether"}
	l := newLedger(t, fake, nil, nil)
	reply, ch := replies()

	require.NoError(t, l.QueryMetadata(context.Background(), ledger.Request{ID: "r1"}, reply))
	resp := await(t, ch)
	require.NoError(t, resp.Err)
	require.Equal(t, "r1", resp.RequestID)
	require.Equal(t, ledger.KindMetadata, resp.Kind)
	require.Equal(t, AssetID(token), resp.Asset)
	require.Equal(t, uint8(18), resp.Metadata.Decimals)
	require.Equal(t, "WETH", resp.Metadata.Symbol)
	require.Equal(t, "Wrapped Ether", resp.Metadata.Name)
}

func TestQueryMetadataBytes32Symbol(t *testing.T) {
	fake := &fakeToken{decimals: 18, symbolBytes32: "MKR", name: "Maker"}
	l := newLedger(t, fake, nil, nil)
	reply, ch := replies()

	require.NoError(t, l.QueryMetadata(context.Background(), ledger.Request{ID: "r1"}, reply))
	resp := await(t, ch)
	require.NoError(t, resp.Err)
	require.Equal(t, "MKR", resp.Metadata.Symbol)
}

func TestQueryBalanceRetriesTransientErrors(t *testing.T) {
	fake := &fakeToken{
		decimals: 6,
		balances: map[common.Address]*big.Int{holder: big.NewInt(300)},
		failures: 2,
	}
	l := newLedger(t, fake, nil, nil)
	reply, ch := replies()

	require.NoError(t, l.QueryBalance(context.Background(), ledger.Request{ID: "r2", Holder: AccountID(holder)}, reply))
	resp := await(t, ch)
	require.NoError(t, resp.Err)
	require.Equal(t, "300", resp.Balance.Dec())
}

func TestQueryBalanceReadsAtPinnedBlock(t *testing.T) {
	fake := &fakeToken{balances: map[common.Address]*big.Int{holder: big.NewInt(300)}}
	pinned, ok := uint64(0), false
	l, err := New(Config{
		Token:        token,
		BalanceBlock: func() (uint64, bool) { return pinned, ok },
	}, fake, nil, nil, zap.NewNop())
	require.NoError(t, err)
	reply, ch := replies()

	require.NoError(t, l.QueryBalance(context.Background(), ledger.Request{ID: "b1", Holder: AccountID(holder)}, reply))
	require.NoError(t, await(t, ch).Err)

	pinned, ok = 41, true
	require.NoError(t, l.QueryBalance(context.Background(), ledger.Request{ID: "b2", Holder: AccountID(holder)}, reply))
	// Changing the pin after submission must not affect the in-flight read.
	pinned = 99
	require.NoError(t, await(t, ch).Err)
	l.Wait()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.blocks, 2)
	require.Nil(t, fake.blocks[0])
	require.Equal(t, int64(41), fake.blocks[1].Int64())
}

func TestQueryBalanceGivesUp(t *testing.T) {
	fake := &fakeToken{failures: 10}
	l := newLedger(t, fake, nil, nil)
	reply, ch := replies()

	require.NoError(t, l.QueryBalance(context.Background(), ledger.Request{ID: "r3", Holder: AccountID(holder)}, reply))
	resp := await(t, ch)
	require.ErrorContains(t, resp.Err, "connection reset")
	require.Nil(t, resp.Balance)
}

func TestSubmissionValidation(t *testing.T) {
	l := newLedger(t, &fakeToken{}, nil, nil)
	reply, _ := replies()
	ctx := context.Background()

	require.Error(t, l.QueryBalance(ctx, ledger.Request{Holder: "alice"}, reply))
	require.ErrorIs(t, l.QueryMetadata(ctx, ledger.Request{Asset: "0xother"}, reply), ledger.ErrUnsupported)
	require.ErrorContains(t, l.Transfer(ctx, ledger.Request{To: AccountID(trader), Amount: uint256.NewInt(1)}, reply), "no signer")
	require.Error(t, l.ProvisionStorage(ctx, ledger.Request{}, nil))
}

func TestProvisionStorageAcks(t *testing.T) {
	l := newLedger(t, &fakeToken{}, nil, nil)
	reply, ch := replies()

	require.NoError(t, l.ProvisionStorage(context.Background(), ledger.Request{ID: "p1", Holder: AccountID(holder)}, reply))
	resp := await(t, ch)
	require.NoError(t, resp.Err)
	require.Equal(t, ledger.KindProvision, resp.Kind)
}

func TestTransferSendsSignedTransaction(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)

	backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
	l := newLedger(t, &fakeToken{}, backend, opts)
	reply, ch := replies()

	req := ledger.Request{ID: "t1", To: AccountID(trader), Amount: uint256.NewInt(30), Memo: "swap s1"}
	require.NoError(t, l.Transfer(context.Background(), req, reply))
	resp := await(t, ch)
	require.NoError(t, resp.Err)
	l.Wait()

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, token, *tx.To())

	parsed, err := ABI()
	require.NoError(t, err)
	args, err := parsed.Methods["transfer"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Equal(t, trader, args[0].(common.Address))
	require.Equal(t, big.NewInt(30), args[1].(*big.Int))
}

func TestTransferReverted(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)

	backend := &fakeBackend{status: types.ReceiptStatusFailed}
	l := newLedger(t, &fakeToken{}, backend, opts)
	reply, ch := replies()

	require.NoError(t, l.Transfer(context.Background(), ledger.Request{ID: "t2", To: AccountID(trader), Amount: uint256.NewInt(30)}, reply))
	resp := await(t, ch)
	require.ErrorContains(t, resp.Err, "reverted")
}
