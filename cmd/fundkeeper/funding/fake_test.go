package funding

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/chain"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

const testMnemonic = "test test test test test test test test test test test junk"

var _ chain.Client = (*fakeClient)(nil)

// fakeClient is an in-memory chain.Client. Accepted transactions get a
// successful receipt immediately unless holdReceipts is set.
type fakeClient struct {
	mu           sync.Mutex
	balances     map[common.Address]*big.Int
	balanceErr   map[common.Address]error
	nonces       map[common.Address]uint64
	gasPrice     *big.Int
	chainID      *big.Int
	sent         []*types.Transaction
	sendHook     func(tx *types.Transaction) error
	holdReceipts bool
	receipts     map[common.Hash]*types.Receipt
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		balances:   make(map[common.Address]*big.Int),
		balanceErr: make(map[common.Address]error),
		nonces:     make(map[common.Address]uint64),
		gasPrice:   big.NewInt(1),
		chainID:    big.NewInt(1337),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

func (c *fakeClient) setBalance(addr common.Address, amount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = big.NewInt(amount)
}

func (c *fakeClient) setNonce(addr common.Address, nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[addr] = nonce
}

func (c *fakeClient) sentTxs() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

func (c *fakeClient) BalanceAt(ctx context.Context, addr common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.balanceErr[addr]; err != nil {
		return nil, err
	}
	if balance, ok := c.balances[addr]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (c *fakeClient) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[addr], nil
}

func (c *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if hook := c.sendHook; hook != nil {
		if err := hook(tx); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	if sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx); err == nil {
		c.nonces[sender] = tx.Nonce() + 1
	}
	if !c.holdReceipts {
		c.receipts[tx.Hash()] = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(1),
		}
	}
	return nil
}

func (c *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if receipt, ok := c.receipts[txHash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (c *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// testConfig uses small round amounts and fast confirmation polling.
func testConfig() *Config {
	cfg := DefaultConfig
	cfg.Threshold = "100"
	cfg.Target = "500"
	cfg.Reserve = "50"
	cfg.MaxConfirmAttempts = 3
	cfg.ConfirmBackoffBase = 1 // nanoseconds, no point sleeping in tests
	return &cfg
}

func testPolicy(t *testing.T, cfg *Config) *Policy {
	policy, err := cfg.Policy()
	require.NoError(t, err)
	return policy
}

func testAccounts(t *testing.T, count uint32) (*wallet.Deriver, []wallet.Account) {
	deriver, err := wallet.New(testMnemonic, "m/44'/60'/0'/0/%d", count)
	require.NoError(t, err)
	accounts, err := deriver.DeriveRange(0, count)
	require.NoError(t, err)
	return deriver, accounts
}

func snapshot(index uint32, balance int64) BalanceSnapshot {
	return BalanceSnapshot{Index: index, Balance: big.NewInt(balance), Known: true}
}

func unknownSnapshot(index uint32) BalanceSnapshot {
	return BalanceSnapshot{Index: index}
}
