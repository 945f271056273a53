package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

// Client is the RPC capability the funding engine consumes. *ethclient.Client
// satisfies it; tests substitute a fake.
type Client interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rawurl string) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, rawurl)
}

// TransferFee returns the fee of a plain value transfer at the given gas price.
func TransferFee(gasPrice *big.Int) *big.Int {
	return new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(params.TxGas))
}
