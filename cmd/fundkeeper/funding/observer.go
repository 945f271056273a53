package funding

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/chain"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

// BalanceSnapshot is one observed balance. Known is false when the read
// failed; the balance is then treated as zero by callers that must act.
type BalanceSnapshot struct {
	Index      uint32
	Balance    *big.Int
	Known      bool
	ObservedAt time.Time
}

// BalanceObserver reads account balances with bounded parallelism. It never
// mutates chain state.
type BalanceObserver struct {
	client      chain.Client
	rpcTimeout  time.Duration
	concurrency int
}

func NewBalanceObserver(client chain.Client, cfg *Config) *BalanceObserver {
	return &BalanceObserver{
		client:      client,
		rpcTimeout:  cfg.RPCTimeout,
		concurrency: cfg.PollConcurrency,
	}
}

// Poll queries the balance of every account. A failed read yields a snapshot
// with Known=false and never aborts the rest of the batch.
func (o *BalanceObserver) Poll(ctx context.Context, accounts []wallet.Account) []BalanceSnapshot {
	snaps := make([]BalanceSnapshot, len(accounts))
	var group errgroup.Group
	group.SetLimit(o.concurrency)
	for i, acc := range accounts {
		i, acc := i, acc
		group.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.rpcTimeout)
			defer cancel()
			snap := BalanceSnapshot{Index: acc.Index, ObservedAt: time.Now()}
			balance, err := o.client.BalanceAt(callCtx, acc.Address, nil)
			if err != nil {
				pollErrorMeter.Mark(1)
				obsErr := &ObservationError{Index: acc.Index, Err: err}
				log.Warn("Balance read failed", "index", acc.Index, "address", acc.Address, "error", obsErr)
			} else {
				snap.Balance = balance
				snap.Known = true
			}
			snaps[i] = snap
			return nil
		})
	}
	group.Wait()
	return snaps
}

// BelowThreshold reports whether the snapshot requires a top-up. Unknown
// balances count as below threshold so the account is retried by funding.
func BelowThreshold(snap BalanceSnapshot, policy *Policy) bool {
	if !snap.Known {
		return true
	}
	return snap.Balance.Cmp(policy.Threshold) < 0
}
