package funding

import (
	"math/big"
	"sort"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

type Reason uint8

const (
	ReasonFund Reason = iota
	ReasonReclaim
)

func (r Reason) String() string {
	switch r {
	case ReasonFund:
		return "fund"
	case ReasonReclaim:
		return "reclaim"
	}
	return "unknown"
}

// PendingAction is one planned transfer. Source pays the fee and signs; for
// funding it is the root account, for reclaim the swept account.
type PendingAction struct {
	Source      wallet.Account
	Destination wallet.Account
	Amount      *big.Int
	Reason      Reason
}

// Plan emits a funding action for every non-root account whose balance sits
// below the threshold or could not be observed. Actions come out in ascending
// account index order so submissions are deterministic and auditable.
func Plan(root wallet.Account, accounts []wallet.Account, snaps []BalanceSnapshot, policy *Policy) []PendingAction {
	byIndex := make(map[uint32]BalanceSnapshot, len(snaps))
	for _, snap := range snaps {
		byIndex[snap.Index] = snap
	}
	ordered := sortedByIndex(accounts)

	var actions []PendingAction
	for _, acc := range ordered {
		if acc.Index == policy.RootIndex {
			continue
		}
		snap, ok := byIndex[acc.Index]
		if !ok {
			continue
		}
		if !BelowThreshold(snap, policy) {
			continue
		}
		balance := big.NewInt(0)
		if snap.Known {
			balance = snap.Balance
		}
		amount := new(big.Int).Sub(policy.Target, balance)
		if amount.Sign() <= 0 {
			continue
		}
		actions = append(actions, PendingAction{
			Source:      root,
			Destination: acc,
			Amount:      amount,
			Reason:      ReasonFund,
		})
	}
	return actions
}

// PlanInitial funds every non-root account with the full target amount
// regardless of its current balance (one-shot distribution).
func PlanInitial(root wallet.Account, accounts []wallet.Account, policy *Policy) []PendingAction {
	ordered := sortedByIndex(accounts)
	var actions []PendingAction
	for _, acc := range ordered {
		if acc.Index == policy.RootIndex {
			continue
		}
		actions = append(actions, PendingAction{
			Source:      root,
			Destination: acc,
			Amount:      new(big.Int).Set(policy.Target),
			Reason:      ReasonFund,
		})
	}
	return actions
}

func sortedByIndex(accounts []wallet.Account) []wallet.Account {
	ordered := make([]wallet.Account, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	return ordered
}
