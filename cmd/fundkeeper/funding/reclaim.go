package funding

import (
	"math/big"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

// PlanReclaim sweeps every non-root account holding more than the reserve
// back to the root. Unknown balances are skipped: sweeping blind risks
// breaking the reserve guarantee. The fee of each sweep is later deducted
// from the amount by the submitter, so the source keeps its full reserve.
func PlanReclaim(root wallet.Account, accounts []wallet.Account, snaps []BalanceSnapshot, policy *Policy) []PendingAction {
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
		if !ok || !snap.Known {
			continue
		}
		if snap.Balance.Cmp(policy.Reserve) <= 0 {
			continue
		}
		actions = append(actions, PendingAction{
			Source:      acc,
			Destination: root,
			Amount:      new(big.Int).Sub(snap.Balance, policy.Reserve),
			Reason:      ReasonReclaim,
		})
	}
	return actions
}
