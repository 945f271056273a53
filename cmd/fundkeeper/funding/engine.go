package funding

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/chain"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

type EngineState uint32

const (
	StateIdle EngineState = iota
	StateInitDist
	StateContFund
	StateReclaim
	StateDone
	StateFatal
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitDist:
		return "init-dist"
	case StateContFund:
		return "cont-fund"
	case StateReclaim:
		return "reclaim"
	case StateDone:
		return "done"
	case StateFatal:
		return "fatal"
	}
	return "unknown"
}

// Engine composes the deriver, observer and submitter into the three
// operating modes. One engine runs one mode per process.
type Engine struct {
	cfg       *Config
	policy    *Policy
	client    chain.Client
	observer  *BalanceObserver
	submitter *Submitter

	root     wallet.Account
	accounts []wallet.Account

	state uint32
}

func NewEngine(client chain.Client, deriver *wallet.Deriver, chainID *big.Int, accountCount uint32, cfg *Config) (*Engine, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	if policy.RootIndex >= accountCount {
		return nil, fmt.Errorf("root index %d outside account range [0, %d)", policy.RootIndex, accountCount)
	}
	accounts, err := deriver.DeriveRange(0, accountCount)
	if err != nil {
		return nil, err
	}
	root := accounts[policy.RootIndex]
	log.Info("Funding engine initialized", "root", root.Address, "accounts", len(accounts), "chainid", chainID)
	return &Engine{
		cfg:       cfg,
		policy:    policy,
		client:    client,
		observer:  NewBalanceObserver(client, cfg),
		submitter: NewSubmitter(client, deriver, chainID, cfg),
		root:      root,
		accounts:  accounts,
	}, nil
}

func (e *Engine) State() EngineState {
	return EngineState(atomic.LoadUint32(&e.state))
}

func (e *Engine) setState(state EngineState) {
	atomic.StoreUint32(&e.state, uint32(state))
}

func (e *Engine) enter(state EngineState) error {
	if !atomic.CompareAndSwapUint32(&e.state, uint32(StateIdle), uint32(state)) {
		return ErrEngineBusy
	}
	return nil
}

// RunInitDist distributes the full target amount to every non-root account
// once, regardless of current balances.
func (e *Engine) RunInitDist(ctx context.Context) error {
	if err := e.enter(StateInitDist); err != nil {
		return err
	}
	actions := PlanInitial(e.root, e.accounts, e.policy)
	log.Info("Starting initial distribution", "actions", len(actions), "target", e.policy.Target)
	if err := e.submitOrdered(ctx, actions, nil); err != nil {
		return err
	}
	e.setState(StateDone)
	log.Info("Initial distribution completed")
	return nil
}

// RunContFund polls balances on the configured interval and tops up accounts
// below the threshold until ctx is cancelled. In-flight submissions reach a
// terminal state before the loop exits.
func (e *Engine) RunContFund(ctx context.Context) error {
	if err := e.enter(StateContFund); err != nil {
		return err
	}
	log.Info("Starting continuous funding", "interval", e.cfg.PollInterval,
		"threshold", e.policy.Threshold, "target", e.policy.Target)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := e.fundCycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			e.setState(StateDone)
			log.Info("Continuous funding stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) fundCycle(ctx context.Context) error {
	snaps := e.observer.Poll(ctx, e.accounts)
	actions := Plan(e.root, e.accounts, snaps, e.policy)
	if len(actions) == 0 {
		log.Debug("All accounts above threshold")
		return nil
	}
	log.Info("Funding cycle planned", "actions", len(actions))
	return e.submitOrdered(ctx, actions, snaps)
}

// RunReclaim sweeps every account above its reserve back to the root once.
// Sweeps from distinct accounts run concurrently: each has its own nonce
// sequence and signing key.
func (e *Engine) RunReclaim(ctx context.Context) error {
	if err := e.enter(StateReclaim); err != nil {
		return err
	}
	snaps := e.observer.Poll(ctx, e.accounts)
	actions := PlanReclaim(e.root, e.accounts, snaps, e.policy)
	log.Info("Starting reclaim", "actions", len(actions), "reserve", e.policy.Reserve)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var group errgroup.Group
	group.SetLimit(e.cfg.PollConcurrency)
	for _, action := range actions {
		action := action
		group.Go(func() error {
			err := e.submitOne(runCtx, action, snaps)
			if err != nil && IsFatal(err) {
				cancel() // stop handing out new submissions, let in-flight ones finish
				return err
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		e.setState(StateFatal)
		return err
	}
	e.setState(StateDone)
	log.Info("Reclaim completed")
	return nil
}

// submitOrdered submits actions one at a time in planner order. The first
// fatal outcome halts the remaining actions and fails the run; retryable
// outcomes are logged and left to the next cycle.
func (e *Engine) submitOrdered(ctx context.Context, actions []PendingAction, snaps []BalanceSnapshot) error {
	for _, action := range actions {
		select {
		case <-ctx.Done():
			log.Warn("Submission interrupted", "remaining", len(actions))
			return nil
		default:
		}
		if err := e.submitOne(ctx, action, snaps); err != nil && IsFatal(err) {
			e.setState(StateFatal)
			return err
		}
	}
	return nil
}

func (e *Engine) submitOne(ctx context.Context, action PendingAction, snaps []BalanceSnapshot) error {
	record, err := e.submitter.Submit(ctx, action)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSweepBelowFee):
		log.Warn("Sweep skipped, amount does not cover fee", "index", action.Source.Index,
			"amount", action.Amount, "balance", lastKnownBalance(snaps, action.Source.Index))
		return nil
	case IsFatal(err):
		log.Error("Submission failed fatally", "reason", action.Reason,
			"index", action.Destination.Index, "error", err,
			"balance", lastKnownBalance(snaps, action.Destination.Index))
		return err
	default:
		index := action.Destination.Index
		if action.Reason == ReasonReclaim {
			index = action.Source.Index
		}
		var nonce interface{}
		if record != nil {
			nonce = record.Nonce
		}
		log.Warn("Submission failed, will retry next cycle", "reason", action.Reason,
			"index", index, "nonce", nonce, "error", err,
			"balance", lastKnownBalance(snaps, index))
		return err
	}
}

func lastKnownBalance(snaps []BalanceSnapshot, index uint32) *big.Int {
	for _, snap := range snaps {
		if snap.Index == index && snap.Known {
			return snap.Balance
		}
	}
	return nil
}
