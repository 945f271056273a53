package funding

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/chain"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

type TxStatus uint8

const (
	TxSubmitted TxStatus = iota
	TxConfirmed
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxSubmitted:
		return "submitted"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	}
	return "unknown"
}

// TransactionRecord is the terminal outcome of submitting one action.
type TransactionRecord struct {
	Action PendingAction
	Nonce  uint64
	Hash   common.Hash
	Status TxStatus
	Err    error
}

type actionKey struct {
	source      uint32
	destination uint32
	reason      Reason
}

// Submitter turns planned actions into signed, submitted transactions. Each
// sending account gets its own NonceSequencer so submissions from one account
// are serialized while distinct accounts may submit concurrently. At most one
// transaction per action is ever in flight.
type Submitter struct {
	client  chain.Client
	deriver *wallet.Deriver
	chainID *big.Int
	cfg     *Config

	mu         sync.Mutex
	sequencers map[uint32]*NonceSequencer
	inflight   map[actionKey]struct{}
}

func NewSubmitter(client chain.Client, deriver *wallet.Deriver, chainID *big.Int, cfg *Config) *Submitter {
	return &Submitter{
		client:     client,
		deriver:    deriver,
		chainID:    chainID,
		cfg:        cfg,
		sequencers: make(map[uint32]*NonceSequencer),
		inflight:   make(map[actionKey]struct{}),
	}
}

// Submit executes one action end to end: reserve a nonce, sign, send, then
// poll for the receipt with exponential backoff. The returned record is
// terminal: Confirmed, or Failed with the classified error also returned.
func (s *Submitter) Submit(ctx context.Context, action PendingAction) (*TransactionRecord, error) {
	key := actionKey{action.Source.Index, action.Destination.Index, action.Reason}
	if !s.markInFlight(key) {
		return nil, ErrActionInFlight
	}
	defer s.clearInFlight(key)

	gasPrice, err := s.suggestGasPrice(ctx)
	if err != nil {
		return nil, &RetryableSubmissionError{Op: "suggest gas price", Err: err}
	}
	fee := chain.TransferFee(gasPrice)

	// Reclaim sweeps pay their own fee out of the swept amount so the source
	// account never drops below its reserve.
	value := new(big.Int).Set(action.Amount)
	if action.Reason == ReasonReclaim {
		value.Sub(value, fee)
		if value.Sign() <= 0 {
			reclaimSkipCounter.Inc(1)
			return nil, ErrSweepBelowFee
		}
	}

	if err := s.checkSourceBalance(ctx, action, value, fee); err != nil {
		return nil, err
	}

	seq := s.sequencer(action.Source)
	lease, err := seq.Reserve(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    lease.Nonce(),
		To:       &action.Destination.Address,
		Value:    value,
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	})
	signed, err := s.deriver.SignTx(action.Source, tx, s.chainID)
	if err != nil {
		lease.Release()
		return nil, &FatalSubmissionError{Op: "sign transaction", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	err = s.client.SendTransaction(callCtx, signed)
	cancel()
	if err != nil {
		lease.Release()
		failedCounter.Inc(1)
		classified, desynced := classifySubmissionError("send transaction", err)
		if desynced {
			seq.MarkDesynced()
			log.Warn("Nonce rejected, sequencer will resync", "source", action.Source.Index, "nonce", lease.Nonce(), "error", err)
		}
		return &TransactionRecord{Action: action, Nonce: lease.Nonce(), Status: TxFailed, Err: classified}, classified
	}
	lease.Commit()
	submittedCounter.Inc(1)

	record := &TransactionRecord{
		Action: action,
		Nonce:  lease.Nonce(),
		Hash:   signed.Hash(),
		Status: TxSubmitted,
	}
	log.Info("Transaction submitted", "reason", action.Reason, "source", action.Source.Index,
		"destination", action.Destination.Index, "amount", value, "nonce", record.Nonce, "tx", record.Hash)

	return s.awaitConfirmation(ctx, record)
}

// awaitConfirmation polls for the receipt, doubling the delay between
// attempts. Exhausting the budget leaves the action indeterminate: it is
// reported Failed but never resubmitted blindly, the next poll cycle decides.
func (s *Submitter) awaitConfirmation(ctx context.Context, record *TransactionRecord) (*TransactionRecord, error) {
	delay := s.cfg.ConfirmBackoffBase
	for attempt := 0; attempt < s.cfg.MaxConfirmAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			record.Status = TxFailed
			record.Err = &RetryableSubmissionError{Op: "await confirmation", Err: ctx.Err()}
			return record, record.Err
		}
		delay *= 2

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
		receipt, err := s.client.TransactionReceipt(callCtx, record.Hash)
		cancel()
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				log.Debug("Receipt query failed", "tx", record.Hash, "error", err)
			}
			continue
		}
		if receipt.Status == types.ReceiptStatusSuccessful {
			record.Status = TxConfirmed
			confirmedCounter.Inc(1)
			log.Info("Transaction confirmed", "tx", record.Hash, "block", receipt.BlockNumber)
			return record, nil
		}
		record.Status = TxFailed
		record.Err = &FatalSubmissionError{Op: "execute transaction", Err: errors.New("transaction reverted")}
		failedCounter.Inc(1)
		return record, record.Err
	}
	record.Status = TxFailed
	record.Err = &RetryableSubmissionError{Op: "await confirmation", Err: ErrConfirmTimeout}
	failedCounter.Inc(1)
	return record, record.Err
}

// checkSourceBalance rejects the action before a nonce is reserved when the
// source cannot cover value plus fee. For funding actions that is an
// insufficient root balance, which is fatal for the run.
func (s *Submitter) checkSourceBalance(ctx context.Context, action PendingAction, value, fee *big.Int) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	defer cancel()
	balance, err := s.client.BalanceAt(callCtx, action.Source.Address, nil)
	if err != nil {
		return &RetryableSubmissionError{Op: "read source balance", Err: err}
	}
	required := new(big.Int).Add(value, fee)
	if balance.Cmp(required) < 0 {
		if action.Reason == ReasonReclaim {
			reclaimSkipCounter.Inc(1)
			return ErrSweepBelowFee
		}
		return &FatalSubmissionError{Op: "fund account", Err: core.ErrInsufficientFunds}
	}
	return nil
}

func (s *Submitter) suggestGasPrice(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	defer cancel()
	return s.client.SuggestGasPrice(callCtx)
}

func (s *Submitter) sequencer(source wallet.Account) *NonceSequencer {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.sequencers[source.Index]
	if !ok {
		seq = NewNonceSequencer(s.client, source.Address, s.cfg.RPCTimeout)
		s.sequencers[source.Index] = seq
	}
	return seq
}

func (s *Submitter) markInFlight(key actionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.inflight[key]; exists {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Submitter) clearInFlight(key actionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}
