package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core"
)

var (
	ErrActionInFlight = errors.New("action already has a transaction in flight")
	ErrSweepBelowFee  = errors.New("sweep amount does not cover the transaction fee")
	ErrConfirmTimeout = errors.New("confirmation attempts exhausted")
	ErrEngineBusy     = errors.New("engine already ran or is running")
)

// RetryableSubmissionError marks a submission failure that may succeed on a
// later cycle: nonce mismatches, transient RPC faults, timeouts.
type RetryableSubmissionError struct {
	Op  string
	Err error
}

func (e *RetryableSubmissionError) Error() string {
	return fmt.Sprintf("retryable: %s: %v", e.Op, e.Err)
}

func (e *RetryableSubmissionError) Unwrap() error {
	return e.Err
}

// FatalSubmissionError marks a failure no retry can fix, e.g. the root
// account cannot cover the transfer. It halts the current run.
type FatalSubmissionError struct {
	Op  string
	Err error
}

func (e *FatalSubmissionError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalSubmissionError) Unwrap() error {
	return e.Err
}

// ObservationError reports a failed balance read. The snapshot for the
// account is marked unknown and the read retried next cycle.
type ObservationError struct {
	Index uint32
	Err   error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("observe account %d: %v", e.Index, e.Err)
}

func (e *ObservationError) Unwrap() error {
	return e.Err
}

// classifySubmissionError sorts a SendTransaction error into the retry
// taxonomy. The second return reports whether the sending account's nonce
// sequencer has drifted from the chain and must resynchronize.
func classifySubmissionError(op string, err error) (error, bool) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, core.ErrNonceTooLow.Error()),
		strings.Contains(msg, core.ErrNonceTooHigh.Error()):
		return &RetryableSubmissionError{Op: op, Err: err}, true
	case strings.Contains(msg, core.ErrInsufficientFunds.Error()):
		return &FatalSubmissionError{Op: op, Err: err}, false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &RetryableSubmissionError{Op: op, Err: err}, false
	default:
		return &RetryableSubmissionError{Op: op, Err: err}, false
	}
}

// IsFatal reports whether err carries a FatalSubmissionError.
func IsFatal(err error) bool {
	var fatal *FatalSubmissionError
	return errors.As(err, &fatal)
}
