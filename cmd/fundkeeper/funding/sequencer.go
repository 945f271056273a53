package funding

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/chain"
)

type LeaseState uint8

const (
	LeaseReserved LeaseState = iota
	LeaseCommitted
	LeaseReleased
)

func (s LeaseState) String() string {
	switch s {
	case LeaseReserved:
		return "reserved"
	case LeaseCommitted:
		return "committed"
	case LeaseReleased:
		return "released"
	}
	return "unknown"
}

// NonceLease is an exclusive hold on one nonce value. The holder must resolve
// it with Commit (transaction accepted) or Release (value reusable).
type NonceLease struct {
	seq   *NonceSequencer
	value uint64

	mu    sync.Mutex
	state LeaseState
}

func (l *NonceLease) Nonce() uint64 {
	return l.value
}

// Commit marks the nonce as consumed. Idempotent; committing twice or after
// a release is a warned no-op.
func (l *NonceLease) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LeaseReserved {
		log.Warn("Nonce lease already resolved", "nonce", l.value, "state", l.state)
		return
	}
	l.state = LeaseCommitted
	l.seq.finish(l.value, true)
}

// Release returns the nonce for reuse. Idempotent like Commit.
func (l *NonceLease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LeaseReserved {
		log.Warn("Nonce lease already resolved", "nonce", l.value, "state", l.state)
		return
	}
	l.state = LeaseReleased
	l.seq.finish(l.value, false)
}

// NonceSequencer owns the authoritative next-nonce counter of one sending
// account. At most one lease is outstanding at a time; Reserve blocks until
// the previous lease resolves. The counter initializes lazily from the chain
// and re-reads it after MarkDesynced.
type NonceSequencer struct {
	client     chain.Client
	address    common.Address
	rpcTimeout time.Duration

	permit chan struct{} // capacity 1, held while a lease is outstanding

	mu     sync.Mutex
	next   uint64
	synced bool
}

func NewNonceSequencer(client chain.Client, address common.Address, rpcTimeout time.Duration) *NonceSequencer {
	return &NonceSequencer{
		client:     client,
		address:    address,
		rpcTimeout: rpcTimeout,
		permit:     make(chan struct{}, 1),
	}
}

// Reserve returns a lease on the next unused nonce, blocking while another
// lease is outstanding.
func (s *NonceSequencer) Reserve(ctx context.Context) (*NonceLease, error) {
	select {
	case s.permit <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.synced {
		callCtx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
		nonce, err := s.client.PendingNonceAt(callCtx, s.address)
		cancel()
		if err != nil {
			<-s.permit
			return nil, &RetryableSubmissionError{Op: "read account nonce", Err: err}
		}
		s.next = nonce
		s.synced = true
		log.Debug("Nonce sequencer synchronized", "address", s.address, "nonce", nonce)
	}
	return &NonceLease{seq: s, value: s.next}, nil
}

// MarkDesynced forces the next Reserve to re-read the chain nonce. Called
// after a nonce-too-low/too-high rejection.
func (s *NonceSequencer) MarkDesynced() {
	s.mu.Lock()
	s.synced = false
	s.mu.Unlock()
}

func (s *NonceSequencer) finish(value uint64, committed bool) {
	s.mu.Lock()
	if committed && s.synced && value == s.next {
		s.next = value + 1
	}
	s.mu.Unlock()
	<-s.permit
}
