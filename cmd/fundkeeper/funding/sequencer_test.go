package funding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seqTestAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func newTestSequencer(fake *fakeClient) *NonceSequencer {
	return NewNonceSequencer(fake, seqTestAddr, time.Second)
}

func TestSequencerIssuesConsecutiveNonces(t *testing.T) {
	fake := newFakeClient()
	fake.setNonce(seqTestAddr, 5)
	seq := newTestSequencer(fake)

	for want := uint64(5); want < 8; want++ {
		lease, err := seq.Reserve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, lease.Nonce())
		lease.Commit()
	}
}

func TestSequencerNeverDuplicatesUnderConcurrency(t *testing.T) {
	fake := newFakeClient()
	fake.setNonce(seqTestAddr, 100)
	seq := newTestSequencer(fake)

	const workers = 32
	var (
		mu     sync.Mutex
		nonces = make(map[uint64]int)
		wg     sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := seq.Reserve(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			nonces[lease.Nonce()]++
			mu.Unlock()
			lease.Commit()
		}()
	}
	wg.Wait()

	require.Len(t, nonces, workers, "every reservation must get a distinct nonce")
	for nonce, count := range nonces {
		assert.Equal(t, 1, count, "nonce %d issued more than once", nonce)
		assert.GreaterOrEqual(t, nonce, uint64(100))
		assert.Less(t, nonce, uint64(100+workers))
	}
}

func TestSequencerReleaseReusesNonce(t *testing.T) {
	fake := newFakeClient()
	fake.setNonce(seqTestAddr, 9)
	seq := newTestSequencer(fake)

	lease, err := seq.Reserve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), lease.Nonce())
	lease.Release()

	lease, err = seq.Reserve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), lease.Nonce(), "released nonce must be reused")
	lease.Commit()
}

func TestSequencerResyncsAfterDesync(t *testing.T) {
	fake := newFakeClient()
	fake.setNonce(seqTestAddr, 3)
	seq := newTestSequencer(fake)

	lease, err := seq.Reserve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), lease.Nonce())
	lease.Commit()

	// The chain moved underneath us (e.g. a submission raced another sender).
	fake.setNonce(seqTestAddr, 42)
	seq.MarkDesynced()

	lease, err = seq.Reserve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), lease.Nonce(), "desynced sequencer must re-read the chain")
	lease.Commit()
}

func TestLeaseResolutionIsIdempotent(t *testing.T) {
	fake := newFakeClient()
	fake.setNonce(seqTestAddr, 0)
	seq := newTestSequencer(fake)

	lease, err := seq.Reserve(context.Background())
	require.NoError(t, err)
	lease.Commit()
	lease.Commit()  // warned no-op
	lease.Release() // warned no-op

	lease, err = seq.Reserve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lease.Nonce(), "double resolution must not move the counter twice")
	lease.Commit()
}

func TestReserveBlocksWhileLeaseOutstanding(t *testing.T) {
	fake := newFakeClient()
	seq := newTestSequencer(fake)

	lease, err := seq.Reserve(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = seq.Reserve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second Reserve must block until the lease resolves")

	lease.Commit()
	second, err := seq.Reserve(context.Background())
	require.NoError(t, err)
	second.Commit()
}
