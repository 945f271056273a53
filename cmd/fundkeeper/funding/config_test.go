package funding

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyParsesWeiAmounts(t *testing.T) {
	cfg := DefaultConfig
	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000000000000000), policy.Threshold)
	assert.Equal(t, big.NewInt(10000000000000000), policy.Target)
	assert.Equal(t, big.NewInt(1000000000000000), policy.Reserve)
	assert.Equal(t, uint32(0), policy.RootIndex)
}

func TestPolicyRejectsBadAmounts(t *testing.T) {
	cfg := DefaultConfig
	cfg.Threshold = "not a number"
	_, err := cfg.Policy()
	assert.Error(t, err)

	cfg = DefaultConfig
	cfg.Reserve = "-5"
	_, err = cfg.Policy()
	assert.Error(t, err)

	cfg = DefaultConfig
	cfg.Threshold = "500"
	cfg.Target = "100"
	_, err = cfg.Policy()
	assert.Error(t, err, "target below threshold makes every top-up immediately re-trigger")
}

func TestSanitizeCorrectsOutOfRangeValues(t *testing.T) {
	cfg := Config{
		Threshold: "100",
		Target:    "500",
		Reserve:   "50",
	}
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, DefaultConfig.PollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultConfig.RPCTimeout, cfg.RPCTimeout)
	assert.Equal(t, DefaultConfig.PollConcurrency, cfg.PollConcurrency)
	assert.Equal(t, DefaultConfig.MaxConfirmAttempts, cfg.MaxConfirmAttempts)
	assert.Equal(t, DefaultConfig.ConfirmBackoffBase, cfg.ConfirmBackoffBase)
}

func TestSanitizeKeepsValidValues(t *testing.T) {
	cfg := DefaultConfig
	cfg.PollInterval = 5 * time.Second
	cfg.PollConcurrency = 8
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 8, cfg.PollConcurrency)
}
