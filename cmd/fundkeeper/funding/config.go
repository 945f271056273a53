package funding

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

var DefaultConfig = Config{
	Threshold:          "5000000000000000",  // 0.005 ether
	Target:             "10000000000000000", // 0.01 ether
	Reserve:            "1000000000000000",  // 0.001 ether
	RootIndex:          0,
	PollInterval:       20 * time.Second,
	RPCTimeout:         30 * time.Second,
	PollConcurrency:    4,
	MaxConfirmAttempts: 5,
	ConfirmBackoffBase: time.Second,
}

// Config is the TOML-facing configuration of the funding engine. Amounts are
// decimal wei strings since TOML integers cannot hold 256-bit values.
type Config struct {
	Threshold          string
	Target             string
	Reserve            string
	RootIndex          uint32
	PollInterval       time.Duration
	RPCTimeout         time.Duration
	PollConcurrency    int
	MaxConfirmAttempts int
	ConfirmBackoffBase time.Duration
}

func (cfg *Config) Sanitize() error {
	if cfg.PollInterval < time.Second {
		log.Warn("Sanitizing funding poll interval", "provided", cfg.PollInterval, "updated", DefaultConfig.PollInterval)
		cfg.PollInterval = DefaultConfig.PollInterval
	}
	if cfg.RPCTimeout < time.Second {
		log.Warn("Sanitizing funding rpc timeout", "provided", cfg.RPCTimeout, "updated", DefaultConfig.RPCTimeout)
		cfg.RPCTimeout = DefaultConfig.RPCTimeout
	}
	if cfg.PollConcurrency < 1 {
		log.Warn("Sanitizing funding poll concurrency", "provided", cfg.PollConcurrency, "updated", DefaultConfig.PollConcurrency)
		cfg.PollConcurrency = DefaultConfig.PollConcurrency
	}
	if cfg.MaxConfirmAttempts < 1 {
		log.Warn("Sanitizing funding confirm attempts", "provided", cfg.MaxConfirmAttempts, "updated", DefaultConfig.MaxConfirmAttempts)
		cfg.MaxConfirmAttempts = DefaultConfig.MaxConfirmAttempts
	}
	if cfg.ConfirmBackoffBase <= 0 {
		log.Warn("Sanitizing funding confirm backoff base", "provided", cfg.ConfirmBackoffBase, "updated", DefaultConfig.ConfirmBackoffBase)
		cfg.ConfirmBackoffBase = DefaultConfig.ConfirmBackoffBase
	}
	if _, err := cfg.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy is the immutable funding policy of one process run.
type Policy struct {
	Threshold *big.Int
	Target    *big.Int
	Reserve   *big.Int
	RootIndex uint32
}

// Policy parses the configured amounts into a Policy.
func (cfg *Config) Policy() (*Policy, error) {
	threshold, err := parseWei("Threshold", cfg.Threshold)
	if err != nil {
		return nil, err
	}
	target, err := parseWei("Target", cfg.Target)
	if err != nil {
		return nil, err
	}
	reserve, err := parseWei("Reserve", cfg.Reserve)
	if err != nil {
		return nil, err
	}
	if target.Cmp(threshold) < 0 {
		return nil, fmt.Errorf("funding target %s is below threshold %s", target, threshold)
	}
	return &Policy{
		Threshold: threshold,
		Target:    target,
		Reserve:   reserve,
		RootIndex: cfg.RootIndex,
	}, nil
}

func parseWei(name, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount for %s: %q", name, value)
	}
	return amount, nil
}
