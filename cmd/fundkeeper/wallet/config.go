package wallet

import (
	"github.com/ethereum/go-ethereum/log"
)

var DefaultConfig = Config{
	PathTemplate: "m/44'/60'/%d'/0/0",
	AccountCount: 10,
}

type Config struct {
	PathTemplate string
	AccountCount uint32
}

func (cfg *Config) Sanitize() error {
	if cfg.PathTemplate == "" {
		log.Warn("Sanitizing wallet derivation path template", "provided", cfg.PathTemplate, "updated", DefaultConfig.PathTemplate)
		cfg.PathTemplate = DefaultConfig.PathTemplate
	}
	if cfg.AccountCount < 1 {
		log.Warn("Sanitizing wallet account count", "provided", cfg.AccountCount, "updated", DefaultConfig.AccountCount)
		cfg.AccountCount = DefaultConfig.AccountCount
	}
	return nil
}
