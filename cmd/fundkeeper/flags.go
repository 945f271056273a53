package main

import (
	"gopkg.in/urfave/cli.v1"
)

var (
	initDistFlag = cli.BoolFlag{
		Name:  "init-dist",
		Usage: "One-shot distribution of the target amount to all derived accounts",
	}
	contFundFlag = cli.BoolFlag{
		Name:  "cont-fund",
		Usage: "Monitor account balances and top up below-threshold accounts until interrupted",
	}
	reclaimFlag = cli.BoolFlag{
		Name:  "reclaim",
		Usage: "One-shot sweep of all account balances above the reserve back to the root account",
	}
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	rpcUrlFlag = cli.StringFlag{
		Name:  "rpcurl",
		Usage: "Ethereum node RPC url",
	}
	accountsFlag = cli.IntFlag{
		Name:  "accounts",
		Usage: "Number of HD accounts to derive (overrides config)",
	}
	mnemonicFileFlag = cli.StringFlag{
		Name:  "mnemonic-file",
		Usage: "File holding the BIP39 mnemonic (default: FUNDKEEPER_MNEMONIC env variable)",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	metricsFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "Enable metrics collection and reporting",
	}
)
