package main

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/chain"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/funding"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

// makeEngine wires the RPC client, the account deriver and the funding engine
// from the sanitized configuration.
func makeEngine(ctx *cli.Context, config *appConfig) (*funding.Engine, error) {
	mnemonic, err := readMnemonic(ctx)
	if err != nil {
		return nil, err
	}
	deriver, err := wallet.New(mnemonic, config.Wallet.PathTemplate, config.Wallet.AccountCount)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), config.Funding.RPCTimeout)
	defer cancel()
	client, err := chain.Dial(dialCtx, config.RPCURL)
	if err != nil {
		log.Error("Could not connect to RPC endpoint", "rpcurl", config.RPCURL, "error", err)
		return nil, err
	}
	chainID, err := client.ChainID(dialCtx)
	if err != nil {
		log.Error("Could not read chain id", "rpcurl", config.RPCURL, "error", err)
		return nil, err
	}
	log.Info("Connected to chain", "rpcurl", config.RPCURL, "chainid", chainID)

	return funding.NewEngine(client, deriver, chainID, config.Wallet.AccountCount, &config.Funding)
}
