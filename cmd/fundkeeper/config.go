package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/cmd/utils"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/compolabs/fundkeeper/cmd/fundkeeper/funding"
	"github.com/compolabs/fundkeeper/cmd/fundkeeper/wallet"
)

const mnemonicEnvVar = "FUNDKEEPER_MNEMONIC"

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type appConfig struct {
	RPCURL  string
	Wallet  wallet.Config
	Funding funding.Config
}

func loadTOMLConfig(filename string, conf interface{}) error {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return tomlSettings.Unmarshal(buf, conf)
}

// makeAppConfig reads the provided TOML configuration file, applies CLI flag
// overrides and sanitizes the result.
func makeAppConfig(ctx *cli.Context) *appConfig {
	config := appConfig{
		Wallet:  wallet.DefaultConfig,
		Funding: funding.DefaultConfig,
	}
	if configFile := ctx.String(configFileFlag.Name); configFile != "" {
		if err := loadTOMLConfig(configFile, &config); err != nil {
			utils.Fatalf("Could not load config file %s: %v", configFile, err)
		}
	}
	if rpcurl := ctx.String(rpcUrlFlag.Name); rpcurl != "" {
		config.RPCURL = rpcurl
	}
	if accounts := ctx.Int(accountsFlag.Name); accounts > 0 {
		config.Wallet.AccountCount = uint32(accounts)
	}
	if config.RPCURL == "" {
		utils.Fatalf("No RPC url configured, use --%s or the config file", rpcUrlFlag.Name)
	}
	if err := config.Wallet.Sanitize(); err != nil {
		utils.Fatalf("Invalid wallet config: %v", err)
	}
	if err := config.Funding.Sanitize(); err != nil {
		utils.Fatalf("Invalid funding config: %v", err)
	}
	return &config
}

// readMnemonic loads the master mnemonic from the environment or, if
// --mnemonic-file is given, from disk. The mnemonic is never written to the
// config file or the logs.
func readMnemonic(ctx *cli.Context) (string, error) {
	if path := ctx.String(mnemonicFileFlag.Name); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("could not read mnemonic file: %w", err)
		}
		return strings.TrimSpace(string(buf)), nil
	}
	if mnemonic := strings.TrimSpace(os.Getenv(mnemonicEnvVar)); mnemonic != "" {
		return mnemonic, nil
	}
	return "", errors.New(mnemonicEnvVar + " not set and no --mnemonic-file given")
}
