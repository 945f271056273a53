package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	bip39 "github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is one derived wallet. It carries no key material; signing is
// delegated back to the Deriver that produced it.
type Account struct {
	Index   uint32
	Address common.Address
	Path    string
}

// Deriver derives accounts from a BIP39 mnemonic and a derivation path
// template containing a single %d placeholder for the account index.
// It is the only holder of the master key.
type Deriver struct {
	master       *hdkeychain.ExtendedKey
	pathTemplate string
	maxAccounts  uint32
}

func New(mnemonic string, pathTemplate string, maxAccounts uint32) (*Deriver, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if strings.Count(pathTemplate, "%d") != 1 {
		return nil, &DeriveError{Path: pathTemplate, Err: ErrBadPathTemplate}
	}
	if _, err := resolvePath(pathTemplate, 0); err != nil {
		return nil, err
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("could not derive master key: %w", err)
	}
	return &Deriver{
		master:       master,
		pathTemplate: pathTemplate,
		maxAccounts:  maxAccounts,
	}, nil
}

// resolvePath substitutes the index into the template and parses the result.
func resolvePath(template string, index uint32) (accounts.DerivationPath, error) {
	resolved := fmt.Sprintf(template, index)
	path, err := accounts.ParseDerivationPath(resolved)
	if err != nil {
		return nil, &DeriveError{Path: resolved, Index: index, Err: err}
	}
	return path, nil
}

// Derive returns the account at the given index. The result is a pure
// function of (mnemonic, path template, index).
func (d *Deriver) Derive(index uint32) (Account, error) {
	path, err := resolvePath(d.pathTemplate, index)
	if err != nil {
		return Account{}, err
	}
	if index >= d.maxAccounts {
		return Account{}, &DeriveError{Path: path.String(), Index: index, Err: ErrIndexOutOfRange}
	}
	key, err := d.privateKey(path)
	if err != nil {
		return Account{}, &DeriveError{Path: path.String(), Index: index, Err: err}
	}
	defer zeroKey(key)
	return Account{
		Index:   index,
		Address: crypto.PubkeyToAddress(key.PublicKey),
		Path:    path.String(),
	}, nil
}

// DeriveRange derives count consecutive accounts starting at start.
func (d *Deriver) DeriveRange(start, count uint32) ([]Account, error) {
	accs := make([]Account, 0, count)
	for i := start; i < start+count; i++ {
		acc, err := d.Derive(i)
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return accs, nil
}

// SignTx signs tx with the key of the given account. The private key is
// re-derived on demand and wiped once the signature is produced.
func (d *Deriver) SignTx(acc Account, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	path, err := resolvePath(d.pathTemplate, acc.Index)
	if err != nil {
		return nil, err
	}
	key, err := d.privateKey(path)
	if err != nil {
		return nil, &DeriveError{Path: path.String(), Index: acc.Index, Err: err}
	}
	defer zeroKey(key)
	if crypto.PubkeyToAddress(key.PublicKey) != acc.Address {
		return nil, &DeriveError{Path: path.String(), Index: acc.Index, Err: ErrAddressMismatch}
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
}

func (d *Deriver) privateKey(path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	key := d.master
	var err error
	for _, n := range path {
		if key, err = key.Derive(n); err != nil {
			return nil, err
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// zeroKey wipes the scalar of an in-memory private key.
func zeroKey(key *ecdsa.PrivateKey) {
	b := key.D.Bits()
	for i := range b {
		b[i] = 0
	}
}
