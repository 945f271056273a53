package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMnemonic = errors.New("invalid bip39 mnemonic")
	ErrBadPathTemplate = errors.New("derivation path template must contain exactly one %d")
	ErrIndexOutOfRange = errors.New("account index exceeds configured maximum")
	ErrAddressMismatch = errors.New("derived key does not match account address")
)

// DeriveError reports a failed account derivation.
type DeriveError struct {
	Path  string
	Index uint32
	Err   error
}

func (e *DeriveError) Error() string {
	return fmt.Sprintf("derive account %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *DeriveError) Unwrap() error {
	return e.Err
}
