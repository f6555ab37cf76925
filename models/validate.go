package models

import (
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"

	"tron-multisig/errs"
)

// TRON mainnet address version byte.
const AddressPrefix = 0x41

// ValidateAddress checks that addr is a well-formed TRON base58check
// address: 0x41 version byte, 20-byte payload, valid checksum.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.Wrap(errs.ErrValidation, "empty address")
	}
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return errors.Wrapf(errs.ErrValidation, "address %q: %v", addr, err)
	}
	if version != AddressPrefix {
		return errors.Wrapf(errs.ErrValidation, "address %q: bad version byte 0x%x", addr, version)
	}
	if len(payload) != 20 {
		return errors.Wrapf(errs.ErrValidation, "address %q: payload is %d bytes", addr, len(payload))
	}
	return nil
}

// ValidateAmount checks that amount is a positive number of smallest
// token units.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(errs.ErrValidation, "amount %d must be positive", amount)
	}
	return nil
}

// Expired reports whether a record created at createdAt has passed its
// expiration window at the instant now.
func Expired(createdAt time.Time, window time.Duration, now time.Time) bool {
	return now.After(createdAt.Add(window))
}
