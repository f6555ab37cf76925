package tron

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"tron-multisig/errs"
	"tron-multisig/models"
)

// AddressFromPubKey derives the TRON base58check address for a
// secp256k1 public key: keccak256 of the uncompressed key, last 20
// bytes, 0x41 version byte.
func AddressFromPubKey(pub *ecdsa.PublicKey) string {
	return base58.CheckEncode(crypto.PubkeyToAddress(*pub).Bytes(), models.AddressPrefix)
}

// AddressToHex converts a base58check address to its 21-byte hex form
// (41-prefixed), the representation the trongrid API uses internally.
func AddressToHex(addr string) (string, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return "", errors.Wrapf(errs.ErrValidation, "address %q: %v", addr, err)
	}
	if version != models.AddressPrefix || len(payload) != 20 {
		return "", errors.Wrapf(errs.ErrValidation, "address %q: not a TRON address", addr)
	}
	return hex.EncodeToString(append([]byte{version}, payload...)), nil
}

// HexToAddress converts a 41-prefixed hex address to base58check.
func HexToAddress(h string) (string, error) {
	h = strings.TrimPrefix(h, "0x")
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", errors.Wrapf(errs.ErrValidation, "hex address %q: %v", h, err)
	}
	if len(raw) != 21 || raw[0] != models.AddressPrefix {
		return "", errors.Wrapf(errs.ErrValidation, "hex address %q: not a TRON address", h)
	}
	return base58.CheckEncode(raw[1:], raw[0]), nil
}
