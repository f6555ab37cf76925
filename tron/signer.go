package tron

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer holds a local secp256k1 key and signs transaction digests the
// way TRON expects: 65-byte r||s||v signatures over the 32-byte txID.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewSigner parses a hex private key (with or without 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return &Signer{key: key, address: AddressFromPubKey(&key.PublicKey)}, nil
}

// Address returns the signer's TRON base58check address.
func (s *Signer) Address() string {
	return s.address
}

// SignTransaction appends the signer's signature to the transaction.
func (s *Signer) SignTransaction(tx *Transaction) error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return errors.Wrap(err, "sign digest")
	}
	tx.Signature = append(tx.Signature, hex.EncodeToString(sig))
	return nil
}
