package tron

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"tron-multisig/errs"
)

// Transaction is the trongrid wire form of a (partially) signed
// transaction. RawData is kept as raw JSON so the payload bytes that
// were hashed into the txID survive decode/encode untouched; only the
// signature list is ever rewritten.
type Transaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex,omitempty"`
	Signature  []string        `json:"signature,omitempty"`
	Visible    bool            `json:"visible,omitempty"`
}

// rawDataFields is the subset of raw_data this package reads.
type rawDataFields struct {
	Expiration int64 `json:"expiration"`
	Timestamp  int64 `json:"timestamp"`
}

// DecodeTransaction parses a payload blob. Malformed input is an
// invalid-import failure, distinct from not-found.
func DecodeTransaction(blob []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(blob, &tx); err != nil {
		return nil, errors.Wrapf(errs.ErrInvalidImport, "decode transaction: %v", err)
	}
	if tx.TxID == "" || len(tx.RawData) == 0 {
		return nil, errors.Wrap(errs.ErrInvalidImport, "transaction missing txID or raw_data")
	}
	if _, err := tx.Digest(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Encode serializes the transaction back to its wire form.
func (t *Transaction) Encode() ([]byte, error) {
	blob, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction")
	}
	return blob, nil
}

// Digest returns the 32-byte transaction id, the message every
// signature covers.
func (t *Transaction) Digest() ([]byte, error) {
	digest, err := hex.DecodeString(t.TxID)
	if err != nil || len(digest) != 32 {
		return nil, errors.Wrapf(errs.ErrInvalidImport, "txID %q is not a 32-byte hex digest", t.TxID)
	}
	return digest, nil
}

// Expiration returns the deadline carried in the payload's own
// raw_data.expiration field (milliseconds).
func (t *Transaction) Expiration() (time.Time, error) {
	var raw rawDataFields
	if err := json.Unmarshal(t.RawData, &raw); err != nil {
		return time.Time{}, errors.Wrapf(errs.ErrInvalidImport, "raw_data: %v", err)
	}
	if raw.Expiration == 0 {
		return time.Time{}, errors.Wrap(errs.ErrInvalidImport, "raw_data has no expiration")
	}
	return time.UnixMilli(raw.Expiration), nil
}

// RecoverSigners returns the distinct addresses recovered from the
// attached signatures, in signature order.
func (t *Transaction) RecoverSigners() ([]string, error) {
	digest, err := t.Digest()
	if err != nil {
		return nil, err
	}
	signers := make([]string, 0, len(t.Signature))
	seen := make(map[string]bool, len(t.Signature))
	for _, sigHex := range t.Signature {
		addr, err := recoverSigner(digest, sigHex)
		if err != nil {
			return nil, err
		}
		if !seen[addr] {
			seen[addr] = true
			signers = append(signers, addr)
		}
	}
	return signers, nil
}

func recoverSigner(digest []byte, sigHex string) (string, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != 65 {
		return "", errors.Wrap(errs.ErrInvalidImport, "signature is not 65 hex-encoded bytes")
	}
	// Some wallets emit v as 27/28 rather than 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", errors.Wrapf(errs.ErrInvalidImport, "recover signer: %v", err)
	}
	return AddressFromPubKey(pub), nil
}

// MergeSignatures unions the signature lists of two payloads for the
// same txID, deduplicated by recovered signer address so an identical
// signer included twice never double-counts. The destination's raw
// payload bytes are preserved.
func MergeSignatures(dst, src *Transaction) error {
	if dst.TxID != src.TxID {
		return errors.Wrapf(errs.ErrInvalidImport,
			"txID mismatch: %s vs %s", dst.TxID, src.TxID)
	}
	digest, err := dst.Digest()
	if err != nil {
		return err
	}
	present := make(map[string]bool)
	for _, sigHex := range dst.Signature {
		addr, err := recoverSigner(digest, sigHex)
		if err != nil {
			return err
		}
		present[addr] = true
	}
	for _, sigHex := range src.Signature {
		addr, err := recoverSigner(digest, sigHex)
		if err != nil {
			return err
		}
		if present[addr] {
			continue
		}
		present[addr] = true
		dst.Signature = append(dst.Signature, sigHex)
	}
	return nil
}
