package tron

import (
	"context"
	"time"

	"tron-multisig/models"
)

// Wallet binds a local signer, a node client and the shared multi-key
// account into the build/sign/recover/merge surface the coordinator
// consumes. The account is the transfer source; the signer is one
// key-holder of that account's owner permission.
type Wallet struct {
	signer  *Signer
	client  *Client
	account string
}

// NewWallet wires a signer and client to the shared account address.
func NewWallet(signer *Signer, client *Client, account string) (*Wallet, error) {
	if err := models.ValidateAddress(account); err != nil {
		return nil, err
	}
	return &Wallet{signer: signer, client: client, account: account}, nil
}

// Account returns the shared multi-key account the wallet spends from.
func (w *Wallet) Account() string {
	return w.account
}

// Address returns the local key-holder's address.
func (w *Wallet) Address() string {
	return w.signer.Address()
}

// BuildTransfer constructs an unsigned transfer payload: a native-coin
// transfer for AssetTRX, a TRC-20 transfer call otherwise.
func (w *Wallet) BuildTransfer(ctx context.Context, to string, amount int64, asset string) ([]byte, error) {
	var (
		tx  *Transaction
		err error
	)
	if asset == models.AssetTRX {
		tx, err = w.client.CreateTransaction(ctx, w.account, to, amount)
	} else {
		tx, err = w.client.CreateTokenTransfer(ctx, asset, w.account, to, amount)
	}
	if err != nil {
		return nil, err
	}
	return tx.Encode()
}

// Sign appends the local signature to the payload.
func (w *Wallet) Sign(payload []byte) ([]byte, error) {
	tx, err := DecodeTransaction(payload)
	if err != nil {
		return nil, err
	}
	if err := w.signer.SignTransaction(tx); err != nil {
		return nil, err
	}
	return tx.Encode()
}

// Signers recovers the distinct signer addresses from the payload.
func (w *Wallet) Signers(payload []byte) ([]string, error) {
	tx, err := DecodeTransaction(payload)
	if err != nil {
		return nil, err
	}
	return tx.RecoverSigners()
}

// Merge unions the signature lists of two payloads for the same txID,
// preserving the existing payload's bytes.
func (w *Wallet) Merge(existing, imported []byte) ([]byte, error) {
	dst, err := DecodeTransaction(existing)
	if err != nil {
		return nil, err
	}
	src, err := DecodeTransaction(imported)
	if err != nil {
		return nil, err
	}
	if err := MergeSignatures(dst, src); err != nil {
		return nil, err
	}
	return dst.Encode()
}

// Inspect returns the payload's network transaction id and the expiry
// carried in its own raw_data.
func (w *Wallet) Inspect(payload []byte) (string, time.Time, error) {
	tx, err := DecodeTransaction(payload)
	if err != nil {
		return "", time.Time{}, err
	}
	expires, err := tx.Expiration()
	if err != nil {
		return "", time.Time{}, err
	}
	return tx.TxID, expires, nil
}
