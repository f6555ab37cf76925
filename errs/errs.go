package errs

import "github.com/pkg/errors"

// Sentinel errors shared by the contract automaton and the wallet
// coordinator. Callers classify with errors.Is and add context with
// errors.Wrap / errors.Wrapf.
var (
	// ErrUnauthorized means the caller is not part of the owner roster.
	ErrUnauthorized = errors.New("not an owner")

	// ErrNotFound means the referenced proposal or pending transaction
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyTerminal means the proposal reached a terminal state and
	// accepts no further mutation.
	ErrAlreadyTerminal = errors.New("already terminal")

	// ErrAlreadyApproved means the caller already holds an active
	// approval on the proposal.
	ErrAlreadyApproved = errors.New("already approved")

	// ErrNotApproved means the caller has no active approval to revoke.
	ErrNotApproved = errors.New("not approved")

	// ErrNotExpired means the proposal's expiration window has not
	// passed yet.
	ErrNotExpired = errors.New("not expired yet")

	// ErrAlreadySigned means the local key already contributed a
	// signature to the pending transaction.
	ErrAlreadySigned = errors.New("already signed")

	// ErrQuorumNotMet means the pending transaction has fewer distinct
	// signers than its captured threshold.
	ErrQuorumNotMet = errors.New("quorum not met")

	// ErrExpired means the pending transaction's payload deadline has
	// passed.
	ErrExpired = errors.New("expired")

	// ErrValidation covers malformed input: zero address, non-positive
	// amount, bad roster.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidImport means an imported pending-transaction blob could
	// not be decoded or is internally inconsistent.
	ErrInvalidImport = errors.New("invalid import")

	// ErrInsufficientBalance means the custodial balance cannot cover
	// the transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferFailed means the external token transfer call aborted
	// or the balance delta did not confirm the transfer.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrTransport means the network rejected a broadcast or a
	// reconciliation query failed.
	ErrTransport = errors.New("transport error")
)
