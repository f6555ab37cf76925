package contract

import (
	"sync"

	"github.com/pkg/errors"
)

// TokenLedger is the capability interface over the external token
// contract. The bool returned by Transfer is advisory only: the legacy
// USDT contract is known to report failure on transfers that actually
// succeeded, so execution logic must confirm success through BalanceOf
// deltas, never through the flag.
type TokenLedger interface {
	// Transfer moves amount from one account to another. A non-nil
	// error means the call itself aborted and no state changed.
	Transfer(from, to string, amount int64) (bool, error)
	// BalanceOf returns the current balance of addr.
	BalanceOf(addr string) (int64, error)
}

// MemoryToken is an in-memory token ledger. With the reportFailure
// quirk enabled it mimics the legacy USDT behavior of returning false
// from successful transfers.
type MemoryToken struct {
	mu            sync.Mutex
	balances      map[string]int64
	reportFailure bool
}

// NewMemoryToken creates a ledger with the given starting balances.
func NewMemoryToken(initial map[string]int64, reportFailure bool) *MemoryToken {
	balances := make(map[string]int64, len(initial))
	for addr, amount := range initial {
		balances[addr] = amount
	}
	return &MemoryToken{balances: balances, reportFailure: reportFailure}
}

// Mint credits addr with amount.
func (t *MemoryToken) Mint(addr string, amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[addr] += amount
}

func (t *MemoryToken) Transfer(from, to string, amount int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount <= 0 {
		return false, errors.New("revert: non-positive amount")
	}
	if t.balances[from] < amount {
		return false, errors.New("revert: balance too low")
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return !t.reportFailure, nil
}

func (t *MemoryToken) BalanceOf(addr string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[addr], nil
}
