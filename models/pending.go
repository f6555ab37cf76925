package models

import "time"

// Status of an off-chain pending transaction. Transitions are
// one-directional; broadcast, failed and expired are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusBroadcast Status = "broadcast"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// AssetTRX marks a native-coin transfer; any other asset value is a
// TRC-20 token contract address.
const AssetTRX = "TRX"

// PendingTransaction is a locally stored, partially-signed transfer
// awaiting enough signatures to broadcast. ID is generated locally; the
// network transaction id (TxID) is fixed at construction time, before
// the signer set is known.
type PendingTransaction struct {
	ID          string    `json:"id"`
	TxID        string    `json:"tx_id"`
	Payload     []byte    `json:"payload"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      int64     `json:"amount"`
	Asset       string    `json:"asset"`
	Threshold   int       `json:"threshold"`
	Signers     []string  `json:"signers"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	NetworkID   string    `json:"network_id,omitempty"`
}

// Terminal reports whether the record reached a final status.
func (p *PendingTransaction) Terminal() bool {
	switch p.Status {
	case StatusBroadcast, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// HasSigner reports whether addr already contributed a signature.
func (p *PendingTransaction) HasSigner(addr string) bool {
	for _, s := range p.Signers {
		if s == addr {
			return true
		}
	}
	return false
}

// RefreshStatus recomputes a non-terminal record's status from its
// signer count, captured threshold and stored expiry.
func (p *PendingTransaction) RefreshStatus(now time.Time) {
	if p.Terminal() {
		return
	}
	if now.After(p.ExpiresAt) {
		p.Status = StatusExpired
		return
	}
	if len(p.Signers) >= p.Threshold {
		p.Status = StatusReady
	} else {
		p.Status = StatusPending
	}
}
