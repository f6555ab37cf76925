package models

import "time"

// ProposalState is the terminal-state enum for on-chain transfer
// proposals. The legacy contract collapses all three terminal outcomes
// into one executed flag; the enum keeps the same transitions but makes
// the outcome queryable.
type ProposalState string

const (
	ProposalOpen      ProposalState = "open"
	ProposalCompleted ProposalState = "completed"
	ProposalCancelled ProposalState = "cancelled"
	ProposalExpired   ProposalState = "expired"
)

// Proposal is an on-chain record of a requested transfer awaiting
// approvals.
type Proposal struct {
	ID            int64         `json:"id"`
	To            string        `json:"to"`
	Amount        int64         `json:"amount"`
	State         ProposalState `json:"state"`
	ApprovalCount int           `json:"approval_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Terminal reports whether the proposal accepts further mutation.
func (p *Proposal) Terminal() bool {
	return p.State != ProposalOpen
}

// Executed is the legacy single-flag view of the terminal states: true
// for completed, cancelled and expired alike.
func (p *Proposal) Executed() bool {
	return p.Terminal()
}

// Event kinds emitted by the approval automaton. Cancellation and
// execution are distinct kinds; consumers distinguish the two terminal
// outcomes through the event history.
const (
	EventSubmission   = "submission"
	EventApproval     = "approval"
	EventRevocation   = "revocation"
	EventExecution    = "execution"
	EventCancellation = "cancellation"
)

// Event is one entry of the automaton's append-only notification log.
type Event struct {
	Kind       string    `json:"kind"`
	ProposalID int64     `json:"proposal_id"`
	Owner      string    `json:"owner,omitempty"`
	To         string    `json:"to,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Time       time.Time `json:"time"`
}
