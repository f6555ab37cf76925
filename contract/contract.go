package contract

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tron-multisig/errs"
	"tron-multisig/logger"
	"tron-multisig/models"
)

// DefaultExpiration is the window after which an unexecuted proposal
// can be cancelled.
const DefaultExpiration = 24 * time.Hour

// Multisig is the on-chain transfer-approval automaton: a ledger of
// proposed transfers that auto-executes a transfer the instant its
// approval count reaches the roster threshold.
//
// The host ledger executes mutating operations strictly serially; the
// mutex models that substrate. Every mutating call either completes or
// aborts atomically — on any failure the proposal set, approvals and
// event log are left exactly as they were.
type Multisig struct {
	mu         sync.Mutex
	roster     models.Roster
	account    string
	token      TokenLedger
	expiration time.Duration
	proposals  []*models.Proposal
	approvals  map[int64]map[string]bool
	events     []models.Event
	now        func() time.Time
}

// New creates an automaton for the given roster, custodial account and
// token ledger. A zero expiration selects DefaultExpiration; a nil
// clock selects time.Now.
func New(roster models.Roster, account string, token TokenLedger, expiration time.Duration, now func() time.Time) (*Multisig, error) {
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateAddress(account); err != nil {
		return nil, err
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	if now == nil {
		now = time.Now
	}
	return &Multisig{
		roster:     roster,
		account:    account,
		token:      token,
		expiration: expiration,
		approvals:  make(map[int64]map[string]bool),
		now:        now,
	}, nil
}

// Submit creates a transfer proposal carrying the caller's implicit
// approval and, when the threshold is already met (threshold 1),
// executes it within the same call. Returns the new proposal id.
func (m *Multisig) Submit(caller, to string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.roster.Contains(caller) {
		return 0, errors.Wrapf(errs.ErrUnauthorized, "submit by %s", caller)
	}
	if err := models.ValidateAddress(to); err != nil {
		return 0, err
	}
	if err := models.ValidateAmount(amount); err != nil {
		return 0, err
	}

	evMark := len(m.events)
	p := &models.Proposal{
		ID:            int64(len(m.proposals)),
		To:            to,
		Amount:        amount,
		State:         models.ProposalOpen,
		ApprovalCount: 1,
		CreatedAt:     m.now(),
	}
	m.proposals = append(m.proposals, p)
	m.approvals[p.ID] = map[string]bool{caller: true}
	m.emit(models.EventSubmission, p.ID, caller, to, amount)
	m.emit(models.EventApproval, p.ID, caller, "", 0)

	if p.ApprovalCount >= m.roster.Threshold {
		if err := m.execute(p); err != nil {
			m.proposals = m.proposals[:len(m.proposals)-1]
			delete(m.approvals, p.ID)
			m.events = m.events[:evMark]
			return 0, err
		}
	}
	return p.ID, nil
}

// Approve adds the caller's approval and executes the transfer if the
// threshold is now met. If execution fails the approval is rolled back
// too: the caller must approve again once the underlying issue is
// fixed.
func (m *Multisig) Approve(caller string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.roster.Contains(caller) {
		return errors.Wrapf(errs.ErrUnauthorized, "approve by %s", caller)
	}
	p, err := m.proposal(id)
	if err != nil {
		return err
	}
	if p.Terminal() {
		return errors.Wrapf(errs.ErrAlreadyTerminal, "proposal %d is %s", id, p.State)
	}
	if m.approvals[id][caller] {
		return errors.Wrapf(errs.ErrAlreadyApproved, "proposal %d by %s", id, caller)
	}

	evMark := len(m.events)
	p.ApprovalCount++
	m.approvals[id][caller] = true
	m.emit(models.EventApproval, id, caller, "", 0)

	if p.ApprovalCount >= m.roster.Threshold {
		if err := m.execute(p); err != nil {
			p.ApprovalCount--
			delete(m.approvals[id], caller)
			p.State = models.ProposalOpen
			m.events = m.events[:evMark]
			return err
		}
	}
	return nil
}

// Revoke withdraws the caller's active approval. A proposal revoked
// down to zero approvals is terminally cancelled and cannot be
// resurrected.
func (m *Multisig) Revoke(caller string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.roster.Contains(caller) {
		return errors.Wrapf(errs.ErrUnauthorized, "revoke by %s", caller)
	}
	p, err := m.proposal(id)
	if err != nil {
		return err
	}
	if p.Terminal() {
		return errors.Wrapf(errs.ErrAlreadyTerminal, "proposal %d is %s", id, p.State)
	}
	if !m.approvals[id][caller] {
		return errors.Wrapf(errs.ErrNotApproved, "proposal %d by %s", id, caller)
	}

	p.ApprovalCount--
	delete(m.approvals[id], caller)
	m.emit(models.EventRevocation, id, caller, "", 0)

	if p.ApprovalCount == 0 {
		p.State = models.ProposalCancelled
		m.emit(models.EventCancellation, id, caller, "", 0)
	}
	return nil
}

// CancelExpired terminally cancels a proposal whose expiration window
// has passed. Any roster member may call it.
func (m *Multisig) CancelExpired(caller string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.roster.Contains(caller) {
		return errors.Wrapf(errs.ErrUnauthorized, "cancel by %s", caller)
	}
	p, err := m.proposal(id)
	if err != nil {
		return err
	}
	if p.Terminal() {
		return errors.Wrapf(errs.ErrAlreadyTerminal, "proposal %d is %s", id, p.State)
	}
	if !models.Expired(p.CreatedAt, m.expiration, m.now()) {
		return errors.Wrapf(errs.ErrNotExpired, "proposal %d", id)
	}

	p.State = models.ProposalExpired
	m.emit(models.EventCancellation, id, caller, "", 0)
	return nil
}

// execute finalizes the proposal state before touching the external
// ledger, so a reentrant call from the token contract sees the proposal
// as terminal. The transfer's return flag is advisory; success is
// confirmed by the recipient balance delta, except for a self-transfer
// where the balance is unchanged by construction.
func (m *Multisig) execute(p *models.Proposal) error {
	balance, err := m.token.BalanceOf(m.account)
	if err != nil {
		return errors.Wrapf(errs.ErrTransferFailed, "balance query: %v", err)
	}
	if balance < p.Amount {
		return errors.Wrapf(errs.ErrInsufficientBalance,
			"have %d, need %d", balance, p.Amount)
	}

	selfTransfer := p.To == m.account
	var before int64
	if !selfTransfer {
		if before, err = m.token.BalanceOf(p.To); err != nil {
			return errors.Wrapf(errs.ErrTransferFailed, "recipient balance query: %v", err)
		}
	}

	p.State = models.ProposalCompleted

	reported, err := m.token.Transfer(m.account, p.To, p.Amount)
	if err != nil {
		return errors.Wrapf(errs.ErrTransferFailed, "transfer call aborted: %v", err)
	}
	if !reported {
		// Legacy USDT reports failure on success; the delta check below
		// decides.
		logger.Logger.Warn("token transfer reported failure, verifying balance delta",
			zap.Int64("proposal_id", p.ID))
	}
	if !selfTransfer {
		after, err := m.token.BalanceOf(p.To)
		if err != nil {
			return errors.Wrapf(errs.ErrTransferFailed, "confirmation query: %v", err)
		}
		if after < before+p.Amount {
			return errors.Wrapf(errs.ErrTransferFailed,
				"recipient balance delta %d below %d", after-before, p.Amount)
		}
	}

	m.emit(models.EventExecution, p.ID, "", p.To, p.Amount)
	return nil
}

func (m *Multisig) proposal(id int64) (*models.Proposal, error) {
	if id < 0 || id >= int64(len(m.proposals)) {
		return nil, errors.Wrapf(errs.ErrNotFound, "proposal %d", id)
	}
	return m.proposals[id], nil
}

func (m *Multisig) emit(kind string, id int64, owner, to string, amount int64) {
	m.events = append(m.events, models.Event{
		Kind:       kind,
		ProposalID: id,
		Owner:      owner,
		To:         to,
		Amount:     amount,
		Time:       m.now(),
	})
}

// Owners returns the roster.
func (m *Multisig) Owners() models.Roster {
	m.mu.Lock()
	defer m.mu.Unlock()
	owners := make([]string, len(m.roster.Owners))
	copy(owners, m.roster.Owners)
	return models.Roster{Owners: owners, Threshold: m.roster.Threshold}
}

// GetTransaction returns a copy of the proposal with the given id.
func (m *Multisig) GetTransaction(id int64) (models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.proposal(id)
	if err != nil {
		return models.Proposal{}, err
	}
	return *p, nil
}

// GetTransactions returns copies of all proposals.
func (m *Multisig) GetTransactions() []models.Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Proposal, 0, len(m.proposals))
	for _, p := range m.proposals {
		out = append(out, *p)
	}
	return out
}

// TransactionCount returns the number of proposals ever submitted.
func (m *Multisig) TransactionCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.proposals))
}

// IsApproved reports whether owner holds an active approval on the
// proposal.
func (m *Multisig) IsApproved(id int64, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.proposal(id); err != nil {
		return false, err
	}
	return m.approvals[id][owner], nil
}

// Balance returns the custodial token balance.
func (m *Multisig) Balance() (int64, error) {
	return m.token.BalanceOf(m.account)
}

// Events returns a copy of the notification log.
func (m *Multisig) Events() []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Event, len(m.events))
	copy(out, m.events)
	return out
}
