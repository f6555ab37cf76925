package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tron-multisig/errs"
	"tron-multisig/logger"
	"tron-multisig/models"
	"tron-multisig/repository"
)

// Wallet is the external transaction-construction/signing primitive,
// working over opaque payload blobs so the coordinator never depends on
// the wire format.
type Wallet interface {
	// Account is the shared multi-key account transfers spend from.
	Account() string
	// Address is the local key-holder's address.
	Address() string
	// BuildTransfer constructs an unsigned transfer payload.
	BuildTransfer(ctx context.Context, to string, amount int64, asset string) ([]byte, error)
	// Sign appends the local signature to the payload.
	Sign(payload []byte) ([]byte, error)
	// Signers recovers the distinct signer addresses from the payload.
	Signers(payload []byte) ([]string, error)
	// Merge unions two payloads' signatures for the same transaction
	// id, deduplicated by recovered signer, preserving existing bytes.
	Merge(existing, imported []byte) ([]byte, error)
	// Inspect returns the payload's network transaction id and the
	// expiry carried in the payload itself.
	Inspect(payload []byte) (string, time.Time, error)
}

// Network is the broadcast/confirmation transport plus the native
// account-permission query.
type Network interface {
	AccountPermission(ctx context.Context, addr string) (models.Roster, error)
	Broadcast(ctx context.Context, payload []byte) (string, error)
	Confirmed(ctx context.Context, txID string) (bool, error)
}

// Coordinator tracks locally stored, partially signed transfers for one
// custodian instance. Convergence between custodians happens only
// through explicit export/import of records; no instance's view is
// authoritative until a broadcast succeeds.
//
// Every mutation persists through the repository before returning; the
// repository write is the commit point.
type Coordinator struct {
	repo    repository.PendingRepositoryInterface
	wallet  Wallet
	network Network
	now     func() time.Time
}

// New creates a coordinator. A nil clock selects time.Now.
func New(repo repository.PendingRepositoryInterface, wallet Wallet, network Network, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{repo: repo, wallet: wallet, network: network, now: now}
}

// Create builds an unsigned transfer, signs it with the local key,
// captures the account's current threshold and stores the record. The
// record is ready immediately when the threshold is 1.
func (c *Coordinator) Create(ctx context.Context, to string, amount int64, asset, description string) (*models.PendingTransaction, error) {
	if err := models.ValidateAddress(to); err != nil {
		return nil, err
	}
	if err := models.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if asset != models.AssetTRX {
		if err := models.ValidateAddress(asset); err != nil {
			return nil, err
		}
	}

	roster, err := c.network.AccountPermission(ctx, c.wallet.Account())
	if err != nil {
		return nil, err
	}

	payload, err := c.wallet.BuildTransfer(ctx, to, amount, asset)
	if err != nil {
		return nil, err
	}
	signed, err := c.wallet.Sign(payload)
	if err != nil {
		return nil, err
	}
	signers, err := c.wallet.Signers(signed)
	if err != nil {
		return nil, err
	}
	txID, expires, err := c.wallet.Inspect(signed)
	if err != nil {
		return nil, err
	}

	rec := &models.PendingTransaction{
		ID:          uuid.NewString(),
		TxID:        txID,
		Payload:     signed,
		From:        c.wallet.Account(),
		To:          to,
		Amount:      amount,
		Asset:       asset,
		Threshold:   roster.Threshold,
		Signers:     signers,
		CreatedAt:   c.now(),
		ExpiresAt:   expires,
		Status:      models.StatusPending,
		Description: description,
	}
	rec.RefreshStatus(c.now())
	if err := c.repo.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Sign appends the local signature to a stored record and re-derives
// the signer set from the payload. Double-signing is rejected.
func (c *Coordinator) Sign(id string) (*models.PendingTransaction, error) {
	rec, err := c.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, errors.Wrapf(errs.ErrAlreadyTerminal, "pending transaction %s is %s", id, rec.Status)
	}
	if rec.HasSigner(c.wallet.Address()) {
		return nil, errors.Wrapf(errs.ErrAlreadySigned, "pending transaction %s by %s", id, c.wallet.Address())
	}

	signed, err := c.wallet.Sign(rec.Payload)
	if err != nil {
		return nil, err
	}
	signers, err := c.wallet.Signers(signed)
	if err != nil {
		return nil, err
	}
	rec.Payload = signed
	rec.Signers = signers
	rec.RefreshStatus(c.now())
	if err := c.repo.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ImportAndMerge takes a serialized record from another custodian. A
// new transaction id is inserted as-is (signer set re-derived, never
// trusted); a known one has its signature list unioned with the
// imported one. Re-importing an already merged export is a no-op.
func (c *Coordinator) ImportAndMerge(blob []byte) (*models.PendingTransaction, error) {
	var imported models.PendingTransaction
	if err := json.Unmarshal(blob, &imported); err != nil {
		return nil, errors.Wrapf(errs.ErrInvalidImport, "decode record: %v", err)
	}
	txID, expires, err := c.wallet.Inspect(imported.Payload)
	if err != nil {
		return nil, err
	}
	if imported.TxID != txID {
		return nil, errors.Wrapf(errs.ErrInvalidImport,
			"record txID %s does not match payload txID %s", imported.TxID, txID)
	}
	if imported.Threshold < 1 {
		return nil, errors.Wrapf(errs.ErrInvalidImport, "threshold %d", imported.Threshold)
	}

	existing, err := c.repo.GetByTxID(txID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if imported.ID == "" {
			imported.ID = uuid.NewString()
		}
		signers, err := c.wallet.Signers(imported.Payload)
		if err != nil {
			return nil, err
		}
		imported.Signers = signers
		imported.ExpiresAt = expires
		imported.Status = models.StatusPending
		imported.RefreshStatus(c.now())
		if err := c.repo.Put(&imported); err != nil {
			return nil, err
		}
		return &imported, nil
	}

	if existing.Terminal() {
		return nil, errors.Wrapf(errs.ErrAlreadyTerminal,
			"pending transaction %s is %s", existing.ID, existing.Status)
	}

	merged, err := c.wallet.Merge(existing.Payload, imported.Payload)
	if err != nil {
		return nil, err
	}
	signers, err := c.wallet.Signers(merged)
	if err != nil {
		return nil, err
	}
	existing.Payload = merged
	existing.Signers = signers
	existing.RefreshStatus(c.now())
	if err := c.repo.Put(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Broadcast submits a record once its signer count reached the
// threshold captured at creation; no live roster re-check. A transport
// rejection is recorded into the record (status failed + message) so
// the custodian can retry.
func (c *Coordinator) Broadcast(ctx context.Context, id string) (*models.PendingTransaction, error) {
	rec, err := c.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.StatusBroadcast {
		return nil, errors.Wrapf(errs.ErrAlreadyTerminal, "pending transaction %s already broadcast", id)
	}
	now := c.now()
	if now.After(rec.ExpiresAt) || rec.Status == models.StatusExpired {
		if rec.Status != models.StatusExpired {
			rec.Status = models.StatusExpired
			if err := c.repo.Put(rec); err != nil {
				return nil, err
			}
		}
		return nil, errors.Wrapf(errs.ErrExpired, "pending transaction %s", id)
	}
	if len(rec.Signers) < rec.Threshold {
		return nil, errors.Wrapf(errs.ErrQuorumNotMet,
			"pending transaction %s has %d of %d signers", id, len(rec.Signers), rec.Threshold)
	}

	networkID, err := c.network.Broadcast(ctx, rec.Payload)
	if err != nil {
		rec.Status = models.StatusFailed
		rec.Error = err.Error()
		if putErr := c.repo.Put(rec); putErr != nil {
			return nil, putErr
		}
		return rec, err
	}

	rec.Status = models.StatusBroadcast
	rec.NetworkID = networkID
	rec.Error = ""
	if err := c.repo.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reconcile is best-effort housekeeping over every non-terminal record:
// records observed as settled on the network are removed (another
// custodian's broadcast resolved them), records past their expiry are
// flipped to expired. Per-record failures are logged and never abort
// the sweep.
func (c *Coordinator) Reconcile(ctx context.Context) {
	recs, err := c.repo.List()
	if err != nil {
		logger.Logger.Warn("reconcile: listing pending transactions failed", zap.Error(err))
		return
	}
	now := c.now()
	for _, rec := range recs {
		if rec.Status != models.StatusPending && rec.Status != models.StatusReady {
			continue
		}
		if now.After(rec.ExpiresAt) {
			rec.Status = models.StatusExpired
			if err := c.repo.Put(rec); err != nil {
				logger.Logger.Warn("reconcile: persisting expiry failed",
					zap.String("id", rec.ID), zap.Error(err))
			}
			continue
		}
		settled, err := c.network.Confirmed(ctx, rec.TxID)
		if err != nil {
			logger.Logger.Warn("reconcile: confirmation query failed",
				zap.String("id", rec.ID), zap.String("tx_id", rec.TxID), zap.Error(err))
			continue
		}
		if !settled {
			continue
		}
		// Settled by someone else's broadcast: resolution, not our
		// success.
		if err := c.repo.Delete(rec.ID); err != nil {
			logger.Logger.Warn("reconcile: removing settled record failed",
				zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		logger.Logger.Info("reconcile: pending transaction settled on network",
			zap.String("id", rec.ID), zap.String("tx_id", rec.TxID))
	}
}

// Export serializes a record for out-of-band transport. Purely local.
func (c *Coordinator) Export(id string) ([]byte, error) {
	rec, err := c.repo.Get(id)
	if err != nil {
		return nil, err
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	return blob, nil
}

// Delete removes a record. Purely local.
func (c *Coordinator) Delete(id string) error {
	return c.repo.Delete(id)
}

// Get returns a stored record.
func (c *Coordinator) Get(id string) (*models.PendingTransaction, error) {
	return c.repo.Get(id)
}

// List returns all stored records.
func (c *Coordinator) List() ([]*models.PendingTransaction, error) {
	return c.repo.List()
}
