package repository

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"tron-multisig/db"
	"tron-multisig/errs"
	"tron-multisig/models"
)

// Key prefix for pending-transaction records.
const pendingPrefix = "pending:"

// It abstracts the storage layer from the coordinator logic; every Put
// is the transactional commit point of a mutate-then-persist sequence.
type PendingRepositoryInterface interface {
	Put(rec *models.PendingTransaction) error
	Get(id string) (*models.PendingTransaction, error)
	GetByTxID(txID string) (*models.PendingTransaction, error)
	List() ([]*models.PendingTransaction, error)
	Delete(id string) error
}

// PendingRepository implements the PendingRepositoryInterface using LevelDB as the storage backend
type PendingRepository struct {
	db *db.LevelDB
}

// NewPendingRepository creates and returns a new PendingRepository instance
func NewPendingRepository(db *db.LevelDB) *PendingRepository {
	return &PendingRepository{db: db}
}

func pendingKey(id string) []byte {
	return []byte(pendingPrefix + id)
}

// Put stores a pending transaction in the LevelDB storage
func (r *PendingRepository) Put(rec *models.PendingTransaction) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal pending transaction")
	}
	return r.db.Put(pendingKey(rec.ID), data)
}

// Get retrieves a pending transaction by its local id
func (r *PendingRepository) Get(id string) (*models.PendingTransaction, error) {
	data, err := r.db.Get(pendingKey(id))
	if err == leveldb.ErrNotFound {
		return nil, errors.Wrapf(errs.ErrNotFound, "pending transaction %s", id)
	}
	if err != nil {
		return nil, err
	}
	var rec models.PendingTransaction
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal pending transaction")
	}
	return &rec, nil
}

// GetByTxID retrieves a pending transaction by its network transaction
// id; (nil, nil) when no record matches, since imports routinely probe
// for ids that are not stored yet
func (r *PendingRepository) GetByTxID(txID string) (*models.PendingTransaction, error) {
	recs, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.TxID == txID {
			return rec, nil
		}
	}
	return nil, nil
}

// List retrieves all pending transactions from the LevelDB storage
func (r *PendingRepository) List() ([]*models.PendingTransaction, error) {
	iter := r.db.NewIterator([]byte(pendingPrefix))
	defer iter.Release()

	var recs []*models.PendingTransaction
	for iter.Next() {
		var rec models.PendingTransaction
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, errors.Wrap(err, "unmarshal pending transaction")
		}
		recs = append(recs, &rec)
	}
	return recs, iter.Error()
}

// Delete removes a pending transaction from the storage
func (r *PendingRepository) Delete(id string) error {
	ok, err := r.db.Has(pendingKey(id))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(errs.ErrNotFound, "pending transaction %s", id)
	}
	return r.db.Delete(pendingKey(id))
}
