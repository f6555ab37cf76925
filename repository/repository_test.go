package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tron-multisig/db"
	"tron-multisig/errs"
	"tron-multisig/models"
)

func testRepo(t *testing.T) *PendingRepository {
	t.Helper()
	ldb, err := db.NewLevelDB(filepath.Join(t.TempDir(), "pending"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })
	return NewPendingRepository(ldb)
}

func testRecord(id, txID string) *models.PendingTransaction {
	return &models.PendingTransaction{
		ID:        id,
		TxID:      txID,
		Payload:   []byte(`{"txID":"` + txID + `"}`),
		From:      "TAX4GjRBUSJpV2nSnuPUdGgpsvG1Qpvcm3",
		To:        "TARkPnaSRKSg6ZAUbJGMGvBstELj7VS3Br",
		Amount:    100,
		Asset:     models.AssetTRX,
		Threshold: 2,
		Signers:   []string{"TA4Wt1DUCqz6YegbnsmqsWC5uUfbdBqPxm"},
		CreatedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC),
		Status:    models.StatusPending,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	repo := testRepo(t)
	rec := testRecord("id-1", "tx-1")

	if err := repo.Put(rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := repo.Get("id-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TxID != rec.TxID || string(got.Payload) != string(rec.Payload) {
		t.Fatalf("record did not survive round trip: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) || !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("timestamps did not survive round trip: %+v", got)
	}
	if len(got.Signers) != 1 || got.Signers[0] != rec.Signers[0] {
		t.Fatalf("signer set did not survive round trip: %v", got.Signers)
	}
}

func TestGetMissing(t *testing.T) {
	repo := testRepo(t)
	if _, err := repo.Get("missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByTxID(t *testing.T) {
	repo := testRepo(t)
	if err := repo.Put(testRecord("id-1", "tx-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(testRecord("id-2", "tx-2")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := repo.GetByTxID("tx-2")
	if err != nil {
		t.Fatalf("get by txID: %v", err)
	}
	if got == nil || got.ID != "id-2" {
		t.Fatalf("expected id-2, got %+v", got)
	}

	none, err := repo.GetByTxID("tx-404")
	if err != nil || none != nil {
		t.Fatalf("expected (nil, nil) for unknown txID, got %+v, %v", none, err)
	}
}

func TestListAndDelete(t *testing.T) {
	repo := testRepo(t)
	if err := repo.Put(testRecord("id-1", "tx-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(testRecord("id-2", "tx-2")); err != nil {
		t.Fatalf("put: %v", err)
	}

	recs, err := repo.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	if err := repo.Delete("id-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete("id-1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}

	recs, err = repo.List()
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected 1 record after delete, got %d, %v", len(recs), err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pending")

	ldb, err := db.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	repo := NewPendingRepository(ldb)
	if err := repo.Put(testRecord("id-1", "tx-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ldb.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := db.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer reopened.Close()

	got, err := NewPendingRepository(reopened).Get("id-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.TxID != "tx-1" || string(got.Payload) == "" {
		t.Fatalf("record lost across restart: %+v", got)
	}
}
