package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tron-multisig/contract"
	"tron-multisig/coordinator"
	"tron-multisig/errs"
	"tron-multisig/handlers"
	"tron-multisig/logger"
	"tron-multisig/models"
	"tron-multisig/repository"
	"tron-multisig/routers"

	pkgerrors "github.com/pkg/errors"
)

const (
	ownerA    = "TA4Wt1DUCqz6YegbnsmqsWC5uUfbdBqPxm"
	ownerB    = "TA9pkx4DFxrEw8JZzUtyDrh2uAat1LDuJL"
	outsider  = "TALSWqjhNCaXi5YWPh9DvZgvtYRSfqVUwq"
	recipient = "TARkPnaSRKSg6ZAUbJGMGvBstELj7VS3Br"
	custodial = "TAX4GjRBUSJpV2nSnuPUdGgpsvG1Qpvcm3"
)

type mockRepo struct {
	mu   sync.Mutex
	recs map[string]*models.PendingTransaction
}

func newMockRepo() *mockRepo {
	return &mockRepo{recs: make(map[string]*models.PendingTransaction)}
}

func (m *mockRepo) Put(rec *models.PendingTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *rec
	m.recs[rec.ID] = &copy
	return nil
}

func (m *mockRepo) Get(id string) (*models.PendingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, pkgerrors.Wrapf(errs.ErrNotFound, "pending transaction %s", id)
	}
	copy := *rec
	return &copy, nil
}

func (m *mockRepo) GetByTxID(txID string) (*models.PendingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.TxID == txID {
			copy := *rec
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) List() ([]*models.PendingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PendingTransaction, 0, len(m.recs))
	for _, rec := range m.recs {
		copy := *rec
		out = append(out, &copy)
	}
	return out, nil
}

func (m *mockRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return pkgerrors.Wrapf(errs.ErrNotFound, "pending transaction %s", id)
	}
	delete(m.recs, id)
	return nil
}

// stubWallet signs by appending its address to the payload signature
// list; good enough for exercising the HTTP surface.
type stubPayload struct {
	TxID       string   `json:"txID"`
	Expiration int64    `json:"expiration"`
	Signatures []string `json:"signatures"`
}

type stubWallet struct {
	address string
}

func (w *stubWallet) Account() string { return custodial }
func (w *stubWallet) Address() string { return w.address }

func (w *stubWallet) BuildTransfer(_ context.Context, to string, amount int64, asset string) ([]byte, error) {
	return json.Marshal(stubPayload{
		TxID:       fmt.Sprintf("tx-%s-%d-%s", to, amount, asset),
		Expiration: time.Now().Add(time.Hour).UnixMilli(),
	})
}

func (w *stubWallet) Sign(payload []byte) ([]byte, error) {
	var p stubPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, pkgerrors.Wrap(errs.ErrInvalidImport, err.Error())
	}
	p.Signatures = append(p.Signatures, w.address)
	return json.Marshal(p)
}

func (w *stubWallet) Signers(payload []byte) ([]string, error) {
	var p stubPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TxID == "" {
		return nil, pkgerrors.Wrap(errs.ErrInvalidImport, "bad payload")
	}
	var out []string
	seen := map[string]bool{}
	for _, s := range p.Signatures {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func (w *stubWallet) Merge(existing, imported []byte) ([]byte, error) {
	var dst, src stubPayload
	if err := json.Unmarshal(existing, &dst); err != nil {
		return nil, pkgerrors.Wrap(errs.ErrInvalidImport, err.Error())
	}
	if err := json.Unmarshal(imported, &src); err != nil {
		return nil, pkgerrors.Wrap(errs.ErrInvalidImport, err.Error())
	}
	seen := map[string]bool{}
	for _, s := range dst.Signatures {
		seen[s] = true
	}
	for _, s := range src.Signatures {
		if !seen[s] {
			dst.Signatures = append(dst.Signatures, s)
		}
	}
	return json.Marshal(dst)
}

func (w *stubWallet) Inspect(payload []byte) (string, time.Time, error) {
	var p stubPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TxID == "" {
		return "", time.Time{}, pkgerrors.Wrap(errs.ErrInvalidImport, "bad payload")
	}
	return p.TxID, time.UnixMilli(p.Expiration), nil
}

type stubNetwork struct {
	threshold int
}

func (n *stubNetwork) AccountPermission(context.Context, string) (models.Roster, error) {
	return models.Roster{Owners: []string{ownerA, ownerB}, Threshold: n.threshold}, nil
}

func (n *stubNetwork) Broadcast(_ context.Context, payload []byte) (string, error) {
	var p stubPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", pkgerrors.Wrap(errs.ErrTransport, err.Error())
	}
	return p.TxID, nil
}

func (n *stubNetwork) Confirmed(context.Context, string) (bool, error) {
	return false, nil
}

func testServer(t *testing.T, threshold int) *mux.Router {
	t.Helper()
	logger.Logger = zap.NewNop()

	token := contract.NewMemoryToken(map[string]int64{custodial: 1000}, false)
	multisig, err := contract.New(
		models.Roster{Owners: []string{ownerA, ownerB}, Threshold: threshold},
		custodial, token, time.Hour, nil)
	if err != nil {
		t.Fatalf("contract setup: %v", err)
	}

	var repo repository.PendingRepositoryInterface = newMockRepo()
	coord := coordinator.New(repo, &stubWallet{address: ownerA}, &stubNetwork{threshold: threshold}, nil)

	handler := handlers.NewHandler(multisig, coord)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler)
	return router
}

func doJSON(router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestSubmitProposal_Success(t *testing.T) {
	router := testServer(t, 2)

	res := doJSON(router, http.MethodPost, "/contract/proposals", map[string]interface{}{
		"caller": ownerA,
		"to":     recipient,
		"amount": 100,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}

	var out struct {
		Proposal models.Proposal `json:"proposal"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Proposal.ApprovalCount != 1 || out.Proposal.State != models.ProposalOpen {
		t.Fatalf("unexpected proposal: %+v", out.Proposal)
	}
}

func TestSubmitProposal_Unauthorized(t *testing.T) {
	router := testServer(t, 2)

	res := doJSON(router, http.MethodPost, "/contract/proposals", map[string]interface{}{
		"caller": outsider,
		"to":     recipient,
		"amount": 100,
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestApproveProposal_ExecutesAtThreshold(t *testing.T) {
	router := testServer(t, 2)

	doJSON(router, http.MethodPost, "/contract/proposals", map[string]interface{}{
		"caller": ownerA, "to": recipient, "amount": 100,
	})

	res := doJSON(router, http.MethodPost, "/contract/proposals/0/approve", map[string]string{"caller": ownerB})
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", res.Code, res.Body.String())
	}

	var out struct {
		Proposal models.Proposal `json:"proposal"`
	}
	json.Unmarshal(res.Body.Bytes(), &out)
	if out.Proposal.State != models.ProposalCompleted {
		t.Fatalf("expected completed proposal, got %+v", out.Proposal)
	}

	// Double approval on a terminal proposal conflicts.
	res = doJSON(router, http.MethodPost, "/contract/proposals/0/approve", map[string]string{"caller": ownerB})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestGetProposal_NotFound(t *testing.T) {
	router := testServer(t, 2)

	res := doJSON(router, http.MethodGet, "/contract/proposals/7", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestGetOwnersAndBalance(t *testing.T) {
	router := testServer(t, 2)

	res := doJSON(router, http.MethodGet, "/contract/owners", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	var roster models.Roster
	json.Unmarshal(res.Body.Bytes(), &roster)
	if len(roster.Owners) != 2 || roster.Threshold != 2 {
		t.Fatalf("unexpected roster: %+v", roster)
	}

	res = doJSON(router, http.MethodGet, "/contract/balance", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
}

func TestPendingLifecycleOverHTTP(t *testing.T) {
	router := testServer(t, 1)

	res := doJSON(router, http.MethodPost, "/wallet/pending", map[string]interface{}{
		"to":     recipient,
		"amount": 100,
		"asset":  models.AssetTRX,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}
	var rec models.PendingTransaction
	json.Unmarshal(res.Body.Bytes(), &rec)
	if rec.Status != models.StatusReady {
		t.Fatalf("threshold 1 should be ready, got %s", rec.Status)
	}

	res = doJSON(router, http.MethodGet, "/wallet/pending/"+rec.ID+"/export", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}

	res = doJSON(router, http.MethodPost, "/wallet/pending/"+rec.ID+"/broadcast", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", res.Code, res.Body.String())
	}
	json.Unmarshal(res.Body.Bytes(), &rec)
	if rec.Status != models.StatusBroadcast || rec.NetworkID == "" {
		t.Fatalf("unexpected broadcast record: %+v", rec)
	}
}

func TestBroadcastPending_QuorumConflict(t *testing.T) {
	router := testServer(t, 2)

	res := doJSON(router, http.MethodPost, "/wallet/pending", map[string]interface{}{
		"to": recipient, "amount": 100, "asset": models.AssetTRX,
	})
	var rec models.PendingTransaction
	json.Unmarshal(res.Body.Bytes(), &rec)

	res = doJSON(router, http.MethodPost, "/wallet/pending/"+rec.ID+"/broadcast", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestImportPending_RoundTrip(t *testing.T) {
	source := testServer(t, 2)
	res := doJSON(source, http.MethodPost, "/wallet/pending", map[string]interface{}{
		"to": recipient, "amount": 100, "asset": models.AssetTRX,
	})
	var rec models.PendingTransaction
	json.Unmarshal(res.Body.Bytes(), &rec)

	export := doJSON(source, http.MethodGet, "/wallet/pending/"+rec.ID+"/export", nil)
	if export.Code != http.StatusOK {
		t.Fatalf("export failed: %d", export.Code)
	}

	target := testServer(t, 2)
	req := httptest.NewRequest(http.MethodPost, "/wallet/pending/import", bytes.NewReader(export.Body.Bytes()))
	out := httptest.NewRecorder()
	target.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", out.Code, out.Body.String())
	}

	var imported models.PendingTransaction
	json.Unmarshal(out.Body.Bytes(), &imported)
	if imported.TxID != rec.TxID || len(imported.Signers) != 1 {
		t.Fatalf("import did not reproduce record: %+v", imported)
	}

	// Malformed imports are rejected as bad requests.
	req = httptest.NewRequest(http.MethodPost, "/wallet/pending/import", bytes.NewReader([]byte("garbage")))
	out = httptest.NewRecorder()
	target.ServeHTTP(out, req)
	if out.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", out.Code)
	}
}

func TestDeletePending(t *testing.T) {
	router := testServer(t, 2)

	res := doJSON(router, http.MethodPost, "/wallet/pending", map[string]interface{}{
		"to": recipient, "amount": 100, "asset": models.AssetTRX,
	})
	var rec models.PendingTransaction
	json.Unmarshal(res.Body.Bytes(), &rec)

	res = doJSON(router, http.MethodDelete, "/wallet/pending/"+rec.ID, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	res = doJSON(router, http.MethodDelete, "/wallet/pending/"+rec.ID, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", res.Code)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	router := testServer(t, 2)
	res := doJSON(router, http.MethodPost, "/wallet/reconcile", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
}
