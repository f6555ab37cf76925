package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tron-multisig/contract"
	"tron-multisig/coordinator"
	"tron-multisig/errs"
	"tron-multisig/logger"
	"tron-multisig/models"
)

// Handler contains the HTTP handlers for the multisig API endpoints
type Handler struct {
	Contract    *contract.Multisig
	Coordinator *coordinator.Coordinator
}

// NewHandler creates and returns a new Handler instance
func NewHandler(c *contract.Multisig, coord *coordinator.Coordinator) *Handler {
	return &Handler{Contract: c, Coordinator: coord}
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyTerminal),
		errors.Is(err, errs.ErrAlreadyApproved),
		errors.Is(err, errs.ErrNotApproved),
		errors.Is(err, errs.ErrNotExpired),
		errors.Is(err, errs.ErrAlreadySigned),
		errors.Is(err, errs.ErrQuorumNotMet),
		errors.Is(err, errs.ErrExpired):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidImport):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInsufficientBalance), errors.Is(err, errs.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

type proposalRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

// SubmitProposal handles POST requests to propose a transfer; the
// submitter's approval is implicit and a threshold of 1 executes it in
// the same call
func (h *Handler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode proposal", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	id, err := h.Contract.Submit(req.Caller, req.To, req.Amount)
	if err != nil {
		logger.Logger.Error("Failed to submit proposal", zap.Error(err))
		writeError(w, err)
		return
	}

	proposal, err := h.Contract.GetTransaction(id)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Logger.Info("Submitted proposal",
		zap.Int64("proposal_id", id), zap.String("to", req.To), zap.Int64("amount", req.Amount))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Proposal submitted",
		"proposal": proposal,
	})
}

func (h *Handler) proposalID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ApproveProposal handles POST requests to add the caller's approval
func (h *Handler) ApproveProposal(w http.ResponseWriter, r *http.Request) {
	id, err := h.proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	if err := h.Contract.Approve(req.Caller, id); err != nil {
		logger.Logger.Error("Failed to approve proposal", zap.Int64("proposal_id", id), zap.Error(err))
		writeError(w, err)
		return
	}

	proposal, err := h.Contract.GetTransaction(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Proposal approved",
		"proposal": proposal,
	})
}

// RevokeApproval handles POST requests to withdraw the caller's approval
func (h *Handler) RevokeApproval(w http.ResponseWriter, r *http.Request) {
	id, err := h.proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	if err := h.Contract.Revoke(req.Caller, id); err != nil {
		logger.Logger.Error("Failed to revoke approval", zap.Int64("proposal_id", id), zap.Error(err))
		writeError(w, err)
		return
	}

	proposal, err := h.Contract.GetTransaction(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Approval revoked",
		"proposal": proposal,
	})
}

// CancelExpiredProposal handles POST requests to cancel a proposal past
// its expiration window
func (h *Handler) CancelExpiredProposal(w http.ResponseWriter, r *http.Request) {
	id, err := h.proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	if err := h.Contract.CancelExpired(req.Caller, id); err != nil {
		logger.Logger.Error("Failed to cancel proposal", zap.Int64("proposal_id", id), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Proposal cancelled"})
}

// GetProposal handles GET requests for one proposal
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := h.proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}
	proposal, err := h.Contract.GetTransaction(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// ListProposals handles GET requests for all proposals
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Contract.GetTransactions())
}

// GetOwners handles GET requests for the roster and threshold
func (h *Handler) GetOwners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Contract.Owners())
}

// IsApproved handles GET requests for one owner's approval flag
func (h *Handler) IsApproved(w http.ResponseWriter, r *http.Request) {
	id, err := h.proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}
	owner := mux.Vars(r)["owner"]
	approved, err := h.Contract.IsApproved(id, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal_id": id,
		"owner":       owner,
		"approved":    approved,
	})
}

// GetBalance handles GET requests for the custodial token balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Contract.Balance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// GetEvents handles GET requests for the contract notification log
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Contract.Events())
}

type createPendingRequest struct {
	To          string `json:"to"`
	Amount      int64  `json:"amount"`
	Asset       string `json:"asset"`
	Description string `json:"description"`
}

// CreatePending handles POST requests to build and locally sign a new
// pending transaction
func (h *Handler) CreatePending(w http.ResponseWriter, r *http.Request) {
	var req createPendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode pending transaction", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	rec, err := h.Coordinator.Create(r.Context(), req.To, req.Amount, req.Asset, req.Description)
	if err != nil {
		logger.Logger.Error("Failed to create pending transaction", zap.Error(err))
		writeError(w, err)
		return
	}
	logger.Logger.Info("Created pending transaction",
		zap.String("id", rec.ID), zap.String("tx_id", rec.TxID))
	writeJSON(w, http.StatusCreated, rec)
}

// SignPending handles POST requests to add the local signature
func (h *Handler) SignPending(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Coordinator.Sign(mux.Vars(r)["id"])
	if err != nil {
		logger.Logger.Error("Failed to sign pending transaction", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ImportPending handles POST requests whose body is a record exported
// by another custodian
func (h *Handler) ImportPending(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}
	rec, err := h.Coordinator.ImportAndMerge(blob)
	if err != nil {
		logger.Logger.Error("Failed to import pending transaction", zap.Error(err))
		writeError(w, err)
		return
	}
	logger.Logger.Info("Imported pending transaction",
		zap.String("id", rec.ID), zap.Int("signers", len(rec.Signers)))
	writeJSON(w, http.StatusOK, rec)
}

// BroadcastPending handles POST requests to submit a quorum-complete
// record to the network
func (h *Handler) BroadcastPending(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Coordinator.Broadcast(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		logger.Logger.Error("Failed to broadcast pending transaction", zap.Error(err))
		if rec != nil {
			// Transport rejection: the failure is recorded on the record
			writeJSON(w, statusFor(err), rec)
			return
		}
		writeError(w, err)
		return
	}
	logger.Logger.Info("Broadcast pending transaction",
		zap.String("id", rec.ID), zap.String("network_id", rec.NetworkID))
	writeJSON(w, http.StatusOK, rec)
}

// GetPending handles GET requests for one pending transaction
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Coordinator.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListPending handles GET requests for all pending transactions
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Coordinator.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*models.PendingTransaction{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// ExportPending handles GET requests for a record serialized for
// out-of-band transport
func (h *Handler) ExportPending(w http.ResponseWriter, r *http.Request) {
	blob, err := h.Coordinator.Export(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// DeletePending handles DELETE requests to remove a record locally
func (h *Handler) DeletePending(w http.ResponseWriter, r *http.Request) {
	if err := h.Coordinator.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pending transaction deleted"})
}

// ReconcilePending handles POST requests to run one housekeeping sweep
func (h *Handler) ReconcilePending(w http.ResponseWriter, r *http.Request) {
	h.Coordinator.Reconcile(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reconciliation complete"})
}
