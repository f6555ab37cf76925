package routers

import (
	"github.com/gorilla/mux"

	"tron-multisig/handlers"
)

// RegisterRoutes sets up all the HTTP routes for the multisig service
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// On-chain approval automaton
	r.HandleFunc("/contract/proposals", h.SubmitProposal).Methods("POST")
	r.HandleFunc("/contract/proposals", h.ListProposals).Methods("GET")
	r.HandleFunc("/contract/proposals/{id}", h.GetProposal).Methods("GET")
	r.HandleFunc("/contract/proposals/{id}/approve", h.ApproveProposal).Methods("POST")
	r.HandleFunc("/contract/proposals/{id}/revoke", h.RevokeApproval).Methods("POST")
	r.HandleFunc("/contract/proposals/{id}/cancel", h.CancelExpiredProposal).Methods("POST")
	r.HandleFunc("/contract/owners", h.GetOwners).Methods("GET")
	r.HandleFunc("/contract/approvals/{id}/{owner}", h.IsApproved).Methods("GET")
	r.HandleFunc("/contract/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/contract/events", h.GetEvents).Methods("GET")

	// Off-chain signature coordinator
	r.HandleFunc("/wallet/pending", h.CreatePending).Methods("POST")
	r.HandleFunc("/wallet/pending", h.ListPending).Methods("GET")
	r.HandleFunc("/wallet/pending/import", h.ImportPending).Methods("POST")
	r.HandleFunc("/wallet/pending/{id}", h.GetPending).Methods("GET")
	r.HandleFunc("/wallet/pending/{id}", h.DeletePending).Methods("DELETE")
	r.HandleFunc("/wallet/pending/{id}/sign", h.SignPending).Methods("POST")
	r.HandleFunc("/wallet/pending/{id}/broadcast", h.BroadcastPending).Methods("POST")
	r.HandleFunc("/wallet/pending/{id}/export", h.ExportPending).Methods("GET")
	r.HandleFunc("/wallet/reconcile", h.ReconcilePending).Methods("POST")
}
