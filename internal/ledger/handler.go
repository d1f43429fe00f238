package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/courtside/backend/internal/httpx"
	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/models"
)

// CreditReader is the slice of the ledger the credits endpoints read.
type CreditReader interface {
	Balance(ctx context.Context, owner string) (*BalanceSummary, error)
}

// EntryLister lists the audit trail.
type EntryLister interface {
	EntriesByOwner(ctx context.Context, owner string, limit int) ([]*models.LedgerEntry, error)
}

// Handler serves /api/v1/credits endpoints.
type Handler struct {
	Credits CreditReader
	Entries EntryLister
	Logger  *slog.Logger
}

type historyResponse struct {
	OwnerUID string                `json:"owner_uid"`
	Entries  []*models.LedgerEntry `json:"entries"`
}

// GetBalance handles GET /api/v1/credits/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_uid")
	if owner == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid is required")
		return
	}
	if !middleware.OwnerAllowed(r.Context(), owner) {
		httpx.Error(w, http.StatusForbidden, "owner_mismatch", "token subject does not match owner_uid")
		return
	}

	summary, err := h.Credits.Balance(r.Context(), owner)
	if err != nil {
		h.Logger.Error("credit balance", "owner_uid", owner, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not load credit balance")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}

// GetHistory handles GET /api/v1/credits/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_uid")
	if owner == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid is required")
		return
	}
	if !middleware.OwnerAllowed(r.Context(), owner) {
		httpx.Error(w, http.StatusForbidden, "owner_mismatch", "token subject does not match owner_uid")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			httpx.Error(w, http.StatusBadRequest, "invalid_input", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.Entries.EntriesByOwner(r.Context(), owner, limit)
	if err != nil {
		h.Logger.Error("credit history", "owner_uid", owner, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not load credit history")
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, historyResponse{OwnerUID: owner, Entries: entries})
}
