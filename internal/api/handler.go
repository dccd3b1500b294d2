// Package api exposes the ledger over HTTP. It only parses requests and maps
// ledger errors to status codes; all rules live in package ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/ledger"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/storage"
)

const (
	headerGroup       = "X-Group-ID"
	headerUser        = "X-User-ID"
	headerIdempotency = "Idempotency-Key"
)

type Handler struct {
	ledger *ledger.Ledger
	store  interfaces.LedgerStore
	logger *slog.Logger
}

func New(l *ledger.Ledger, store interfaces.LedgerStore, logger *slog.Logger) *Handler {
	return &Handler{ledger: l, store: store, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireGroup)

		r.Post("/accounts", h.createAccount)
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/balance", h.getBalance)
			r.Get("/reconcile", h.reconcile)
			r.Get("/transactions", h.listTransactions)
			r.Post("/limits", h.putLimit)
		})
		r.Post("/categories", h.createCategory)
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.createTransaction)
			r.Post("/check", h.checkLimits)
			r.Patch("/{id}", h.updateTransaction)
			r.Delete("/{id}", h.deleteTransaction)
		})
	})
	return r
}

type contextKey string

const contextKeyRequester contextKey = "requester"

// RequireGroup rejects requests without a group header and stores the
// caller in the request context.
func RequireGroup(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		group := r.Header.Get(headerGroup)
		if group == "" {
			writeError(w, http.StatusUnauthorized, "missing "+headerGroup+" header", nil)
			return
		}
		req := models.Requester{GroupID: group, UserID: r.Header.Get(headerUser)}
		ctx := context.WithValue(r.Context(), contextKeyRequester, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requester(r *http.Request) models.Requester {
	req, _ := r.Context().Value(contextKeyRequester).(models.Requester)
	return req
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	var in models.CreateTransactionInput
	if !decode(w, r, &in) {
		return
	}
	in.IdempotencyKey = r.Header.Get(headerIdempotency)

	res, err := h.ledger.CreateTransaction(r.Context(), req, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *Handler) checkLimits(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	var in models.CreateTransactionInput
	if !decode(w, r, &in) {
		return
	}
	check, err := h.ledger.CheckLimits(r.Context(), req, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	var patch models.TransactionPatch
	if !decode(w, r, &patch) {
		return
	}
	res, err := h.ledger.UpdateTransaction(r.Context(), req, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	res, err := h.ledger.DeleteTransaction(r.Context(), req, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	id := chi.URLParam(r, "id")
	balance, err := h.ledger.GetBalance(r.Context(), req, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AccountID string `json:"account_id"`
		Balance   int64  `json:"balance"`
	}{AccountID: id, Balance: balance})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	rec, err := h.ledger.Reconcile(r.Context(), req, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	txs, err := h.ledger.ListTransactions(r.Context(), req, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	var body struct {
		Name    string  `json:"name"`
		Type    string  `json:"type"`
		Balance int64   `json:"balance"`
		Note    *string `json:"note"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	now := time.Now().UTC()
	account := models.Account{
		ID:             uuid.NewString(),
		GroupID:        req.GroupID,
		Name:           body.Name,
		Type:           body.Type,
		Balance:        body.Balance,
		OpeningBalance: body.Balance,
		Note:           body.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.store.CreateAccount(r.Context(), account); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	category := models.Category{ID: uuid.NewString(), GroupID: req.GroupID, Name: body.Name, CreatedAt: time.Now().UTC()}
	if err := h.store.CreateCategory(r.Context(), category); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) putLimit(w http.ResponseWriter, r *http.Request) {
	req := requester(r)
	var body struct {
		Period models.Period `json:"period"`
		Limit  int64         `json:"limit"`
	}
	if !decode(w, r, &body) {
		return
	}
	if !body.Period.Valid() {
		writeError(w, http.StatusBadRequest, "period must be week or month", nil)
		return
	}
	if body.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must not be negative", nil)
		return
	}
	accountID := chi.URLParam(r, "id")
	if _, err := h.store.GetAccount(r.Context(), req.GroupID, accountID); err != nil {
		h.fail(w, r, err)
		return
	}
	limit := models.AccountLimit{ID: uuid.NewString(), AccountID: accountID, Period: body.Period, Limit: body.Limit}
	if err := h.store.PutAccountLimit(r.Context(), limit); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, limit)
}

type errorBody struct {
	Error    string               `json:"error"`
	Details  []string             `json:"details,omitempty"`
	Breaches []ledger.LimitBreach `json:"breaches,omitempty"`
	Retry    bool                 `json:"retryable,omitempty"`
}

// fail maps ledger error kinds to status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *ledger.LimitExceededError
	switch {
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:    ledger.ErrLimitExceeded.Error(),
			Details:  limitErr.Messages(),
			Breaches: limitErr.Breaches,
		})
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, storage.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrConsistency), errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Retry: true})
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string, details []string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
