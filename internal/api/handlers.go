/**
 * @description
 * This file contains the HTTP handlers for the ledger service's API
 * endpoints. Handlers parse incoming requests, call the application service,
 * and translate engine errors into HTTP status codes. They act as the bridge
 * between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andeanpay/ledger-service/internal/app"
	"github.com/andeanpay/ledger-service/internal/domain"
	"github.com/andeanpay/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// ownerID resolves the authenticated owner's UUID from the request context.
func (h *LedgerHandlers) ownerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerIDStr, ok := GetOwnerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get owner ID from context")
		return uuid.Nil, false
	}
	ownerID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_owner_id owner_id=%s", ownerIDStr)
		h.writeError(w, http.StatusBadRequest, "Invalid owner ID format")
		return uuid.Nil, false
	}
	return ownerID, true
}

// parseAmount parses a decimal-string amount from a request payload. Sign and
// range checks belong to the service layer.
func (h *LedgerHandlers) parseAmount(w http.ResponseWriter, raw string) (domain.Money, bool) {
	amount, err := domain.NewMoneyFromString(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount: %v", err))
		return domain.Money{}, false
	}
	return amount, true
}

// OpenAccountHandler handles requests to open a new account for the
// authenticated owner.
func (h *LedgerHandlers) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req domain.OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=open_account outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	account, err := h.service.OpenAccount(r.Context(), ownerID, domain.AccountType(req.Type), domain.Currency(req.Currency), req.Alias)
	if err != nil {
		log.Printf("level=warn component=api endpoint=open_account outcome=failed owner_id=%s err=%v", ownerID, err)
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidAccountType), errors.Is(err, app.ErrInvalidCurrency):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=open_account outcome=created owner_id=%s account_id=%s currency=%s", ownerID, account.ID, account.Currency)
	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler lists the authenticated owner's accounts.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccountsByOwner(r.Context(), ownerID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_accounts outcome=failed owner_id=%s err=%v", ownerID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountHandler retrieves one account by id.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=get_account outcome=failed account_id=%s err=%v", accountID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// ListTransactionsHandler lists the ledger entries involving an account,
// most recent first.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}

	transactions, err := h.service.ListTransactionsByAccount(r.Context(), accountID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions outcome=failed account_id=%s err=%v", accountID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// DepositHandler handles requests to credit an account.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	amount, ok := h.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	entry, err := h.service.Deposit(r.Context(), req.ToAccountID, amount, req.Description)
	if err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=failed account_id=%s err=%v", req.ToAccountID, err)
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=deposit outcome=completed transaction_id=%s account_id=%s amount=%s", entry.ID, req.ToAccountID, entry.Amount)
	h.writeJSON(w, http.StatusCreated, entry)
}

// TransferHandler handles requests to move funds between two accounts.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	amount, ok := h.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	entry, err := h.service.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, amount, req.Description)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed from=%s to=%s err=%v", req.FromAccountID, req.ToAccountID, err)
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrSameAccount),
			errors.Is(err, app.ErrInvalidAmount),
			errors.Is(err, app.ErrCurrencyMismatch):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrTransferRateLimited):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=completed transaction_id=%s from=%s to=%s amount=%s", entry.ID, req.FromAccountID, req.ToAccountID, entry.Amount)
	h.writeJSON(w, http.StatusCreated, entry)
}
