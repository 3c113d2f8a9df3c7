package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/minibank/internal/models"
	"github.com/ruralpay/minibank/internal/services"
	"github.com/shopspring/decimal"
)

// Ledger is the subset of services.LedgerService the HTTP layer drives.
type Ledger interface {
	CreateAccount(ctx context.Context, name string, initialBalance decimal.Decimal) (int64, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.TransactionRecord, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.TransactionRecord, error)
	Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*models.TransactionRecord, *models.TransactionRecord, error)
	GetBalances(ctx context.Context) ([]models.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	GetHistory(ctx context.Context) ([]models.TransactionRecord, error)
	GetAccountHistory(ctx context.Context, accountID int64, limit int) ([]models.TransactionRecord, error)
}

type LedgerHandler struct {
	ledger    Ledger
	validator *services.ValidationHelper
}

func NewLedgerHandler(ledger Ledger) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// CreateAccountRequest opens a new account
// @Description Account creation request
type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=100" example:"Alice"`
	InitialBalance decimal.Decimal `json:"initial_balance" swaggertype:"string" example:"100.00"`
}

// AmountRequest carries a deposit or withdrawal amount
// @Description Deposit / withdrawal request
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"50.00"`
}

// TransferRequest moves funds between two accounts
// @Description Transfer request
type TransferRequest struct {
	FromAccountID int64           `json:"from_account_id" validate:"required,gt=0" example:"1"`
	ToAccountID   int64           `json:"to_account_id" validate:"required,gt=0" example:"2"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"25.00"`
}

// TransferResponse holds the paired records of one transfer
type TransferResponse struct {
	Out *models.TransactionRecord `json:"transfer_out"`
	In  *models.TransactionRecord `json:"transfer_in"`
}

// CreateAccount opens an account
// @Summary Create account
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAccountRequest true "Account details"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.ledger.CreateAccount(r.Context(), req.Name, req.InitialBalance)
	if err != nil {
		writeLedgerError(w, "create account", err)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "create account", err)
		return
	}
	services.SendJSON(w, http.StatusCreated, account)
}

// ListAccounts returns every account with its balance
// @Summary List balances
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.GetBalances(r.Context())
	if err != nil {
		writeLedgerError(w, "list accounts", err)
		return
	}
	services.SendJSON(w, http.StatusOK, accounts)
}

// GetAccount returns one account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "get account", err)
		return
	}
	services.SendJSON(w, http.StatusOK, account)
}

// AccountHistory returns the newest records of one account
// @Summary Account history
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param limit query int false "Maximum records"
// @Success 200 {array} models.TransactionRecord
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/transactions [get]
func (h *LedgerHandler) AccountHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			services.SendErrorResponse(w, "limit must be an integer", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	if _, err := h.ledger.GetAccount(r.Context(), id); err != nil {
		writeLedgerError(w, "account history", err)
		return
	}
	records, err := h.ledger.GetAccountHistory(r.Context(), id, limit)
	if err != nil {
		writeLedgerError(w, "account history", err)
		return
	}
	services.SendJSON(w, http.StatusOK, records)
}

// Deposit credits an account
// @Summary Deposit
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body AmountRequest true "Amount"
// @Success 201 {object} models.TransactionRecord
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{id}/deposit [post]
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.ledger.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		writeLedgerError(w, "deposit", err)
		return
	}
	services.SendJSON(w, http.StatusCreated, record)
}

// Withdraw debits an account
// @Summary Withdraw
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body AmountRequest true "Amount"
// @Success 201 {object} models.TransactionRecord
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse "Insufficient funds"
// @Router /accounts/{id}/withdraw [post]
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.ledger.Withdraw(r.Context(), id, req.Amount)
	if err != nil {
		writeLedgerError(w, "withdraw", err)
		return
	}
	services.SendJSON(w, http.StatusCreated, record)
}

// Transfer moves funds between accounts
// @Summary Transfer
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body TransferRequest true "Transfer"
// @Success 201 {object} TransferResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse "Insufficient funds"
// @Router /transfers [post]
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, in, err := h.ledger.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		writeLedgerError(w, "transfer", err)
		return
	}
	services.SendJSON(w, http.StatusCreated, TransferResponse{Out: out, In: in})
}

// History returns every record, newest first
// @Summary Transaction history
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.TransactionRecord
// @Router /transactions [get]
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.GetHistory(r.Context())
	if err != nil {
		writeLedgerError(w, "history", err)
		return
	}
	services.SendJSON(w, http.StatusOK, records)
}

func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := services.DecodeJSONBody(w, r, dst); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func accountIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// writeLedgerError maps ledger error kinds onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, op string, err error) {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		conflictErr   *services.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		services.SendErrorResponse(w, validationErr.Error(), http.StatusBadRequest, nil)
	case errors.As(err, &notFoundErr):
		services.SendErrorResponse(w, notFoundErr.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrInsufficientFunds):
		services.SendErrorResponse(w, "insufficient funds", http.StatusUnprocessableEntity, nil)
	case errors.As(err, &conflictErr):
		services.SendErrorResponse(w, "ledger is busy, please retry", http.StatusConflict, nil)
	default:
		log.Printf("[HTTP] %s failed: %v", op, err)
		services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
	}
}
