package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/username/tradevault/backend/src/id"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/security/validation"
	"github.com/username/tradevault/backend/src/services"
	"github.com/username/tradevault/backend/src/utils"
)

type AccountHandler struct {
	store services.AccountStore
}

func NewAccountHandler(store services.AccountStore) *AccountHandler {
	return &AccountHandler{store: store}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	accounts, err := h.store.FetchAccounts(userID)
	if err != nil {
		logger.L.Error("Failed to fetch accounts", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

type createAccountRequest struct {
	Name    string  `json:"name"`
	Broker  string  `json:"broker"`
	Balance float64 `json:"balance"`
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name := validation.SanitizeForFormulaInjection(validation.StripUnprintable(strings.TrimSpace(req.Name)))
	if name == "" {
		utils.SendJSONError(w, "Account name is required", http.StatusBadRequest)
		return
	}
	broker := validation.SanitizeForFormulaInjection(validation.StripUnprintable(strings.TrimSpace(req.Broker)))

	account := models.Account{
		ID:        id.New(),
		UserID:    userID,
		Name:      name,
		Broker:    broker,
		Balance:   req.Balance,
		Trades:    []models.Trade{},
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateAccount(&account); err != nil {
		logger.L.Error("Failed to create account", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Account created", "userID", userID, "accountID", account.ID, "name", account.Name)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

func (h *AccountHandler) HandleGetAccountTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	accountID := r.PathValue("id")
	accounts, err := h.store.FetchAccounts(userID)
	if err != nil {
		logger.L.Error("Failed to fetch accounts", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	for i := range accounts {
		if accounts[i].ID == accountID {
			trades := accounts[i].Trades
			if trades == nil {
				trades = []models.Trade{}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(trades)
			return
		}
	}
	utils.SendJSONError(w, "Account not found", http.StatusNotFound)
}
