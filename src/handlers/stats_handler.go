package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/processors"
	"github.com/username/tradevault/backend/src/services"
	"github.com/username/tradevault/backend/src/utils"
)

type StatsHandler struct {
	store services.AccountStore
}

func NewStatsHandler(store services.AccountStore) *StatsHandler {
	return &StatsHandler{store: store}
}

// HandleGetStats aggregates trade statistics across all of the user's
// accounts, or a single account when the "account" query parameter is set.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	accounts, err := h.store.FetchAccounts(userID)
	if err != nil {
		logger.L.Error("Failed to fetch accounts for stats", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	accountFilter := r.URL.Query().Get("account")
	var trades []models.Trade
	found := accountFilter == ""
	for i := range accounts {
		if accountFilter != "" && accounts[i].ID != accountFilter {
			continue
		}
		found = true
		trades = append(trades, accounts[i].Trades...)
	}
	if !found {
		utils.SendJSONError(w, "Account not found", http.StatusNotFound)
		return
	}

	stats := processors.ComputeStats(trades)

	etag, err := utils.GenerateETag(stats)
	if err != nil {
		logger.L.Error("Failed to generate ETag for stats", "userID", userID, "error", err)
	} else {
		w.Header().Set("ETag", `"`+etag+`"`)
		if match := r.Header.Get("If-None-Match"); match == `"`+etag+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
