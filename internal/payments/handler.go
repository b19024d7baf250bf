package payments

import (
	"encoding/json"
	"net/http"

	"github.com/askline-dev/askline/shared/logger"
)

// Handler serves POST /createPaymentIntent. The route keeps its own
// wildcard CORS because the checkout widget posts from the browser.
type Handler struct {
	creator         IntentCreator
	minAmount       int64
	defaultCurrency string
}

func NewHandler(creator IntentCreator, minAmount int64, defaultCurrency string) *Handler {
	if defaultCurrency == "" {
		defaultCurrency = "AUD"
	}
	return &Handler{creator: creator, minAmount: minAmount, defaultCurrency: defaultCurrency}
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if req.Amount < h.minAmount {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}

	clientSecret, err := h.creator.CreateIntent(r.Context(), req.Amount, currency)
	if err != nil {
		logger.Log.Error("failed to create payment intent", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"clientSecret": clientSecret})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
