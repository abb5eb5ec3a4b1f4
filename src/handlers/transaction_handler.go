// backend/src/handlers/transaction_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/models"
	"github.com/username/dmtrade/backend/src/services"
	"github.com/username/dmtrade/backend/src/utils"
)

// TransactionHandler records bids and asks and reports trade state.
type TransactionHandler struct {
	portfolioService services.PortfolioService
}

func NewTransactionHandler(portfolioService services.PortfolioService) *TransactionHandler {
	return &TransactionHandler{portfolioService: portfolioService}
}

func (h *TransactionHandler) HandleRecordBid(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.Buy)
}

func (h *TransactionHandler) HandleRecordAsk(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.Sell)
}

func (h *TransactionHandler) record(w http.ResponseWriter, r *http.Request, d ledger.Direction) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	var req models.TradeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	trade, err := h.portfolioService.RecordTrade(r.Context(), accountID, chi.URLParam(r, "id"), d, req)
	if err != nil {
		sendServiceError(w, r, "Record "+d.String(), err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, trade)
}

// HandleGetTrades lists every trade ordered by timestamp.
func (h *TransactionHandler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	p, ok := h.portfolio(w, r)
	if !ok {
		return
	}
	trades := p.OrderedTrades()
	if trades == nil {
		trades = []ledger.Trade{}
	}
	utils.SendJSON(w, http.StatusOK, trades)
}

// HandleGetShares reports share counts for ?symbols=A,B, or for every
// symbol ever traded when the parameter is absent.
func (h *TransactionHandler) HandleGetShares(w http.ResponseWriter, r *http.Request) {
	p, ok := h.portfolio(w, r)
	if !ok {
		return
	}
	var symbols []string
	for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	utils.SendJSON(w, http.StatusOK, p.SharesOwned(symbols...))
}

func (h *TransactionHandler) HandleGetSymbols(w http.ResponseWriter, r *http.Request) {
	p, ok := h.portfolio(w, r)
	if !ok {
		return
	}
	symbols := p.SymbolsOwned()
	if symbols == nil {
		symbols = []string{}
	}
	utils.SendJSON(w, http.StatusOK, symbols)
}

func (h *TransactionHandler) portfolio(w http.ResponseWriter, r *http.Request) (*ledger.Portfolio, bool) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return nil, false
	}
	p, err := h.portfolioService.GetPortfolio(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, "Get portfolio", err)
		return nil, false
	}
	return p, true
}
