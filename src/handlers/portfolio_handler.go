// backend/src/handlers/portfolio_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/dmtrade/backend/src/services"
	"github.com/username/dmtrade/backend/src/utils"
)

// PortfolioHandler serves valuation, revenue and market data.
type PortfolioHandler struct {
	portfolioService services.PortfolioService
	priceService     services.PriceService
}

func NewPortfolioHandler(portfolioService services.PortfolioService, priceService services.PriceService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		priceService:     priceService,
	}
}

func (h *PortfolioHandler) HandleGetValue(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	value, err := h.portfolioService.GetValue(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, "Get portfolio value", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, value)
}

func (h *PortfolioHandler) HandleGetRevenue(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	revenue, err := h.portfolioService.GetRevenue(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, "Get portfolio revenue", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, revenue)
}

// HandleGetValueHistory serves ?interval=N (days); without it the configured
// interval is used.
func (h *PortfolioHandler) HandleGetValueHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	interval := 0
	if raw := r.URL.Query().Get("interval"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.SendJSONError(w, "interval must be a positive number of days", http.StatusBadRequest)
			return
		}
		interval = n
	}
	history, err := h.portfolioService.GetValueHistory(r.Context(), accountID, chi.URLParam(r, "id"), interval)
	if err != nil {
		sendServiceError(w, r, "Get value history", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, history)
}

// HandleGetHoldings reports how many shares of {symbol} each of the
// account's portfolios holds.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	holdings, err := h.portfolioService.HoldingsAcrossPortfolios(r.Context(), accountID, chi.URLParam(r, "symbol"))
	if err != nil {
		sendServiceError(w, r, "Get holdings", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, holdings)
}

func (h *PortfolioHandler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.priceService.GetCurrentPrice(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		sendServiceError(w, r, "Get quote", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, quote)
}
