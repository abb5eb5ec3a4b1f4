package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/dmtrade/backend/src/models"
	"github.com/username/dmtrade/backend/src/services"
	"github.com/username/dmtrade/backend/src/utils"
)

type PortfolioManagerHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioManagerHandler(portfolioService services.PortfolioService) *PortfolioManagerHandler {
	return &PortfolioManagerHandler{portfolioService: portfolioService}
}

type PortfolioNameRequest struct {
	Name string `json:"name"`
}

func (h *PortfolioManagerHandler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	portfolios, err := h.portfolioService.ListPortfolios(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, r, "List portfolios", err)
		return
	}
	summaries := make([]models.PortfolioSummary, 0, len(portfolios))
	for _, p := range portfolios {
		summaries = append(summaries, models.Summarize(p))
	}
	utils.SendJSON(w, http.StatusOK, summaries)
}

func (h *PortfolioManagerHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	var req PortfolioNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid body", http.StatusBadRequest)
		return
	}
	p, err := h.portfolioService.CreatePortfolio(r.Context(), accountID, req.Name)
	if err != nil {
		sendServiceError(w, r, "Create portfolio", err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, models.Summarize(p))
}

func (h *PortfolioManagerHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	p, err := h.portfolioService.GetPortfolio(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, "Get portfolio", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, models.Detail(p))
}

func (h *PortfolioManagerHandler) RenamePortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	var req PortfolioNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid body", http.StatusBadRequest)
		return
	}
	p, err := h.portfolioService.RenamePortfolio(r.Context(), accountID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		sendServiceError(w, r, "Rename portfolio", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, models.Summarize(p))
}

func (h *PortfolioManagerHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	if err := h.portfolioService.DeletePortfolio(r.Context(), accountID, chi.URLParam(r, "id")); err != nil {
		sendServiceError(w, r, "Delete portfolio", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
