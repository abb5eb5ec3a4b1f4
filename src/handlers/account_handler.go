// backend/src/handlers/account_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/dmtrade/backend/src/services"
	"github.com/username/dmtrade/backend/src/utils"
)

type AccountHandler struct {
	accountService services.AccountService
}

func NewAccountHandler(accountService services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

type CreateAccountRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	account, err := h.accountService.CreateAccount(r.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		sendServiceError(w, r, "Create account", err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	account, err := h.accountService.GetAccount(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, r, "Get account", err)
		return
	}
	utils.SendJSON(w, http.StatusOK, account)
}

// HandleDeleteAccount removes the account together with its portfolios.
func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Account required", http.StatusUnauthorized)
		return
	}
	if err := h.accountService.DeleteAccount(r.Context(), accountID); err != nil {
		sendServiceError(w, r, "Delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
