package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/models"
	"github.com/username/bankfolio/backend/src/utils"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

type AccountHandler struct{}

func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(`
		SELECT id, slug, name, currency FROM bank_accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		utils.SendJSONError(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	accounts := []models.BankAccount{}
	for rows.Next() {
		var a models.BankAccount
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.Currency); err != nil {
			utils.SendJSONError(w, "Failed to read accounts", http.StatusInternalServerError)
			return
		}
		accounts = append(accounts, a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var account models.BankAccount
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !slugPattern.MatchString(account.Slug) {
		utils.SendJSONError(w, "Account slug must be lowercase letters, digits and dashes", http.StatusBadRequest)
		return
	}
	if account.Name == "" {
		utils.SendJSONError(w, "Account name is required", http.StatusBadRequest)
		return
	}
	if account.Currency == "" {
		account.Currency = "EUR"
	}

	res, err := database.DB.Exec(`
		INSERT INTO bank_accounts (user_id, slug, name, currency) VALUES (?, ?, ?, ?)`,
		userID, account.Slug, account.Name, account.Currency)
	if err != nil {
		logger.L.Warn("Account creation failed", "userID", userID, "slug", account.Slug, "error", err)
		utils.SendJSONError(w, "An account with this slug already exists", http.StatusConflict)
		return
	}
	account.ID, _ = res.LastInsertId()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}
