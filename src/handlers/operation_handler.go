package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/services"
	"github.com/username/bankfolio/backend/src/utils"
)

type OperationHandler struct {
	operationService services.OperationService
	syncService      services.SyncService
}

func NewOperationHandler(operationService services.OperationService, syncService services.SyncService) *OperationHandler {
	return &OperationHandler{operationService: operationService, syncService: syncService}
}

func (h *OperationHandler) HandleListOperations(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ops, err := h.operationService.ListOperations(userID)
	if err != nil {
		logger.L.Error("Listing operations failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to list operations", http.StatusInternalServerError)
		return
	}

	etag, err := utils.GenerateETag(ops)
	if err == nil {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ops)
}

func (h *OperationHandler) HandleUpdateOperation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	operationID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid operation id", http.StatusBadRequest)
		return
	}

	var upd services.OperationUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	op, err := h.operationService.UpdateOperation(userID, operationID, upd)
	if err != nil {
		var malformedAmount *fingerprint.MalformedAmountError
		var formatMismatch *fingerprint.DateFormatMismatchError
		var invalidDate *fingerprint.InvalidCalendarDateError
		switch {
		case errors.Is(err, services.ErrOperationNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrDuplicateEdit):
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		case errors.As(err, &malformedAmount), errors.As(err, &formatMismatch), errors.As(err, &invalidDate):
			// Normalization messages are written for end users; pass
			// them through verbatim.
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.L.Error("Operation update failed", "operationID", operationID, "error", err)
			utils.SendJSONError(w, "Failed to update operation", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(op)
}

func (h *OperationHandler) HandleDeleteOperation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	operationID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid operation id", http.StatusBadRequest)
		return
	}

	if err := h.operationService.DeleteOperation(userID, operationID); err != nil {
		if errors.Is(err, services.ErrOperationNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, "Failed to delete operation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResolveTriage moves a pending_triage operation back to ok.
func (h *OperationHandler) HandleResolveTriage(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	operationID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid operation id", http.StatusBadRequest)
		return
	}

	if err := h.syncService.ResolveTriage(userID, operationID); err != nil {
		if errors.Is(err, services.ErrOperationNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, "Failed to resolve operation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
