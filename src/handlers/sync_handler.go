package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/services"
	"github.com/username/bankfolio/backend/src/utils"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(syncService services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// HandleSync runs the maintenance pass: tag rules, fingerprint recompute,
// duplicate-status refresh.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	result, err := h.syncService.Sync(userID)
	if err != nil {
		logger.L.Error("Sync failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
