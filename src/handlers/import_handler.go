package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/bankfolio/backend/src/config"
	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/security/validation"
	"github.com/username/bankfolio/backend/src/services"
	"github.com/username/bankfolio/backend/src/utils"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(importService services.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

// HandleImport accepts a multipart statement upload. Form fields: account
// (slug), source (parser name), date_format, best_effort ("true" imports
// unparseable rows as pending_triage instead of rejecting them).
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Upload too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "A statement file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.ValidateClientContentType(header.Header.Get("Content-Type")); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	formatName := r.FormValue("date_format")
	if formatName == "" {
		formatName = config.Cfg.DefaultDateFormat
	}
	dateFormat, err := fingerprint.ParseDateFormat(formatName)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	source := r.FormValue("source")
	if source == "" {
		source = "generic"
	}

	opts := services.ImportOptions{
		UserID:      userID,
		AccountSlug: r.FormValue("account"),
		Source:      source,
		DateFormat:  dateFormat,
		BestEffort:  r.FormValue("best_effort") == "true",
	}

	result, err := h.importService.ProcessImport(file, opts)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrParsingFailed):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			logger.L.Error("Import failed", "userID", userID, "error", err)
			utils.SendJSONError(w, "Import failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
