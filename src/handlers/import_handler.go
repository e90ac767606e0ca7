package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/tradevault/backend/src/config"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/security/validation"
	"github.com/username/tradevault/backend/src/services"
	"github.com/username/tradevault/backend/src/utils"
)

const previewRowCount = 5

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: service,
	}
}

type importSessionResponse struct {
	Session *services.ImportSession `json:"session"`
	Preview []models.RawRow         `json:"preview,omitempty"`
	Fields  []models.TargetField    `json:"fields,omitempty"`
}

// HandleStartImport accepts either a multipart CSV upload under the "file"
// field or a JSON body with pasted text, and opens an import session.
func (h *ImportHandler) HandleStartImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	contentType := r.Header.Get("Content-Type")
	var sess *services.ImportSession
	var err error

	if strings.HasPrefix(contentType, "multipart/form-data") {
		sess, err = h.startFromFile(w, r, userID)
		if sess == nil && err == nil {
			return // error already written
		}
	} else {
		// Cap the body before decoding so an oversized paste is cut off at
		// the limit instead of being buffered in full.
		r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
		var body struct {
			Text string `json:"text"`
		}
		if decErr := json.NewDecoder(r.Body).Decode(&body); decErr != nil {
			var maxErr *http.MaxBytesError
			if errors.As(decErr, &maxErr) {
				utils.SendJSONError(w, fmt.Sprintf("Pasted content too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
				return
			}
			utils.SendJSONError(w, "Provide CSV text in the 'text' field or upload a file", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			utils.SendJSONError(w, "Provide CSV text in the 'text' field or upload a file", http.StatusBadRequest)
			return
		}
		sess, err = h.importService.StartSession(strings.NewReader(body.Text), userID)
	}

	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Import upload failed to parse", "userID", userID, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing CSV content: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error starting import", "userID", userID, "error", err)
			utils.SendJSONError(w, "An internal error occurred while reading the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	preview := sess.Rows[:utils.MinInt(previewRowCount, len(sess.Rows))]

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(importSessionResponse{
		Session: sess,
		Preview: preview,
		Fields:  models.AllTargetFields,
	})
}

// startFromFile validates and reads the multipart upload. On validation
// failure the response has already been written and (nil, nil) is returned.
func (h *ImportHandler) startFromFile(w http.ResponseWriter, r *http.Request, userID int64) (*services.ImportSession, error) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "userID", userID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return nil, nil
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return nil, nil
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file too large", "userID", userID, "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return nil, nil
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType, fileHeader.Filename); err != nil {
		logger.L.Warn("Invalid client-declared file type", "userID", userID, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, nil
	}

	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		logger.L.Warn("Server-side file content validation failed", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, nil
	}

	logger.L.Info("Processing import upload", "userID", userID, "filename", fileHeader.Filename)
	return h.importService.StartSession(file, userID)
}

func (h *ImportHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	sess, err := h.importService.GetSession(userID, r.PathValue("id"))
	if err != nil {
		h.writeImportError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importSessionResponse{Session: sess})
}

type mappingRequest struct {
	Mapping  models.ColumnMapping   `json:"mapping"`
	Defaults *models.ImportDefaults `json:"defaults,omitempty"`
}

func (h *ImportHandler) HandleSetMapping(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.importService.SetMapping(userID, r.PathValue("id"), req.Mapping, req.Defaults)
	if err != nil {
		h.writeImportError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importSessionResponse{Session: sess})
}

func (h *ImportHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	summary, err := h.importService.Process(userID, r.PathValue("id"))
	if err != nil {
		h.writeImportError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

type commitRequest struct {
	AccountIDs []string `json:"account_ids"`
}

func (h *ImportHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.importService.Commit(userID, r.PathValue("id"), req.AccountIDs)
	if err != nil {
		h.writeImportError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *ImportHandler) HandleBack(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	sess, err := h.importService.Back(userID, r.PathValue("id"))
	if err != nil {
		h.writeImportError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importSessionResponse{Session: sess})
}

// writeImportError maps pipeline sentinel errors onto HTTP status codes.
func (h *ImportHandler) writeImportError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		utils.SendJSONError(w, "Import session not found or expired. Start a new import.", http.StatusNotFound)
	case errors.Is(err, services.ErrAccountNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidStep), errors.Is(err, services.ErrNoAccounts):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrMappingIncomplete),
		errors.Is(err, services.ErrParsingFailed),
		errors.Is(err, services.ErrNoValidTrades),
		errors.Is(err, services.ErrNoAccountsSelected):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrStoreUnavailable):
		logger.L.Error("Account store unavailable during import", "userID", userID, "error", err)
		utils.SendJSONError(w, "Your accounts could not be loaded. Please try again later.", http.StatusServiceUnavailable)
	default:
		logger.L.Error("Internal error in import pipeline", "userID", userID, "error", err)
		utils.SendJSONError(w, "An internal error occurred. Please try again later.", http.StatusInternalServerError)
	}
}
