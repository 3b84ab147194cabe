// backend/src/handlers/parse_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/vtbparse/backend/src/config"
	"github.com/username/vtbparse/backend/src/database"
	"github.com/username/vtbparse/backend/src/logger"
	"github.com/username/vtbparse/backend/src/model"
	"github.com/username/vtbparse/backend/src/security/validation"
	"github.com/username/vtbparse/backend/src/services"
	"github.com/username/vtbparse/backend/src/utils"
)

type ParseHandler struct {
	statementService services.StatementService
}

func NewParseHandler(service services.StatementService) *ParseHandler {
	return &ParseHandler{statementService: service}
}

// HandleParseXML accepts a multipart upload under the "file" field, runs
// the statement through the extractors and returns the merged operation
// list with per-extractor diagnostics. The endpoint is stateless: the
// uploaded bytes are parsed and discarded, only an audit row survives.
func (h *ParseHandler) HandleParseXML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("failed to parse upload or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		log.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("file too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		log.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		log.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Info("File content validated", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	data, err := io.ReadAll(io.LimitReader(file, config.Cfg.MaxUploadSizeBytes+1))
	if err != nil {
		log.Error("Failed to read uploaded file", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "failed to read uploaded file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > config.Cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("file too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		utils.SendJSONError(w, "uploaded file is empty", http.StatusBadRequest)
		return
	}
	if err := validation.CheckXMLThreats(data); err != nil {
		log.Warn("XML content scan rejected upload", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	result := h.statementService.ParseBytes(ctx, data)

	// Audit row is best effort; a parse response never fails on it.
	if database.DB != nil {
		if err := model.RecordUpload(database.DB, model.UploadRecord{
			Filename:     fileHeader.Filename,
			FileSize:     fileHeader.Size,
			TotalOps:     result.Meta.TotalOpsCount,
			TradeRows:    result.Meta.TradeOpsStats.TotalRows,
			FinRows:      result.Meta.FinOpsStats.TotalRows,
			TransferRows: result.Meta.TransferOpsStats.TotalRows,
			DurationMs:   time.Since(start).Milliseconds(),
			Error:        result.Meta.Error,
		}); err != nil {
			log.Error("Failed to record upload history", "filename", fileHeader.Filename, "error", err)
		}
	}

	if currentETag, etagErr := utils.GenerateETag(result); etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Error("Error encoding JSON response for parse result", "error", err)
	}
}

// HandleListUploads returns recent rows from the uploads_history audit
// table. The limit query parameter caps the page size at 200.
func (h *ParseHandler) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			utils.SendJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	records, err := model.RecentUploads(database.DB, limit)
	if err != nil {
		log.Error("Failed to list uploads history", "error", err)
		utils.SendJSONError(w, "failed to list uploads history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.UploadRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"uploads": records}); err != nil {
		log.Error("Error encoding JSON response for uploads history", "error", err)
	}
}

// HandleHealth reports process liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
