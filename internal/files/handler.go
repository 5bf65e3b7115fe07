package files

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	httpxmiddleware "upload-server-go/internal/httpx/middleware"
	"upload-server-go/internal/httpx/response"
	"upload-server-go/internal/logger"
	"upload-server-go/internal/workspace"
)

var filesLog = logger.WithComponent("FILES")

// Handler serves the upload HTTP endpoints.
type Handler struct {
	service *Service
	env     string
}

// NewHandler creates a new upload handler.
func NewHandler(service *Service, env string) *Handler {
	return &Handler{service: service, env: env}
}

// Upload handles POST /upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var body RequestBody
	if !httpxmiddleware.DecodeJSON(w, r, &body) {
		return
	}
	req, err := body.Request()
	if err != nil {
		filesLog.Warn("Upload rejected | err=%v", err)
		_, message := ErrorStatus(err)
		response.BadRequest(w, message)
		return
	}

	filesLog.Debug("Uploading | path=%q size=%d", req.Path, len(req.Contents))

	result, err := h.service.Upload(req)
	if err != nil {
		status, message := ErrorStatus(err)
		if IsClientError(err) {
			filesLog.Warn("Upload rejected | path=%q err=%v", req.Path, err)
			response.Error(w, status, message)
			return
		}
		filesLog.Error("Upload failed | path=%q err=%v", req.Path, err)
		response.ErrorWithCause(w, status, message, err)
		return
	}

	filesLog.Info("Uploaded %s (%d bytes)", result.Path, result.Size)
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"path":    result.Path,
		"size":    result.Size,
	})
}

// IsClientError reports whether err was caused by the request rather than
// the server environment.
func IsClientError(err error) bool {
	return workspace.IsPathError(err) || IsMissingField(err)
}

// ErrorStatus maps an upload error to an HTTP status and client message.
func ErrorStatus(err error) (int, string) {
	var fieldErr *MissingFieldError
	switch {
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, "Missing field: " + fieldErr.Field
	case workspace.IsMalformed(err):
		return http.StatusBadRequest, "Invalid path"
	case workspace.IsEscape(err):
		return http.StatusBadRequest, "Path outside storage root"
	case errors.Is(err, ErrTargetIsDirectory):
		return http.StatusInternalServerError, "Target is a directory"
	case IsMissingParent(err):
		return http.StatusInternalServerError, "Parent directory does not exist"
	case IsPermissionDenied(err):
		return http.StatusInternalServerError, "Permission denied"
	case IsNoSpace(err):
		return http.StatusInsufficientStorage, "Insufficient storage"
	default:
		return http.StatusInternalServerError, "Failed to write file"
	}
}

// ServerStats holds server statistics for health checks.
type ServerStats struct {
	Status      string           `json:"status"`
	Uptime      string           `json:"uptime"`
	Goroutines  int              `json:"goroutines"`
	MemoryMB    uint64           `json:"memoryMB"`
	Environment string           `json:"environment"`
	StorageRoot string           `json:"storageRoot"`
	Counters    map[string]int64 `json:"counters"`
}

var serverStartTime = time.Now()

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := ServerStats{
		Status:      "ok",
		Uptime:      time.Since(serverStartTime).Round(time.Second).String(),
		Goroutines:  runtime.NumGoroutine(),
		MemoryMB:    memStats.Alloc / 1024 / 1024,
		Environment: h.env,
		StorageRoot: h.service.Resolver().Root().Path(),
		Counters:    h.service.Metrics().Snapshot(),
	}

	response.JSON(w, http.StatusOK, stats)
}
