package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/validation"
)

// BatchServiceI defines the lifecycle operations exposed over HTTP.
type BatchServiceI interface {
	CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (*domain.BatchResponse, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.BatchResponse, error)
	BatchHistory(ctx context.Context, batchID uuid.UUID) ([]domain.AuditEntry, error)
	RetryBatch(ctx context.Context, batchID uuid.UUID, req domain.RetryBatchRequest, actor string) (*domain.BatchResponse, error)
	CancelBatch(ctx context.Context, batchID uuid.UUID, actor string) (*domain.BatchResponse, error)
	RecomputeBatch(ctx context.Context, batchID uuid.UUID) (*domain.BatchResponse, error)
	GetDeliveryPayload(ctx context.Context, batchID uuid.UUID) (*domain.DeliveryPayload, error)

	CreateTask(ctx context.Context, spec domain.TaskSpec) (*domain.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	TaskHistory(ctx context.Context, taskID uuid.UUID) ([]domain.AuditEntry, error)
	StartTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	ReportProgress(ctx context.Context, taskID uuid.UUID, percent int) (*domain.Task, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID, result domain.TaskResult) (*domain.Task, error)
	FailTask(ctx context.Context, taskID uuid.UUID, message string) (*domain.Task, error)
	RetryTask(ctx context.Context, taskID uuid.UUID, opts domain.RetryOptions, actor string) (*domain.Task, error)
	CancelTask(ctx context.Context, taskID uuid.UUID, actor string) (*domain.Task, error)

	Health(ctx context.Context) error
}

// Handler handles HTTP requests for batches and tasks.
type Handler struct {
	service BatchServiceI
	logger  *slog.Logger
}

// NewHandler creates a new Handler with the provided service and logger.
func NewHandler(service BatchServiceI, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Health reports liveness of the service and of the CDN behind it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Warn("cdn health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"cdn":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "cdn": "ok"})
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted for requests whose fields are all optional.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			h.logger.Warn("failed to decode request", "error", err)
			writeError(w, http.StatusBadRequest, "invalid request body")
			return false
		}
	}

	if err := validation.Struct(dst); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service errors onto HTTP statuses. State machine
// denials keep their message so the caller learns why.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, errpkg.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, errpkg.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "batch not found")
	case errors.Is(err, errpkg.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errpkg.IsStateDenial(err), errors.Is(err, errpkg.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errpkg.ErrCDNUnavailable):
		h.logger.Warn("cdn unavailable", "operation", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "cdn unavailable")
	default:
		h.logger.Error("request failed", "operation", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
