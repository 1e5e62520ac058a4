package http

import (
	"net/http"

	"github.com/veranemoloko/tgdl-core/internal/domain"
)

// CreateBatch handles POST /batches.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.CreateBatch(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "create_batch")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetBatch handles GET /batches/{batchID}.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "batchID")
	if !ok {
		return
	}

	resp, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get_batch")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetBatchHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "batchID")
	if !ok {
		return
	}

	history, err := h.service.BatchHistory(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "batch_history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// RetryBatch handles POST /batches/{batchID}/retry.
func (h *Handler) RetryBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "batchID")
	if !ok {
		return
	}
	var req domain.RetryBatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.RetryBatch(r.Context(), id, req, req.Actor)
	if err != nil {
		h.writeServiceError(w, err, "retry_batch")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelBatch handles POST /batches/{batchID}/cancel.
func (h *Handler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "batchID")
	if !ok {
		return
	}
	var req domain.CancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.CancelBatch(r.Context(), id, req.Actor)
	if err != nil {
		h.writeServiceError(w, err, "cancel_batch")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecomputeBatch handles POST /batches/{batchID}/recompute.
func (h *Handler) RecomputeBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "batchID")
	if !ok {
		return
	}

	resp, err := h.service.RecomputeBatch(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "recompute_batch")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDelivery handles GET /batches/{batchID}/delivery.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "batchID")
	if !ok {
		return
	}

	payload, err := h.service.GetDeliveryPayload(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get_delivery")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
