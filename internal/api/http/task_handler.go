package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/veranemoloko/tgdl-core/internal/domain"
)

// CreateTask handles POST /tasks for a standalone task.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var spec domain.TaskSpec
	if !h.decode(w, r, &spec) {
		return
	}

	task, err := h.service.CreateTask(r.Context(), spec)
	if err != nil {
		h.writeServiceError(w, err, "create_task")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// GetTask handles GET /tasks/{taskID}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "taskID")
	if !ok {
		return
	}

	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get_task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) GetTaskHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "taskID")
	if !ok {
		return
	}

	history, err := h.service.TaskHistory(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "task_history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, "start_task", func(id uuid.UUID) (*domain.Task, error) {
		return h.service.StartTask(r.Context(), id)
	})
}

func (h *Handler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	var req domain.ProgressRequest
	h.taskAction(w, r, "report_progress", func(id uuid.UUID) (*domain.Task, error) {
		return h.service.ReportProgress(r.Context(), id, req.Percent)
	}, &req)
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req domain.TaskResult
	h.taskAction(w, r, "complete_task", func(id uuid.UUID) (*domain.Task, error) {
		return h.service.CompleteTask(r.Context(), id, req)
	}, &req)
}

func (h *Handler) FailTask(w http.ResponseWriter, r *http.Request) {
	var req domain.FailRequest
	h.taskAction(w, r, "fail_task", func(id uuid.UUID) (*domain.Task, error) {
		return h.service.FailTask(r.Context(), id, req.ErrorMessage)
	}, &req)
}

func (h *Handler) RetryTask(w http.ResponseWriter, r *http.Request) {
	var req domain.RetryTaskRequest
	h.taskAction(w, r, "retry_task", func(id uuid.UUID) (*domain.Task, error) {
		opts := domain.RetryOptions{Quality: req.Quality, Format: req.Format}
		return h.service.RetryTask(r.Context(), id, opts, req.Actor)
	}, &req)
}

func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelRequest
	h.taskAction(w, r, "cancel_task", func(id uuid.UUID) (*domain.Task, error) {
		return h.service.CancelTask(r.Context(), id, req.Actor)
	}, &req)
}

// taskAction parses the task id, decodes the optional body and runs fn.
func (h *Handler) taskAction(w http.ResponseWriter, r *http.Request, op string,
	fn func(id uuid.UUID) (*domain.Task, error), body ...any) {
	id, ok := parseID(w, r, "taskID")
	if !ok {
		return
	}
	for _, b := range body {
		if !h.decode(w, r, b) {
			return
		}
	}

	task, err := fn(id)
	if err != nil {
		h.writeServiceError(w, err, op)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
