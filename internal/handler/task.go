package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
)

// TaskService is the task logic used by the handlers.
type TaskService interface {
	ListTasks(ctx context.Context, owner string, input service.ListTasksInput) ([]model.Task, error)
	CreateTask(ctx context.Context, owner string, input service.CreateTaskInput) (*model.Task, error)
	CreateTaskFromText(ctx context.Context, owner, text string) (*model.Task, error)
	GetTask(ctx context.Context, owner, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, owner, id string, input service.UpdateTaskInput) (*model.Task, error)
	SetTaskCompletion(ctx context.Context, owner, id string, completed bool) (*model.Task, error)
	DeleteTask(ctx context.Context, owner, id string) error
}

// TaskHandler handles the owner-scoped task endpoints. The owner is always
// the verified identity; RequireOwner has already matched it to {user_id}.
type TaskHandler struct {
	svc    TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

// List handles GET /api/{user_id}/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tasks, err := h.svc.ListTasks(r.Context(), auth.UserIDFromContext(r.Context()), service.ListTasksInput{
		Status:   query.Get("status"),
		Priority: query.Get("priority"),
		Search:   query.Get("search"),
		SortBy:   query.Get("sort_by"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTaskList(tasks))
}

// Create handles POST /api/{user_id}/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.svc.CreateTask(r.Context(), auth.UserIDFromContext(r.Context()), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// Get handles GET /api/{user_id}/tasks/{task_id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetTask(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "task_id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Update handles PUT /api/{user_id}/tasks/{task_id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.svc.UpdateTask(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "task_id"), service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		Priority:    req.Priority,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Complete handles PATCH /api/{user_id}/tasks/{task_id}/complete?completed=bool.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	completed, err := strconv.ParseBool(r.URL.Query().Get("completed"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  "Validation failed",
			Code:   dto.CodeValidation,
			Fields: map[string]string{"completed": "must be true or false"},
		})
		return
	}

	task, err := h.svc.SetTaskCompletion(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "task_id"), completed)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/{user_id}/tasks/{task_id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "task_id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps service errors to HTTP responses.
func (h *TaskHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, dto.CodeTaskNotFound, "Task not found")
	default:
		writeCommonError(w, r, h.logger, err)
	}
}
