package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

// ErrTaskNotFound is returned for missing tasks and tasks of other accounts.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore persists tasks scoped to their owner.
type TaskStore interface {
	ListTasks(ctx context.Context, owner string, filter model.TaskFilter) ([]model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, owner, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, owner, id string, patch model.TaskPatch) (*model.Task, error)
	SetTaskCompletion(ctx context.Context, owner, id string, completed bool) (*model.Task, error)
	DeleteTask(ctx context.Context, owner, id string) (bool, error)
}

// TaskService handles task business logic.
type TaskService struct {
	store   TaskStore
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(store TaskStore, recorder metrics.Recorder, logger *slog.Logger) *TaskService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		store:   store,
		metrics: recorder,
		logger:  logger.With("component", "tasks"),
	}
}

// ListTasksInput carries raw query parameters.
type ListTasksInput struct {
	Status   string
	Priority string
	Search   string
	SortBy   string
}

// CreateTaskInput defines input for creating a task.
type CreateTaskInput struct {
	Title       string  `json:"title" validate:"required,max=100"`
	Description *string `json:"description"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// UpdateTaskInput defines a partial update. Nil fields and an unset
// Description are left unchanged.
type UpdateTaskInput struct {
	Title       *string              `json:"title" validate:"omitnil,min=1,max=100"`
	Description model.OptionalString `json:"description"`
	IsCompleted *bool                `json:"is_completed"`
	Priority    *string              `json:"priority" validate:"omitnil,oneof=low medium high"`
}

// ListTasks returns the owner's tasks matching the filter.
func (s *TaskService) ListTasks(ctx context.Context, owner string, input ListTasksInput) ([]model.Task, error) {
	filter, err := parseFilter(input)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasks(ctx, owner, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func parseFilter(input ListTasksInput) (model.TaskFilter, error) {
	fields := map[string]string{}
	var filter model.TaskFilter

	status, err := model.ParseStatus(input.Status)
	if err != nil {
		fields["status"] = "must be one of completed, pending"
	}
	filter.Status = status

	if input.Priority != "" {
		p, err := model.ParsePriority(input.Priority)
		if err != nil {
			fields["priority"] = "must be one of low, medium, high"
		}
		filter.Priority = &p
	}

	sortBy, err := model.ParseSortBy(input.SortBy)
	if err != nil {
		fields["sort_by"] = "must be one of created_at, priority, title"
	}
	filter.SortBy = sortBy
	filter.Search = input.Search

	if len(fields) > 0 {
		return model.TaskFilter{}, &ValidationError{Fields: fields}
	}
	return filter, nil
}

// CreateTask validates input and stores a new task for owner.
func (s *TaskService) CreateTask(ctx context.Context, owner string, input CreateTaskInput) (*model.Task, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if err := model.ValidateTitle(input.Title); err != nil {
		return nil, fieldError("title", "must not be blank")
	}

	task := &model.Task{
		UserID:      owner,
		Title:       input.Title,
		Description: input.Description,
		Priority:    model.Priority(input.Priority),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.metrics.IncTaskCreated()
	s.logger.InfoContext(ctx, "task created", "task_id", task.ID, "user_id", owner)
	return task, nil
}

// CreateTaskFromText creates a task from free-form text: the first 100
// characters become the title and the full text the description.
func (s *TaskService) CreateTaskFromText(ctx context.Context, owner, text string) (*model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fieldError("task_description", "is required")
	}

	title := []rune(text)
	if len(title) > model.MaxTitleLength {
		title = title[:model.MaxTitleLength]
	}
	desc := text

	return s.CreateTask(ctx, owner, CreateTaskInput{
		Title:       strings.TrimSpace(string(title)),
		Description: &desc,
	})
}

// GetTask retrieves one of the owner's tasks.
func (s *TaskService) GetTask(ctx context.Context, owner, id string) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, mapTaskError(err, "get task")
	}
	return task, nil
}

// UpdateTask applies a partial update to one of the owner's tasks.
func (s *TaskService) UpdateTask(ctx context.Context, owner, id string, input UpdateTaskInput) (*model.Task, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	patch := model.TaskPatch{
		Title:       input.Title,
		Description: input.Description,
		IsCompleted: input.IsCompleted,
	}
	if input.Priority != nil {
		p := model.Priority(*input.Priority)
		patch.Priority = &p
	}
	if err := patch.Validate(); err != nil {
		if errors.Is(err, model.ErrInvalidTitle) {
			return nil, fieldError("title", "must not be blank")
		}
		return nil, fieldError("priority", "must be one of low, medium, high")
	}

	task, err := s.store.UpdateTask(ctx, owner, id, patch)
	if err != nil {
		return nil, mapTaskError(err, "update task")
	}

	s.metrics.IncTaskUpdated()
	if input.IsCompleted != nil && *input.IsCompleted {
		s.metrics.IncTaskCompleted()
	}
	s.logger.InfoContext(ctx, "task updated", "task_id", id, "user_id", owner)
	return task, nil
}

// SetTaskCompletion marks one of the owner's tasks completed or pending.
func (s *TaskService) SetTaskCompletion(ctx context.Context, owner, id string, completed bool) (*model.Task, error) {
	task, err := s.store.SetTaskCompletion(ctx, owner, id, completed)
	if err != nil {
		return nil, mapTaskError(err, "set task completion")
	}

	s.metrics.IncTaskUpdated()
	if completed {
		s.metrics.IncTaskCompleted()
	}
	s.logger.InfoContext(ctx, "task completion changed", "task_id", id, "user_id", owner, "completed", completed)
	return task, nil
}

// DeleteTask removes one of the owner's tasks.
func (s *TaskService) DeleteTask(ctx context.Context, owner, id string) error {
	deleted, err := s.store.DeleteTask(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !deleted {
		return ErrTaskNotFound
	}

	s.metrics.IncTaskDeleted()
	s.logger.InfoContext(ctx, "task deleted", "task_id", id, "user_id", owner)
	return nil
}

func mapTaskError(err error, op string) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
