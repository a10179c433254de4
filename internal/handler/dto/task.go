package dto

import "github.com/taskflow/taskflow/internal/model"

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
}

// UpdateTaskRequest represents a partial update. Omitted fields are unchanged;
// "description": null clears the description.
type UpdateTaskRequest struct {
	Title       *string              `json:"title,omitempty"`
	Description model.OptionalString `json:"description"`
	IsCompleted *bool                `json:"is_completed,omitempty"`
	Priority    *string              `json:"priority,omitempty"`
}

// TaskResponse represents a task in API responses.
type TaskResponse = model.Task

// ToTaskList returns tasks as a JSON array, never null.
func ToTaskList(tasks []model.Task) []TaskResponse {
	if tasks == nil {
		return []TaskResponse{}
	}
	return tasks
}
