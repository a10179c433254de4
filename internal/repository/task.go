package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskflow/taskflow/internal/model"
)

// ErrTaskNotFound covers missing tasks, tasks owned by another account and
// malformed task IDs alike.
var ErrTaskNotFound = errors.New("task not found")

// priorityRank follows the declaration order of the priority enum: low first.
const priorityRank = "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListTasks returns the owner's tasks matching filter. Ties in the chosen
// ordering fall back to insertion order. Never returns nil.
func (r *Repository) ListTasks(ctx context.Context, owner string, filter model.TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ?", owner)

	switch filter.Status {
	case model.StatusCompleted:
		q = q.Where("is_completed = ?", true)
	case model.StatusPending:
		q = q.Where("is_completed = ?", false)
	}

	if filter.Priority != nil {
		q = q.Where("priority = ?", string(*filter.Priority))
	}

	// SQLite's LOWER only folds ASCII, so non-ASCII searches are matched
	// after the query.
	foldAfter := r.pool == nil && !isASCII(filter.Search)
	if filter.Search != "" && !foldAfter {
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\'`, likePattern(filter.Search))
	}

	switch filter.SortBy {
	case model.SortPriority:
		q = q.Order(priorityRank)
	case model.SortTitle:
		q = q.Order("title ASC")
	default:
		q = q.Order("created_at DESC")
	}
	q = q.Order("id ASC")

	tasks := make([]model.Task, 0)
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if foldAfter {
		tasks = filterTitles(tasks, filter.Search)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// CreateTask inserts task for its owner, assigning the ID and timestamps.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task) error {
	if err := model.ValidateTitle(task.Title); err != nil {
		return err
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if !task.Priority.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidPriority, task.Priority)
	}

	task.ID = ulid.Make().String()
	now := r.timestamp()
	task.CreatedAt = now
	task.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(task).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves one of the owner's tasks.
func (r *Repository) GetTask(ctx context.Context, owner, id string) (*model.Task, error) {
	if !validTaskID(id) {
		return nil, ErrTaskNotFound
	}

	var task model.Task
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// UpdateTask applies patch to one of the owner's tasks under a row lock
// and returns the stored result.
func (r *Repository) UpdateTask(ctx context.Context, owner, id string, patch model.TaskPatch) (*model.Task, error) {
	if !validTaskID(id) {
		return nil, ErrTaskNotFound
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, owner).
			First(&task).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		patch.Apply(&task)
		task.UpdatedAt = model.NextUpdatedAt(r.timestamp(), task.UpdatedAt)

		return tx.Model(&model.Task{}).
			Where("id = ? AND user_id = ?", id, owner).
			Updates(map[string]any{
				"title":        task.Title,
				"description":  task.Description,
				"is_completed": task.IsCompleted,
				"priority":     string(task.Priority),
				"updated_at":   task.UpdatedAt,
			}).Error
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &task, nil
}

// SetTaskCompletion flips only the completion flag.
func (r *Repository) SetTaskCompletion(ctx context.Context, owner, id string, completed bool) (*model.Task, error) {
	return r.UpdateTask(ctx, owner, id, model.TaskPatch{IsCompleted: &completed})
}

// DeleteTask removes one of the owner's tasks. Reports whether a row was removed.
func (r *Repository) DeleteTask(ctx context.Context, owner, id string) (bool, error) {
	if !validTaskID(id) {
		return false, nil
	}

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, owner).Delete(&model.Task{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	return affected > 0, nil
}

func validTaskID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

func likePattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// filterTitles keeps the tasks whose title contains search, ignoring case.
// Order is preserved.
func filterTitles(tasks []model.Task, search string) []model.Task {
	needle := strings.ToLower(search)
	kept := tasks[:0]
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			kept = append(kept, t)
		}
	}
	return kept
}
