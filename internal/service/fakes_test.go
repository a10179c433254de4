package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

type fakeAccountStore struct {
	mu       sync.Mutex
	byEmail  map[string]*model.Account
	createFn func(*model.Account) error
	seq      int
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{byEmail: map[string]*model.Account{}}
}

func (f *fakeAccountStore) CreateAccount(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		if err := f.createFn(a); err != nil {
			return err
		}
	}
	if _, ok := f.byEmail[a.Email]; ok {
		return repository.ErrEmailExists
	}
	f.seq++
	a.ID = fmt.Sprintf("acct-%d", f.seq)
	cp := *a
	f.byEmail[a.Email] = &cp
	return nil
}

func (f *fakeAccountStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

type fakeTaskStore struct {
	tasks   map[string]*model.Task
	lastFil model.TaskFilter
	err     error
	seq     int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]*model.Task{}}
}

func (f *fakeTaskStore) ListTasks(_ context.Context, owner string, filter model.TaskFilter) ([]model.Task, error) {
	f.lastFil = filter
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Task{}
	for _, t := range f.tasks {
		if t.UserID == owner {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) CreateTask(_ context.Context, t *model.Task) error {
	if f.err != nil {
		return f.err
	}
	f.seq++
	t.ID = fmt.Sprintf("task-%d", f.seq)
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) GetTask(_ context.Context, owner, id string) (*model.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != owner {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) UpdateTask(_ context.Context, owner, id string, patch model.TaskPatch) (*model.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != owner {
		return nil, repository.ErrTaskNotFound
	}
	patch.Apply(t)
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) SetTaskCompletion(ctx context.Context, owner, id string, completed bool) (*model.Task, error) {
	return f.UpdateTask(ctx, owner, id, model.TaskPatch{IsCompleted: &completed})
}

func (f *fakeTaskStore) DeleteTask(_ context.Context, owner, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != owner {
		return false, nil
	}
	delete(f.tasks, id)
	return true, nil
}

var errStorage = errors.New("connection reset")
