package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskflow/taskflow/internal/assistant"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
)

var errBoom = errors.New("database exploded")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withIdentity returns r as seen after the auth middleware accepted subject.
func withIdentity(r *http.Request, subject string) *http.Request {
	return r.WithContext(auth.ContextWithIdentity(r.Context(), &model.Identity{
		Subject: subject,
		Email:   subject + "@example.com",
	}))
}

// withURLParams returns r with chi URL parameters set, as the router would.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type fakeAccounts struct {
	signupErr error
	signinErr error
	lastInput service.SignupInput
}

func (f *fakeAccounts) Signup(_ context.Context, input service.SignupInput) (*service.AuthResult, error) {
	f.lastInput = input
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &service.AuthResult{
		AccessToken: "token-for-" + input.Email,
		Account:     &model.Account{ID: "acct-1", Email: input.Email, Name: input.FullName},
	}, nil
}

func (f *fakeAccounts) Signin(_ context.Context, input service.SigninInput) (*service.AuthResult, error) {
	if f.signinErr != nil {
		return nil, f.signinErr
	}
	return &service.AuthResult{
		AccessToken: "token-for-" + input.Email,
		Account:     &model.Account{ID: "acct-1", Email: input.Email, Name: "Ann"},
	}, nil
}

// fakeTasks keeps tasks in memory, scoped by owner, and counts calls so
// tests can assert that rejected requests never reach storage.
type fakeTasks struct {
	mu       sync.Mutex
	tasks    map[string]model.Task
	seq      int
	calls    int
	lastList service.ListTasksInput
	err      error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]model.Task)}
}

func (f *fakeTasks) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTasks) begin() error {
	f.mu.Lock()
	f.calls++
	return f.err
}

func (f *fakeTasks) ListTasks(_ context.Context, owner string, input service.ListTasksInput) ([]model.Task, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f.lastList = input

	var out []model.Task
	for i := 1; i <= f.seq; i++ {
		t, ok := f.tasks[fmt.Sprintf("task-%d", i)]
		if !ok || t.UserID != owner {
			continue
		}
		if input.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(input.Search)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) CreateTask(_ context.Context, owner string, input service.CreateTaskInput) (*model.Task, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, &service.ValidationError{Fields: map[string]string{"title": "is required"}}
	}
	return f.insert(owner, input.Title, input.Description), nil
}

func (f *fakeTasks) CreateTaskFromText(_ context.Context, owner, text string) (*model.Task, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &service.ValidationError{Fields: map[string]string{"task_description": "is required"}}
	}
	return f.insert(owner, text, &text), nil
}

func (f *fakeTasks) insert(owner, title string, desc *string) *model.Task {
	f.seq++
	now := time.Date(2025, 1, 1, 9, 0, f.seq, 0, time.UTC)
	t := model.Task{
		ID:          fmt.Sprintf("task-%d", f.seq),
		UserID:      owner,
		Title:       title,
		Description: desc,
		Priority:    model.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks[t.ID] = t
	return &t
}

func (f *fakeTasks) lookup(owner, id string) (model.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != owner {
		return model.Task{}, service.ErrTaskNotFound
	}
	return t, nil
}

func (f *fakeTasks) GetTask(_ context.Context, owner, id string) (*model.Task, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t, err := f.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, owner, id string, input service.UpdateTaskInput) (*model.Task, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t, err := f.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description.Set {
		t.Description = input.Description.Value
	}
	if input.IsCompleted != nil {
		t.IsCompleted = *input.IsCompleted
	}
	if input.Priority != nil {
		t.Priority = model.Priority(*input.Priority)
	}
	f.tasks[id] = t
	return &t, nil
}

func (f *fakeTasks) SetTaskCompletion(_ context.Context, owner, id string, completed bool) (*model.Task, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t, err := f.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	t.IsCompleted = completed
	f.tasks[id] = t
	return &t, nil
}

func (f *fakeTasks) DeleteTask(_ context.Context, owner, id string) error {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	if _, err := f.lookup(owner, id); err != nil {
		return err
	}
	delete(f.tasks, id)
	return nil
}

type fakeAssistant struct {
	chatFn   func(assistant.ChatRequest) (*assistant.ChatResponse, error)
	lastChat assistant.ChatRequest
	health   assistant.HealthReport
	tools    json.RawMessage
	toolErr  error
	lastTool string
	ingestFn func(userID, text string) (json.RawMessage, error)
	stats    json.RawMessage
	statsErr error
}

func (f *fakeAssistant) Chat(_ context.Context, req assistant.ChatRequest) (*assistant.ChatResponse, error) {
	f.lastChat = req
	if f.chatFn != nil {
		return f.chatFn(req)
	}
	return &assistant.ChatResponse{Response: "hello", Sources: []map[string]any{}}, nil
}

func (f *fakeAssistant) Health(context.Context) assistant.HealthReport {
	return f.health
}

func (f *fakeAssistant) Tools(context.Context) (json.RawMessage, error) {
	if f.toolErr != nil {
		return nil, f.toolErr
	}
	return f.tools, nil
}

func (f *fakeAssistant) CallTool(_ context.Context, userID, tool string, _ map[string]any) assistant.ToolResult {
	f.lastTool = tool
	if tool == "broken" {
		return assistant.ToolResult{Success: false, Error: "tool failed"}
	}
	return assistant.ToolResult{Success: true, Data: json.RawMessage(`{"user_id":"` + userID + `"}`)}
}

func (f *fakeAssistant) Ingest(_ context.Context, userID, text string, _ map[string]any) (json.RawMessage, error) {
	if f.ingestFn != nil {
		return f.ingestFn(userID, text)
	}
	return json.RawMessage(`{"chunks":1}`), nil
}

func (f *fakeAssistant) Stats(context.Context, string) (json.RawMessage, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error { return p.err }
