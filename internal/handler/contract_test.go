package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/docs"
	"github.com/taskflow/taskflow/internal/assistant"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/repository"
	"github.com/taskflow/taskflow/internal/service"
)

// loadSpec loads and validates the embedded OpenAPI document.
func loadSpec(t *testing.T) routers.Router {
	t.Helper()

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(docs.OpenAPI)
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec: %v", err)
	}

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from spec: %v", err)
	}
	return router
}

// collaboratorStub answers the retrieval engine and tool service endpoints.
func collaboratorStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/ingest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"chunks":1}`))
	})
	mux.HandleFunc("/stats/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":1}`))
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tools":[{"name":"add_task"},{"name":"list_tasks"}]}`))
	})
	mux.HandleFunc("/call", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"tasks":[]}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type contractEnv struct {
	router *chi.Mux
	spec   routers.Router
	tokens *auth.TokenService
}

// newContractEnv wires the real services over an in-memory sqlite database.
func newContractEnv(t *testing.T) *contractEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name)

	repo, err := repository.New(context.Background(), dsn,
		repository.WithLogger(discardLogger()),
		repository.WithAutoMigrate(true),
	)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(repo.Close)
	if sqlDB, err := repo.DB().DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	tokens, err := auth.NewTokenService([]byte("contract-test-secret-contract-test-secret"), time.Hour)
	require.NoError(t, err)

	recorder := metrics.NewInMemory()
	stub := collaboratorStub(t)
	httpClient := assistant.NewHTTPClient(5 * time.Second)

	router := NewRouter(RouterConfig{
		Logger:         discardLogger(),
		Environment:    "development",
		DebugEndpoints: true,
		CORSOrigins:    []string{"*"},
		Tokens:         tokens,
		Recorder:       recorder,
		Snapshotter:    recorder,
		Accounts:       service.NewAccountService(repo, tokens, recorder, discardLogger()),
		Tasks:          service.NewTaskService(repo, recorder, discardLogger()),
		Assistant: assistant.NewGateway(assistant.GatewayConfig{
			RAG:      assistant.NewRAGClient(stub.URL, httpClient),
			Tools:    assistant.NewToolsClient(stub.URL, httpClient),
			Recorder: recorder,
			Logger:   discardLogger(),
		}),
		DB:      repo,
		OpenAPI: docs.OpenAPI,
	})

	return &contractEnv{router: router, spec: loadSpec(t), tokens: tokens}
}

// call serves one request and validates both the request (when valid) and
// the response against the OpenAPI document.
func (e *contractEnv) call(t *testing.T, method, target, token string, body any, validRequest bool) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	newRequest := func() *http.Request {
		req := httptest.NewRequest(method, target, bytes.NewReader(payload))
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, newRequest())

	specReq := newRequest()
	route, pathParams, err := e.spec.FindRoute(specReq)
	if err != nil {
		t.Fatalf("%s %s is not described by the OpenAPI spec: %v", method, target, err)
	}

	requestInput := &openapi3filter.RequestValidationInput{
		Request:    specReq,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if validRequest {
		if err := openapi3filter.ValidateRequest(context.Background(), requestInput); err != nil {
			t.Errorf("%s %s: request does not match spec: %v", method, target, err)
		}
	}

	responseInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: requestInput,
		Status:                 rec.Code,
		Header:                 rec.Header(),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}
	responseInput.SetBodyBytes(rec.Body.Bytes())
	if err := openapi3filter.ValidateResponse(context.Background(), responseInput); err != nil {
		t.Errorf("%s %s -> %d: response does not match spec: %v\nbody: %s", method, target, rec.Code, err, rec.Body.String())
	}

	return rec
}

func TestOpenAPISpecValid(t *testing.T) {
	loadSpec(t)
}

func TestContract_AuthAndTasks(t *testing.T) {
	env := newContractEnv(t)

	rec := env.call(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"full_name": "Ann Example",
		"email":     "ann@example.com",
		"password":  "correct-horse",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var signup struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signup))
	token, userID := signup.AccessToken, signup.User.ID
	tasksURL := "/api/" + userID + "/tasks"

	// Duplicate signup and bad signin share the error schema.
	rec = env.call(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"full_name": "Ann Again",
		"email":     "ann@example.com",
		"password":  "correct-horse",
	}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "ann@example.com",
		"password": "wrong-password",
	}, true)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "ann@example.com",
		"password": "correct-horse",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodPost, tasksURL, token, map[string]any{
		"title":       "Buy milk",
		"description": "2 litres",
		"priority":    "high",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	taskURL := tasksURL + "/" + task.ID

	rec = env.call(t, http.MethodPost, tasksURL, token, map[string]any{"title": "No description"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.call(t, http.MethodPost, tasksURL, token, map[string]any{"title": ""}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.call(t, http.MethodGet, tasksURL+"?status=pending&sort_by=priority", token, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodGet, taskURL, token, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodPut, taskURL, token, map[string]any{"title": "Buy oat milk"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodPatch, taskURL+"/complete?completed=true", token, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodGet, tasksURL+"/01ARZ3NDEKTSV4RRFFQ69G5FAV", token, nil, true)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/someone-else/tasks", token, nil, true)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.call(t, http.MethodGet, tasksURL, "", nil, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.call(t, http.MethodDelete, taskURL, token, nil, true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.call(t, http.MethodDelete, taskURL, token, nil, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContract_Chatbot(t *testing.T) {
	env := newContractEnv(t)

	token, err := env.tokens.Issue("chat-user", "chat@example.com")
	require.NoError(t, err)

	rec := env.call(t, http.MethodGet, "/api/chatbot/health", "", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	// No generation backend is configured.
	rec = env.call(t, http.MethodPost, "/api/chatbot/chat", token, map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "What is on my list?"}},
	}, true)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/chatbot/create-task-via-chat?task_description=Call+mom+tomorrow", token, nil, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/chatbot/query-tasks?query=mom", token, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/chatbot/tools", token, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/chatbot/tools/call", token, map[string]any{
		"tool":   "list_tasks",
		"params": map[string]any{"status": "pending"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/chatbot/knowledge", token, map[string]any{"text": "Groceries are on Fridays"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/chatbot/knowledge/stats", token, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestContract_ServiceEndpoints(t *testing.T) {
	env := newContractEnv(t)

	for _, path := range []string{"/", "/health", "/healthz", "/readyz"} {
		rec := env.call(t, http.MethodGet, path, "", nil, true)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}
