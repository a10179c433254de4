package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAGClient_Query(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["project_id"])
		assert.Equal(t, "what is a sprint", body["query"])
		assert.EqualValues(t, 5, body["top_k"])
		assert.EqualValues(t, 0.6, body["threshold"])
		assert.EqualValues(t, 0.7, body["temperature"])
		assert.EqualValues(t, 500, body["max_tokens"])

		_, _ = w.Write([]byte(`{"success":true,"response":"A sprint is a timebox.","sources":[{"doc":"scrum.md"}],"context_info":{"chunks":1}}`))
	}))
	defer srv.Close()

	res, err := NewRAGClient(srv.URL+"/", nil).Query(context.Background(), "user-1", "what is a sprint", 0.6)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "A sprint is a timebox.", res.Response)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "scrum.md", res.Sources[0]["doc"])
}

func TestRAGClient_QueryUnsuccessful(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"response":""}`))
	}))
	defer srv.Close()

	_, err := NewRAGClient(srv.URL, nil).Query(context.Background(), "u", "why", 0.5)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
}

func TestRAGClient_IngestDefaultsMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["project_id"])
		assert.Equal(t, "notes", body["text_content"])
		assert.Equal(t, map[string]any{}, body["metadata"])

		_, _ = w.Write([]byte(`{"success":true,"chunks":3}`))
	}))
	defer srv.Close()

	out, err := NewRAGClient(srv.URL, nil).Ingest(context.Background(), "user-1", "notes", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"chunks":3}`, string(out))
}

func TestRAGClient_StatsEscapesProject(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stats/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"documents":2}`))
	}))
	defer srv.Close()

	out, err := NewRAGClient(srv.URL, nil).Stats(context.Background(), "a/b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"documents":2}`, string(out))
}

func TestRAGClient_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"healthy", http.StatusOK, `{"status":"healthy"}`, false},
		{"degraded status", http.StatusOK, `{"status":"starting"}`, true},
		{"bad gateway", http.StatusBadGateway, ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewRAGClient(srv.URL, nil).Health(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			assert.NoError(t, err)
		})
	}
}
