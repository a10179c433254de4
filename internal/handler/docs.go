package handler

import (
	"net/http"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Todo API</title></head>
<body>
<h1>Todo API</h1>
<p>The OpenAPI 3 description of this service is at <a href="/docs/openapi.yaml">/docs/openapi.yaml</a>.</p>
</body>
</html>
`

// DocsHandler serves the API description. It is not mounted in production.
type DocsHandler struct {
	spec []byte
}

// NewDocsHandler creates a DocsHandler serving spec as the OpenAPI document.
func NewDocsHandler(spec []byte) *DocsHandler {
	return &DocsHandler{spec: spec}
}

// Index handles GET /docs.
func (h *DocsHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsPage))
}

// OpenAPI handles GET /docs/openapi.yaml.
func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec)
}
