// Package docs embeds the OpenAPI description of the Todo API.
package docs

import _ "embed"

// OpenAPI is the OpenAPI 3 document served under /docs/openapi.yaml and
// used by the handler contract tests.
//
//go:embed api/openapi.yaml
var OpenAPI []byte
