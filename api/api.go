// Package api carries the OpenAPI document of the canvas HTTP API.
package api

import _ "embed"

// OpenAPI is api/openapi.yaml as served at /docs/openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
