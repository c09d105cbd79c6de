package api

import _ "embed"

// OpenAPI is the HTTP contract served at /openapi.yml and used to validate
// incoming requests.
//
//go:embed openapi.yml
var OpenAPI []byte
