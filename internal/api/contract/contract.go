// Package contract embeds the OpenAPI document for the /api/v1 surface.
//
// The document is the source of truth for request and response shapes; the
// validator middleware enforces it at runtime.
//
// Import Path: hireguard.io/atssync/internal/api/contract
package contract

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var document []byte

// Document returns the raw embedded OpenAPI YAML.
func Document() []byte {
	return document
}

// Load parses and validates the embedded document.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}
