// Package apiv1 holds the OpenAPI document of the public HTTP API.
package apiv1

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yml
var spec []byte

// Spec returns the raw OpenAPI document.
func Spec() []byte {
	out := make([]byte, len(spec))
	copy(out, spec)
	return out
}

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}
	return doc, nil
}

var fiberParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// Documents reports whether doc declares method on the fiber route path,
// e.g. GET /payment/transaction-status/:customOrderId.
func Documents(doc *openapi3.T, method, fiberPath string) bool {
	item := doc.Paths.Find(fiberParam.ReplaceAllString(fiberPath, "{$1}"))
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}
