package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Describer contributes paths and schemas to a document.
type Describer interface {
	Describe(doc *openapi3.T) error
}

// New returns an empty 3.0 document.
func New(title, version string) *openapi3.T {
	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas:         openapi3.Schemas{},
			SecuritySchemes: openapi3.SecuritySchemes{},
		},
	}
}

// Build generates the base document from ds and augments it.
func Build(title, version string, ds ...Describer) (*openapi3.T, error) {
	doc := New(title, version)
	for _, d := range ds {
		if err := d.Describe(doc); err != nil {
			return nil, fmt.Errorf("openapi: %w", err)
		}
	}
	return Augment(doc), nil
}
