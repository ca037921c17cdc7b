// Package openapi builds the API description served at /api/docs.json.
package openapi

import "github.com/getkin/kin-openapi/openapi3"

const (
	BearerScheme      = "bearerAuth"
	CredentialsSchema = "Credentials"
	LoginPath         = "/api/login"
	LoginOperationID  = "postApiLogin"
	AuthenticationTag = "Authentication"

	exampleUsername = "228156a3-8759-4439-bfd1-665f7d1a508e"
)

// Augment adds the bearer security scheme, makes it the global requirement,
// and documents the login endpoint with its Credentials schema.
// Entries are keyed, so applying Augment again leaves the document unchanged.
func Augment(doc *openapi3.T) *openapi3.T {
	if doc.Components == nil {
		doc.Components = &openapi3.Components{}
	}
	if doc.Components.SecuritySchemes == nil {
		doc.Components.SecuritySchemes = openapi3.SecuritySchemes{}
	}
	if doc.Components.Schemas == nil {
		doc.Components.Schemas = openapi3.Schemas{}
	}
	if doc.Paths == nil {
		doc.Paths = openapi3.NewPaths()
	}

	doc.Components.SecuritySchemes[BearerScheme] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	doc.Security = BearerRequirement()
	doc.Components.Schemas[CredentialsSchema] = openapi3.NewSchemaRef("", credentials())
	doc.Paths.Set(LoginPath, loginPath())
	return doc
}

// BearerRequirement is the security requirement naming BearerScheme.
func BearerRequirement() openapi3.SecurityRequirements {
	return openapi3.SecurityRequirements{
		openapi3.NewSecurityRequirement().Authenticate(BearerScheme),
	}
}

// SchemaRef points at a component schema.
func SchemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func credentials() *openapi3.Schema {
	username := openapi3.NewStringSchema()
	username.Example = exampleUsername
	password := openapi3.NewStringSchema()
	password.Example = "root"
	return openapi3.NewObjectSchema().
		WithProperty("username", username).
		WithProperty("password", password)
}

func loginPath() *openapi3.PathItem {
	ref := SchemaRef(CredentialsSchema)
	return &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: LoginOperationID,
			Tags:        []string{AuthenticationTag},
			Summary:     "Exchange credentials for a JWT",
			// 登录本身不需要 token，覆盖全局 bearerAuth
			Security: openapi3.NewSecurityRequirements(),
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
			},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(200, &openapi3.ResponseRef{
					Value: openapi3.NewResponse().WithDescription("User connected").WithJSONSchemaRef(ref),
				}),
			),
		},
	}
}
