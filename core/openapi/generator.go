// Package openapi generates an OpenAPI 3.0 description of the event type
// API. Every loaded type contributes its payload schema and typed validate
// and render operations.
package openapi

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/artpar/eventdsl/core/schema"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get  *Operation `json:"get,omitempty"`
	Post *Operation `json:"post,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query, header
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Default              any                `json:"default,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Type is a loaded event type as seen by the generator.
type Type interface {
	ID() string
	Name() string
	Description() string
	Schema() *schema.Schema
}

// Generator generates OpenAPI specs from event types.
type Generator struct {
	info    Info
	servers []Server
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator() *Generator {
	return &Generator{
		info: Info{
			Title:       "eventdsl API",
			Version:     "1.0.0",
			Description: "Validation and rendering of declared event types",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// Generate creates the OpenAPI specification for types.
func (g *Generator) Generate(types []Type) *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: baseSchemas(),
		},
		Tags: []Tag{{Name: "types", Description: "Event type catalog"}},
	}
	g.addCatalogPaths(spec)

	sorted := append([]Type(nil), types...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	for _, t := range sorted {
		g.addType(spec, t)
	}
	return spec
}

// addType adds the payload schema and the typed evaluation paths of t.
func (g *Generator) addType(spec *Spec, t Type) {
	title := componentName(t.ID())

	spec.Tags = append(spec.Tags, Tag{Name: t.ID(), Description: t.Description()})
	spec.Components.Schemas[title+"Payload"] = FromSchema(t.Schema())
	spec.Components.Schemas[title+"EvaluationRequest"] = &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"event": {
				Type: "object",
				Properties: map[string]*Schema{
					"id":        {Type: "string"},
					"type":      {Type: "string", Enum: []any{t.ID()}},
					"title":     {Type: "string"},
					"startTime": {Type: "string", Format: "date-time"},
					"endTime":   {Type: "string", Format: "date-time"},
					"data":      ref(title + "Payload"),
				},
			},
			"context":  ref("EventContext"),
			"timezone": {Type: "string", Description: "IANA zone for calendar accessors"},
		},
		Required: []string{"event"},
	}

	body := &RequestBody{
		Required: true,
		Content:  jsonContent(ref(title + "EvaluationRequest")),
	}
	base := "/types/" + t.ID()

	spec.Paths[base+"/validate"] = PathItem{Post: &Operation{
		Tags:        []string{t.ID()},
		Summary:     "Validate a " + t.Name() + " event",
		OperationID: "validate" + title,
		RequestBody: body,
		Responses: map[string]Response{
			"200": {Description: "Validation result", Content: jsonContent(ref("ValidationResult"))},
			"400": errorResponse("Malformed request"),
		},
	}}
	spec.Paths[base+"/render"] = PathItem{Post: &Operation{
		Tags:        []string{t.ID()},
		Summary:     "Render a " + t.Name() + " event",
		OperationID: "render" + title,
		RequestBody: body,
		Responses: map[string]Response{
			"200": {Description: "Rendered event", Content: jsonContent(ref("RenderedEvent"))},
			"400": errorResponse("Malformed request"),
			"422": errorResponse("A display expression could not be evaluated"),
		},
	}}
}

// addCatalogPaths adds the endpoints that do not depend on loaded types.
func (g *Generator) addCatalogPaths(spec *Spec) {
	idParam := []Parameter{{
		Name: "id", In: "path", Required: true,
		Description: "Event type id",
		Schema:      &Schema{Type: "string"},
	}}

	spec.Paths["/healthz"] = PathItem{Get: &Operation{
		Summary:     "Health check",
		OperationID: "health",
		Responses:   map[string]Response{"200": {Description: "Service is up", Content: jsonContent(ref("Health"))}},
	}}
	spec.Paths["/types"] = PathItem{Get: &Operation{
		Tags:        []string{"types"},
		Summary:     "List event types",
		OperationID: "listTypes",
		Responses:   map[string]Response{"200": {Description: "JSON:API collection of event types", Content: apiContent()}},
	}}
	spec.Paths["/types/{id}"] = PathItem{Get: &Operation{
		Tags:        []string{"types"},
		Summary:     "Get an event type with its declaration",
		OperationID: "getType",
		Parameters:  idParam,
		Responses: map[string]Response{
			"200": {Description: "JSON:API event type resource", Content: apiContent()},
			"404": errorResponse("Unknown type"),
		},
	}}
	spec.Paths["/types/{id}/schema"] = PathItem{Get: &Operation{
		Tags:        []string{"types"},
		Summary:     "Get the payload JSON Schema of a type",
		OperationID: "getSchema",
		Parameters:  idParam,
		Responses: map[string]Response{
			"200": {Description: "Payload schema", Content: jsonContent(&Schema{Type: "object"})},
			"404": errorResponse("Unknown type"),
		},
	}}
	spec.Paths["/types/{id}/behavior"] = PathItem{Get: &Operation{
		Tags:        []string{"types"},
		Summary:     "Get the behavior bindings of a type",
		OperationID: "getBehavior",
		Parameters:  idParam,
		Responses: map[string]Response{
			"200": {Description: "Behavior map", Content: jsonContent(&Schema{Type: "object"})},
			"404": errorResponse("Unknown type"),
		},
	}}
	spec.Paths["/catalog"] = PathItem{Get: &Operation{
		Tags:        []string{"types"},
		Summary:     "Outcome of the last catalog reload",
		OperationID: "catalogStatus",
		Responses:   map[string]Response{"200": {Description: "Catalog status", Content: jsonContent(ref("CatalogStatus"))}},
	}}
	spec.Paths["/catalog/reload"] = PathItem{Post: &Operation{
		Tags:        []string{"types"},
		Summary:     "Reload the catalog from its sources",
		OperationID: "reloadCatalog",
		Responses: map[string]Response{
			"200": {Description: "Catalog status", Content: jsonContent(ref("CatalogStatus"))},
			"422": errorResponse("The catalog was rejected; previous types stay active"),
		},
	}}
}

func baseSchemas() map[string]*Schema {
	return map[string]*Schema{
		"EventContext": {
			Type: "object",
			Properties: map[string]*Schema{
				"now":    {Type: "string", Format: "date-time"},
				"events": {Type: "array", Items: &Schema{Type: "object"}},
				"user":   {Type: "object"},
				"hints":  {Type: "object"},
			},
		},
		"ValidationResult": {
			Type: "object",
			Properties: map[string]*Schema{
				"valid":  {Type: "boolean"},
				"errors": {Type: "array", Items: &Schema{Type: "string"}},
			},
			Required: []string{"valid"},
		},
		"RenderedEvent": {
			Type: "object",
			Properties: map[string]*Schema{
				"title":       {Type: "string"},
				"color":       {Type: "string"},
				"icon":        {Type: "string"},
				"description": {Type: "string"},
				"extra":       {Type: "object", AdditionalProperties: &Schema{Type: "string"}},
			},
		},
		"CatalogStatus": {
			Type: "object",
			Properties: map[string]*Schema{
				"types":       {Type: "array", Items: &Schema{Type: "string"}},
				"errors":      {Type: "array", Items: &Schema{Type: "string"}},
				"reloaded_at": {Type: "string", Format: "date-time"},
			},
		},
		"Health": {
			Type: "object",
			Properties: map[string]*Schema{
				"status": {Type: "string"},
				"types":  {Type: "integer"},
			},
		},
		"Error": {
			Type: "object",
			Properties: map[string]*Schema{
				"errors": {Type: "array", Items: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"status": {Type: "string"},
						"code":   {Type: "string"},
						"title":  {Type: "string"},
						"detail": {Type: "string"},
					},
				}},
			},
		},
	}
}

// FromSchema converts a payload schema into its OpenAPI form.
func FromSchema(s *schema.Schema) *Schema {
	if s == nil {
		return &Schema{Type: "object"}
	}
	out := &Schema{
		Type:    s.Type,
		Format:  s.Format,
		Enum:    s.Enum,
		Default: s.Default,
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		out.Items = FromSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = FromSchema(prop)
		}
	}
	return out
}

// componentName turns a type id such as "team-meeting" into "TeamMeeting".
func componentName(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}

func apiContent() map[string]MediaType {
	return map[string]MediaType{"application/vnd.api+json": {Schema: &Schema{Type: "object"}}}
}

func errorResponse(description string) Response {
	return Response{
		Description: description,
		Content:     map[string]MediaType{"application/vnd.api+json": {Schema: ref("Error")}},
	}
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}
