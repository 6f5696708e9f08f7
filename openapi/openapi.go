// Package openapi builds the OpenAPI 3.0 document served by the
// `openapi` action, as a pure function of the introspected schema —
// no request state, no I/O beyond what SchemaInspector already cached.
// Grounded on the teacher's internal/openapigen package (one path per
// registered resource, schemas derived from struct/column metadata),
// adapted to crudgate's single dispatch endpoint: every table gets a
// `components.schemas` entry instead of a dedicated path, and the one
// real path documents the `action`/`table` query-parameter contract.
// github.com/gertd/go-pluralize names each schema's list/singular
// forms in its description.
package openapi

import (
	"context"
	"sort"

	"github.com/forbearing/crudgate/schema"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gertd/go-pluralize"
)

var pluralizer = pluralize.NewClient()

// Build generates the full document by introspecting every known
// table. Column types are rendered as opaque strings in the schema
// (the dialect's native type names vary too much across MySQL/
// Postgres to map onto a fixed OpenAPI type set reliably); callers
// needing strict typing should consult the `columns` action instead.
func Build(ctx context.Context, inspect *schema.Inspector, title, version string) (*openapi3.T, error) {
	tables, err := inspect.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tables)

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   title,
			Version: version,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: make(openapi3.Schemas)},
	}

	doc.Paths.Set("/api/crud", crudPathItem())

	for _, table := range tables {
		ts, err := inspect.Table(ctx, table)
		if err != nil {
			return nil, err
		}
		doc.Components.Schemas[table] = openapi3.NewSchemaRef("", tableSchema(ts))
	}

	return doc, nil
}

func tableSchema(ts *schema.TableSchema) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Description = "singular: " + pluralizer.Singular(ts.Name) + ", plural: " + pluralizer.Plural(ts.Name)
	props := make(openapi3.Schemas, len(ts.Columns))
	for _, col := range ts.Columns {
		cs := openapi3.NewStringSchema()
		cs.Nullable = col.Nullable
		cs.Description = col.Type
		props[col.Name] = openapi3.NewSchemaRef("", cs)
	}
	s.Properties = props
	if ts.PrimaryKey != "" {
		s.Required = []string{ts.PrimaryKey}
	}
	return s
}

func crudPathItem() *openapi3.PathItem {
	actionParam := openapi3.NewQueryParameter("action").
		WithSchema(openapi3.NewStringSchema()).
		WithRequired(true)
	actionParam.Description = "list|read|count|create|update|delete|bulk_create|bulk_delete|tables|columns|openapi|login"

	tableParam := openapi3.NewQueryParameter("table").WithSchema(openapi3.NewStringSchema())
	idParam := openapi3.NewQueryParameter("id").WithSchema(openapi3.NewStringSchema())

	resp := openapi3.NewResponse().WithDescription("envelope {code, msg, data, request_id}")
	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{Value: resp})

	op := &openapi3.Operation{
		Summary:    "Single dispatch endpoint for every CRUD and administrative action",
		Parameters: openapi3.Parameters{{Value: actionParam}, {Value: tableParam}, {Value: idParam}},
		Responses:  responses,
	}

	item := &openapi3.PathItem{}
	item.Get = op
	item.Post = op
	item.Put = op
	item.Delete = op
	return item
}
