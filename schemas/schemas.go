// Package schemas embeds the JSON Schemas used to validate input documents.
package schemas

import _ "embed"

// CatalogSchemaJSON is the schema for pose catalog documents.
//
//go:embed catalog.schema.json
var CatalogSchemaJSON string
