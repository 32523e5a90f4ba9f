// Package openapi derives form definitions from OpenAPI 3 request bodies so a
// service contract and its form rules stay in one place. Parsing is delegated
// to kin-openapi; only string properties become fields.
package openapi
