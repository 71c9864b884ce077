package descriptor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes descriptor inspection failures.
type ErrorCode string

const (
	SyntaxError    ErrorCode = "SyntaxError"
	StructureError ErrorCode = "StructureError"
)

// Error reports why a descriptor could not be read back.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string { return "descriptor: " + e.Message }
func (e *Error) Unwrap() error { return e.Cause }

// Inspect parses descriptor text into an OpenAPI document without resolving
// references; dictionary references point outside the document.
func Inspect(text string) (*openapi3.T, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &Error{Code: SyntaxError, Message: fmt.Sprintf("parse yaml: %v", err), Cause: err}
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, &Error{Code: StructureError, Message: "document root is not a mapping"}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, &Error{Code: StructureError, Message: fmt.Sprintf("convert to json: %v", err), Cause: err}
	}
	var doc openapi3.T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Code: StructureError, Message: fmt.Sprintf("decode openapi: %v", err), Cause: err}
	}
	if doc.OpenAPI == "" {
		return nil, &Error{Code: StructureError, Message: "missing openapi version"}
	}
	return &doc, nil
}

// Operation is one method of one path, in document order.
type Operation struct {
	Path      string
	Method    string
	Item      *openapi3.PathItem
	Operation *openapi3.Operation
}

// Operations walks doc sorted by path, then by method.
func Operations(doc *openapi3.T) []Operation {
	if doc == nil {
		return nil
	}
	var out []Operation
	for _, path := range sortedPaths(doc) {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		for _, m := range methodOrder {
			if op := item.GetOperation(m); op != nil {
				out = append(out, Operation{Path: path, Method: m, Item: item, Operation: op})
			}
		}
	}
	return out
}

// OperationIDs lists operation ids sorted by path, then method; duplicates are kept so
// callers can detect collisions.
func OperationIDs(doc *openapi3.T) []string {
	var ids []string
	for _, o := range Operations(doc) {
		if o.Operation.OperationID != "" {
			ids = append(ids, o.Operation.OperationID)
		}
	}
	return ids
}

var methodOrder = []string{"GET", "PUT", "POST", "DELETE", "OPTIONS", "HEAD", "PATCH", "TRACE"}

func sortedPaths(doc *openapi3.T) []string {
	keys := make([]string, 0, len(doc.Paths))
	for k := range doc.Paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
