package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/specforge/internal/schema"
)

func TestPathParams(t *testing.T) {
	t.Parallel()
	cases := map[string][]string{
		"/users/{id}":                         {"id"},
		"/orgs/{orgId}/users/{userId}?x={no}": {"orgId", "userId", "no"},
		"/plain":                              nil,
		"":                                    nil,
	}
	for in, want := range cases {
		got := PathParams(in)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("PathParams(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestQueryParams(t *testing.T) {
	t.Parallel()
	got := QueryParams("/search?q=1&&page=2&flag&=orphan&na%20me=x")
	want := []string{"q", "page", "flag", "na me"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("QueryParams = %v, want %v", got, want)
	}
	if QueryParams("/no-query") != nil {
		t.Errorf("expected nil for URL without query")
	}
}

func TestFreeformHeaderKeys(t *testing.T) {
	t.Parallel()
	if got := FreeformHeaderKeys(`{"x-b": "1", "x-a": {"nested": true}, "x-c": [1]}`); strings.Join(got, ",") != "x-b,x-a,x-c" {
		t.Errorf("keys: %v", got)
	}
	for _, bad := range []string{"", "not json", `["x-a"]`, `{"x-a": }`, "x-a\nx-b"} {
		if got := FreeformHeaderKeys(bad); len(got) != 0 {
			t.Errorf("FreeformHeaderKeys(%q) = %v, want none", bad, got)
		}
	}
}

func TestAggregateHeaders_FirstSeenNoDuplicates(t *testing.T) {
	t.Parallel()
	reqs := []RequestSpec{
		{StdHeaders: []string{"x-trace-id", "x-user-id"}, Headers: `{"x-custom": "a", "x-trace-id": "b"}`},
		{StdHeaders: []string{"x-app-id", "x-user-id"}, Headers: `{broken`},
		{Headers: `{"x-custom": "c", "x-tenant": "t"}`},
	}
	got := AggregateHeaders(reqs)
	want := []string{"x-trace-id", "x-user-id", "x-custom", "x-app-id", "x-tenant"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("AggregateHeaders = %v, want %v", got, want)
	}
	seen := map[string]bool{}
	for _, h := range got {
		if seen[h] {
			t.Fatalf("duplicate header %q", h)
		}
		seen[h] = true
	}
}

func TestRequestSpecDefaults(t *testing.T) {
	t.Parallel()
	r := RequestSpec{Method: " post "}
	var m HTTPMethod = r.HTTPMethod()
	if m != POST {
		t.Errorf("method: %q", m)
	}
	if (RequestSpec{}).HTTPMethod() != GET {
		t.Errorf("blank method should default to GET")
	}
	if (RequestSpec{}).Path() != "/path" {
		t.Errorf("blank url should default to /path")
	}
	if !NoBodyMethod(GET) || !NoBodyMethod(HEAD) || NoBodyMethod(POST) {
		t.Errorf("NoBodyMethod mismatch")
	}
	if !Mutating(DELETE) || Mutating(GET) {
		t.Errorf("Mutating mismatch")
	}
}

func TestParse_JSONRenormalizes(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`{
		"name": "Users",
		"requests": [{"url": "/users/{id}", "method": "GET"}],
		"schemaText": "{\"User\":{\"type\":\"object\"}}"
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Schemas.Len() != 1 || p.Schemas.Names()[0] != "User" {
		t.Fatalf("schemas: %v", p.Schemas.Names())
	}
}

func TestParse_SchemasWithoutTextRegeneratesText(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`{"name": "X", "schemas": {"B": {"type": "string"}, "A": {"type": "integer"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(p.SchemaText, "B:") {
		t.Fatalf("schema text: %q", p.SchemaText)
	}
	again, err := schema.Normalize(p.SchemaText)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !schema.Equal(again, p.Schemas) {
		t.Errorf("text and mapping out of sync")
	}
}

func TestParse_YAMLAndSchemaError(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte("name: Pets\nextra:\n  vitality: true\nrequests:\n  - url: /pets\n    method: get\n"))
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if !p.Extra.Vitality || p.Extra.Ping || len(p.Requests) != 1 {
		t.Fatalf("project: %+v", p)
	}

	_, err = Parse([]byte(`{"name": "Bad", "schemaText": "[1, 2]"}`))
	var le *LoadError
	if !errors.As(err, &le) || le.Code != SchemaError {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	var se *schema.Error
	if !errors.As(err, &se) || se.Code != schema.StructureError {
		t.Fatalf("expected wrapped StructureError, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")
	if err := os.WriteFile(path, []byte(`{"name": "File"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.DisplayName() != "File" {
		t.Errorf("name: %q", p.DisplayName())
	}

	_, err = Load(filepath.Join(dir, "missing.json"))
	var le *LoadError
	if !errors.As(err, &le) || le.Code != InputError {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`{"name": "C", "requests": [{"url": "/a", "stdHeaders": ["x-a"]}], "schemaText": "A: {type: object}"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := p.Clone()
	c.Requests[0].StdHeaders[0] = "changed"
	c.Schemas.Set("B", nil)
	if p.Requests[0].StdHeaders[0] != "x-a" {
		t.Errorf("clone shares header slice")
	}
	if p.Schemas.Len() != 1 {
		t.Errorf("clone shares schema mapping")
	}
}
