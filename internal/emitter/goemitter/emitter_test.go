package goemitter

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/project"
)

func usersProject() *project.Project {
	return &project.Project{
		Name: "Users API",
		Requests: []project.RequestSpec{
			{URL: "/users/{id}", Method: "GET", StdHeaders: []string{"x-trace-id"}, Summary: "Fetch one\nuser"},
			{URL: "/users", Method: "POST", Headers: `{"x-tenant": "acme"}`},
			{URL: "/things/{type}/{type}", Method: "DELETE", OperationID: "do"},
		},
	}
}

func TestEmit_ParsesAsGo(t *testing.T) {
	t.Parallel()
	src := emitter.Emit(New(), usersProject())
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "client.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	if f.Name.Name != "usersapi" {
		t.Errorf("package = %q", f.Name.Name)
	}
	if !strings.HasPrefix(src, "// Code generated by specforge. DO NOT EDIT.") {
		t.Errorf("missing generated header")
	}
	if strings.Count(src, "\nimport (") != 1 {
		t.Errorf("expected a single import block")
	}
}

func TestBuildOperations_Wrappers(t *testing.T) {
	t.Parallel()
	ops := New().BuildOperations(usersProject())
	for _, want := range []string{
		"func (c *Client) GetUserById(ctx context.Context, id string, opts *CallOptions) (Result, error) {",
		`if err := RequireParam("id", id); err != nil {`,
		`return c.Call(ctx, "GET", "/users/{id}", map[string]string{"id": id}, opts, "x-trace-id")`,
		"// Fetch one user\n",
		"func (c *Client) CreateUsers(ctx context.Context, opts *CallOptions) (Result, error) {",
		`return c.Call(ctx, "POST", "/users", nil, opts, "x-tenant")`,
		"func (c *Client) Do_(ctx context.Context, type_ string, type_2 string, opts *CallOptions)",
		`map[string]string{"type": type_}`,
	} {
		if !strings.Contains(ops, want) {
			t.Errorf("missing %q in:\n%s", want, ops)
		}
	}
	if i, j := strings.Index(ops, "GetUserById"), strings.Index(ops, "CreateUsers"); i > j {
		t.Errorf("wrappers must follow request order")
	}
}

func TestPackageName(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Users API": "usersapi",
		"":          "apiclient",
		"2fa":       "api2fa",
		"type":      "typeapi",
		"שלום":      "apiclient",
	}
	for in, want := range cases {
		if got := New().PackageName(&project.Project{Name: in}); got != want {
			t.Errorf("PackageName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := (&Emitter{Package: "sdk"}).PackageName(usersProject()); got != "sdk" {
		t.Errorf("explicit package: %q", got)
	}
}
