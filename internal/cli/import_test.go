package cli

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/specforge/internal/project"
)

func TestImport_DescriptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "project.yaml")
	if _, err := execute(t, "init", "--out", src); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := execute(t, "generate", "--project", src, "--out", filepath.Join(dir, "gen")); err != nil {
		t.Fatalf("generate: %v", err)
	}

	dst := filepath.Join(dir, "imported.yaml")
	out, err := execute(t, "import", "--in", filepath.Join(dir, "gen", "openapi.yaml"), "--out", dst)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, `Imported "Users" (3 requests)`) {
		t.Errorf("unexpected output: %s", out)
	}

	p, err := project.Load(dst)
	if err != nil {
		t.Fatalf("load imported project: %v", err)
	}
	if p.JiraTicket != "APIA-1000" || p.ManagerEmail != "jane.doe@example.com" {
		t.Errorf("info not carried over: %+v", p)
	}
	if !p.Extra.Vitality || !p.Extra.Ping {
		t.Errorf("health endpoints lost: %+v", p.Extra)
	}
	var urls []string
	for _, r := range p.Requests {
		urls = append(urls, r.Method+" "+r.URL)
	}
	want := "GET /users?limit=10,POST /users,GET /users/{id}"
	if strings.Join(urls, ",") != want {
		t.Errorf("requests: got %v want %s", urls, want)
	}
	if _, ok := p.Schemas.Get("User"); !ok {
		t.Errorf("User schema missing:\n%s", p.SchemaText)
	}

	// The target now exists.
	_, err = execute(t, "import", "--in", filepath.Join(dir, "gen", "openapi.yaml"), "--out", dst)
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error without --force, got %v", err)
	}
}

func TestImport_URLToStdout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("swagger: '2.0'\ninfo:\n  title: Pets\n  version: '1'\npaths:\n  /pets:\n    get:\n      operationId: listPets\n      responses:\n        '200':\n          description: ok\n"))
	}))
	defer srv.Close()

	out, err := execute(t, "import", "--in", srv.URL+"/swagger.yaml")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	p, err := project.Parse([]byte(out))
	if err != nil {
		t.Fatalf("parse stdout: %v\n%s", err, out)
	}
	if p.Name != "Pets" || len(p.Requests) != 1 || p.Requests[0].OperationID != "listPets" {
		t.Errorf("project: %+v", p)
	}
}

func TestImport_Errors(t *testing.T) {
	_, err := execute(t, "import")
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for missing --in, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("title: not openapi\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = execute(t, "import", "--in", bad)
	if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), "ParseError") || !strings.Contains(err.Error(), "Location:") {
		t.Fatalf("expected parse usage error with location, got %v", err)
	}
}
