package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"go/parser"
	"go/token"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cli "github.com/mark3labs/specforge/internal/cli"
	"github.com/mark3labs/specforge/internal/descriptor"
)

// writeSampleProject scaffolds the sample project through the init command.
func writeSampleProject(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "project.yaml")
	runCLI(t, "init", "--out", p)
	return p
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("cli execute %v: %v", args, err)
	}
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	var list []string
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		list = append(list, rel)
		// hash path + contents to be robust
		_, _ = h.Write([]byte(rel))
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		_, _ = h.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(list)
	return list, hex.EncodeToString(h.Sum(nil))
}

func TestE2E_Generate_All_Deterministic(t *testing.T) {
	project := writeSampleProject(t)

	for _, lang := range []string{"typescript", "python", "go"} {
		dir1 := t.TempDir()
		dir2 := t.TempDir()
		runCLI(t, "generate", "--project", project, "--artifact", "all", "--lang", lang, "--check", "--out", dir1, "--force")
		runCLI(t, "generate", "--project", project, "--artifact", "all", "--lang", lang, "--check", "--out", dir2, "--force")

		files1, sum1 := digestDir(t, dir1)
		files2, sum2 := digestDir(t, dir2)
		if !slicesEqual(files1, files2) || sum1 != sum2 {
			t.Fatalf("%s: generated outputs differ between runs\nfiles1=%v\nfiles2=%v\nsum1=%s\nsum2=%s", lang, files1, files2, sum1, sum2)
		}
		if len(files1) != 4 {
			t.Fatalf("%s: expected 4 artifacts, got %v", lang, files1)
		}
	}
}

func TestE2E_Descriptor_Parses(t *testing.T) {
	project := writeSampleProject(t)
	dir := t.TempDir()
	runCLI(t, "generate", "--project", project, "--out", dir)

	data, err := os.ReadFile(filepath.Join(dir, "openapi.yaml"))
	if err != nil {
		t.Fatalf("read descriptor: %v", err)
	}
	doc, err := descriptor.Inspect(string(data))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	ids := descriptor.OperationIDs(doc)
	want := []string{"getMyPing", "get_users?limit=10", "post_users", "get_users_id_", "getMyVitality"}
	if !slicesEqual(ids, want) {
		t.Errorf("operation ids:\n got %v\nwant %v", ids, want)
	}
	if doc.Components.Schemas["User"] == nil {
		t.Errorf("User schema missing")
	}
}

func TestE2E_GoClient_Parses(t *testing.T) {
	project := writeSampleProject(t)
	dir := t.TempDir()
	runCLI(t, "generate", "--project", project, "--artifact", "sdk", "--lang", "go", "--out", dir)

	src := filepath.Join(dir, "client.go")
	if _, err := parser.ParseFile(token.NewFileSet(), src, nil, parser.AllErrors); err != nil {
		t.Fatalf("generated Go client does not parse: %v", err)
	}

	// Optional: try building if toolchain and network are available
	if os.Getenv("SPECFORGE_E2E_ONLINE") == "1" && haveCmd("go") {
		mod := "module example.com/usersclient\n\ngo 1.22\n\nrequire github.com/google/uuid v1.6.0\n"
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(mod), 0o644); err != nil {
			t.Fatalf("write go.mod: %v", err)
		}
		if err := runCmdWithTimeout(dir, 2*time.Minute, "go", "mod", "tidy"); err != nil {
			t.Skipf("go mod tidy skipped (likely offline): %v", err)
		}
		if err := runCmdWithTimeout(dir, 2*time.Minute, "go", "build", "./..."); err != nil {
			t.Fatalf("go build failed: %v", err)
		}
	}
}

func TestE2E_PythonClient_Compiles(t *testing.T) {
	if !haveCmd("python3") {
		t.Skip("python3 not available")
	}
	project := writeSampleProject(t)
	dir := t.TempDir()
	runCLI(t, "generate", "--project", project, "--artifact", "sdk", "--lang", "python", "--out", dir)
	if err := runCmdWithTimeout(dir, 30*time.Second, "python3", "-m", "py_compile", "client.py"); err != nil {
		t.Fatalf("py_compile failed: %v", err)
	}
}

func TestE2E_Appendix_Document(t *testing.T) {
	project := writeSampleProject(t)
	dir := t.TempDir()
	runCLI(t, "generate", "--project", project, "--artifact", "document", "--rtl", "--out", dir)
	data, err := os.ReadFile(filepath.Join(dir, "document.html"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	s := string(data)
	for _, want := range []string{"direction:rtl", "API Appendix – Users", "roles[] — opening element", "x-correlation-id"} {
		if !strings.Contains(s, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// include output for diagnostics
		return &execError{err: err, output: out.String()}
	}
	return nil
}

type execError struct {
	err    error
	output string
}

func (e *execError) Error() string { return e.err.Error() + ": " + e.output }

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
