package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/specforge/internal/pipeline"
	"github.com/mark3labs/specforge/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// itemsProject has one wrapper per runtime path exercised below.
var itemsProject = &project.Project{
	Name: "Items",
	Requests: []project.RequestSpec{
		{URL: "/items/{id}", Method: "GET", OperationID: "fetchItem"},
		{URL: "/items", Method: "POST", OperationID: "createItem"},
		{URL: "/missing", Method: "GET", OperationID: "fetchMissing"},
	},
}

type recordedCall struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Idempotency string
	Body        string
}

// itemsServer fails the first call to each item route with a retryable
// status and a zero Retry-After, then succeeds.
type itemsServer struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (s *itemsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	_, _ = body.ReadFrom(r.Body)
	s.mu.Lock()
	s.calls = append(s.calls, recordedCall{
		Method:      r.Method,
		Path:        r.URL.Path,
		RawQuery:    r.URL.RawQuery,
		ContentType: r.Header.Get("Content-Type"),
		Idempotency: r.Header.Get("Idempotency-Key"),
		Body:        body.String(),
	})
	n := 0
	for _, c := range s.calls {
		if c.Path == r.URL.Path {
			n++
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/items/42" && n == 1:
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	case r.URL.Path == "/items/42":
		_, _ = w.Write([]byte(`{"id":42}`))
	case r.URL.Path == "/items" && n == 1:
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	case r.URL.Path == "/items":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

func (s *itemsServer) callsTo(path string) []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedCall
	for _, c := range s.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

type runtimeReport struct {
	Get struct {
		OK     bool           `json:"ok"`
		Status int            `json:"status"`
		Data   map[string]any `json:"data"`
	} `json:"get"`
	Post struct {
		OK     bool `json:"ok"`
		Status int  `json:"status"`
	} `json:"post"`
	Missing struct {
		OK     bool `json:"ok"`
		Status int  `json:"status"`
	} `json:"missing"`
	Param string `json:"param"`
}

// checkRuntime asserts what the generated client did against srv. The
// drivers use a base delay of ten seconds, so a run that finishes quickly
// took the Retry-After value over the computed backoff.
func checkRuntime(t *testing.T, srv *itemsServer, stdout []byte, elapsed time.Duration) {
	t.Helper()
	var rep runtimeReport
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(stdout), &rep), string(stdout))

	assert.True(t, rep.Get.OK)
	assert.Equal(t, http.StatusOK, rep.Get.Status)
	assert.EqualValues(t, 42, rep.Get.Data["id"])
	assert.True(t, rep.Post.OK)
	assert.Equal(t, http.StatusCreated, rep.Post.Status)
	assert.False(t, rep.Missing.OK)
	assert.Equal(t, http.StatusNotFound, rep.Missing.Status)
	assert.Equal(t, "id", rep.Param, "empty path parameter must fail before sending")
	assert.Less(t, elapsed, 8*time.Second, "Retry-After should win over backoff")

	gets := srv.callsTo("/items/42")
	require.Len(t, gets, 2, "503 is retried once")
	for _, c := range gets {
		assert.Equal(t, `filter=%7B%22x%22%3A1%7D&tags=a&tags=b`, c.RawQuery)
		assert.Empty(t, c.ContentType, "GET sends no body")
		assert.Empty(t, c.Idempotency, "GET is not mutating")
	}

	posts := srv.callsTo("/items")
	require.Len(t, posts, 2, "429 is retried once")
	for _, c := range posts {
		assert.Equal(t, "application/json", c.ContentType)
		assert.JSONEq(t, `{"name":"x"}`, c.Body)
		assert.NotEmpty(t, c.Idempotency)
	}
	assert.Equal(t, posts[0].Idempotency, posts[1].Idempotency, "retries reuse the idempotency key")

	assert.Len(t, srv.callsTo("/missing"), 1, "404 is not retried")
}

func runDriver(t *testing.T, dir string, name string, args ...string) ([]byte, time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v: %v\nstdout: %s\nstderr: %s", name, args, err, stdout.String(), stderr.String())
	}
	return stdout.Bytes(), time.Since(start)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const pythonDriver = `import json
import sys

from client import ApiClient, MissingParamError, create_item, fetch_item, fetch_missing

client = ApiClient(sys.argv[1], base_delay=10.0, max_retries=2)
out = {}
got = fetch_item(client, "42", query={"tags": ["a", "b"], "filter": {"x": 1}})
out["get"] = {"ok": got.ok, "status": got.status, "data": got.data}
made = create_item(client, body={"name": "x"})
out["post"] = {"ok": made.ok, "status": made.status}
missing = fetch_missing(client)
out["missing"] = {"ok": missing.ok, "status": missing.status}
try:
    fetch_item(client, "")
    out["param"] = ""
except MissingParamError as err:
    out["param"] = err.param
print(json.dumps(out))
`

func TestE2E_PythonClient_Runtime(t *testing.T) {
	if !haveCmd("python3") {
		t.Skip("python3 not available")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "client.py"), pipeline.SDK(itemsProject, "python").Source)
	writeFile(t, filepath.Join(dir, "driver.py"), pythonDriver)

	srv := &itemsServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	out, elapsed := runDriver(t, dir, "python3", "driver.py", ts.URL)
	checkRuntime(t, srv, out, elapsed)
}

const typescriptDriver = `import { ApiClient, MissingParamError, createItem, fetchItem, fetchMissing } from "./client.ts";

const client = new ApiClient({ baseUrl: process.argv[2], baseDelayMs: 10000, maxRetries: 2 });
const out: Record<string, unknown> = {};
const got = await fetchItem(client, "42", { query: { tags: ["a", "b"], filter: { x: 1 } } });
out.get = { ok: got.ok, status: got.status, data: got.data };
const made = await createItem(client, { body: { name: "x" } });
out.post = { ok: made.ok, status: made.status };
const missing = await fetchMissing(client);
out.missing = { ok: missing.ok, status: missing.status };
try {
  await fetchItem(client, "");
  out.param = "";
} catch (err) {
  out.param = err instanceof MissingParamError ? err.param : String(err);
}
console.log(JSON.stringify(out));
`

// nodeStripsTypes reports whether node can run .ts files directly.
func nodeStripsTypes(t *testing.T, dir string) bool {
	t.Helper()
	if !haveCmd("node") {
		return false
	}
	writeFile(t, filepath.Join(dir, "support.ts"), "const n: number = 1;\nconsole.log(n);\n")
	err := runCmdWithTimeout(dir, 30*time.Second, "node", "--experimental-strip-types", "support.ts")
	return err == nil
}

func TestE2E_TypeScriptClient_Runtime(t *testing.T) {
	dir := t.TempDir()
	if !nodeStripsTypes(t, dir) {
		t.Skip("node with type stripping not available")
	}
	writeFile(t, filepath.Join(dir, "package.json"), `{"type": "module"}`+"\n")
	writeFile(t, filepath.Join(dir, "client.ts"), pipeline.SDK(itemsProject, "typescript").Source)
	writeFile(t, filepath.Join(dir, "driver.ts"), typescriptDriver)

	srv := &itemsServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	out, elapsed := runDriver(t, dir, "node", "--experimental-strip-types", "--no-warnings", "driver.ts", ts.URL)
	checkRuntime(t, srv, out, elapsed)
}
