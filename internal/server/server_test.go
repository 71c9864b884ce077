package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, s store.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if s == nil {
		s = store.NewMemory()
	}
	return NewRouter(Deps{Store: s, Version: "test", CORSOrigins: []string{"http://app.test"}})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

const usersProject = `{
	"name": "Users",
	"requests": [{"url": "/users/{id}", "method": "GET", "response": "{\"items\":[{\"id\":1}]}"}],
	"schemaText": "User:\n  type: object\n  properties:\n    name:\n      type: string\n  required: [name]\n"
}`

func TestHealth(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := do(t, r, http.MethodGet, "/health", nil)
	assert.Len(t, rr.Header().Get(RequestIDHeader), 32)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestRequestID_InContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "rid-1", seen)
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestCORS(t *testing.T) {
	r := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://app.test")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "http://app.test", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestProjects_CRUD(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := do(t, r, http.MethodPost, "/api/projects", usersProject)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	proj := body["project"].(map[string]any)
	id := proj["id"].(string)
	require.NotEmpty(t, id)
	swagger := body["swagger"].(string)
	assert.Contains(t, swagger, "operationId: get_users_id_")
	_, err := descriptor.Inspect(swagger)
	require.NoError(t, err)

	rr = do(t, r, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode(t, rr)["projects"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Users", list[0].(map[string]any)["name"])

	rr = do(t, r, http.MethodPut, "/api/projects/"+id, map[string]any{"name": "Accounts", "jiraTicket": "  ABC-1 "})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode(t, rr)["project"].(map[string]any)
	assert.Equal(t, "Accounts", updated["name"])
	assert.Equal(t, "ABC-1", updated["jiraTicket"])
	assert.Len(t, updated["requests"], 1, "partial update keeps requests")
	assert.Contains(t, updated["schemaText"], "User:")

	rr = do(t, r, http.MethodGet, "/api/projects/"+id+"/swagger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/yaml; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "ABC-1")

	rr = do(t, r, http.MethodDelete, "/api/projects/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, r, http.MethodGet, "/api/projects/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not found", decode(t, rr)["message"])
}

func TestProjects_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := do(t, r, http.MethodPost, "/api/projects", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "name is required", decode(t, rr)["message"])

	rr = do(t, r, http.MethodPost, "/api/projects", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/projects", map[string]any{"name": "x", "schemaText": "[1, 2"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "SyntaxError", decode(t, rr)["code"])

	rr = do(t, r, http.MethodPut, "/api/projects/missing", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodDelete, "/api/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProjects_UpdateSchemasWithoutText(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := do(t, r, http.MethodPost, "/api/projects", usersProject)
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode(t, rr)["project"].(map[string]any)["id"].(string)

	rr = do(t, r, http.MethodPut, "/api/projects/"+id, map[string]any{
		"schemas": map[string]any{"Order": map[string]any{"type": "object"}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	p := decode(t, rr)["project"].(map[string]any)
	assert.Contains(t, p["schemaText"], "Order:")
	assert.NotContains(t, p["schemaText"], "User:")
}

func TestProjects_UpdateReplacesRequestsAndExtra(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := do(t, r, http.MethodPost, "/api/projects", map[string]any{
		"name": "Users",
		"requests": []any{map[string]any{
			"url": "/a", "method": "GET", "operationId": "oldId",
			"summary": "old summary", "stdHeaders": []string{"x-trace-id"},
		}},
		"extra": map[string]any{"vitality": true},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := decode(t, rr)["project"].(map[string]any)["id"].(string)

	rr = do(t, r, http.MethodPut, "/api/projects/"+id, map[string]any{
		"requests": []any{map[string]any{"url": "/b", "method": "POST"}},
		"extra":    map[string]any{"ping": true},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	p := body["project"].(map[string]any)

	reqs := p["requests"].([]any)
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]any{"url": "/b", "method": "POST"}, reqs[0])
	assert.Equal(t, map[string]any{"vitality": false, "ping": true}, p["extra"])
	assert.NotContains(t, body["swagger"], "oldId")
	assert.NotContains(t, body["swagger"], "/vitality")
}

func TestGenerateCode(t *testing.T) {
	s := store.NewMemory()
	r := newTestRouter(t, s)

	var inline map[string]any
	require.NoError(t, json.Unmarshal([]byte(usersProject), &inline))

	rr := do(t, r, http.MethodPost, "/api/generate-code", map[string]any{"project": inline, "language": "go"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "go", body["language"])
	assert.Contains(t, body["code"], "func (c *Client) GetUserById(")

	rr = do(t, r, http.MethodPost, "/api/projects", usersProject)
	id := decode(t, rr)["project"].(map[string]any)["id"].(string)
	rr = do(t, r, http.MethodPost, "/api/generate-code", map[string]any{"projectId": id, "language": "node-express"})
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Equal(t, "typescript", body["language"])
	assert.Equal(t, true, body["fallback"])
	assert.Contains(t, body["code"], "export function getUserById(")

	rr = do(t, r, http.MethodPost, "/api/generate-code", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "project or projectId is required", decode(t, rr)["message"])

	rr = do(t, r, http.MethodPost, "/api/generate-code", map[string]any{"projectId": "nope"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/generate-code", map[string]any{"project": map[string]any{"name": "x", "schemaText": "- a"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "StructureError", decode(t, rr)["code"])
}

func TestAppendix(t *testing.T) {
	r := newTestRouter(t, nil)
	var inline map[string]any
	require.NoError(t, json.Unmarshal([]byte(usersProject), &inline))

	rr := do(t, r, http.MethodPost, "/api/appendix", map[string]any{"project": inline, "rtl": true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html"))
	html := rr.Body.String()
	assert.Contains(t, html, "direction:rtl")
	assert.Contains(t, html, "API Appendix – Users")
	assert.Contains(t, html, "items[] — opening element")
}

func TestGenerate_Download(t *testing.T) {
	r := newTestRouter(t, nil)
	var inline map[string]any
	require.NoError(t, json.Unmarshal([]byte(usersProject), &inline))

	rr := do(t, r, http.MethodPost, "/api/generate", map[string]any{"project": inline, "artifact": "sdk", "language": "python", "title": "My: API"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, `attachment; filename="My%20%20API.py"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "def get_user_by_id(")

	rr = do(t, r, http.MethodPost, "/api/generate", map[string]any{"project": inline})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="openapi.yaml"`, rr.Header().Get("Content-Disposition"))

	rr = do(t, r, http.MethodPost, "/api/generate", map[string]any{"project": inline, "artifact": "pdf"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNormalizeSchema(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := do(t, r, http.MethodPost, "/api/schemas/normalize", map[string]any{
		"text":   `{"schemas": {"User": {"type": "object", "properties": {"id": {"type": "integer"}}}}}`,
		"format": "yaml",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["count"])
	assert.True(t, strings.HasPrefix(body["text"].(string), "User:\n"))
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "User", entries[0].(map[string]any)["name"])

	rr = do(t, r, http.MethodPost, "/api/schemas/normalize", map[string]any{
		"format":  "json",
		"entries": []any{map[string]any{"name": "Tag", "type": "object", "props": []any{map[string]any{"key": "label", "type": "string", "required": true}}}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body = decode(t, rr)
	assert.Contains(t, body["text"], `"Tag"`)
	assert.Contains(t, body["text"], `"label"`)

	rr = do(t, r, http.MethodPost, "/api/schemas/normalize", map[string]any{"text": "{broken"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestProjects_RedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := newTestRouter(t, store.NewRedis(client))
	defer client.Close()

	rr := do(t, r, http.MethodPost, "/api/projects", usersProject)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := decode(t, rr)["project"].(map[string]any)["id"].(string)

	rr = do(t, r, http.MethodGet, "/api/projects/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	p := decode(t, rr)["project"].(map[string]any)
	assert.Equal(t, "Users", p["name"])
	assert.NotNil(t, p["schemas"].(map[string]any)["User"])
}

func TestProjects_Import(t *testing.T) {
	s := store.NewMemory()
	r := newTestRouter(t, s)

	rr := do(t, r, http.MethodPost, "/api/projects", usersProject)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	swagger, _ := decode(t, rr)["swagger"].(string)
	require.NotEmpty(t, swagger)

	rr = do(t, r, http.MethodPost, "/api/projects/import", swagger)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	p := body["project"].(map[string]any)
	assert.Equal(t, "Users", p["name"])
	assert.NotEmpty(t, p["id"])
	reqs := p["requests"].([]any)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/users/{id}", reqs[0].(map[string]any)["url"])
	assert.Equal(t, swagger, body["swagger"])

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	rr = do(t, r, http.MethodPost, "/api/projects/import", "title: nope\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "ParseError", decode(t, rr)["code"])
}
