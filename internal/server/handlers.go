package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/specforge/internal/importer"
	"github.com/mark3labs/specforge/internal/pipeline"
	"github.com/mark3labs/specforge/internal/project"
	"github.com/mark3labs/specforge/internal/schema"
	"github.com/mark3labs/specforge/internal/store"
)

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// failErr maps domain errors onto status codes.
func (h *Handler) failErr(c *gin.Context, err error) {
	var serr *schema.Error
	var lerr *project.LoadError
	var ierr *importer.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrNameRequired):
		fail(c, http.StatusBadRequest, "name is required")
	case errors.As(err, &serr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": serr.Message, "code": serr.Code, "format": serr.Format})
	case errors.As(err, &lerr):
		fail(c, http.StatusBadRequest, lerr.Message)
	case errors.As(err, &ierr):
		c.JSON(http.StatusBadRequest, gin.H{"message": ierr.Message, "code": ierr.Code, "pointer": ierr.JSONPointer})
	default:
		log.Printf("[ERROR] request_id=%s %v", GetRequestID(c.Request.Context()), err)
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return data, true
}

func (h *Handler) listProjects(c *gin.Context) {
	items, err := h.store.List(c.Request.Context())
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": items})
}

func (h *Handler) getProject(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// decodeProject reads a project payload. Malformed JSON is a 400; an
// invalid inline schema mapping is reported as a schema error.
func decodeProject(data []byte, into *project.Project) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &project.LoadError{Code: project.ParseError, Message: "invalid body", Cause: err}
	}
	// Keys present in the payload replace the stored value wholesale;
	// json.Unmarshal would otherwise merge into the existing elements.
	if _, ok := fields["requests"]; ok {
		into.Requests = nil
	}
	if _, ok := fields["extra"]; ok {
		into.Extra = project.Extra{}
	}
	// A mapping sent without text replaces the stored text.
	if _, ok := fields["schemas"]; ok {
		into.Schemas = nil
		if _, hasText := fields["schemaText"]; !hasText {
			into.SchemaText = ""
		}
	}
	if err := json.Unmarshal(data, into); err != nil {
		var serr *schema.Error
		if errors.As(err, &serr) {
			return serr
		}
		return &project.LoadError{Code: project.ParseError, Message: "invalid body", Cause: err}
	}
	into.Name = strings.TrimSpace(into.Name)
	into.JiraTicket = strings.TrimSpace(into.JiraTicket)
	return nil
}

func (h *Handler) respondWithSwagger(c *gin.Context, status int, p *project.Project) {
	c.JSON(status, gin.H{"project": p, "swagger": pipeline.Descriptor(p, h.opts...)})
}

func (h *Handler) createProject(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	var p project.Project
	if err := decodeProject(data, &p); err != nil {
		h.failErr(c, err)
		return
	}
	if p.Name == "" {
		fail(c, http.StatusBadRequest, "name is required")
		return
	}
	p.ID = ""
	created, err := h.store.Create(c.Request.Context(), &p)
	if err != nil {
		h.failErr(c, err)
		return
	}
	h.respondWithSwagger(c, http.StatusOK, created)
}

// importProject stores the project described by an OpenAPI or Swagger
// document sent as the raw body. References are never fetched.
func (h *Handler) importProject(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	doc, err := importer.Parse(c.Request.Context(), data, importer.WithStrict(c.Query("strict") == "true"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	p, err := importer.ToProject(doc)
	if err != nil {
		h.failErr(c, err)
		return
	}
	created, err := h.store.Create(c.Request.Context(), p)
	if err != nil {
		h.failErr(c, err)
		return
	}
	h.respondWithSwagger(c, http.StatusOK, created)
}

func (h *Handler) updateProject(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	updated, err := h.store.Update(c.Request.Context(), c.Param("id"), func(p *project.Project) error {
		return decodeProject(data, p)
	})
	if err != nil {
		h.failErr(c, err)
		return
	}
	h.respondWithSwagger(c, http.StatusOK, updated)
}

func (h *Handler) deleteProject(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) projectSwagger(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.Data(http.StatusOK, "text/yaml; charset=utf-8", []byte(pipeline.Descriptor(p, h.opts...)))
}

// generateReq names a project inline or by id.
type generateReq struct {
	Project   json.RawMessage `json:"project"`
	ProjectID string          `json:"projectId"`
	Language  string          `json:"language"`
	Artifact  string          `json:"artifact"`
	RTL       bool            `json:"rtl"`
	Title     string          `json:"title"`
}

func (h *Handler) resolveProject(c *gin.Context) (*generateReq, *project.Project, bool) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return nil, nil, false
	}
	raw := strings.TrimSpace(string(req.Project))
	if raw != "" && raw != "null" {
		p, err := project.Parse(req.Project)
		if err != nil {
			var lerr *project.LoadError
			if errors.As(err, &lerr) && lerr.Code == project.SchemaError {
				h.failErr(c, lerr.Cause)
				return nil, nil, false
			}
			h.failErr(c, err)
			return nil, nil, false
		}
		return &req, p, true
	}
	if req.ProjectID != "" {
		p, err := h.store.Get(c.Request.Context(), req.ProjectID)
		if err != nil {
			h.failErr(c, err)
			return nil, nil, false
		}
		return &req, p, true
	}
	fail(c, http.StatusBadRequest, "project or projectId is required")
	return nil, nil, false
}

func (h *Handler) generateCode(c *gin.Context) {
	req, p, ok := h.resolveProject(c)
	if !ok {
		return
	}
	res := pipeline.SDK(p, req.Language)
	c.JSON(http.StatusOK, gin.H{
		"code":       res.Source,
		"language":   res.Target,
		"fileName":   res.FileName,
		"fallback":   res.Fallback,
		"collisions": res.Collisions,
	})
}

func (h *Handler) appendix(c *gin.Context) {
	req, p, ok := h.resolveProject(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pipeline.Document(p, req.RTL)))
}

var unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// attachmentName strips characters that are not allowed in file names.
func attachmentName(title, fallback string) string {
	safe := strings.TrimSpace(unsafeFileChars.ReplaceAllString(title, " "))
	if safe == "" {
		return fallback
	}
	ext := fallback[strings.LastIndex(fallback, "."):]
	return safe + ext
}

// generate returns any artifact as a download.
func (h *Handler) generate(c *gin.Context) {
	req, p, ok := h.resolveProject(c)
	if !ok {
		return
	}
	artifact, err := pipeline.ParseArtifact(req.Artifact)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	out, err := pipeline.Generate(p, pipeline.Request{Artifact: artifact, Target: req.Language, RTL: req.RTL, Options: h.opts})
	if err != nil {
		h.failErr(c, err)
		return
	}
	name := attachmentName(req.Title, out.FileName)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(name)))
	c.Data(http.StatusOK, out.ContentType, []byte(out.Content))
}

type normalizeReq struct {
	Text    string         `json:"text"`
	Format  string         `json:"format"`
	Entries []schema.Entry `json:"entries"`
}

// normalizeSchema parses schema text, or rebuilds it from builder entries
// when no text is sent, and returns both views.
func (h *Handler) normalizeSchema(c *gin.Context) {
	var req normalizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	var m *schema.Mapping
	if strings.TrimSpace(req.Text) == "" && len(req.Entries) > 0 {
		m = schema.BuilderToMapping(req.Entries)
	} else {
		var err error
		if m, err = schema.Normalize(req.Text); err != nil {
			h.failErr(c, err)
			return
		}
	}
	text, err := schema.ToText(m, schema.ParseFormat(req.Format))
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"text":    text,
		"count":   m.Len(),
		"entries": schema.MappingToBuilder(m),
	})
}
