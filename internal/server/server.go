// Package server exposes project storage and the generators over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/store"
)

// maxBodyBytes bounds request payloads; projects carry example bodies.
const maxBodyBytes = 20 << 20

// Deps wires the router.
type Deps struct {
	Store       store.Store
	CORSOrigins []string
	// Descriptor options applied to every rendered descriptor.
	Descriptor []descriptor.Option
	Version    string
}

// Handler serves the API routes.
type Handler struct {
	store   store.Store
	opts    []descriptor.Option
	version string
	started time.Time
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(dep Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(cors.New(corsConfig(dep.CORSOrigins)))
	r.Use(limitBody(maxBodyBytes))

	h := &Handler{store: dep.Store, opts: dep.Descriptor, version: dep.Version, started: time.Now()}
	if h.store == nil {
		h.store = store.NewMemory()
	}
	if h.version == "" {
		h.version = "dev"
	}
	h.Register(r)
	return r
}

// Register attaches every route to r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	projects := api.Group("/projects")
	projects.GET("", h.listProjects)
	projects.POST("", h.createProject)
	projects.POST("/import", h.importProject)
	projects.GET("/:id", h.getProject)
	projects.PUT("/:id", h.updateProject)
	projects.DELETE("/:id", h.deleteProject)
	projects.GET("/:id/swagger", h.projectSwagger)

	api.POST("/generate", h.generate)
	api.POST("/generate-code", h.generateCode)
	api.POST("/appendix", h.appendix)
	api.POST("/schemas/normalize", h.normalizeSchema)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", RequestIDHeader)
	cfg.ExposeHeaders = []string{RequestIDHeader, "Content-Disposition"}
	cfg.AllowAllOrigins = len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}
