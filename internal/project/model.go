package project

import (
	"strings"
	"time"

	"github.com/mark3labs/specforge/internal/schema"
)

// HTTPMethod is an upper-case HTTP verb as written on a RequestSpec.
type HTTPMethod string

const (
	GET     HTTPMethod = "GET"
	POST    HTTPMethod = "POST"
	PUT     HTTPMethod = "PUT"
	DELETE  HTTPMethod = "DELETE"
	PATCH   HTTPMethod = "PATCH"
	HEAD    HTTPMethod = "HEAD"
	OPTIONS HTTPMethod = "OPTIONS"
	TRACE   HTTPMethod = "TRACE"
)

// Project is the unit of work handed to every generator as a snapshot.
type Project struct {
	ID                 string        `json:"id,omitempty" yaml:"id,omitempty"`
	Name               string        `json:"name" yaml:"name"`
	ManagerEmail       string        `json:"managerEmail,omitempty" yaml:"managerEmail,omitempty"`
	SwaggerDescription string        `json:"swaggerDescription,omitempty" yaml:"swaggerDescription,omitempty"`
	JiraTicket         string        `json:"jiraTicket,omitempty" yaml:"jiraTicket,omitempty"`
	IntroText          string        `json:"introText,omitempty" yaml:"introText,omitempty"`
	Requests           []RequestSpec `json:"requests" yaml:"requests"`
	Extra              Extra         `json:"extra" yaml:"extra"`
	// SchemaText is the user-authored schema source; Schemas is derived from it.
	SchemaText string          `json:"schemaText,omitempty" yaml:"schemaText,omitempty"`
	Schemas    *schema.Mapping `json:"schemas,omitempty" yaml:"-"`
	CreatedAt  time.Time       `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt  time.Time       `json:"updatedAt,omitempty" yaml:"-"`
}

// Extra toggles the synthetic health-check endpoints.
type Extra struct {
	Vitality bool `json:"vitality" yaml:"vitality"`
	Ping     bool `json:"ping" yaml:"ping"`
}

// RequestSpec describes one HTTP operation. Placeholders like {id} in URL are
// the only source of path parameters.
type RequestSpec struct {
	URL         string   `json:"url" yaml:"url"`
	Method      string   `json:"method" yaml:"method"`
	StdHeaders  []string `json:"stdHeaders,omitempty" yaml:"stdHeaders,omitempty"`
	Headers     string   `json:"headers,omitempty" yaml:"headers,omitempty"`
	Request     string   `json:"request,omitempty" yaml:"request,omitempty"`
	Response    string   `json:"response,omitempty" yaml:"response,omitempty"`
	Summary     string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	OperationID string   `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	// RequestRefs and ResponseRefs link schemas in the editor only.
	RequestRefs  []string `json:"requestRefs,omitempty" yaml:"requestRefs,omitempty"`
	ResponseRefs []string `json:"responseRefs,omitempty" yaml:"responseRefs,omitempty"`
}

// HTTPMethod returns the upper-cased method, GET when blank.
func (r RequestSpec) HTTPMethod() HTTPMethod {
	m := strings.ToUpper(strings.TrimSpace(r.Method))
	if m == "" {
		return GET
	}
	return HTTPMethod(m)
}

// Path returns the trimmed URL template, "/path" when blank.
func (r RequestSpec) Path() string {
	u := strings.TrimSpace(r.URL)
	if u == "" {
		return "/path"
	}
	return u
}

// NoBodyMethod reports whether m conventionally carries no request body.
func NoBodyMethod(m HTTPMethod) bool {
	return m == GET || m == HEAD
}

// Mutating reports whether m gets an idempotency key in generated clients.
func Mutating(m HTTPMethod) bool {
	switch m {
	case POST, PUT, PATCH, DELETE:
		return true
	}
	return false
}

// DisplayName returns the trimmed project name, "API" when blank.
func (p *Project) DisplayName() string {
	if p == nil {
		return "API"
	}
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return "API"
}
