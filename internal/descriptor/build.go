// Package descriptor assembles the OpenAPI 3.0.3 document for a project.
//
// The output is written line by line rather than marshaled so that the
// instruction comments and key order stay stable for reviewers diffing
// successive revisions.
package descriptor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mark3labs/specforge/internal/project"
	"github.com/mark3labs/specforge/internal/schema"
	"gopkg.in/yaml.v3"
)

var operationIDRe = regexp.MustCompile(`[/{}-]+`)

// DefaultOperationID joins the lower-cased method with the URL, replacing
// every run of '/', '{', '}' and '-' by a single underscore.
func DefaultOperationID(method project.HTTPMethod, url string) string {
	return strings.ToLower(string(method)) + operationIDRe.ReplaceAllString(url, "_")
}

// ContactName derives a display name from an email's local part:
// "jane.doe@x" becomes "Jane Doe". Empty segments are dropped.
func ContactName(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	var parts []string
	for _, seg := range strings.Split(local, ".") {
		if seg == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(seg)
		parts = append(parts, string(unicode.ToUpper(r))+seg[size:])
	}
	return strings.Join(parts, " ")
}

// Build renders the descriptor text. It never fails: missing fields fall
// back to defaults and an empty schema mapping yields an empty section.
func Build(p *project.Project, opts ...Option) string {
	s := DefaultSettings()
	for _, o := range opts {
		o(&s)
	}
	if p == nil {
		p = &project.Project{}
	}
	w := &lineWriter{}
	writeInfo(w, p, s)
	writeInstructions(w)
	writePaths(w, p)
	writeComponents(w, p, s)
	return w.String()
}

func writeInfo(w *lineWriter, p *project.Project, s Settings) {
	name := p.DisplayName()
	desc := strings.TrimSpace(p.SwaggerDescription)
	if desc == "" {
		desc = "—"
	}
	email := strings.TrimSpace(p.ManagerEmail)
	contact := ContactName(email)
	if contact == "" {
		contact = name
	}
	if email == "" {
		email = s.DefaultEmail
	}
	ticket := strings.TrimSpace(p.JiraTicket)
	if ticket == "" {
		ticket = s.DefaultTicket
	}

	w.line("openapi: 3.0.3")
	w.line("info:")
	w.line("  version: 1.0.0")
	w.line("  title: %s", scalar(name))
	w.line("  description: %s", scalar(desc))
	w.line("  contact:")
	w.line("    name: %s", scalar(contact))
	w.line("    email: %s", scalar(email))
	w.line("    # organization openapi extensions")
	w.line("  x-jira-ticket: %s", scalar(ticket))
	w.line("  x-api-template: %s # do not change", scalar(s.Template))
	w.line("  x-api-environment: %s  # default: campus", scalar(s.Environment))
	w.line("  x-api-organization: %s #default: %s", scalar(s.Organization), s.Organization)
	w.line("  x-apigee-server: %s  # gateway host, default: nonprod", scalar(s.GatewayHost))
	w.line("  x-proxy-name: %s # final proxy name in the gateway", quoted(name))
	w.blank()
}

var instructions = []string{
	"# instructions",
	"# 1. keep the info block extensions, they drive the gateway deployment",
	"# 2. x-jira-ticket must reference the approval ticket for this API",
	"# 3. x-proxy-name becomes the final proxy name and cannot be renamed later",
	"# 4. every operation needs a unique operationId",
	"# 5. operationIds become function names in the generated SDKs",
	"# 6. prefer nouns in paths and verbs in methods",
	"# 7. path parameters are written as {name} inside the url",
	"# 8. standard headers are referenced from the shared dictionary",
	"# 9. custom headers are declared under components.parameters",
	"# 10. request and response bodies reference components.schemas",
	"# 11. uncomment BearerAuth on operations that require a jwt",
	"# 12. do not edit the tags block",
	"# 13. validate the file before submitting it for approval",
}

func writeInstructions(w *lineWriter) {
	for _, l := range instructions {
		w.line("%s", l)
	}
	w.blank()
	w.line("tags: # do not change")
	w.line("- name: AAB")
	w.line("  description: AAB approved Swagger")
	w.blank()
	w.line("servers:")
	w.line("  # gateway setup, change only when the api version changes")
	w.blank()
}

// pathGroup gathers the operations declared for one URL so that the path
// key is written once.
type pathGroup struct {
	url string
	ops []pathOp
}

type pathOp struct {
	method string
	write  func(w *lineWriter)
}

func (g *pathGroup) has(method string) bool {
	for _, op := range g.ops {
		if op.method == method {
			return true
		}
	}
	return false
}

// pathGroups keys requests by URL without the query string. A request whose
// method is already taken under that key keeps its full URL as its own key;
// a request repeating both URL and method is dropped, first one wins.
type pathGroups struct {
	list []*pathGroup
	idx  map[string]*pathGroup
}

func (gs *pathGroups) add(url, method string, write func(w *lineWriter)) bool {
	if gs.idx == nil {
		gs.idx = map[string]*pathGroup{}
	}
	g, ok := gs.idx[url]
	if !ok {
		g = &pathGroup{url: url}
		gs.idx[url] = g
		gs.list = append(gs.list, g)
	}
	if g.has(method) {
		return false
	}
	g.ops = append(g.ops, pathOp{method: method, write: write})
	return true
}

func groupByPath(reqs []project.RequestSpec) *pathGroups {
	gs := &pathGroups{}
	for _, r := range reqs {
		method := string(r.HTTPMethod())
		write := func(w *lineWriter) { writeOperation(w, r) }
		if !gs.add(project.PathOnly(r.Path()), method, write) {
			gs.add(r.Path(), method, write)
		}
	}
	return gs
}

func writePaths(w *lineWriter, p *project.Project) {
	gs := groupByPath(p.Requests)
	if p.Extra.Vitality {
		gs.add("/vitality", string(project.GET), func(w *lineWriter) {
			writeHealthOperation(w, "getMyVitality", "vitality check", "Vitality check for the api")
		})
	}
	if p.Extra.Ping {
		gs.add("/Ping", string(project.GET), func(w *lineWriter) {
			writeHealthOperation(w, "getMyPing", "ping check", "Ping check for the api")
		})
	}
	w.line("paths:")
	for _, g := range gs.list {
		w.line("  %s:", scalar(g.url))
		for _, op := range g.ops {
			op.write(w)
		}
	}
	w.blank()
	w.line("security:")
	w.line("  - ApiKeyAuth: []")
	w.blank()
}

func writeOperation(w *lineWriter, r project.RequestSpec) {
	method := r.HTTPMethod()
	url := r.Path()
	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		summary = fmt.Sprintf("Auto summary for %s %s", method, url)
	}
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = fmt.Sprintf("Auto description for %s %s", method, url)
	}
	opID := strings.TrimSpace(r.OperationID)
	if opID == "" {
		opID = DefaultOperationID(method, url)
	}

	w.line("    %s:", strings.ToLower(string(method)))
	w.line("      tags:")
	w.line("        - info")
	w.line("      summary: %s", scalar(summary))
	w.line("      description: %s", scalar(desc))
	w.line("      operationId: %s", scalar(opID))
	w.line("      # jwt security per method")
	w.line("      #security:")
	w.line("      #  - BearerAuth: []")
	if headers := r.HeaderNames(); len(headers) > 0 {
		w.line("      parameters:")
		for _, h := range headers {
			w.line("        - $ref: %s", singleQuoted("#/components/parameters/"+h))
		}
	}
	w.line("      responses:")
	w.line("        '200':")
	w.line("          description: Successful")
}

func writeHealthOperation(w *lineWriter, opID, summary, desc string) {
	w.line("    get:")
	w.line("      tags:")
	w.line("        - ping")
	w.line("      summary: %s", scalar(summary))
	w.line("      description: %s", scalar(desc))
	w.line("      operationId: %s", opID)
	w.line("      responses:")
	w.line("        '200':")
	w.line("          description: OK")
	w.line("        '500':")
	w.line("          description: Internal Server Error")
}

// ReservedSchemaName is the component every descriptor declares for the
// user qualifier; a project schema of the same name is left out.
const ReservedSchemaName = "User-id-ref"

// ShadowedSchemas lists project schemas the descriptor leaves out because
// their name is reserved.
func ShadowedSchemas(p *project.Project) []string {
	if p == nil {
		return nil
	}
	if _, ok := p.Schemas.Get(ReservedSchemaName); ok {
		return []string{ReservedSchemaName}
	}
	return nil
}

func userSchemas(m *schema.Mapping) *schema.Mapping {
	if _, ok := m.Get(ReservedSchemaName); !ok {
		return m
	}
	out := schema.NewMapping()
	for _, name := range m.Names() {
		if name == ReservedSchemaName {
			continue
		}
		def, _ := m.Get(name)
		out.Set(name, def)
	}
	return out
}

func writeComponents(w *lineWriter, p *project.Project, s Settings) {
	w.line("components:")
	w.line("  securitySchemes:")
	w.line("    ApiKeyAuth:")
	w.line("      type: apiKey")
	w.line("      in: header")
	w.line("      name: X-APG-APIKey")
	w.line("    BearerAuth:")
	w.line("      type: http")
	w.line("      scheme: bearer")
	w.line("      bearerFormat: JWT")
	w.line("  schemas:")
	w.line("    %s:", ReservedSchemaName)
	w.line("      type: string")
	w.line("      example: K4F6TRW")
	if schemas := userSchemas(p.Schemas); schemas.Len() > 0 {
		if text, err := schema.ToText(schemas, schema.FormatYAML); err == nil {
			for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
				w.line("    %s", l)
			}
		}
	}
	w.blank()
	w.line("  # jwt security for all methods")
	w.line("  #security:")
	w.line("  #  - BearerAuth: []")
	w.line("  parameters:")
	w.line("    originalUserId:")
	w.line("      name: originalUserId")
	w.line("      in: path")
	w.line("      description: Qualifier Reference")
	w.line("      required: true")
	w.line("      schema:")
	w.line("        $ref: %s", singleQuoted("#/components/schemas/"+ReservedSchemaName))
	for _, h := range project.AggregateHeaders(p.Requests) {
		w.line("    %s:", scalar(h))
		if IsWellKnownHeader(h) {
			w.line("      $ref: %s", singleQuoted(s.DictionaryURL+"#/components/parameters/"+h))
			continue
		}
		w.line("      name: %s", scalar(h))
		w.line("      in: header")
		w.line("      required: false")
		w.line("      schema:")
		w.line("        type: string")
	}
}

// scalar renders s as an inline YAML scalar, plain when YAML allows it.
func scalar(s string) string {
	if strings.ContainsAny(s, "\n\r") {
		return quoted(s)
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return quoted(s)
	}
	text := strings.TrimSuffix(string(out), "\n")
	if strings.Contains(text, "\n") {
		return quoted(s)
	}
	return text
}

// quoted renders a double-quoted scalar; JSON string escapes are valid YAML.
func quoted(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func singleQuoted(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type lineWriter struct {
	b strings.Builder
}

func (w *lineWriter) line(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *lineWriter) blank() { w.b.WriteByte('\n') }

func (w *lineWriter) String() string { return w.b.String() }
