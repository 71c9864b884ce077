package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/project"
	"github.com/mark3labs/specforge/internal/schema"
	"gopkg.in/yaml.v3"
)

// Health operations written by the descriptor builder; importing them sets
// the matching Extra flag instead of adding a request.
const (
	vitalityOperationID = "getMyVitality"
	pingOperationID     = "getMyPing"
	builtinParameter    = "originalUserId"
	schemaRefPrefix     = "#/components/schemas/"
	parameterRefPrefix  = "#/components/parameters/"
)

// ToProject maps a loaded document onto a new project. Values the
// descriptor builder fills in by default are dropped so that importing a
// generated descriptor gives back the project it was built from.
func ToProject(d *Document) (*project.Project, error) {
	if d == nil || d.Doc == nil {
		return nil, &Error{Code: InputError, Message: "import: no document"}
	}
	defaults := descriptor.DefaultSettings()
	doc := d.Doc
	p := &project.Project{Requests: []project.RequestSpec{}}

	if info := doc.Info; info != nil {
		p.Name = strings.TrimSpace(info.Title)
		if desc := strings.TrimSpace(info.Description); desc != "—" {
			p.SwaggerDescription = desc
		}
		if info.Contact != nil {
			if email := strings.TrimSpace(info.Contact.Email); email != defaults.DefaultEmail {
				p.ManagerEmail = email
			}
		}
		if ticket := extString(info.Extensions, "x-jira-ticket"); ticket != defaults.DefaultTicket {
			p.JiraTicket = ticket
		}
	}

	for _, o := range descriptor.Operations(doc) {
		switch {
		case o.Operation.OperationID == vitalityOperationID && o.Path == "/vitality":
			p.Extra.Vitality = true
			continue
		case o.Operation.OperationID == pingOperationID && o.Path == "/Ping":
			p.Extra.Ping = true
			continue
		}
		p.Requests = append(p.Requests, toRequest(doc, o))
	}

	text, err := schemaText(d)
	if err != nil {
		return nil, &Error{Code: ParseError, Message: err.Error(), Location: d.Location, JSONPointer: "#/components/schemas", Cause: err}
	}
	p.SchemaText = text
	if err := p.Renormalize(); err != nil {
		return nil, &Error{Code: ParseError, Message: err.Error(), Location: d.Location, JSONPointer: "#/components/schemas", Cause: err}
	}
	if p.Schemas.Len() > 0 {
		if canonical, err := schema.ToText(p.Schemas, schema.FormatYAML); err == nil {
			p.SchemaText = canonical
		}
	}
	return p, nil
}

func toRequest(doc *openapi3.T, o descriptor.Operation) project.RequestSpec {
	op := o.Operation
	method := project.HTTPMethod(o.Method)
	r := project.RequestSpec{
		URL:    o.Path,
		Method: o.Method,
	}

	var std, custom, query []string
	params := append(append(openapi3.Parameters{}, o.Item.Parameters...), op.Parameters...)
	for _, ref := range params {
		name, in := parameterInfo(doc, ref)
		switch {
		case name == "" || name == builtinParameter:
		case in == openapi3.ParameterInHeader && descriptor.IsWellKnownHeader(name):
			std = appendUnique(std, name)
		case in == openapi3.ParameterInHeader:
			custom = appendUnique(custom, name)
		case in == openapi3.ParameterInQuery:
			query = appendUnique(query, name)
		}
	}
	r.StdHeaders = std
	r.Headers = freeformHeaders(custom)

	r.URL, r.OperationID = recoverURL(method, o.Path, strings.TrimSpace(op.OperationID))
	if len(query) > 0 && !strings.Contains(r.URL, "?") {
		q := make([]string, len(query))
		for i, k := range query {
			q[i] = url.QueryEscape(k) + "="
		}
		r.URL += "?" + strings.Join(q, "&")
		if r.OperationID == "" {
			r.OperationID = descriptor.DefaultOperationID(method, o.Path)
		}
	}

	if s := strings.TrimSpace(op.Summary); s != fmt.Sprintf("Auto summary for %s %s", method, r.URL) {
		r.Summary = s
	}
	if s := strings.TrimSpace(op.Description); s != fmt.Sprintf("Auto description for %s %s", method, r.URL) {
		r.Description = s
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		r.Request, r.RequestRefs = mediaExample(op.RequestBody.Value.Content)
	}
	if resp := successResponse(op.Responses); resp != nil {
		r.Response, r.ResponseRefs = mediaExample(resp.Content)
	}
	return r
}

// recoverURL undoes the query stripping of path keys: a default operation
// id still carries the literal query string of the request URL.
func recoverURL(method project.HTTPMethod, path, opID string) (string, string) {
	base := descriptor.DefaultOperationID(method, path)
	switch {
	case opID == "" || opID == base:
		return path, ""
	case strings.HasPrefix(opID, base+"?"):
		full := path + opID[len(base):]
		if descriptor.DefaultOperationID(method, full) == opID {
			return full, ""
		}
	}
	return path, opID
}

// parameterInfo names a parameter and its location, following component
// references. References that leave the document keep their last segment
// as the name and count as headers, which is how dictionary entries look.
func parameterInfo(doc *openapi3.T, ref *openapi3.ParameterRef) (string, string) {
	if ref == nil {
		return "", ""
	}
	if ref.Value != nil && ref.Value.Name != "" {
		return ref.Value.Name, ref.Value.In
	}
	if !strings.HasPrefix(ref.Ref, parameterRefPrefix) {
		return lastSegment(ref.Ref), openapi3.ParameterInHeader
	}
	key := strings.TrimPrefix(ref.Ref, parameterRefPrefix)
	if doc.Components != nil {
		if c := doc.Components.Parameters[key]; c != nil {
			if c.Value != nil && c.Value.Name != "" {
				return c.Value.Name, c.Value.In
			}
		}
	}
	return key, openapi3.ParameterInHeader
}

func lastSegment(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// freeformHeaders renders custom header names as the JSON object the
// project's free-text header field holds.
func freeformHeaders(names []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		k, _ := json.Marshal(n)
		b.Write(k)
		b.WriteString(`: ""`)
	}
	b.WriteString("}")
	return b.String()
}

func successResponse(rs openapi3.Responses) *openapi3.Response {
	for _, code := range []int{200, 201, 202} {
		if ref := rs.Get(code); ref != nil && ref.Value != nil {
			return ref.Value
		}
	}
	return nil
}

// mediaExample returns the JSON example of a body and the component
// schemas it references.
func mediaExample(content openapi3.Content) (string, []string) {
	mt := content.Get("application/json")
	if mt == nil {
		return "", nil
	}
	var refs []string
	var example any = mt.Example
	if mt.Schema != nil {
		if strings.HasPrefix(mt.Schema.Ref, schemaRefPrefix) {
			refs = append(refs, strings.TrimPrefix(mt.Schema.Ref, schemaRefPrefix))
		}
		if example == nil && mt.Schema.Value != nil {
			example = mt.Schema.Value.Example
		}
	}
	if example == nil && len(mt.Examples) > 0 {
		names := make([]string, 0, len(mt.Examples))
		for name := range mt.Examples {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if ex := mt.Examples[name]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
				example = ex.Value.Value
				break
			}
		}
	}
	if example == nil {
		return "", refs
	}
	out, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return "", refs
	}
	return string(out), refs
}

// extString reads a string extension; depending on how the document was
// decoded the value is either plain or still raw JSON.
func extString(ext map[string]interface{}, key string) string {
	switch v := ext[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.RawMessage:
		var s string
		if json.Unmarshal(v, &s) == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// schemaText cuts the component schemas out of the source bytes. The typed
// model stores schemas in maps, which would lose the author's key order.
func schemaText(d *Document) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(d.Raw, &root); err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	if len(root.Content) == 0 {
		return "", nil
	}
	var defs *yaml.Node
	if d.Version == 2 {
		defs = child(root.Content[0], "definitions")
	} else {
		defs = child(child(root.Content[0], "components"), "schemas")
	}
	if defs == nil || defs.Kind != yaml.MappingNode {
		return "", nil
	}

	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(defs.Content); i += 2 {
		if defs.Content[i].Value == descriptor.ReservedSchemaName {
			continue
		}
		out.Content = append(out.Content, defs.Content[i], defs.Content[i+1])
	}
	if len(out.Content) == 0 {
		return "", nil
	}
	blockStyle(out)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	text := buf.String()
	if d.Version == 2 {
		text = strings.ReplaceAll(text, "#/definitions/", schemaRefPrefix)
	}
	return text, nil
}

func child(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// blockStyle clears flow style so JSON sources re-encode as block YAML.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}
