// Package pyemitter renders the Python SDK.
package pyemitter

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/project"
)

var reserved = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	// wrapper parameters and runtime names
	"client": true, "query": true, "body": true, "headers": true, "overrides": true,
	"require_param": true, "pick_headers": true, "backoff": true, "expand_path": true,
	"encode_query": true, "parse_retry_after": true,
}

var style = emitter.Style{Name: emitter.Snake, Param: emitter.Snake, Reserved: reserved}

var funcs = template.FuncMap{
	"quote":   emitter.Quote,
	"comment": emitter.CommentSafe,
	"list": func(items []string) string {
		q := make([]string, len(items))
		for i, s := range items {
			q[i] = emitter.Quote(s)
		}
		return "[" + strings.Join(q, ", ") + "]"
	},
}

var operationTmpl = template.Must(template.New("operation").Funcs(funcs).Parse(`def {{.Name}}(
    client: ApiClient,
{{- range .PathParams}}
    {{.Ident}}: str,
{{- end}}
    *,
    query: Optional[Mapping[str, Any]] = None,
    body: Any = None,
    headers: Optional[Mapping[str, str]] = None,
    overrides: Optional[Mapping[str, str]] = None,
) -> ApiResult:
    {{quote .Doc}}
{{- range .PathParams}}
    require_param({{quote .Name}}, {{.Ident}})
{{- end}}
    return client.request(
        {{quote (print .Method)}},
        {{quote .URL}},
        { {{- range $i, $p := .PathParams}}{{if $i}}, {{end}}{{quote $p.Name}}: {{$p.Ident}}{{end -}} },
        query,
        pick_headers(headers, overrides, {{list .Headers}}),
        body,
    )
`))

type operationData struct {
	emitter.Operation
	Doc string
}

// Emitter renders Python source.
type Emitter struct{}

func New() *Emitter { return &Emitter{} }

func (e *Emitter) Target() emitter.Target { return emitter.Python }

func (e *Emitter) FileName() string { return "client.py" }

func (e *Emitter) Style() emitter.Style { return style }

func (e *Emitter) BuildRuntime(*project.Project) string { return runtimePy }

func (e *Emitter) BuildOperations(p *project.Project) string {
	var b strings.Builder
	for i, op := range emitter.Operations(p, style) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		doc := fmt.Sprintf("%s %s", op.Method, emitter.CommentSafe(op.URL))
		if op.Summary != "" {
			doc += ": " + emitter.CommentSafe(op.Summary)
		}
		data := operationData{Operation: op, Doc: doc}
		if err := operationTmpl.Execute(&b, data); err != nil {
			fmt.Fprintf(&b, "# error rendering %s: %v\n", op.Name, err)
		}
	}
	return b.String()
}

