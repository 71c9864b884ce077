// Package npmemitter renders the TypeScript SDK, the default target.
package npmemitter

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/project"
)

var reserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true, "let": true, "static": true, "implements": true,
	"interface": true, "package": true, "private": true, "protected": true,
	"public": true, "await": true, "arguments": true, "eval": true,
	// wrapper parameters and runtime exports
	"client": true, "opts": true, "requireParam": true, "pickHeaders": true,
	"backoff": true, "expandPath": true, "encodeQuery": true, "parseRetryAfter": true,
}

var style = emitter.Style{Name: emitter.Camel, Param: emitter.Camel, Reserved: reserved}

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

var operationTmpl = template.Must(template.New("operation").Funcs(funcs).Parse(`/** {{.Method}} {{comment .URL}}{{if .Summary}} - {{comment .Summary}}{{end}} */
export function {{.Name}}(client: ApiClient{{range .PathParams}}, {{.Ident}}: string{{end}}, opts: CallOptions = {}): Promise<ApiResult> {
{{- range .PathParams}}
  requireParam({{quote .Name}}, {{.Ident}});
{{- end}}
  return client.request({{quote (print .Method)}}, {{quote .URL}}, { {{- range $i, $p := .PathParams}}{{if $i}},{{end}} {{quote $p.Name}}: {{$p.Ident}}{{end}} }, opts.query, pickHeaders(opts, {{list .Headers}}), opts.body, opts.signal);
}
`))

// Emitter renders TypeScript source.
type Emitter struct{}

func New() *Emitter { return &Emitter{} }

func (e *Emitter) Target() emitter.Target { return emitter.TypeScript }

func (e *Emitter) FileName() string { return "client.ts" }

func (e *Emitter) Style() emitter.Style { return style }

func (e *Emitter) BuildRuntime(*project.Project) string { return runtimeTS }

func (e *Emitter) BuildOperations(p *project.Project) string {
	var b strings.Builder
	for i, op := range emitter.Operations(p, style) {
		if i > 0 {
			b.WriteByte('\n')
		}
		if err := operationTmpl.Execute(&b, op); err != nil {
			fmt.Fprintf(&b, "// error rendering %s: %v\n", op.Name, err)
		}
	}
	return b.String()
}

