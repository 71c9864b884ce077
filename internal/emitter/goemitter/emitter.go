// Package goemitter renders a Go SDK. The runtime section is the source of
// pkg/apiclient with its package clause rewritten.
package goemitter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/project"
	"github.com/mark3labs/specforge/pkg/apiclient"
)

const header = "// Code generated by specforge. DO NOT EDIT.\n\n"

var reserved = map[string]bool{
	// keywords
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	// names used inside generated bodies
	"c": true, "ctx": true, "opts": true, "err": true, "string": true,
	"any": true, "error": true, "nil": true, "true": true, "false": true,
	"context": true,
	// runtime methods
	"Do": true, "Call": true,
}

var style = emitter.Style{Name: emitter.Pascal, Param: emitter.Camel, Reserved: reserved}

// Emitter renders Go source. Package defaults to a name derived from the
// project.
type Emitter struct {
	Package string
}

func New() *Emitter { return &Emitter{} }

func (e *Emitter) Target() emitter.Target { return emitter.Go }

func (e *Emitter) FileName() string { return "client.go" }

func (e *Emitter) Style() emitter.Style { return style }

// PackageName returns the package clause used for p.
func (e *Emitter) PackageName(p *project.Project) string {
	if e != nil && e.Package != "" {
		return sanitizePackage(e.Package)
	}
	if p == nil {
		return "apiclient"
	}
	return sanitizePackage(p.Name)
}

func (e *Emitter) BuildRuntime(p *project.Project) string {
	src := apiclient.Source
	src = strings.Replace(src, "package apiclient", "package "+e.PackageName(p), 1)
	return header + src
}

func (e *Emitter) BuildOperations(p *project.Project) string {
	var b strings.Builder
	for i, op := range emitter.Operations(p, style) {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeOperation(&b, op)
	}
	return b.String()
}

func writeOperation(b *strings.Builder, op emitter.Operation) {
	fmt.Fprintf(b, "// %s calls %s %s.\n", op.Name, op.Method, emitter.CommentSafe(op.URL))
	if op.Summary != "" {
		fmt.Fprintf(b, "// %s\n", emitter.CommentSafe(op.Summary))
	}
	b.WriteString("func (c *Client) " + op.Name + "(ctx context.Context")
	for _, p := range op.PathParams {
		b.WriteString(", " + p.Ident + " string")
	}
	b.WriteString(", opts *CallOptions) (Result, error) {\n")
	for _, p := range op.PathParams {
		fmt.Fprintf(b, "\tif err := RequireParam(%s, %s); err != nil {\n\t\treturn Result{}, err\n\t}\n", emitter.Quote(p.Name), p.Ident)
	}
	params := "nil"
	if len(op.PathParams) > 0 {
		pairs := make([]string, 0, len(op.PathParams))
		for _, p := range op.PathParams {
			pairs = append(pairs, emitter.Quote(p.Name)+": "+p.Ident)
		}
		params = "map[string]string{" + strings.Join(pairs, ", ") + "}"
	}
	fmt.Fprintf(b, "\treturn c.Call(ctx, %s, %s, %s, opts", emitter.Quote(string(op.Method)), emitter.Quote(op.URL), params)
	for _, h := range op.Headers {
		b.WriteString(", " + emitter.Quote(h))
	}
	b.WriteString(")\n}\n")
}

// sanitizePackage lower-cases name and keeps letters and digits.
func sanitizePackage(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	switch {
	case out == "":
		return "apiclient"
	case unicode.IsDigit(rune(out[0])):
		return "api" + out
	case reserved[out]:
		return out + "api"
	}
	return out
}
