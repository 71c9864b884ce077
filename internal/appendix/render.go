package appendix

import (
	"html/template"
	"regexp"
	"strings"

	"github.com/mark3labs/specforge/internal/project"
)

var spaceRe = regexp.MustCompile(`\s+`)

var tmpl = template.Must(template.New("appendix").Funcs(template.FuncMap{
	"title": func(s string) string { return strings.TrimSpace(spaceRe.ReplaceAllString(s, " ")) },
}).Parse(`
{{- define "rule"}}<hr style="margin-top:24px; border:none; border-top:2px solid #ccc;" />{{end}}
{{- define "title"}}<h2 style="margin:28px 0 6px; font-size:20px;">{{title .Text}}</h2>{{end}}
{{- define "heading"}}<h3 style="margin:16px 0 6px; font-size:16px;">{{title .Text}}</h3>{{end}}
{{- define "paragraph"}}<p style="margin:6px 0; font-size:12px; white-space:pre-wrap;">{{.Text}}</p>{{end}}
{{- define "table"}}
<table style="width:100%; border-collapse:collapse; margin:8px 0;">
<thead><tr>{{range $.Columns}}<th style="background:#dfe7f3; border:1px solid #999; padding:6px; font-size:12px;">{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
{{- if eq .Kind "open"}}<tr><td colspan="5" style="background:#e6e6e6; border:1px solid #999; padding:6px; font-weight:700;">{{.Label}} — opening element</td></tr>
{{- else if eq .Kind "close"}}<tr><td colspan="5" style="background:#e6e6e6; border:1px solid #999; padding:6px; font-weight:700;">{{.Label}} — closing element</td></tr>
{{- else}}<tr>{{template "cell" .Field}}{{template "cell" .Description}}{{template "cell" .Mandatory}}{{template "cell" .Format}}{{template "cell" .Source}}</tr>
{{- end}}
{{- end}}
</tbody>
</table>{{end}}
{{- define "cell"}}<td style="border:1px solid #999; padding:6px; font-size:12px; vertical-align:top; word-break:break-word;">{{.}}</td>{{end}}
{{- define "document"}}<div style="font-family:Arial,Helvetica,sans-serif; {{if .RTL}}direction:rtl; text-align:right;{{else}}direction:ltr; text-align:left;{{end}}">
{{.Intro}}
{{.Appendix}}
</div>{{end}}
`))

type tableData struct {
	Columns [5]string
	Rows    []Row
}

// RenderFragment renders one block as HTML.
func RenderFragment(f Fragment) string {
	var b strings.Builder
	var err error
	switch f.Kind {
	case KindTable:
		err = tmpl.ExecuteTemplate(&b, "table", tableData{Columns: Columns, Rows: f.Rows})
	case KindRule, KindTitle, KindHeading, KindParagraph:
		err = tmpl.ExecuteTemplate(&b, string(f.Kind), f)
	}
	if err != nil {
		return ""
	}
	return b.String()
}

// Render returns the appendix markup for p, empty when p has no requests.
func Render(p *project.Project) string {
	frags := Build(p)
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, RenderFragment(f))
	}
	return strings.Join(parts, "\n")
}

// Options controls Document.
type Options struct {
	RTL bool
}

// Document wraps the project's intro markup and the appendix in a
// direction-aware container, the input of the document converter. The intro
// is trusted editor markup and is not escaped.
func Document(p *project.Project, opts Options) string {
	var intro string
	if p != nil {
		intro = p.IntroText
	}
	var b strings.Builder
	err := tmpl.ExecuteTemplate(&b, "document", struct {
		RTL      bool
		Intro    template.HTML
		Appendix template.HTML
	}{opts.RTL, template.HTML(intro), template.HTML(Render(p))})
	if err != nil {
		return ""
	}
	return b.String()
}
