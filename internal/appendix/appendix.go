// Package appendix renders the per-request field tables appended to the
// exported document.
package appendix

import (
	"strings"

	"github.com/mark3labs/specforge/internal/project"
	"github.com/mark3labs/specforge/internal/schema"
)

// Columns is the fixed header of every table.
var Columns = [5]string{"Field name", "Description / value", "Mandatory", "Format", "Source/Logic/Default value"}

// RowKind separates leaf rows from structure markers.
type RowKind string

const (
	Leaf  RowKind = "leaf"
	Open  RowKind = "open"
	Close RowKind = "close"
)

// Row is one table row. Open and Close rows only carry Label.
type Row struct {
	Kind        RowKind `json:"kind"`
	Label       string  `json:"label,omitempty"`
	Field       string  `json:"field,omitempty"`
	Description string  `json:"description,omitempty"`
	Mandatory   string  `json:"mandatory,omitempty"`
	Format      string  `json:"format,omitempty"`
	Source      string  `json:"source,omitempty"`
}

func leaf(field, desc, mandatory, format string) Row {
	return Row{Kind: Leaf, Field: field, Description: desc, Mandatory: mandatory, Format: format}
}

// FragmentKind names the markup element a Fragment renders to.
type FragmentKind string

const (
	KindRule      FragmentKind = "rule"
	KindTitle     FragmentKind = "title"
	KindHeading   FragmentKind = "heading"
	KindParagraph FragmentKind = "paragraph"
	KindTable     FragmentKind = "table"
)

// Fragment is one block of the appendix.
type Fragment struct {
	Kind FragmentKind `json:"kind"`
	Text string       `json:"text,omitempty"`
	Rows []Row        `json:"rows,omitempty"`
}

// Flatten walks a decoded JSON value. Objects and arrays become an Open row,
// their children and a matching Close row; arrays describe only their first
// element, named "<name>[]" or "item". Every leaf is mandatory.
func Flatten(value any, label string) []Row {
	var rows []Row
	var walk func(v any, name string)
	walk = func(v any, name string) {
		group := name
		if group == "" {
			group = label
		}
		switch x := v.(type) {
		case []any:
			rows = append(rows, Row{Kind: Open, Label: group})
			if len(x) > 0 {
				child := "item"
				if name != "" {
					child = name + "[]"
				}
				walk(x[0], child)
			}
			rows = append(rows, Row{Kind: Close, Label: group})
		case *schema.Object:
			rows = append(rows, Row{Kind: Open, Label: group})
			for pair := x.Oldest(); pair != nil; pair = pair.Next() {
				walk(pair.Value, pair.Key)
			}
			rows = append(rows, Row{Kind: Close, Label: group})
		default:
			rows = append(rows, leaf(name, "", "yes", formatOf(v)))
		}
	}
	walk(value, label)
	return rows
}

func formatOf(v any) string {
	switch v.(type) {
	case nil:
		return "Null"
	case bool:
		return "Boolean"
	case int64, float64:
		return "Number"
	}
	return "String"
}

// parseExample decodes an example payload; blank or malformed text is
// absent.
func parseExample(text string) (any, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	v, err := schema.DecodeJSON(text)
	if err != nil {
		return nil, false
	}
	return v, true
}

// HeaderRows lists the request's header names. A freeform header blob that
// is not a JSON object contributes one name per non-empty line.
func HeaderRows(r project.RequestSpec) []Row {
	names := r.HeaderNames()
	if text := strings.TrimSpace(r.Headers); text != "" && project.FreeformHeaderKeys(text) == nil {
		if v, ok := parseExample(text); !ok || !isObject(v) {
			names = dedupe(append(append([]string(nil), r.StdHeaders...), strings.Split(text, "\n")...))
		}
	}
	rows := make([]Row, 0, len(names))
	for _, h := range names {
		rows = append(rows, leaf(h, "Not relevant", "yes", "String"))
	}
	return rows
}

func isObject(v any) bool {
	_, ok := v.(*schema.Object)
	return ok
}

func dedupe(vals []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// PathRows has one mandatory row per URL placeholder.
func PathRows(url string) []Row {
	var rows []Row
	for _, name := range project.PathParams(url) {
		rows = append(rows, leaf(name, "", "yes", "String"))
	}
	return rows
}

// QueryRows has one optional row per literal query key.
func QueryRows(url string) []Row {
	var rows []Row
	for _, name := range project.QueryParams(url) {
		rows = append(rows, leaf(name, "", "no", "String"))
	}
	return rows
}

// Title is the appendix heading for p.
func Title(p *project.Project) string {
	if p != nil && strings.TrimSpace(p.Name) != "" {
		return "API Appendix – " + strings.TrimSpace(p.Name)
	}
	return "API Appendix"
}

// Build returns the appendix blocks. A project without requests has none.
func Build(p *project.Project) []Fragment {
	if p == nil || len(p.Requests) == 0 {
		return nil
	}
	frags := []Fragment{{Kind: KindRule}, {Kind: KindTitle, Text: Title(p)}}
	heading := func(s string) { frags = append(frags, Fragment{Kind: KindHeading, Text: s}) }
	table := func(title string, rows []Row) {
		heading(title)
		frags = append(frags, Fragment{Kind: KindTable, Rows: rows})
	}

	for _, r := range p.Requests {
		method := r.HTTPMethod()
		url := r.Path()
		heading(string(method) + " " + url)
		heading("Request URL")
		frags = append(frags, Fragment{Kind: KindParagraph, Text: url})

		var meta []string
		if s := strings.TrimSpace(r.Summary); s != "" {
			meta = append(meta, "summary: "+s)
		}
		if s := strings.TrimSpace(r.Description); s != "" {
			meta = append(meta, "description: "+s)
		}
		if s := strings.TrimSpace(r.OperationID); s != "" {
			meta = append(meta, "operationId: "+s)
		}
		if len(meta) > 0 {
			frags = append(frags, Fragment{Kind: KindParagraph, Text: strings.Join(meta, "\n")})
		}

		if rows := HeaderRows(r); len(rows) > 0 {
			wrapped := append([]Row{{Kind: Open, Label: "RequestHeader"}}, rows...)
			table("Headers", append(wrapped, Row{Kind: Close, Label: "RequestHeader"}))
		}
		if rows := PathRows(url); len(rows) > 0 {
			table("PATH", rows)
		}
		if rows := QueryRows(url); len(rows) > 0 {
			table("Query string", rows)
		}
		if body, ok := parseExample(r.Request); ok && !project.NoBodyMethod(method) {
			table("Body", Flatten(body, "Body"))
		}
		if resp, ok := parseExample(r.Response); ok {
			rows := Flatten(resp, "Response")
			if len(rows) > 0 {
				rows = append(append([]Row{{Kind: Open, Label: "ResponseHeader"}}, rows...), Row{Kind: Close, Label: "ResponseHeader"})
			}
			table("Response", rows)
		}
	}
	return frags
}
