// Package emitter holds what the SDK targets share: the Emitter contract,
// target selection, name derivation and the per-operation view.
package emitter

import (
	"strconv"
	"strings"

	"github.com/mark3labs/specforge/internal/project"
)

// Target identifies an SDK language.
type Target string

const (
	TypeScript Target = "typescript"
	Python     Target = "python"
	Go         Target = "go"

	DefaultTarget = TypeScript
)

var aliases = map[string]Target{
	"typescript": TypeScript,
	"ts":         TypeScript,
	"npm":        TypeScript,
	"node":       TypeScript,
	"js":         TypeScript,
	"javascript": TypeScript,
	"python":     Python,
	"py":         Python,
	"go":         Go,
	"golang":     Go,
}

// Targets lists the supported targets, default first.
func Targets() []Target { return []Target{TypeScript, Python, Go} }

// ResolveTarget maps a case-insensitive selector to a Target. Unknown
// selectors fall back to DefaultTarget; ok reports whether s was recognized.
func ResolveTarget(s string) (t Target, ok bool) {
	if t, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, true
	}
	return DefaultTarget, false
}

// Emitter renders SDK source for one target. Implementations are pure.
type Emitter interface {
	Target() Target
	// FileName is the conventional file name for the rendered source.
	FileName() string
	// Style is the identifier convention used for wrapper names.
	Style() Style
	BuildRuntime(p *project.Project) string
	BuildOperations(p *project.Project) string
}

// Emit renders the runtime followed by the operation wrappers.
func Emit(e Emitter, p *project.Project) string {
	rt := strings.TrimRight(e.BuildRuntime(p), "\n")
	ops := strings.TrimRight(e.BuildOperations(p), "\n")
	if ops == "" {
		return rt + "\n"
	}
	return rt + "\n\n" + ops + "\n"
}

// Style is the identifier convention of a target.
type Style struct {
	Name  Casing
	Param Casing
	// Reserved reports words that cannot be used as identifiers; they get a
	// trailing underscore.
	Reserved map[string]bool
}

func (s Style) safe(id string) string {
	if s.Reserved[id] {
		return id + "_"
	}
	return id
}

// Param is a path placeholder and the identifier used for it in code.
type Param struct {
	Name  string
	Ident string
}

// Operation is the target-neutral view of one RequestSpec.
type Operation struct {
	Method     project.HTTPMethod
	URL        string
	Name       string
	PathParams []Param
	Headers    []string
	Summary    string
	// HasBody is false for methods that never send a body.
	HasBody bool
}

// Operations returns one Operation per request, in project order.
func Operations(p *project.Project, s Style) []Operation {
	if p == nil {
		return nil
	}
	out := make([]Operation, 0, len(p.Requests))
	for _, r := range p.Requests {
		m := r.HTTPMethod()
		name := DeriveOperationName(m, r.Path(), r.OperationID, s.Name)
		if name == "" {
			name = s.Name.Identifier("operation")
		}
		op := Operation{
			Method:  m,
			URL:     r.Path(),
			Name:    s.safe(name),
			Headers: r.HeaderNames(),
			Summary: strings.TrimSpace(r.Summary),
			HasBody: !project.NoBodyMethod(m),
		}
		used := map[string]bool{}
		seen := map[string]bool{}
		for i, raw := range project.PathParams(project.PathOnly(op.URL)) {
			// A repeated placeholder is filled from the same argument.
			if seen[raw] {
				continue
			}
			seen[raw] = true
			id := s.Param.Identifier(raw)
			if id == "" {
				id = s.Param.Identifier("param " + strconv.Itoa(i+1))
			}
			id = s.safe(id)
			for base, n := id, 2; used[id]; n++ {
				id = base + strconv.Itoa(n)
			}
			used[id] = true
			op.PathParams = append(op.PathParams, Param{Name: raw, Ident: id})
		}
		out = append(out, op)
	}
	return out
}

// DuplicateNames lists wrapper names derived for more than one operation,
// in first-seen order. Colliding wrappers are still emitted as derived;
// callers decide whether to warn or refuse.
func DuplicateNames(ops []Operation) []string {
	count := map[string]int{}
	var out []string
	for _, op := range ops {
		count[op.Name]++
		if count[op.Name] == 2 {
			out = append(out, op.Name)
		}
	}
	return out
}

// Quote renders s as a double-quoted literal valid in TypeScript, Python
// and Go source.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\x`)
				b.WriteString(strconv.FormatInt(int64(r)+0x100, 16)[1:])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// CommentSafe flattens s onto one line for use inside a line comment.
func CommentSafe(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "*/", "* /")
}
