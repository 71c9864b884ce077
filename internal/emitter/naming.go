package emitter

import (
	"strings"
	"unicode"

	"github.com/mark3labs/specforge/internal/project"
)

// Casing is a target language's identifier convention.
type Casing int

const (
	Camel Casing = iota
	Snake
	Pascal
)

// Join renders lower-cased words in the casing.
func (c Casing) Join(words []string) string {
	if len(words) == 0 {
		return ""
	}
	switch c {
	case Snake:
		lower := make([]string, len(words))
		for i, w := range words {
			lower[i] = strings.ToLower(w)
		}
		return strings.Join(lower, "_")
	case Pascal:
		var b strings.Builder
		for _, w := range words {
			b.WriteString(capitalize(w))
		}
		return b.String()
	default:
		var b strings.Builder
		b.WriteString(strings.ToLower(words[0]))
		for _, w := range words[1:] {
			b.WriteString(capitalize(w))
		}
		return b.String()
	}
}

// Identifier splits s into words and joins them in the casing. A result
// starting with a digit is prefixed so it stays a valid identifier.
func (c Casing) Identifier(s string) string {
	out := c.Join(Words(s))
	if out == "" {
		return ""
	}
	if unicode.IsDigit(rune(out[0])) {
		if c == Pascal {
			return "N" + out
		}
		return "n" + out
	}
	return out
}

// PascalCase is Pascal.Identifier.
func PascalCase(s string) string { return Pascal.Identifier(s) }

// Words splits on any non alphanumeric rune and on lower-to-upper case
// transitions; "userID-list" yields [user id list].
func Words(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

func capitalize(w string) string {
	if w == "" {
		return ""
	}
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var verbs = map[project.HTTPMethod]string{
	project.GET:    "get",
	project.POST:   "create",
	project.PUT:    "update",
	project.PATCH:  "patch",
	project.DELETE: "delete",
}

// Verb maps an HTTP method to the verb used in derived names.
func Verb(m project.HTTPMethod) string {
	if v, ok := verbs[m]; ok {
		return v
	}
	return strings.ToLower(string(m))
}

// DeriveOperationName names a generated wrapper. An explicit operationID is
// only re-cased. Otherwise the name is verb, resource noun and a
// "By <Param> And <Param>" suffix; GET /users/{id} becomes getUserById in
// Camel. The result is a pure function of the inputs and is not checked for
// uniqueness across a project.
func DeriveOperationName(method project.HTTPMethod, url, operationID string, c Casing) string {
	if id := strings.TrimSpace(operationID); id != "" {
		if out := c.Identifier(id); out != "" {
			return out
		}
	}
	resource, trailing := resourceNoun(project.PathOnly(url))
	params := project.PathParams(project.PathOnly(url))
	if trailing {
		resource = singular(resource)
	}
	words := []string{Verb(project.HTTPMethod(strings.ToUpper(string(method))))}
	words = append(words, Words(resource)...)
	for i, p := range params {
		if i == 0 {
			words = append(words, "by")
		} else {
			words = append(words, "and")
		}
		words = append(words, Words(p)...)
	}
	return c.Identifier(strings.Join(words, " "))
}

// resourceNoun returns the last path segment that is not a placeholder,
// "root" when there is none, and whether a placeholder follows it.
func resourceNoun(path string) (string, bool) {
	segs := strings.Split(path, "/")
	trailing := false
	for i := len(segs) - 1; i >= 0; i-- {
		s := strings.TrimSpace(segs[i])
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			trailing = true
			continue
		}
		return s, trailing
	}
	return "root", false
}

// singular drops a plural ending from a collection noun that is followed by
// an item placeholder.
func singular(noun string) string {
	lower := strings.ToLower(noun)
	switch {
	case strings.HasSuffix(lower, "ies") && len(noun) > 3:
		return noun[:len(noun)-3] + "y"
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"):
		return noun
	case strings.HasSuffix(lower, "s") && len(noun) > 1:
		return noun[:len(noun)-1]
	}
	return noun
}
