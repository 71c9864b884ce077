package project

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// PathParams lists the {name} placeholders of a URL template in order.
func PathParams(rawURL string) []string {
	matches := placeholderRe.FindAllStringSubmatch(rawURL, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// QueryParams lists the keys of the literal query string in a URL template,
// split on '&' and '='. Keys are URL-decoded; empty parts are skipped.
func QueryParams(rawURL string) []string {
	idx := strings.Index(rawURL, "?")
	if idx == -1 {
		return nil
	}
	var out []string
	for _, part := range strings.Split(rawURL[idx+1:], "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if key == "" {
			continue
		}
		if dec, err := url.QueryUnescape(key); err == nil {
			key = dec
		}
		out = append(out, key)
	}
	return out
}

// PathOnly strips the query string from a URL template.
func PathOnly(rawURL string) string {
	p, _, _ := strings.Cut(rawURL, "?")
	return p
}

// FreeformHeaderKeys returns the keys of the free-text header JSON object in
// source order. Text that is not a JSON object contributes nothing.
func FreeformHeaderKeys(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := kt.(string)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
		keys = append(keys, key)
	}
	if _, err := dec.Token(); err != nil {
		return nil
	}
	return keys
}

// HeaderNames is the request's selected standard headers followed by the
// freeform header keys, de-duplicated in first-seen order.
func (r RequestSpec) HeaderNames() []string {
	var seen orderedSet
	seen.add(r.StdHeaders...)
	seen.add(FreeformHeaderKeys(r.Headers)...)
	return seen.items
}

// AggregateHeaders unions HeaderNames across requests, first-seen order.
func AggregateHeaders(reqs []RequestSpec) []string {
	var seen orderedSet
	for _, r := range reqs {
		seen.add(r.HeaderNames()...)
	}
	return seen.items
}

type orderedSet struct {
	idx   map[string]struct{}
	items []string
}

func (s *orderedSet) add(vals ...string) {
	if s.idx == nil {
		s.idx = make(map[string]struct{})
	}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := s.idx[v]; ok {
			continue
		}
		s.idx[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
