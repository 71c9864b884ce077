package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/specforge/internal/schema"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError  ErrorCode = "InputError"
	ParseError  ErrorCode = "ParseError"
	SchemaError ErrorCode = "SchemaError"
)

// LoadError is a structured error with the location it was raised for.
type LoadError struct {
	Code     ErrorCode
	Message  string
	Location string // file path, when loading from disk
	Cause    error
}

func (e *LoadError) Error() string { return e.Message }
func (e *LoadError) Unwrap() error { return e.Cause }

// Load reads a project file (JSON or YAML) and renormalizes its schemas.
func Load(path string) (*Project, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &LoadError{Code: InputError, Message: "project: path is empty"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	p, err := Parse(raw)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Location = abs
		}
		return nil, err
	}
	return p, nil
}

// Parse decodes a project from JSON (when the payload starts with '{') or
// YAML, then renormalizes. An invalid schema text is a SchemaError wrapping
// the *schema.Error.
func Parse(data []byte) (*Project, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &LoadError{Code: InputError, Message: "project: input is empty"}
	}
	var p Project
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, &LoadError{Code: ParseError, Message: fmt.Sprintf("parse project json: %v", err), Cause: err}
		}
	} else if err := yaml.Unmarshal(trimmed, &p); err != nil {
		return nil, &LoadError{Code: ParseError, Message: fmt.Sprintf("parse project yaml: %v", err), Cause: err}
	}
	if err := p.Renormalize(); err != nil {
		return nil, &LoadError{Code: SchemaError, Message: err.Error(), Cause: err}
	}
	return &p, nil
}

// Renormalize re-derives Schemas from SchemaText. When only a mapping was
// supplied, the text is regenerated from it instead so both stay in sync.
// On failure Schemas is left empty and the *schema.Error is returned.
func (p *Project) Renormalize() error {
	if strings.TrimSpace(p.SchemaText) == "" && p.Schemas.Len() > 0 {
		text, err := schema.ToText(p.Schemas, schema.FormatYAML)
		if err != nil {
			return err
		}
		p.SchemaText = text
		return nil
	}
	m, err := schema.Normalize(p.SchemaText)
	p.Schemas = m
	return err
}

// Clone returns a deep copy so generators never share state with the caller.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Schemas = p.Schemas.Clone()
	if p.Requests != nil {
		out.Requests = make([]RequestSpec, len(p.Requests))
		for i, r := range p.Requests {
			r.StdHeaders = append([]string(nil), r.StdHeaders...)
			r.RequestRefs = append([]string(nil), r.RequestRefs...)
			r.ResponseRefs = append([]string(nil), r.ResponseRefs...)
			out.Requests[i] = r
		}
	}
	return &out
}
