// Package importer turns an existing OpenAPI 3 or Swagger 2 document into a
// project so that hand-written descriptors can be brought under management.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/pkg/apiclient"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes import failures.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// Error is a structured error with optional location and JSON Pointer.
type Error struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1users/get"
	Cause       error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Cause }

// Settings configures how documents are fetched and checked.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// ResolveRefs loads external references. Descriptors point at a shared
	// dictionary that is often unreachable, so this is off by default.
	ResolveRefs bool
	// AllowFileRefs permits file refs when resolving a document fetched by URL.
	AllowFileRefs bool
	// Strict rejects documents that fail OpenAPI validation.
	Strict bool
	// HTTPClient overrides the client built from HTTPTimeout.
	HTTPClient *http.Client
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithResolveRefs(on bool) Option { return func(s *Settings) { s.ResolveRefs = on } }
func WithAllowFileRefs(allow bool) Option { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithStrict(on bool) Option { return func(s *Settings) { s.Strict = on } }
func WithHTTPClient(c *http.Client) Option { return func(s *Settings) { s.HTTPClient = c } }

// Document is a loaded OpenAPI document together with the bytes it came
// from; the raw form keeps schema key order that the typed model loses.
type Document struct {
	Doc      *openapi3.T
	Version  int // 2 or 3, as written in the source
	Raw      []byte
	Location string
}

// Load reads input, a filesystem path or an http/https URL, and returns it
// as an OpenAPI 3 document. Swagger 2.0 input is converted.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &Error{Code: InputError, Message: "import: input is empty"}
	}
	s := settingsFor(opts)

	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && u.Host != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &Error{Code: InputError, Message: "import: file:// URLs are blocked", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &Error{Code: InputError, Message: fmt.Sprintf("import: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, s)
		if err != nil {
			return nil, &Error{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return decode(ctx, raw, input, u, s.AllowFileRefs, s)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &Error{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &Error{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return decode(ctx, raw, abs, &url.URL{Path: abs}, true, s)
}

// Parse decodes a document held in memory. External refs are never read.
func Parse(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	s := settingsFor(opts)
	s.ResolveRefs = false
	return decode(ctx, data, "", nil, false, s)
}

func settingsFor(opts []Option) Settings {
	s := DefaultSettings()
	for _, o := range opts {
		o(&s)
	}
	return s
}

func decode(ctx context.Context, raw []byte, location string, base *url.URL, allowFile bool, s Settings) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &Error{Code: InputError, Message: "import: document is empty", Location: location}
	}
	version, err := detectVersion(raw)
	if err != nil {
		return nil, &Error{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	var doc *openapi3.T
	switch version {
	case 3:
		if s.ResolveRefs {
			loader := newLoader(s, allowFile)
			doc, err = loader.LoadFromDataWithPath(raw, base)
			if err != nil {
				return nil, mapValidateOrParseErr(err, location)
			}
		} else {
			doc, err = descriptor.Inspect(string(raw))
			if err != nil {
				return nil, &Error{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
			}
		}
	case 2:
		doc, err = convertV2ToV3(raw)
		if err != nil {
			return nil, &Error{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
	}

	if s.Strict {
		if err := doc.Validate(ctx); err != nil && !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, location)
		}
	}
	return &Document{Doc: doc, Version: version, Raw: raw, Location: location}, nil
}

func newLoader(s Settings, allowFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := httpClient(s)
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			resp, err := client.Get(uri.String())
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

func httpClient(s Settings) *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: s.HTTPTimeout}
}

// detectVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else an error.
func detectVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse document: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, errors.New("import: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	js, err := yamlToJSON(data)
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(js, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// yamlToJSON re-encodes YAML (or JSON) as JSON so the typed models, which
// only carry json tags, can decode it.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func fetchWithRetry(ctx context.Context, rawURL string, s Settings) ([]byte, error) {
	client := httpClient(s)
	base := s.BackoffBase
	if base <= 0 {
		base = apiclient.DefaultBaseDelay
	}
	attempts := s.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.8")
		wait := apiclient.Backoff(i, base, 0)
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode < 300 && rerr == nil:
				return body, nil
			case rerr != nil:
				lastErr = rerr
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
				if d, ok := apiclient.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
					wait = d
				}
			default:
				if len(body) > 1024 {
					body = body[:1024]
				}
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func mapValidateOrParseErr(err error, location string) error {
	code := ValidationError
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse") || strings.Contains(msg, "invalid character") || strings.Contains(msg, "unmarshal") {
		code = ParseError
	}
	return &Error{Code: code, Message: err.Error(), Location: location, JSONPointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	return jsonPtrRe.FindString(err.Error())
}

// canProceedDespiteValidation lets unresolved references through; the
// dictionary parameters of a descriptor are never resolved.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unresolved ref")
}
