package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config configures a Client. Zero Timeout and BaseDelay take defaults.
type Config struct {
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	// ThrowOnError makes Do return an error for every non-success result
	// instead of only for missing path parameters.
	ThrowOnError bool
	HTTPClient   *http.Client
}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultBaseDelay = 300 * time.Millisecond
)

// Client executes requests with retries. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	jitter func() float64
	now    func() time.Time
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc, jitter: rand.Float64, now: time.Now}
}

// Request is one logical call. Path may contain {name} placeholders.
type Request struct {
	Method     string
	Path       string
	PathParams map[string]string
	Query      map[string]any
	Headers    map[string]string
	Body       any
}

// Result is the outcome of a call after retries.
type Result struct {
	OK     bool
	Status int
	Data   any
	Err    error
}

// MissingParamError reports a placeholder without a value.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("apiclient: missing path parameter %q", e.Name)
}

// StatusError is the detail of a non-2xx response.
type StatusError struct {
	Status int
	Data   any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apiclient: unexpected status %d", e.Status)
}

// RequireParam fails when value is empty.
func RequireParam(name, value string) error {
	if value == "" {
		return &MissingParamError{Name: name}
	}
	return nil
}

var retryStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// IdempotencyHeader is set on mutating calls unless the caller supplied one.
const IdempotencyHeader = "Idempotency-Key"

// Do runs req. A missing path parameter or a cancelled ctx is always
// returned as an error. Other failures are reported in Result.Err and are
// also returned when ThrowOnError is set.
func (c *Client) Do(ctx context.Context, req Request) (Result, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	path, err := ExpandPath(req.Path, req.PathParams)
	if err != nil {
		return Result{}, err
	}
	target := c.buildURL(path, req.Query)

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		headers.Set(k, v)
	}
	for k, v := range req.Headers {
		headers.Set(k, v)
	}

	var payload []byte
	if carriesBody(method) && req.Body != nil {
		payload, err = encodeBody(req.Body)
		if err != nil {
			return c.finish(Result{Err: fmt.Errorf("apiclient: encode body: %w", err)})
		}
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}
	}
	if mutating(method) && headers.Get(IdempotencyHeader) == "" {
		headers.Set(IdempotencyHeader, uuid.NewString())
	}

	var res Result
	for attempt := 0; ; attempt++ {
		var retryAfter string
		res, retryAfter = c.attempt(ctx, method, target, headers, payload)
		if err := ctx.Err(); err != nil {
			return Result{Err: err}, err
		}
		if attempt >= c.cfg.MaxRetries || !retryable(res) {
			break
		}
		wait := Backoff(attempt, c.cfg.BaseDelay, c.jitter())
		if d, ok := ParseRetryAfter(retryAfter, c.now()); ok {
			wait = d
		}
		if err := sleep(ctx, wait); err != nil {
			return Result{Err: err}, err
		}
	}
	return c.finish(res)
}

func (c *Client) finish(res Result) (Result, error) {
	if c.cfg.ThrowOnError && !res.OK {
		if res.Err == nil {
			res.Err = &StatusError{Status: res.Status, Data: res.Data}
		}
		return res, res.Err
	}
	return res, nil
}

func (c *Client) attempt(ctx context.Context, method, target string, headers http.Header, payload []byte) (Result, string) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(actx, method, target, body)
	if err != nil {
		return Result{Err: fmt.Errorf("apiclient: build request: %w", err)}, ""
	}
	hreq.Header = headers.Clone()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return Result{Err: &transportError{err: err}}, ""
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: resp.StatusCode, Err: &transportError{err: err}}, resp.Header.Get("Retry-After")
	}
	res := Result{Status: resp.StatusCode, Data: decodeData(raw)}
	res.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !res.OK {
		res.Err = &StatusError{Status: resp.StatusCode, Data: res.Data}
	}
	return res, resp.Header.Get("Retry-After")
}

// transportError marks timeouts and network failures as retryable.
type transportError struct{ err error }

func (e *transportError) Error() string { return "apiclient: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(res Result) bool {
	var te *transportError
	if errors.As(res.Err, &te) {
		return true
	}
	return retryStatus[res.Status]
}

// Backoff is base * 2^attempt plus up to half of base scaled by jitter in
// [0, 1). The jitter bound keeps it non-decreasing in attempt.
func Backoff(attempt int, base time.Duration, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 20 {
		attempt = 20
	}
	if jitter < 0 || jitter >= 1 {
		jitter = 0
	}
	return base*time.Duration(1<<attempt) + time.Duration(jitter*float64(base)/2)
}

// ParseRetryAfter reads a Retry-After value as seconds or an HTTP date.
func ParseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := t.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// ExpandPath substitutes every placeholder with its escaped value.
func ExpandPath(tmpl string, params map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == "" {
			if missing == "" {
				missing = name
			}
			return m
		}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", &MissingParamError{Name: missing}
	}
	return out, nil
}

func (c *Client) buildURL(path string, query map[string]any) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	q := EncodeQuery(query)
	if q == "" {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + q
	}
	return u + "?" + q
}

// EncodeQuery renders keys in sorted order. Scalars are stringified, slices
// repeat the key once per element, maps and structs are JSON encoded.
// Nil values are skipped.
func EncodeQuery(query map[string]any) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	add := func(k string, v any) {
		if s, ok := queryValue(v); ok {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(s))
		}
	}
	for _, k := range keys {
		v := query[k]
		rv := reflect.ValueOf(v)
		if v != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
			for i := 0; i < rv.Len(); i++ {
				add(k, rv.Index(i).Interface())
			}
			continue
		}
		add(k, v)
	}
	return strings.Join(parts, "&")
}

func queryValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	case reflect.Pointer:
		if rv.IsNil() {
			return "", false
		}
		return queryValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case json.RawMessage:
		return b, nil
	}
	return json.Marshal(body)
}

func decodeData(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func carriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// CallOptions are the pass-through arguments of generated wrappers.
// Headers holds values for the operation's declared headers; Overrides
// are sent as given.
type CallOptions struct {
	Query     map[string]any
	Body      any
	Headers   map[string]string
	Overrides map[string]string
}

// Call runs a generated wrapper's request. Only the declared header names
// are taken from opts.Headers.
func (c *Client) Call(ctx context.Context, method, path string, params map[string]string, opts *CallOptions, declared ...string) (Result, error) {
	return c.Do(ctx, Request{
		Method:     method,
		Path:       path,
		PathParams: params,
		Query:      opts.query(),
		Headers:    opts.headers(declared...),
		Body:       opts.body(),
	})
}

func (o *CallOptions) query() map[string]any {
	if o == nil {
		return nil
	}
	return o.Query
}

func (o *CallOptions) body() any {
	if o == nil {
		return nil
	}
	return o.Body
}

func (o *CallOptions) headers(declared ...string) map[string]string {
	out := map[string]string{}
	if o == nil {
		return out
	}
	for _, h := range declared {
		if v, ok := o.Headers[h]; ok && v != "" {
			out[h] = v
		}
	}
	for k, v := range o.Overrides {
		out[k] = v
	}
	return out
}
