package ingest

import (
	"mime"
	"net/url"
	"strings"
)

// ParsedURL is the decomposed form of a request's URL: scheme, host,
// pathname and search (query string), matching the data model's "url
// (parsed: scheme, host, pathname, search)" field.
type ParsedURL struct {
	Scheme   string
	Host     string
	Pathname string
	Search   string
}

// Header is a case-insensitive multi-map, the shape the data model
// requires for `Request.Headers` and `Response.Headers`.
type Header map[string][]string

// Get returns the first value associated with key, or "" if there is none.
// Lookup is case-insensitive.
func (h Header) Get(key string) string {
	vs := h[textproto(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns every value associated with key (case-insensitive).
func (h Header) Values(key string) []string {
	return h[textproto(key)]
}

// Add appends value to key's value list.
func (h Header) Add(key, value string) {
	k := textproto(key)
	h[k] = append(h[k], value)
}

// Set replaces key's value list with a single value.
func (h Header) Set(key, value string) {
	h[textproto(key)] = []string{value}
}

// Del removes key entirely.
func (h Header) Del(key string) {
	delete(h, textproto(key))
}

func textproto(key string) string {
	if key == "" {
		return key
	}
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// Loader reads the transport body for req and returns the raw bytes plus
// the parsed post map (JSON object, url-encoded form or multipart form,
// depending on req.Mimetype). It is the adapter-supplied collaborator
// `Request.Load` calls exactly once.
type Loader func(req *Request) (body interface{}, post map[string]interface{}, err error)

// Request is the mutable request payload threaded through one
// request/response cycle. A `Request` belongs to exactly one task/goroutine
// and is never shared across concurrent requests.
type Request struct {
	Method string
	URL    ParsedURL

	Headers Header
	Query   map[string][]string
	Session map[string]string

	Mimetype string

	body   interface{}
	loaded bool
	post   map[string]interface{}
	loader Loader

	Params map[string]string

	Context *PluginHost
	Resource interface{}

	RequestID string
}

// newRequest returns a zeroed `Request` ready for `reset`.
func newRequest() *Request {
	return &Request{}
}

// NewRequest returns a ready-to-populate `Request`, for transport adapters
// that build one fresh per inbound call rather than recycling one from a
// pool.
func NewRequest() *Request {
	r := newRequest()
	r.reset()
	return r
}

// reset clears r for reuse by a pool, the way the teacher's pooled
// Request/Response are recycled between `ServeHTTP` calls.
func (r *Request) reset() {
	r.Method = ""
	r.URL = ParsedURL{}
	r.Headers = Header{}
	r.Query = map[string][]string{}
	r.Session = map[string]string{}
	r.Mimetype = ""
	r.body = nil
	r.loaded = false
	r.post = nil
	r.loader = nil
	r.Params = map[string]string{}
	r.Context = nil
	r.Resource = nil
	r.RequestID = ""
}

// Reset clears r for reuse by a pool. Exported for transport adapters that
// recycle Request values across calls the way the teacher's ServeHTTP does.
func (r *Request) Reset() {
	r.reset()
}

// setParams overwrites r.Params with the captures from the most recent
// route match. `EventRouter.Emit` calls it before each route-pattern
// listener runs, so every listener sees the captures of its own pattern.
func (r *Request) setParams(params map[string]string) {
	r.Params = params
}

// Body returns the loaded body, or nil if `Load` has not completed. The
// data model invariant is `body === null` iff `Load` has not completed.
func (r *Request) Body() interface{} {
	return r.body
}

// Post returns the parsed body (JSON object / form map / multipart map),
// or nil before `Load` completes.
func (r *Request) Post() map[string]interface{} {
	return r.post
}

// Load reads the transport body via the adapter-supplied loader, filling
// `Body()`/`Post()`. It is idempotent: a second call is a no-op once the
// first has completed, matching the invariant "two calls read the body at
// most once".
func (r *Request) Load() error {
	if r.loaded {
		return nil
	}

	if r.loader == nil {
		r.loaded = true
		return nil
	}

	body, post, err := r.loader(r)
	if err != nil {
		return err
	}

	r.body = body
	r.post = post
	if r.post == nil {
		r.post = map[string]interface{}{}
	}
	r.loaded = true
	return nil
}

// SetLoader installs the adapter-supplied loader callback. Called once by
// the transport adapter while building the request.
func (r *Request) SetLoader(l Loader) {
	r.loader = l
}

// Param returns a single named capture from the matched route, or "" if
// absent.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Data returns the merged view of params, query and parsed-post values for
// name: post wins over query, query wins over route params, mirroring the
// "most specific, most recently supplied" precedence an application author
// expects from a combined `data(name)` accessor.
func (r *Request) Data(name string) (interface{}, bool) {
	if r.post != nil {
		if v, ok := r.post[name]; ok {
			return v, true
		}
	}
	if vs, ok := r.Query[name]; ok {
		if len(vs) == 1 {
			return vs[0], true
		}
		return vs, true
	}
	if v, ok := r.Params[name]; ok {
		return v, true
	}
	return nil, false
}

// AllData returns the full merged map described by `Data`.
func (r *Request) AllData() map[string]interface{} {
	merged := map[string]interface{}{}
	for k, v := range r.Params {
		merged[k] = v
	}
	for k, vs := range r.Query {
		if len(vs) == 1 {
			merged[k] = vs[0]
		} else {
			merged[k] = vs
		}
	}
	for k, v := range r.post {
		merged[k] = v
	}
	return merged
}

// ParseQuery parses rawQuery (a URL-encoded query string, without the
// leading "?") into r.Query.
func (r *Request) ParseQuery(rawQuery string) error {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return err
	}
	r.Query = map[string][]string(values)
	return nil
}

// ParseSessionCookie parses a raw "Cookie" header value into a map of
// cookie name to (URL-unescaped) value, suitable for `Request.Session`.
func ParseSessionCookie(raw string) map[string]string {
	session := map[string]string{}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		session[strings.TrimSpace(name)] = value
	}
	return session
}

// parseMimetype returns the base media type of a Content-Type header
// value, discarding parameters such as "; charset=utf-8".
func parseMimetype(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}
