package ingest

import "encoding/json"

// SessionRevision records an intended cookie mutation: "set" a value (or
// multiple values for a multi-valued cookie) or "remove" it. The core only
// tracks intent; concrete cookie serialization is delegated to whatever
// `Dispatcher` callback the transport adapter supplies.
type SessionRevision struct {
	Action string // "set" or "remove"
	Value  interface{}
}

// BodyType is the derived shape of `Response.Body`.
type BodyType string

const (
	BodyNull   BodyType = "null"
	BodyString BodyType = "string"
	BodyObject BodyType = "object"
	BodyArray  BodyType = "array"
	BodyStream BodyType = "stream"
)

// Dispatcher is the adapter-supplied callback that serializes a `Response`
// onto the transport. `Response.Dispatch` calls it exactly once per
// response, distinct from the core's own 4-stage request lifecycle, which
// is also sometimes called "the dispatcher" -- the glossary calls this one
// out precisely because of the name clash.
type Dispatcher func(res *Response) error

// Response is the mutable response payload one task builds up over the
// course of a request. Like `Request`, it belongs to exactly one task and
// is never shared across concurrent requests.
type Response struct {
	Code     int
	Status   string
	Mimetype string
	Body     interface{}
	Total    int

	Headers Header
	Session struct {
		Revisions map[string]SessionRevision
	}

	Error  string
	Errors map[string][]string
	Stack  []string

	Sent bool

	Resource interface{}

	dispatcher Dispatcher
}

// newResponse returns a zeroed `Response` ready for `reset`.
func newResponse() *Response {
	return &Response{}
}

// reset clears res for reuse by a pool.
func (res *Response) reset() {
	res.Code = 0
	res.Status = ""
	res.Mimetype = ""
	res.Body = nil
	res.Total = 0
	res.Headers = Header{}
	res.Session.Revisions = map[string]SessionRevision{}
	res.Error = ""
	res.Errors = nil
	res.Stack = nil
	res.Sent = false
	res.Resource = nil
	res.dispatcher = nil
}

// NewResponse returns a ready-to-populate `Response`, for transport
// adapters that build one fresh per inbound call rather than recycling one
// from a pool.
func NewResponse() *Response {
	res := newResponse()
	res.reset()
	return res
}

// Reset clears res for reuse by a pool. Exported for transport adapters
// that recycle Response values across calls the way the teacher's
// ServeHTTP does.
func (res *Response) Reset() {
	res.reset()
}

// SetDispatcher installs the adapter-supplied dispatch callback. Called
// once by the transport adapter while building the response.
func (res *Response) SetDispatcher(d Dispatcher) {
	res.dispatcher = d
}

// Type returns the derived shape of `Body`.
func (res *Response) Type() BodyType {
	switch v := res.Body.(type) {
	case nil:
		return BodyNull
	case string, []byte:
		return BodyString
	case []interface{}:
		_ = v
		return BodyArray
	default:
		return BodyObject
	}
}

// setCodeStatus applies the "assigning code where status is empty
// auto-fills status from the status table" rule.
func (res *Response) setCodeStatus(code int, status string) {
	res.Code = code
	if status != "" {
		res.Status = status
		return
	}
	if text := StatusText(code); text != "" {
		res.Status = text
	}
}

// SetCode sets res.Code, auto-filling res.Status from the status table if
// it is still empty.
func (res *Response) SetCode(code int) {
	res.setCodeStatus(code, res.statusIfEmpty(code))
}

func (res *Response) statusIfEmpty(code int) string {
	if res.Status != "" {
		return res.Status
	}
	return StatusText(code)
}

// SetStatus sets both code and status explicitly.
func (res *Response) SetStatus(code int, status string) {
	res.setCodeStatus(code, status)
}

// SetError sets the response to a user error. The single required msg
// overload is what every language-side overload described in the
// component design converges to: `error` set, `code` >= 400 (default
// 400), `status` derived or explicit.
func (res *Response) SetError(msg string, opts ...ErrorOption) {
	o := errorOptions{code: 400}
	for _, opt := range opts {
		opt(&o)
	}

	res.Error = msg
	res.Errors = o.errors
	if len(o.stack) > 0 {
		res.Stack = o.stack
	}
	res.setCodeStatus(o.code, o.status)
}

// ErrorOption configures `SetError`'s optional fields, standing in for the
// source spec's overloaded `(msg, errors, stack, code?, status?)` /
// options-object call shapes.
type ErrorOption func(*errorOptions)

type errorOptions struct {
	code   int
	status string
	errors map[string][]string
	stack  []string
}

// WithErrorCode sets the error's status code (default 400 if omitted).
func WithErrorCode(code int) ErrorOption {
	return func(o *errorOptions) { o.code = code }
}

// WithErrorStatus sets the error's status text explicitly, overriding the
// status-table lookup for code.
func WithErrorStatus(status string) ErrorOption {
	return func(o *errorOptions) { o.status = status }
}

// WithErrors attaches field-level validation messages.
func WithErrors(errors map[string][]string) ErrorOption {
	return func(o *errorOptions) { o.errors = errors }
}

// WithStack attaches caller-supplied stack frames.
func WithStack(stack []string) ErrorOption {
	return func(o *errorOptions) { o.stack = stack }
}

// SetHTML sets a 200 OK text/html response with body s.
func (res *Response) SetHTML(s string) {
	res.setCodeStatus(200, "")
	res.Mimetype = "text/html"
	res.Body = s
}

// SetJSON sets a 200 OK text/json response, serializing v immediately so
// `Body` already holds the wire string (the round-trip law: `SetJSON(v)`
// then JSON-decoding `Body` yields v back).
func (res *Response) SetJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res.setCodeStatus(200, "")
	res.Mimetype = "text/json"
	res.Body = string(b)
	return nil
}

// SetXML sets a 200 OK text/xml response with body s.
func (res *Response) SetXML(s string) {
	res.setCodeStatus(200, "")
	res.Mimetype = "text/xml"
	res.Body = s
}

// SetResults sets a 200 OK text/json response whose body stays structured
// (a map or slice) rather than pre-serialized; the transport `Dispatcher`
// is responsible for the final JSON encoding, wrapped in the
// `{code,status,results,...}` envelope described in the adapter contract.
func (res *Response) SetResults(v interface{}) {
	res.setCodeStatus(200, "")
	res.Mimetype = "text/json"
	res.Body = v
}

// SetRows is `SetResults` plus a row-count hint, for paginated listings.
func (res *Response) SetRows(rows interface{}, total int) {
	res.SetResults(rows)
	res.Total = total
}

// SetBody sets both mimetype and body; code is left untouched unless it is
// still zero, in which case it becomes 200 OK.
func (res *Response) SetBody(mimetype string, value interface{}) {
	if res.Code == 0 {
		res.setCodeStatus(200, "")
	}
	res.Mimetype = mimetype
	res.Body = value
}

// Redirect sets a 302 Found response pointing at url.
func (res *Response) Redirect(url string) {
	res.setCodeStatus(302, "")
	res.Headers.Set("Location", url)
}

// SetCookie records the intent to set a cookie named name to value.
func (res *Response) SetCookie(name string, value interface{}) {
	res.Session.Revisions[name] = SessionRevision{Action: "set", Value: value}
}

// RemoveCookie records the intent to remove a cookie named name.
func (res *Response) RemoveCookie(name string) {
	res.Session.Revisions[name] = SessionRevision{Action: "remove"}
}

// Stop marks the response as sent without invoking the transport
// dispatcher, e.g. when a listener has already piped the body directly to
// the native socket. The final `dispatch` stage of the request lifecycle
// becomes a no-op once `Sent` is true.
func (res *Response) Stop() {
	res.Sent = true
}

// Dispatch runs the adapter-supplied dispatcher exactly once, marking
// `Sent` true, and returns whatever error it produced. Calling Dispatch a
// second time is a no-op returning nil, matching the invariant that
// `Dispatch` is invoked at most once per request.
func (res *Response) Dispatch() error {
	if res.Sent {
		return nil
	}
	res.Sent = true
	if res.dispatcher == nil {
		return nil
	}
	return res.dispatcher(res)
}
