// Package adapters contains transport-shaped wrappers that build an
// ingest.Request/ingest.Response pair from a concrete transport, hand it to
// an ingest.PluginHost, and serialize the result back.
package adapters

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	ingest "github.com/ingestfw/ingest"
)

// sessionClaims is the JWT payload the native adapter's session cookie
// holds; the map is carried as a single claim so Request.Session stays a
// plain map[string]string regardless of how many cookie values an
// application stores.
type sessionClaims struct {
	Session map[string]string `json:"session"`
	jwt.RegisteredClaims
}

// Native builds a net/http.Handler around host, mirroring the teacher's
// pooled request/response ServeHTTP pattern: Request/Response values are
// reused across calls via sync.Pool rather than allocated per request.
//
// sessionSecret signs and verifies the session cookie named sessionCookie.
// An empty sessionSecret disables session cookie handling entirely (no
// Loader-side decode, no Dispatcher-side cookie emission).
func Native(host *ingest.PluginHost, sessionCookie string, sessionSecret []byte) http.Handler {
	if len(sessionSecret) == 0 {
		sessionSecret = nil
	}
	a := &nativeAdapter{
		host:          host,
		sessionCookie: sessionCookie,
		sessionSecret: sessionSecret,
	}
	a.requests.New = func() interface{} { return ingest.NewRequest() }
	a.responses.New = func() interface{} { return ingest.NewResponse() }
	return a
}

type nativeAdapter struct {
	host          *ingest.PluginHost
	sessionCookie string
	sessionSecret []byte

	requests  sync.Pool
	responses sync.Pool
}

func (a *nativeAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := a.buildRequest(r)
	res := a.buildResponse(w, r)

	if err := a.host.Handle(req, res); err != nil {
		a.host.Logger.Error("dispatch failed", zap.Error(err))
	}

	a.requests.Put(req)
	a.responses.Put(res)
}

func (a *nativeAdapter) buildRequest(r *http.Request) *ingest.Request {
	req := a.requests.Get().(*ingest.Request)
	req.Reset()

	scheme := "http"
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	} else if r.TLS != nil {
		scheme = "https"
	}

	req.Method = r.Method
	req.URL = ingest.ParsedURL{
		Scheme:   scheme,
		Host:     r.Host,
		Pathname: normalizePath(r.URL.Path),
		Search:   r.URL.RawQuery,
	}

	req.Headers = ingest.Header(r.Header)
	_ = req.ParseQuery(r.URL.RawQuery)

	req.Mimetype = mimetypeOf(r.Header.Get("Content-Type"))
	req.RequestID = uuid.NewString()
	req.Resource = r

	if a.sessionSecret != nil {
		req.Session = a.decodeSession(r)
	} else {
		req.Session = map[string]string{}
	}

	req.SetLoader(func(req *ingest.Request) (interface{}, map[string]interface{}, error) {
		return loadBody(r, req.Mimetype)
	})

	return req
}

func (a *nativeAdapter) buildResponse(w http.ResponseWriter, r *http.Request) *ingest.Response {
	res := a.responses.Get().(*ingest.Response)
	res.Reset()

	res.SetDispatcher(func(res *ingest.Response) error {
		for k, vs := range res.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}

		if a.sessionSecret != nil {
			a.emitSessionCookie(w, res)
		}

		code := res.Code
		if code == 0 {
			code = 200
		}

		body, contentType := encodeBody(res)
		if contentType != "" && w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", contentType)
		}

		if acceptsGzip(r) && len(body) > 0 {
			w.Header().Set("Content-Encoding", "gzip")
			w.WriteHeader(code)
			gz, _ := gzip.NewWriterLevel(w, gzip.BestSpeed)
			defer gz.Close()
			_, err := gz.Write(body)
			return err
		}

		w.WriteHeader(code)
		_, err := w.Write(body)
		return err
	})

	return res
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(enc) == "gzip" {
			return true
		}
	}
	return false
}

// envelope is the wire shape for a structured (object/array) response
// body, per the transport adapter contract.
type envelope struct {
	Code    int                 `json:"code"`
	Status  string              `json:"status"`
	Results interface{}         `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Total   int                 `json:"total,omitempty"`
	Stack   []string            `json:"stack,omitempty"`
}

func encodeBody(res *ingest.Response) (body []byte, contentType string) {
	switch res.Type() {
	case ingest.BodyString:
		switch v := res.Body.(type) {
		case string:
			return []byte(v), mimetypeContentType(res.Mimetype)
		case []byte:
			return v, mimetypeContentType(res.Mimetype)
		}
	}

	env := envelope{
		Code:    res.Code,
		Status:  res.Status,
		Results: res.Body,
		Error:   res.Error,
		Errors:  res.Errors,
		Total:   res.Total,
		Stack:   res.Stack,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"code":500,"status":"Internal Server Error"}`), "application/json; charset=utf-8"
	}
	return b, "application/json; charset=utf-8"
}

func mimetypeContentType(mimetype string) string {
	if mimetype == "" {
		return ""
	}
	return mimetype + "; charset=utf-8"
}

func mimetypeOf(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}

func normalizePath(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return path
}

func loadBody(r *http.Request, mimetype string) (interface{}, map[string]interface{}, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, err
	}
	defer r.Body.Close()

	post := map[string]interface{}{}

	switch {
	case mimetype == "application/json":
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &post); err != nil {
				return string(raw), post, nil
			}
		}
	case mimetype == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err == nil {
			for k, vs := range values {
				if len(vs) == 1 {
					post[k] = vs[0]
				} else {
					post[k] = vs
				}
			}
		}
	case strings.HasPrefix(mimetype, "multipart/"):
		post = parseMultipart(r, raw)
	}

	return string(raw), post, nil
}

func parseMultipart(r *http.Request, raw []byte) map[string]interface{} {
	post := map[string]interface{}{}
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return post
	}
	boundary := params["boundary"]
	if boundary == "" {
		return post
	}
	mr := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		data, _ := io.ReadAll(part)
		post[part.FormName()] = string(data)
	}
	return post
}

func (a *nativeAdapter) decodeSession(r *http.Request) map[string]string {
	c, err := r.Cookie(a.sessionCookie)
	if err != nil {
		return map[string]string{}
	}

	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (interface{}, error) {
		return a.sessionSecret, nil
	})
	if err != nil || claims.Session == nil {
		return map[string]string{}
	}
	return claims.Session
}

func (a *nativeAdapter) emitSessionCookie(w http.ResponseWriter, res *ingest.Response) {
	if len(res.Session.Revisions) == 0 {
		return
	}

	merged := map[string]string{}
	removed := false
	for name, rev := range res.Session.Revisions {
		if rev.Action == "remove" {
			removed = true
			continue
		}
		if s, ok := rev.Value.(string); ok {
			merged[name] = s
			continue
		}
		// Non-string values (e.g. []string, per SetCookie's "value or
		// array of values" contract) get JSON-encoded rather than
		// dropped. Request.Session stays map[string]string on decode;
		// a handler reading the value back gets the JSON text and
		// decodes it itself.
		encoded, err := json.Marshal(rev.Value)
		if err != nil {
			continue
		}
		merged[name] = string(encoded)
	}

	if removed && len(merged) == 0 {
		http.SetCookie(w, &http.Cookie{
			Name:     a.sessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		return
	}

	claims := &sessionClaims{Session: merged}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.sessionSecret)
	if err != nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
	})
}
