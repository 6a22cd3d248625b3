package adapters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingest "github.com/ingestfw/ingest"
)

func TestNativeServesBasicRoute(t *testing.T) {
	host := ingest.NewPluginHost()
	host.Get("/hello", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		res.SetHTML("hello")
		return true, nil
	}, 0)
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestNativeServesJSONEnvelopeForStructuredBody(t *testing.T) {
	host := ingest.NewPluginHost()
	host.Get("/list", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		res.SetRows([]string{"a", "b"}, 2)
		return true, nil
	}, 0)
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestNativeReturns404WhenNoRouteMatches(t *testing.T) {
	host := ingest.NewPluginHost()
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestNativeCompressesWhenClientAcceptsGzip(t *testing.T) {
	host := ingest.NewPluginHost()
	host.Get("/hello", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		res.SetHTML("hello")
		return true, nil
	}, 0)
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestNativeRoundTripsSessionCookie(t *testing.T) {
	host := ingest.NewPluginHost()
	host.Get("/session", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		res.SetCookie("user", "ada")
		res.SetHTML("ok")
		return true, nil
	}, 0)
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", []byte("test-secret"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	handler.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "ingest_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	host.On("request", ingest.CallableAction(func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		assert.Equal(t, "ada", req.Session["user"])
		return true, nil
	}), 1)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/session", nil)
	req2.AddCookie(cookies[0])
	handler.ServeHTTP(rec2, req2)
}

func TestNativeEncodesArrayCookieValueInsteadOfDroppingIt(t *testing.T) {
	host := ingest.NewPluginHost()
	host.Get("/tags", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		res.SetCookie("tags", []string{"a", "b"})
		res.SetHTML("ok")
		return true, nil
	}, 0)
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", []byte("test-secret"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	handler.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	var decoded []string
	host.On("request", ingest.CallableAction(func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		require.NoError(t, json.Unmarshal([]byte(req.Session["tags"]), &decoded))
		return true, nil
	}), 1)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/tags", nil)
	req2.AddCookie(cookies[0])
	handler.ServeHTTP(rec2, req2)

	assert.Equal(t, []string{"a", "b"}, decoded)
}

func TestNativeParsesJSONRequestBody(t *testing.T) {
	host := ingest.NewPluginHost()
	host.Post("/echo", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		require.NoError(t, req.Load())
		name, _ := req.Data("name")
		res.SetHTML(name.(string))
		return true, nil
	}, 0)
	require.NoError(t, host.Bootstrap())

	handler := Native(host, "ingest_session", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"Lin"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "Lin", rec.Body.String())
}
