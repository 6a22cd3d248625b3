package ingest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryRouterResolvesThroughEmit(t *testing.T) {
	resolver := func(path string) (ActionFunc, error) {
		if path != "handlers/greet" {
			return nil, fmt.Errorf("unknown entry %q", path)
		}
		return func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
			res.SetHTML("entry:" + path)
			return true, nil
		}, nil
	}

	r := NewEntryRouter(resolver)
	r.Get("/greet", "handlers/greet", 0)

	req, res := newTestRequest("GET", "/greet")
	r.Emit("GET /greet", req, res, nil)

	assert.Equal(t, "entry:handlers/greet", res.Body)
}

func TestEntryRouterUnresolvableEntryRaisesError(t *testing.T) {
	resolver := func(path string) (ActionFunc, error) {
		return nil, fmt.Errorf("missing entry %q", path)
	}

	r := NewEntryRouter(resolver)
	r.Get("/broken", "handlers/missing", 0)

	req, res := newTestRequest("GET", "/broken")
	status := r.Emit("GET /broken", req, res, nil)

	assert.Equal(t, 500, status.Code)
	assert.Equal(t, 500, res.Code)
}

func TestImportRouterResolvesThroughEmit(t *testing.T) {
	r := NewImportRouter()
	r.Get("/thunked", func() (ActionFunc, error) {
		return func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
			res.SetHTML("thunked")
			return true, nil
		}, nil
	}, 0)

	req, res := newTestRequest("GET", "/thunked")
	r.Emit("GET /thunked", req, res, nil)

	require.Equal(t, "thunked", res.Body)
}
