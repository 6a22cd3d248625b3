package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoadIsIdempotent(t *testing.T) {
	req := NewRequest()

	calls := 0
	req.SetLoader(func(r *Request) (interface{}, map[string]interface{}, error) {
		calls++
		return "payload", map[string]interface{}{"a": "1"}, nil
	})

	require.NoError(t, req.Load())
	require.NoError(t, req.Load())

	assert.Equal(t, 1, calls)
	assert.Equal(t, "payload", req.Body())
	assert.Equal(t, "1", req.Post()["a"])
}

func TestRequestBodyNilBeforeLoad(t *testing.T) {
	req := NewRequest()
	assert.Nil(t, req.Body())
}

func TestRequestDataPrecedence(t *testing.T) {
	req := NewRequest()
	req.Params = map[string]string{"name": "from-param"}
	req.Query = map[string][]string{"name": {"from-query"}}
	req.SetLoader(func(r *Request) (interface{}, map[string]interface{}, error) {
		return nil, map[string]interface{}{"name": "from-post"}, nil
	})
	require.NoError(t, req.Load())

	v, ok := req.Data("name")
	require.True(t, ok)
	assert.Equal(t, "from-post", v)
}

func TestRequestAllDataMerges(t *testing.T) {
	req := NewRequest()
	req.Params = map[string]string{"id": "42"}
	req.Query = map[string][]string{"q": {"term"}}

	merged := req.AllData()
	assert.Equal(t, "42", merged["id"])
	assert.Equal(t, "term", merged["q"])
}

func TestResetClearsPooledState(t *testing.T) {
	req := NewRequest()
	req.Method = "POST"
	req.Params["id"] = "1"
	req.RequestID = "abc"

	req.Reset()

	assert.Equal(t, "", req.Method)
	assert.Empty(t, req.Params)
	assert.Equal(t, "", req.RequestID)
}

func TestParseSessionCookie(t *testing.T) {
	session := ParseSessionCookie("user=alice; role=admin")
	assert.Equal(t, "alice", session["user"])
	assert.Equal(t, "admin", session["role"])
}

func TestHeaderIsCaseInsensitive(t *testing.T) {
	h := Header{}
	h.Set("content-type", "text/plain")
	assert.Equal(t, "text/plain", h.Get("Content-Type"))
}
