package ingest

import (
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemViewEngine(t *testing.T, files map[string]string) *DefaultViewEngine {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, contents := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o644))
	}
	return NewDefaultViewEngine(fs)
}

func TestRenderHTMLTemplate(t *testing.T) {
	engine := newMemViewEngine(t, map[string]string{
		"greet.html": "Hello, {{.name}}!",
	})

	req := NewRequest()
	req.Params = map[string]string{"name": "Ada"}
	res := NewResponse()

	require.NoError(t, engine.Render("greet.html", req, res, nil))
	assert.Equal(t, "Hello, Ada!", res.Body)
	assert.Equal(t, "text/html", res.Mimetype)
}

func TestRenderHTMLTemplateIsCachedByDigest(t *testing.T) {
	engine := newMemViewEngine(t, map[string]string{
		"greet.html": "Hi, {{.name}}!",
	})

	req := NewRequest()
	req.Params = map[string]string{"name": "Grace"}

	res1 := NewResponse()
	require.NoError(t, engine.Render("greet.html", req, res1, nil))

	res2 := NewResponse()
	require.NoError(t, engine.Render("greet.html", req, res2, nil))

	assert.Equal(t, res1.Body, res2.Body)
	assert.Len(t, engine.tpls, 1)
}

func TestRenderHTMLConcurrentRendersDoNotRace(t *testing.T) {
	engine := newMemViewEngine(t, map[string]string{
		"greet.html": "Hi, {{.name}}!",
	})

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			req := NewRequest()
			req.Params = map[string]string{"name": "Ada"}
			res := NewResponse()
			assert.NoError(t, engine.Render("greet.html", req, res, nil))
			assert.Equal(t, "Hi, Ada!", res.Body)
		}()
	}
	wg.Wait()

	engine.tplsMu.RLock()
	defer engine.tplsMu.RUnlock()
	assert.Len(t, engine.tpls, 1)
}

func TestRenderMarkdownSanitizesOutput(t *testing.T) {
	engine := newMemViewEngine(t, map[string]string{
		"page.md": "# Title\n\n<script>alert(1)</script>\n",
	})

	req := NewRequest()
	res := NewResponse()

	require.NoError(t, engine.Render("page.md", req, res, nil))
	body := res.Body.(string)
	assert.Contains(t, body, "<h1>Title</h1>")
	assert.NotContains(t, body, "<script>")
}

func TestRenderHTMLMinifiesWhenEnabled(t *testing.T) {
	engine := newMemViewEngine(t, map[string]string{
		"spaced.html": "<div>   hello   </div>",
	})
	engine.Minify = true

	req := NewRequest()
	res := NewResponse()

	require.NoError(t, engine.Render("spaced.html", req, res, nil))
	assert.NotContains(t, res.Body.(string), "   ")
}
