package ingest

import (
	"bytes"
	"errors"
	"html/template"
	"path/filepath"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/aofei/mimesniffer"
	"github.com/cespare/xxhash/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/afero"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
)

var errNoRenderString = errors.New("ingest: view engine does not support RenderString")

// DefaultViewEngine is the reference `ViewEngine`. A `ViewRouter` uses it
// only when it is passed to `NewViewRouter` or installed on a host via
// `PluginHost.SetViewEngine`; no router picks it up on its own. It reads
// templates from an `afero.Fs` (so templates can come from the OS, an
// in-memory tree in tests, or an embedded bundle), renders ".html" files
// with `html/template` and ".md" files with goldmark, and sanitizes
// markdown output with bluemonday's UGC policy before handing it to
// `Response.SetHTML`.
//
// Both kinds are memoized by the xxhash of the template's source bytes:
// parsed `*template.Template` values in an in-process map, and rendered
// markdown output in a `fastcache.Cache`. Re-rendering the same (unchanged)
// template file therefore never reparses it -- the same "coffer" idea the
// teacher applies to static assets, generalized to templates.
type DefaultViewEngine struct {
	FS       afero.Fs
	FuncMap  template.FuncMap
	Sanitize bool

	// Minify runs rendered HTML templates through the HTML minifier
	// before they reach `Response.SetHTML`. Off by default; local
	// development wants readable output.
	Minify bool

	cache    *fastcache.Cache
	minifier *minify.M

	tplsMu sync.RWMutex
	tpls   map[uint64]*template.Template
}

// NewDefaultViewEngine returns a `DefaultViewEngine` rooted at fs.
func NewDefaultViewEngine(fs afero.Fs) *DefaultViewEngine {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	return &DefaultViewEngine{
		FS:       fs,
		Sanitize: true,
		cache:    fastcache.New(8 << 20),
		tpls:     map[uint64]*template.Template{},
		minifier: m,
	}
}

// Render implements `ViewEngine`. The output is set with `SetHTML`, so
// ".html" and ".md" templates are served as text/html. For any other
// template extension (e.g. `.svg.tmpl`) whose caller left
// `Response.Mimetype` unset beforehand, the rendered body's mimetype is
// sniffed instead. A mimetype the caller set beforehand is kept.
func (e *DefaultViewEngine) Render(path string, req *Request, res *Response, ctx *PluginHost) error {
	preset := res.Mimetype
	out, err := e.RenderString(path, req.AllData())
	if err != nil {
		return err
	}

	if e.Minify && strings.HasSuffix(path, ".html") {
		minified, err := e.minifier.String("text/html", out)
		if err == nil {
			out = minified
		}
	}

	res.SetHTML(out)
	switch {
	case preset != "":
		res.Mimetype = preset
	case !strings.HasSuffix(path, ".html") && !strings.HasSuffix(path, ".md"):
		res.Mimetype = mimesniffer.Sniff([]byte(out))
	}
	return nil
}

// RenderString renders path with props and returns the resulting markup.
func (e *DefaultViewEngine) RenderString(path string, props map[string]interface{}) (string, error) {
	src, err := afero.ReadFile(e.FS, path)
	if err != nil {
		return "", err
	}

	digest := xxhash.Sum64(src)

	if strings.HasSuffix(path, ".md") {
		return e.renderMarkdown(digest, src)
	}

	return e.renderHTML(path, digest, src, props)
}

func (e *DefaultViewEngine) renderHTML(path string, digest uint64, src []byte, props map[string]interface{}) (string, error) {
	e.tplsMu.RLock()
	tpl, ok := e.tpls[digest]
	e.tplsMu.RUnlock()
	if ok {
		return e.execute(tpl, props)
	}

	tpl, err := template.New(filepath.Base(path)).Funcs(e.FuncMap).Parse(string(src))
	if err != nil {
		return "", err
	}

	e.tplsMu.Lock()
	e.tpls[digest] = tpl
	e.tplsMu.Unlock()

	return e.execute(tpl, props)
}

func (e *DefaultViewEngine) execute(tpl *template.Template, props map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, props); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *DefaultViewEngine) renderMarkdown(digest uint64, src []byte) (string, error) {
	cacheKey := make([]byte, 8)
	for i := 0; i < 8; i++ {
		cacheKey[i] = byte(digest >> (8 * i))
	}

	if cached, ok := e.cache.HasGet(nil, cacheKey); ok {
		return string(cached), nil
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return "", err
	}

	out := buf.Bytes()
	if e.Sanitize {
		out = bluemonday.UGCPolicy().SanitizeBytes(out)
	}

	e.cache.Set(cacheKey, out)
	return string(out), nil
}
