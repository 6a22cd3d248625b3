package ingest

// ViewEngine renders a view-template action. path is the template file path
// handed to `ViewRouter.Get`/etc; the engine takes the template's data from
// req itself (`DefaultViewEngine` uses `req.AllData()`).
// Implementations write their output via `res.SetHTML` (or another setter)
// themselves, which is why Render takes the full (req, res, ctx) triple
// instead of returning a string.
type ViewEngine interface {
	Render(path string, req *Request, res *Response, ctx *PluginHost) error
}

// ViewRouter is an `ActionRouter` specialization whose action variant is
// fixed to a view-template path, dispatched through a pluggable `ViewEngine`.
// It also exposes `Render`, which hands a template + props to the engine's
// `RenderString` method (`DefaultViewEngine` in views.go has one) to get a
// string without going through the full action-resolution machinery, e.g.
// for partial/fragment rendering from inside another action.
type ViewRouter struct {
	*ActionRouter
	engine ViewEngine
}

// NewViewRouter returns a `ViewRouter` backed by engine.
func NewViewRouter(engine ViewEngine) *ViewRouter {
	return &ViewRouter{ActionRouter: NewActionRouter(), engine: engine}
}

func (r *ViewRouter) view(method, path, templatePath string, priority int) {
	r.On(method+" "+path, ViewTemplateAction(templatePath, r.engine), priority)
}

// Get registers a GET route rendered from templatePath.
func (r *ViewRouter) Get(path, templatePath string, priority int) {
	r.view("GET", path, templatePath, priority)
}

// Post registers a POST route rendered from templatePath.
func (r *ViewRouter) Post(path, templatePath string, priority int) {
	r.view("POST", path, templatePath, priority)
}

// All registers a route, matching any method, rendered from templatePath.
func (r *ViewRouter) All(path, templatePath string, priority int) {
	r.view("ALL", path, templatePath, priority)
}

// Render renders templatePath with props directly through the router's
// engine, returning the markup as a string instead of writing to a
// `Response`. Useful for composing partials from within an action.
func (r *ViewRouter) Render(templatePath string, props map[string]interface{}) (string, error) {
	rend, ok := r.engine.(interface {
		RenderString(string, map[string]interface{}) (string, error)
	})
	if !ok {
		return "", errNoRenderString
	}
	return rend.RenderString(templatePath, props)
}
