package ingest

// ImportThunk is a 0-arg function returning the resolved callable for a
// listener. It stands in for the source spec's "0-arg function returning a
// promise-of-module": in Go there is no dynamic import, so the thunk itself
// does whatever suspension (lazy package init, plugin.Open, RPC) the
// application needs and returns a ready-to-run `ActionFunc`.
type ImportThunk func() (ActionFunc, error)

// ImportRouter is an `ActionRouter` specialization whose action variant is
// fixed to an import-thunk: each registered route stores a thunk, awaited
// (resolved, memoized) on first dispatch.
type ImportRouter struct {
	*ActionRouter
}

// NewImportRouter returns an empty `ImportRouter`.
func NewImportRouter() *ImportRouter {
	return &ImportRouter{ActionRouter: NewActionRouter()}
}

func (r *ImportRouter) thunked(method, path string, thunk ImportThunk, priority int) {
	r.On(method+" "+path, ImportThunkAction(func() (ActionFunc, error) { return thunk() }), priority)
}

// Get registers a GET route resolved from thunk.
func (r *ImportRouter) Get(path string, thunk ImportThunk, priority int) {
	r.thunked("GET", path, thunk, priority)
}

// Post registers a POST route resolved from thunk.
func (r *ImportRouter) Post(path string, thunk ImportThunk, priority int) {
	r.thunked("POST", path, thunk, priority)
}

// Put registers a PUT route resolved from thunk.
func (r *ImportRouter) Put(path string, thunk ImportThunk, priority int) {
	r.thunked("PUT", path, thunk, priority)
}

// Patch registers a PATCH route resolved from thunk.
func (r *ImportRouter) Patch(path string, thunk ImportThunk, priority int) {
	r.thunked("PATCH", path, thunk, priority)
}

// Delete registers a DELETE route resolved from thunk.
func (r *ImportRouter) Delete(path string, thunk ImportThunk, priority int) {
	r.thunked("DELETE", path, thunk, priority)
}

// All registers a route, matching any method, resolved from thunk.
func (r *ImportRouter) All(path string, thunk ImportThunk, priority int) {
	r.thunked("ALL", path, thunk, priority)
}
