package ingest

// EntryRouter is an `ActionRouter` specialization whose action variant is
// fixed to an entry-path: each registered route stores an absolute module
// path string, resolved lazily (and memoized) via the router's
// `EntryResolver` to a callable. Typical for FaaS deployment targets where
// each route is compiled to its own entry file by a build-time generator.
type EntryRouter struct {
	*ActionRouter
	resolver EntryResolver
}

// NewEntryRouter returns an `EntryRouter` that resolves entry paths with
// resolver.
func NewEntryRouter(resolver EntryResolver) *EntryRouter {
	return &EntryRouter{ActionRouter: NewActionRouter(), resolver: resolver}
}

func (r *EntryRouter) entry(method, path, entryPath string, priority int) {
	r.On(method+" "+path, EntryPathAction(entryPath, r.resolver), priority)
}

// Get registers a GET route whose handler lives at entryPath.
func (r *EntryRouter) Get(path, entryPath string, priority int) {
	r.entry("GET", path, entryPath, priority)
}

// Post registers a POST route whose handler lives at entryPath.
func (r *EntryRouter) Post(path, entryPath string, priority int) {
	r.entry("POST", path, entryPath, priority)
}

// Put registers a PUT route whose handler lives at entryPath.
func (r *EntryRouter) Put(path, entryPath string, priority int) {
	r.entry("PUT", path, entryPath, priority)
}

// Patch registers a PATCH route whose handler lives at entryPath.
func (r *EntryRouter) Patch(path, entryPath string, priority int) {
	r.entry("PATCH", path, entryPath, priority)
}

// Delete registers a DELETE route whose handler lives at entryPath.
func (r *EntryRouter) Delete(path, entryPath string, priority int) {
	r.entry("DELETE", path, entryPath, priority)
}

// All registers a route, matching any method, whose handler lives at
// entryPath.
func (r *EntryRouter) All(path, entryPath string, priority int) {
	r.entry("ALL", path, entryPath, priority)
}
