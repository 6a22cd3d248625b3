package ingest

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// EventRouter owns a `listenerTable` and implements the `on`/`emit`/`use`
// operators the whole framework is built from. Every other router kind
// (`ActionRouter`, `EntryRouter`, `ImportRouter`, `ViewRouter`) embeds one.
type EventRouter struct {
	table *listenerTable
}

// NewEventRouter returns an empty `EventRouter`.
func NewEventRouter() *EventRouter {
	return &EventRouter{table: newListenerTable()}
}

// On registers action against pattern with the given priority (higher runs
// first; ties broken by insertion order). pattern is either a route pattern
// ("GET /users/:id") or a bare event name ("request", "error", "response",
// "route", "config").
func (r *EventRouter) On(pattern string, action *Action, priority int) {
	r.table.on(pattern, action, priority)
}

// Unbind removes every listener registered against pattern with action.
func (r *EventRouter) Unbind(pattern string, action *Action) {
	r.table.unbind(pattern, action)
}

// RouteKeys returns every distinct "METHOD PATH" registered on r, sorted,
// excluding bare event-name listeners ("request", "error", etc). Used by
// the code generator to discover what per-route entry files to emit.
func (r *EventRouter) RouteKeys() []string {
	return r.table.routeKeys()
}

// Use merges every listener of sub into r, preserving sub's relative
// ordering within each priority tier. This is a flat merge of listener
// tables, never a nested dispatch: priority stays global across the whole
// composed set.
func (r *EventRouter) Use(sub *EventRouter) {
	r.table.merge(sub.table)
}

// Emit looks up every listener registered for eventKey, runs them in
// (priority DESC, insertion ASC) order, and returns the resulting `Status`.
//
// Each listener is invoked with (req, res, ctx). A listener returning
// `false` aborts the current emit (the rest of the matched listeners for
// this eventKey do not run); any other return means "continue". If a
// listener panics, the panic is recovered, folded into `res` as a 500 with
// a captured stack, and the "error" event is re-emitted on r before Emit
// itself returns a 500 status.
//
// A listener registered on the bare "/**" glob matches every path for its
// method, so it is always among the hits for a specific route too. It only
// actually runs if the response is still unset by the time its turn comes
// up in priority order -- a default-priority "/**" listener is a fallback,
// not a second pass over an already-handled request.
func (r *EventRouter) Emit(eventKey string, req *Request, res *Response, ctx *PluginHost) Status {
	hits := r.table.matches(eventKey)

	for _, hit := range hits {
		if isGlobFallback(hit.entry.pattern) && !responseUnset(res) {
			continue
		}

		if hit.params != nil {
			req.setParams(hit.params)
		}

		fn, err := hit.entry.action.resolve()
		if err != nil {
			r.raise(err, req, res, ctx)
			return statusOf(500)
		}

		cont, failed := r.run(fn, req, res, ctx)
		if failed {
			return statusOf(500)
		}
		if !cont {
			return abortStatus
		}
	}

	if res.Code != 0 {
		return statusOf(res.Code)
	}
	return statusOf(200)
}

// run invokes fn, recovering from panics the way the teacher's recover gas
// does: capture the stack, fold it into the response, and re-dispatch the
// "error" event. failed is true when fn panicked or returned an error.
func (r *EventRouter) run(fn ActionFunc, req *Request, res *Response, ctx *PluginHost) (cont, failed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			r.raise(err, req, res, ctx)
			cont, failed = false, true
		}
	}()

	ok, err := fn(req, res, ctx)
	if err != nil {
		r.raise(err, req, res, ctx)
		return false, true
	}
	return ok, false
}

// raise folds err into res (as a 500 unless res already carries a more
// specific code) and re-emits the "error" event name on r so applications
// can render custom error pages.
func (r *EventRouter) raise(err error, req *Request, res *Response, ctx *PluginHost) {
	res.Error = err.Error()
	if res.Code == 0 || res.Code < 400 {
		res.Code = 500
	}
	res.Status = StatusText(res.Code)

	stack := make([]byte, 8<<10)
	n := runtime.Stack(stack, false)
	res.Stack = append(res.Stack, string(stack[:n]))

	if ctx != nil && ctx.Logger != nil {
		ctx.Logger.Error("listener error", zap.Error(err), zap.Int("code", res.Code))
	}

	// The error event runs in its own emit so a panic inside an error
	// listener cannot recurse back into raise.
	hits := r.table.matches("error")
	for _, hit := range hits {
		fn, rerr := hit.entry.action.resolve()
		if rerr != nil {
			continue
		}
		func() {
			defer func() { recover() }()
			fn(req, res, ctx)
		}()
	}
}

// ActionRouter is HTTP-verb sugar over `EventRouter`: each verb method is
// shorthand for `On("METHOD pattern", action, priority)`.
type ActionRouter struct {
	*EventRouter
}

// NewActionRouter returns an empty `ActionRouter`.
func NewActionRouter() *ActionRouter {
	return &ActionRouter{EventRouter: NewEventRouter()}
}

func (r *ActionRouter) route(method, path string, action *Action, priority int) {
	r.On(method+" "+path, action, priority)
}

// Get registers a GET route.
func (r *ActionRouter) Get(path string, fn ActionFunc, priority int) {
	r.route("GET", path, CallableAction(fn), priority)
}

// Post registers a POST route.
func (r *ActionRouter) Post(path string, fn ActionFunc, priority int) {
	r.route("POST", path, CallableAction(fn), priority)
}

// Put registers a PUT route.
func (r *ActionRouter) Put(path string, fn ActionFunc, priority int) {
	r.route("PUT", path, CallableAction(fn), priority)
}

// Patch registers a PATCH route.
func (r *ActionRouter) Patch(path string, fn ActionFunc, priority int) {
	r.route("PATCH", path, CallableAction(fn), priority)
}

// Delete registers a DELETE route.
func (r *ActionRouter) Delete(path string, fn ActionFunc, priority int) {
	r.route("DELETE", path, CallableAction(fn), priority)
}

// Head registers a HEAD route.
func (r *ActionRouter) Head(path string, fn ActionFunc, priority int) {
	r.route("HEAD", path, CallableAction(fn), priority)
}

// Options registers an OPTIONS route.
func (r *ActionRouter) Options(path string, fn ActionFunc, priority int) {
	r.route("OPTIONS", path, CallableAction(fn), priority)
}

// Connect registers a CONNECT route.
func (r *ActionRouter) Connect(path string, fn ActionFunc, priority int) {
	r.route("CONNECT", path, CallableAction(fn), priority)
}

// Trace registers a TRACE route.
func (r *ActionRouter) Trace(path string, fn ActionFunc, priority int) {
	r.route("TRACE", path, CallableAction(fn), priority)
}

// All registers a route that matches any HTTP method.
func (r *ActionRouter) All(path string, fn ActionFunc, priority int) {
	r.route("ALL", path, CallableAction(fn), priority)
}
