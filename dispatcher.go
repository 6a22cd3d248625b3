package ingest

import "go.uber.org/zap"

// Handle runs the four-stage request lifecycle against req/res: prepare,
// process, finalize, dispatch. It is the single entry point every
// transport adapter calls after building its Request/Response pair.
//
// An abort return (listener returning literal `false`) stops only the
// stage it occurred in; later stages still run, so a route handler that
// aborts after writing the body still gets the "response" event and the
// final dispatch.
//
// req.Context is set to h before any stage runs. An error from the transport
// dispatcher is folded into res and re-emitted on the "error" event, then
// returned to the caller.
func (h *PluginHost) Handle(req *Request, res *Response) error {
	req.Context = h
	h.prepare(req, res)
	h.process(req, res)
	h.finalize(req, res)
	if err := h.dispatch(res); err != nil {
		h.raise(err, req, res, h)
		return err
	}
	return nil
}

// prepare emits the "request" event, giving listeners a chance to
// short-circuit before routing (auth, request logging, rate limiting).
func (h *PluginHost) prepare(req *Request, res *Response) {
	h.Emit("request", req, res, h)
}

// process emits the matched route key, falls back to the method's "/**"
// glob if nothing claimed the response, and synthesizes a 404 if the
// response is still unset after both.
func (h *PluginHost) process(req *Request, res *Response) {
	routeKey := req.Method + " " + req.URL.Pathname

	h.Emit(routeKey, req, res, h)

	if responseUnset(res) {
		h.Emit(req.Method+" /**", req, res, h)
	}

	if responseUnset(res) {
		res.SetCode(404)
		res.Mimetype = "text/plain"
		res.Body = "404 Not Found"
		h.Logger.Warn("no route matched", zap.String("route", routeKey))
	}
}

// finalize emits the "response" event, giving middleware a last chance to
// mutate headers or body before the transport dispatcher runs.
func (h *PluginHost) finalize(req *Request, res *Response) {
	h.Emit("response", req, res, h)
}

// dispatch runs res.Dispatch unless a listener already called res.Stop.
func (h *PluginHost) dispatch(res *Response) error {
	if res.Sent {
		return nil
	}
	return res.Dispatch()
}

// responseUnset reports whether neither a body nor a code has been set
// yet, the condition that triggers the "/**" fallback and, failing that,
// the synthesized 404.
func responseUnset(res *Response) bool {
	return res.Body == nil && res.Code == 0
}
