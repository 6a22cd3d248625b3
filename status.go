package ingest

// Status is the outcome of a dispatcher stage or of an `EventRouter.emit`.
//
// It is deliberately not an `error`: a `Status` is always produced, even on
// the happy path, because the dispatcher needs to know whether to keep
// running the lifecycle stages after a listener chain finishes.
type Status struct {
	Code int
	Name string
}

// String implements `fmt.Stringer`.
func (s Status) String() string {
	return s.Name
}

// ABORT is the status carried by a cooperative short-circuit (a listener
// returning literal `false`). It is never visible to the client; it only
// stops the current `emit`.
//
// 309 is picked over 308 to avoid clashing with the HTTP "308 Permanent
// Redirect" status, per the open question in the design notes.
const ABORT = 309

var statusText = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	309: "Incomplete",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	409: "Conflict",
	410: "Gone",
	422: "Unprocessable Entity",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

// StatusText returns the standard status text for code, or "" if code is
// not one of the statuses the core assigns on its own.
func StatusText(code int) string {
	return statusText[code]
}

// abortStatus is the `Status` returned by `EventRouter.Emit` when a
// listener aborted the chain.
var abortStatus = Status{Code: ABORT, Name: "Incomplete"}

func statusOf(code int) Status {
	name := statusText[code]
	if name == "" {
		name = "Unknown"
	}
	return Status{Code: code, Name: name}
}
