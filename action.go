package ingest

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ActionFunc is the callable shape every `Action` variant resolves to. It is
// invoked with the request, the response and the dispatch-time `Context`
// (the `PluginHost`).
//
// Returning literal `false` (via `AbortResult`) aborts the current `emit`;
// any other return, including a plain `nil` error, means "continue".
type ActionFunc func(req *Request, res *Response, ctx *PluginHost) (bool, error)

// AbortResult is the sentinel an `ActionFunc` returns to signal the
// cooperative abort described in the design notes: it asks the dispatcher
// to treat this action's return value as a literal "false", stopping the
// current `emit` without treating it as an error.
const AbortResult = false

// Action is a tagged union of the four shapes the source spec allows for a
// listener's unit of work. All four normalize to a single `ActionFunc` after
// their first resolution; resolution is memoized on the `Action` itself so
// re-emits of the same route never redo it.
//
// In a dynamic-import ecosystem two of the variants (entry-path,
// import-thunk) suspend on a module load. This implementation follows the
// design notes' suggested substitution: an `EntryResolver` stands in for the
// dynamic loader, so resolution still suspends (it may hit disk, a plugin
// registry, or a network call) but does not require a scripting runtime.
type Action struct {
	kind actionKind

	callable ActionFunc
	path     string
	thunk    func() (ActionFunc, error)
	view     string

	resolver EntryResolver

	once   sync.Once
	group  singleflight.Group
	result ActionFunc
	err    error
}

type actionKind uint8

const (
	actionCallable actionKind = iota
	actionEntryPath
	actionImportThunk
	actionViewTemplate
)

// EntryResolver resolves an entry-path action's path to a callable. It is
// the substitute, named in the design notes, for a dynamic module loader:
// implementations might read a plugin registry, dial an RPC, or simply
// look the path up in a compile-time map populated by a code generator.
type EntryResolver func(path string) (ActionFunc, error)

// CallableAction wraps a plain callable as an `Action`. This is the common
// case when the application author registers a closure directly.
func CallableAction(fn ActionFunc) *Action {
	return &Action{kind: actionCallable, callable: fn}
}

// EntryPathAction creates a deferred `Action` whose callable is resolved,
// on first use, via resolver(path). The resolution is memoized: later
// emits of the same listener entry reuse the cached callable.
func EntryPathAction(path string, resolver EntryResolver) *Action {
	return &Action{kind: actionEntryPath, path: path, resolver: resolver}
}

// ImportThunkAction creates a deferred `Action` whose callable is produced
// by calling thunk exactly once. thunk plays the role of the source spec's
// "0-arg function returning a promise-of-module".
func ImportThunkAction(thunk func() (ActionFunc, error)) *Action {
	return &Action{kind: actionImportThunk, thunk: thunk}
}

// ViewTemplateAction creates a deferred `Action` that hands path to the
// `ViewRouter`'s pluggable render engine instead of to user code directly.
// engine is resolved lazily the same way the other deferred variants are.
func ViewTemplateAction(path string, engine ViewEngine) *Action {
	return &Action{
		kind: actionViewTemplate,
		view: path,
		thunk: func() (ActionFunc, error) {
			return func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
				return true, engine.Render(path, req, res, ctx)
			}, nil
		},
	}
}

// resolve returns the memoized `ActionFunc` for a, resolving it on first
// call. Concurrent first calls from different requests are coalesced via a
// `singleflight.Group` so a deferred action is never resolved twice even
// under concurrent dispatch.
func (a *Action) resolve() (ActionFunc, error) {
	if a.kind == actionCallable {
		return a.callable, nil
	}

	a.once.Do(func() {
		v, err, _ := a.group.Do("resolve", func() (interface{}, error) {
			switch a.kind {
			case actionEntryPath:
				if a.resolver == nil {
					return nil, fmt.Errorf("ingest: no EntryResolver configured for entry path %q", a.path)
				}
				return a.resolver(a.path)
			case actionImportThunk, actionViewTemplate:
				return a.thunk()
			default:
				return nil, fmt.Errorf("ingest: unknown action kind %d", a.kind)
			}
		})
		if err != nil {
			a.err = err
			return
		}
		a.result = v.(ActionFunc)
	})

	return a.result, a.err
}
