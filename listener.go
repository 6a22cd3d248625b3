package ingest

import (
	"sort"
	"sync"
)

// listenerEntry is the tuple `(pattern, action, priority, insertionSeq)`
// described by the data model. Entries are never mutated in place; `on()`
// appends, `unbind()` removes by identity.
type listenerEntry struct {
	pattern  string
	action   *Action
	priority int
	seq      int64

	matcher *pathMatcher // nil for bare event names
}

// listenerTable holds every listener registered on an `EventRouter`, ranked
// by (priority DESC, insertionSeq ASC) at lookup time. It is the direct
// analogue of the teacher's route `tree`, except matching here is by
// pattern scan plus regex rather than by radix trie, because priority -- not
// path specificity -- decides ordering (see the design notes on why `use()`
// is a flat merge rather than nested dispatch).
type listenerTable struct {
	mu      sync.RWMutex
	entries []*listenerEntry
	nextSeq int64
}

func newListenerTable() *listenerTable {
	return &listenerTable{}
}

// on appends a new entry for pattern, returning it so callers (`unbind`,
// tests) can identify it later.
func (t *listenerTable) on(pattern string, action *Action, priority int) *listenerEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &listenerEntry{
		pattern:  pattern,
		action:   action,
		priority: priority,
		seq:      t.nextSeq,
	}
	t.nextSeq++

	if isRoutePattern(pattern) {
		e.matcher = compilePathMatcher(routePathOf(pattern))
	}

	t.entries = append(t.entries, e)
	return e
}

// unbind removes every entry whose pattern equals pattern and whose action
// is action (identity comparison on the pointer).
func (t *listenerTable) unbind(pattern string, action *Action) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.pattern == pattern && e.action == action {
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
}

// matches returns every entry whose pattern matches eventKey, sorted by
// (priority DESC, insertionSeq ASC), along with the params captured for
// route patterns (empty for bare event-name matches).
func (t *listenerTable) matches(eventKey string) []matchedListener {
	t.mu.RLock()
	defer t.mu.RUnlock()

	method, path := splitEventKey(eventKey)

	var hits []matchedListener
	for _, e := range t.entries {
		if e.matcher == nil {
			if e.pattern == eventKey {
				hits = append(hits, matchedListener{entry: e})
			}
			continue
		}

		entryMethod := methodOf(e.pattern)
		if entryMethod != "ALL" && entryMethod != method {
			continue
		}

		if params, ok := e.matcher.match(path); ok {
			hits = append(hits, matchedListener{entry: e, params: params})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].entry.priority != hits[j].entry.priority {
			return hits[i].entry.priority > hits[j].entry.priority
		}
		return hits[i].entry.seq < hits[j].entry.seq
	})

	return hits
}

// merge appends every entry of other into t, re-stamping insertion sequence
// numbers so relative order within a priority tier is preserved across the
// merge (the `use()` contract: a flat merge, not nested dispatch).
func (t *listenerTable) merge(other *listenerTable) {
	other.mu.RLock()
	entries := make([]*listenerEntry, len(other.entries))
	copy(entries, other.entries)
	other.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entries {
		ne := &listenerEntry{
			pattern:  e.pattern,
			action:   e.action,
			priority: e.priority,
			seq:      t.nextSeq,
			matcher:  e.matcher,
		}
		t.nextSeq++
		t.entries = append(t.entries, ne)
	}
}

// routeKeys returns every distinct "METHOD PATH" registered in t, sorted
// for deterministic output. Bare event names (matcher == nil) are excluded.
func (t *listenerTable) routeKeys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := map[string]bool{}
	var keys []string
	for _, e := range t.entries {
		if e.matcher == nil {
			continue
		}
		key := methodOf(e.pattern) + " " + routePathOf(e.pattern)
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}

// matchedListener pairs a ranked entry with the params it captured, if any.
type matchedListener struct {
	entry  *listenerEntry
	params map[string]string
}

// splitEventKey splits a "METHOD PATH" event key into its method and path
// portions. A bare event name (no space) is returned as (name, "").
func splitEventKey(eventKey string) (method, path string) {
	for i := 0; i < len(eventKey); i++ {
		if eventKey[i] == ' ' {
			return eventKey[:i], normalizePath(eventKey[i+1:])
		}
	}
	return eventKey, ""
}

// methodOf returns the method portion of a route pattern ("METHOD path"),
// or "ALL" for patterns with no method prefix.
func methodOf(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			return pattern[:i]
		}
	}
	return "ALL"
}

// routePathOf returns the path portion of a route pattern ("METHOD path").
func routePathOf(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			return pattern[i+1:]
		}
	}
	return pattern
}

// isGlobFallback reports whether pattern is a bare "/**" catch-all. Its
// compiled matcher matches every path for the method, so it hits alongside
// whatever specific route the caller actually queried; `EventRouter.Emit`
// uses this to withhold it once an earlier, higher-priority listener has
// already claimed the response.
func isGlobFallback(pattern string) bool {
	return routePathOf(pattern) == "/**"
}
