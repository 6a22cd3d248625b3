package ingest

import (
	"regexp"
	"strings"
)

// pathMatcher compiles a path pattern (literal segments, `:name` params, a
// single-segment `*` wildcard and a greedy `**` wildcard) into a regular
// expression plus the ordered list of names its capture groups bind.
//
// It is retained for the life of the `listenerTable` entry it belongs to,
// the same way the teacher's router trie is built once at `on()` time and
// walked many times at request time.
type pathMatcher struct {
	pattern    string
	re         *regexp.Regexp
	paramNames []string
}

var metaReplacer = regexp.MustCompile(`[.+^$()\[\]{}|\\]`)

// compilePathMatcher compiles pattern into a pathMatcher. pattern uses `/`
// separated segments; `:name` captures a named param, a bare `*` captures a
// single segment, and a bare `**` greedily captures the remainder of the
// path (and must be the last segment, since nothing meaningful can follow a
// greedy capture).
func compilePathMatcher(pattern string) *pathMatcher {
	segments := strings.Split(pattern, "/")

	var b strings.Builder
	b.WriteByte('^')

	var names []string
	for i, seg := range segments {
		if seg == "**" {
			// The separator folds into the optional group itself, so a
			// path whose trailing "/" was already stripped by
			// normalizePath (e.g. "/files" for pattern "/files/**",
			// normalized down from a request for "/files/") still
			// matches, with an empty capture.
			b.WriteString("(?:/(.*))?")
			names = append(names, "**")
			continue
		}

		if i > 0 {
			b.WriteByte('/')
		}

		switch {
		case seg == "*":
			b.WriteString("([^/]+)")
			names = append(names, "*")
		case strings.HasPrefix(seg, ":") && len(seg) > 1:
			b.WriteString("([^/]+)")
			names = append(names, seg[1:])
		default:
			b.WriteString(metaReplacer.ReplaceAllString(seg, `\$0`))
		}
	}

	b.WriteByte('$')

	return &pathMatcher{
		pattern:    pattern,
		re:         regexp.MustCompile(b.String()),
		paramNames: names,
	}
}

// match reports whether path matches the compiled pattern and, if so,
// returns the captured params keyed by name. Named params (`:name`) are
// keyed by their name; positional wildcards (`*`, `**`) are additionally
// keyed by their ordinal position among the wildcards of this pattern (so a
// pattern with two `*` segments exposes both "0" and "1" besides the
// literal "*" key holding the last one, mirroring the single shared "*" key
// most patterns actually use).
func (m *pathMatcher) match(path string) (map[string]string, bool) {
	groups := m.re.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}

	params := make(map[string]string, len(m.paramNames))
	wildcardIndex := 0
	for i, name := range m.paramNames {
		value := groups[i+1]
		if name == "*" || name == "**" {
			params[indexKey(wildcardIndex)] = value
			wildcardIndex++
		}
		params[name] = value
	}

	return params, true
}

func indexKey(i int) string {
	return string(rune('0' + i))
}

// normalizePath collapses repeated "/" into one and strips a trailing "/"
// (except for the root path itself), per the route key normalization rules.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}

	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	return path
}

// isRoutePattern reports whether pattern should be matched against the path
// portion of an event key (it contains "/", ":" or "*"), as opposed to being
// a bare event name such as "request" or "error" matched by string equality.
func isRoutePattern(pattern string) bool {
	return strings.ContainsAny(pattern, "/:*")
}
