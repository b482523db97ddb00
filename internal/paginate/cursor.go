package paginate

import (
	"net/url"
	"strings"
)

// Normalize converts a next-page hint into a request path and query. The
// source emits the hint in four shapes: an absolute URL, an absolute path,
// a query string prefixed with "?", or a bare query string. Absolute forms
// may carry an api/v0 prefix that the client base URL already covers.
//
// Keys listed in strip are removed from the derived query regardless of
// which form produced them. Transaction history needs this for the "time"
// parameter: the source's own continuation token reintroduces a stale time
// filter that would truncate results.
func Normalize(basePath, hint string, strip []string) (string, url.Values) {
	var path string
	var query url.Values

	switch {
	case strings.HasPrefix(hint, "http://"), strings.HasPrefix(hint, "https://"), strings.HasPrefix(hint, "/"):
		parsed, err := url.Parse(hint)
		if err != nil {
			return basePath, nil
		}
		path = relativePath(parsed.Path)
		query = parseQuery(parsed.RawQuery)

	case strings.HasPrefix(hint, "?"):
		path = basePath
		query = parseQuery(hint[1:])

	case strings.Contains(hint, "="):
		path = basePath
		query = parseQuery(hint)

	default:
		// A token with no recognizable structure; re-request the base path.
		path = basePath
	}

	for _, key := range strip {
		query.Del(key)
	}
	if len(query) == 0 {
		query = nil
	}

	return path, query
}

func relativePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.TrimPrefix(p, "api/v0/")
}

func parseQuery(raw string) url.Values {
	if raw == "" {
		return nil
	}
	// Malformed pairs are dropped; everything parseable is kept.
	values, _ := url.ParseQuery(raw)
	return values
}
